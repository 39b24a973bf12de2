package azuremock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"

	"github.com/thand-io/azurerm/internal/azure"
)

func defaultSizes() []*armcompute.VirtualMachineSize {
	return []*armcompute.VirtualMachineSize{
		{Name: to.Ptr("Standard_B1s"), NumberOfCores: to.Ptr[int32](1), MemoryInMB: to.Ptr[int32](1024)},
		{Name: to.Ptr("Standard_D2s_v3"), NumberOfCores: to.Ptr[int32](2), MemoryInMB: to.Ptr[int32](8192)},
	}
}

type AvailabilitySets struct {
	*Memory[armcompute.AvailabilitySet]
}

func (a *AvailabilitySets) ListAvailableSizes(ctx context.Context, ref azure.Ref) ([]*armcompute.VirtualMachineSize, error) {
	if _, err := a.Get(ctx, ref); err != nil {
		return nil, err
	}
	return defaultSizes(), nil
}

type Disks struct {
	*Memory[armcompute.Disk]
	mu      sync.Mutex
	Granted map[string]bool
}

func (d *Disks) GrantAccess(ctx context.Context, ref azure.Ref, access armcompute.AccessLevel, durationSeconds int32) (string, error) {
	if _, err := d.Get(ctx, ref); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Granted == nil {
		d.Granted = map[string]bool{}
	}
	d.Granted[key(ref)] = true
	return fmt.Sprintf("https://md-test.blob.core.windows.net/%s/abcd?sv=2018-03-28&sr=b&sp=%s", ref.Name, access), nil
}

func (d *Disks) RevokeAccess(ctx context.Context, ref azure.Ref) error {
	if _, err := d.Get(ctx, ref); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.Granted, key(ref))
	return nil
}

// VirtualMachines serves virtual machines from memory. Submitted machines
// report the queued ProvisioningStates one Get at a time, then stay in the
// last one.
type VirtualMachines struct {
	*Memory[armcompute.VirtualMachine]

	mu                 sync.Mutex
	ProvisioningStates []string
	SubmitErr          error
	Actions            []azure.PowerAction
	Generalized        []string
	Captures           []armcompute.VirtualMachineCaptureParameters
	Reimaged           []string
}

func NewVirtualMachines(sub string) *VirtualMachines {
	vms := &VirtualMachines{
		Memory: NewMemory[armcompute.VirtualMachine](sub, "Microsoft.Compute/virtualMachines"),
	}
	vms.OnGet = func(ref azure.Ref, item *armcompute.VirtualMachine) {
		vms.mu.Lock()
		defer vms.mu.Unlock()
		if len(vms.ProvisioningStates) == 0 {
			return
		}
		state := vms.ProvisioningStates[0]
		if len(vms.ProvisioningStates) > 1 {
			vms.ProvisioningStates = vms.ProvisioningStates[1:]
		}
		if item.Properties == nil {
			item.Properties = &armcompute.VirtualMachineProperties{}
		}
		item.Properties.ProvisioningState = to.Ptr(state)
	}
	return vms
}

func (v *VirtualMachines) Submit(ctx context.Context, ref azure.Ref, model armcompute.VirtualMachine) error {
	if v.SubmitErr != nil {
		return v.SubmitErr
	}
	_, err := v.CreateOrUpdate(ctx, ref, model)
	return err
}

func (v *VirtualMachines) InstanceView(ctx context.Context, ref azure.Ref) (*armcompute.VirtualMachineInstanceView, error) {
	vm, err := v.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	status := "PowerState/running"
	v.mu.Lock()
	if n := len(v.Actions); n > 0 {
		switch v.Actions[n-1] {
		case azure.PowerOff:
			status = "PowerState/stopped"
		case azure.PowerDeallocate:
			status = "PowerState/deallocated"
		}
	}
	v.mu.Unlock()

	view := &armcompute.VirtualMachineInstanceView{
		Statuses: []*armcompute.InstanceViewStatus{
			{Code: to.Ptr("ProvisioningState/succeeded")},
			{Code: to.Ptr(status)},
		},
	}
	if vm.Properties != nil && vm.Properties.OSProfile != nil {
		view.ComputerName = vm.Properties.OSProfile.ComputerName
	}
	return view, nil
}

func (v *VirtualMachines) Power(ctx context.Context, ref azure.Ref, action azure.PowerAction) error {
	if _, err := v.Get(ctx, ref); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Actions = append(v.Actions, action)
	return nil
}

func (v *VirtualMachines) Generalize(ctx context.Context, ref azure.Ref) error {
	if _, err := v.Get(ctx, ref); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Generalized = append(v.Generalized, ref.Name)
	return nil
}

func (v *VirtualMachines) Capture(ctx context.Context, ref azure.Ref, params armcompute.VirtualMachineCaptureParameters) (*armcompute.VirtualMachineCaptureResult, error) {
	vm, err := v.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Captures = append(v.Captures, params)

	prefix := ""
	if params.VhdPrefix != nil {
		prefix = *params.VhdPrefix
	}
	return &armcompute.VirtualMachineCaptureResult{
		ID:             vm.ID,
		ContentVersion: to.Ptr("1.0.0.0"),
		Resources: []any{map[string]any{
			"name": prefix + ref.Name + "-osDisk",
			"type": "Microsoft.Compute/virtualMachines",
		}},
	}, nil
}

func (v *VirtualMachines) Reimage(ctx context.Context, ref azure.Ref, tempDisk bool) error {
	if _, err := v.Get(ctx, ref); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Reimaged = append(v.Reimaged, ref.Name)
	return nil
}

func (v *VirtualMachines) AssessPatches(ctx context.Context, ref azure.Ref) (*armcompute.VirtualMachineAssessPatchesResult, error) {
	if _, err := v.Get(ctx, ref); err != nil {
		return nil, err
	}
	return &armcompute.VirtualMachineAssessPatchesResult{
		Status:                        to.Ptr(armcompute.PatchOperationStatusSucceeded),
		CriticalAndSecurityPatchCount: to.Ptr[int32](0),
		OtherPatchCount:               to.Ptr[int32](2),
		RebootPending:                 to.Ptr(false),
	}, nil
}

func (v *VirtualMachines) RetrieveBootDiagnosticsData(ctx context.Context, ref azure.Ref, expiryMinutes int32) (*armcompute.RetrieveBootDiagnosticsDataResult, error) {
	if _, err := v.Get(ctx, ref); err != nil {
		return nil, err
	}
	if expiryMinutes == 0 {
		expiryMinutes = 120
	}
	base := fmt.Sprintf("https://bootdiag.blob.core.windows.net/bootdiagnostics-%s", ref.Name)
	query := fmt.Sprintf("?sv=2018-03-28&se=%dm&sp=r", expiryMinutes)
	return &armcompute.RetrieveBootDiagnosticsDataResult{
		ConsoleScreenshotBlobURI: to.Ptr(base + "/screenshot.bmp" + query),
		SerialConsoleLogBlobURI:  to.Ptr(base + "/serialconsole.log" + query),
	}, nil
}

func (v *VirtualMachines) ListByLocation(ctx context.Context, location string) ([]*armcompute.VirtualMachine, error) {
	all, err := v.List(ctx, azure.Ref{})
	if err != nil {
		return nil, err
	}
	var result []*armcompute.VirtualMachine
	for _, vm := range all {
		if vm.Location != nil && strings.EqualFold(*vm.Location, location) {
			result = append(result, vm)
		}
	}
	return result, nil
}

func (v *VirtualMachines) ListAvailableSizes(ctx context.Context, ref azure.Ref) ([]*armcompute.VirtualMachineSize, error) {
	if _, err := v.Get(ctx, ref); err != nil {
		return nil, err
	}
	return defaultSizes(), nil
}

func (v *VirtualMachines) ListSizes(ctx context.Context, location string) ([]*armcompute.VirtualMachineSize, error) {
	return defaultSizes(), nil
}

// VirtualMachineImages serves a fixed marketplace catalogue.
type VirtualMachineImages struct {
	// publisher -> offer -> sku -> versions
	Catalogue map[string]map[string]map[string][]string
}

func NewVirtualMachineImages() *VirtualMachineImages {
	return &VirtualMachineImages{
		Catalogue: map[string]map[string]map[string][]string{
			"Canonical": {
				"0001-com-ubuntu-server-jammy": {
					"22_04-lts-gen2": {"22.04.202301010", "22.04.202302010"},
				},
			},
		},
	}
}

func imageResources(names []string, location string) []*armcompute.VirtualMachineImageResource {
	result := make([]*armcompute.VirtualMachineImageResource, 0, len(names))
	for _, name := range names {
		result = append(result, &armcompute.VirtualMachineImageResource{
			Name:     to.Ptr(name),
			Location: to.Ptr(location),
		})
	}
	return result
}

func (i *VirtualMachineImages) ListPublishers(ctx context.Context, location string) ([]*armcompute.VirtualMachineImageResource, error) {
	var names []string
	for publisher := range i.Catalogue {
		names = append(names, publisher)
	}
	return imageResources(names, location), nil
}

func (i *VirtualMachineImages) ListOffers(ctx context.Context, location, publisher string) ([]*armcompute.VirtualMachineImageResource, error) {
	offers, ok := i.Catalogue[publisher]
	if !ok {
		return nil, fmt.Errorf("publisher %s: %w", publisher, azure.ErrNotFound)
	}
	var names []string
	for offer := range offers {
		names = append(names, offer)
	}
	return imageResources(names, location), nil
}

func (i *VirtualMachineImages) ListSKUs(ctx context.Context, location, publisher, offer string) ([]*armcompute.VirtualMachineImageResource, error) {
	skus, ok := i.Catalogue[publisher][offer]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", offer, azure.ErrNotFound)
	}
	var names []string
	for sku := range skus {
		names = append(names, sku)
	}
	return imageResources(names, location), nil
}

func (i *VirtualMachineImages) List(ctx context.Context, location, publisher, offer, sku string) ([]*armcompute.VirtualMachineImageResource, error) {
	versions, ok := i.Catalogue[publisher][offer][sku]
	if !ok {
		return nil, fmt.Errorf("sku %s: %w", sku, azure.ErrNotFound)
	}
	return imageResources(versions, location), nil
}

func (i *VirtualMachineImages) Get(ctx context.Context, location, publisher, offer, sku, version string) (*armcompute.VirtualMachineImage, error) {
	for _, v := range i.Catalogue[publisher][offer][sku] {
		if v == version {
			return &armcompute.VirtualMachineImage{
				Name:     to.Ptr(version),
				Location: to.Ptr(location),
			}, nil
		}
	}
	return nil, fmt.Errorf("image version %s: %w", version, azure.ErrNotFound)
}
