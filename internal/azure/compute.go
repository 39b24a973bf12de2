package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
)

type AvailabilitySetsAPI interface {
	Operations[armcompute.AvailabilitySet]
	ListAvailableSizes(ctx context.Context, ref Ref) ([]*armcompute.VirtualMachineSize, error)
}

type DisksAPI interface {
	Operations[armcompute.Disk]
	// GrantAccess returns a SAS URI for the disk.
	GrantAccess(ctx context.Context, ref Ref, access armcompute.AccessLevel, durationSeconds int32) (string, error)
	RevokeAccess(ctx context.Context, ref Ref) error
}

// PowerAction is a long running action against a virtual machine.
type PowerAction string

const (
	PowerStart      PowerAction = "start"
	PowerOff        PowerAction = "power_off"
	PowerRestart    PowerAction = "restart"
	PowerDeallocate PowerAction = "deallocate"
	PowerRedeploy   PowerAction = "redeploy"

	ActionConvertToManagedDisks PowerAction = "convert_to_managed_disks"
	ActionReapply               PowerAction = "reapply"
	ActionPerformMaintenance    PowerAction = "perform_maintenance"
	ActionSimulateEviction      PowerAction = "simulate_eviction"
)

type VirtualMachinesAPI interface {
	Operations[armcompute.VirtualMachine]
	// Submit starts a create or update without waiting for it to finish.
	Submit(ctx context.Context, ref Ref, model armcompute.VirtualMachine) error
	InstanceView(ctx context.Context, ref Ref) (*armcompute.VirtualMachineInstanceView, error)
	Power(ctx context.Context, ref Ref, action PowerAction) error
	Generalize(ctx context.Context, ref Ref) error
	// Capture copies the machine's disks into a storage container and
	// returns a template for similar machines.
	Capture(ctx context.Context, ref Ref, params armcompute.VirtualMachineCaptureParameters) (*armcompute.VirtualMachineCaptureResult, error)
	Reimage(ctx context.Context, ref Ref, tempDisk bool) error
	AssessPatches(ctx context.Context, ref Ref) (*armcompute.VirtualMachineAssessPatchesResult, error)
	RetrieveBootDiagnosticsData(ctx context.Context, ref Ref, expiryMinutes int32) (*armcompute.RetrieveBootDiagnosticsDataResult, error)
	ListByLocation(ctx context.Context, location string) ([]*armcompute.VirtualMachine, error)
	ListAvailableSizes(ctx context.Context, ref Ref) ([]*armcompute.VirtualMachineSize, error)
	// ListSizes lists the sizes offered in a location.
	ListSizes(ctx context.Context, location string) ([]*armcompute.VirtualMachineSize, error)
}

type VirtualMachineImagesAPI interface {
	ListPublishers(ctx context.Context, location string) ([]*armcompute.VirtualMachineImageResource, error)
	ListOffers(ctx context.Context, location, publisher string) ([]*armcompute.VirtualMachineImageResource, error)
	ListSKUs(ctx context.Context, location, publisher, offer string) ([]*armcompute.VirtualMachineImageResource, error)
	List(ctx context.Context, location, publisher, offer, sku string) ([]*armcompute.VirtualMachineImageResource, error)
	Get(ctx context.Context, location, publisher, offer, sku, version string) (*armcompute.VirtualMachineImage, error)
}

type availabilitySets struct {
	client *armcompute.AvailabilitySetsClient
}

func (c *armClients) AvailabilitySets() (AvailabilitySetsAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armcompute.NewAvailabilitySetsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create availability sets client: %w", err)
	}
	return &availabilitySets{client: client}, nil
}

func (a *availabilitySets) Get(ctx context.Context, ref Ref) (*armcompute.AvailabilitySet, error) {
	resp, err := a.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.AvailabilitySet, nil
}

func (a *availabilitySets) List(ctx context.Context, ref Ref) ([]*armcompute.AvailabilitySet, error) {
	pager := a.client.NewListPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armcompute.AvailabilitySetsClientListResponse) []*armcompute.AvailabilitySet {
		return page.Value
	})
}

func (a *availabilitySets) CreateOrUpdate(ctx context.Context, ref Ref, model armcompute.AvailabilitySet) (*armcompute.AvailabilitySet, error) {
	resp, err := a.client.CreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	if err != nil {
		return nil, err
	}
	return &resp.AvailabilitySet, nil
}

func (a *availabilitySets) Delete(ctx context.Context, ref Ref) error {
	_, err := a.client.Delete(ctx, ref.ResourceGroup, ref.Name, nil)
	return err
}

func (a *availabilitySets) ListAvailableSizes(ctx context.Context, ref Ref) ([]*armcompute.VirtualMachineSize, error) {
	pager := a.client.NewListAvailableSizesPager(ref.ResourceGroup, ref.Name, nil)
	return collect(ctx, pager, func(page armcompute.AvailabilitySetsClientListAvailableSizesResponse) []*armcompute.VirtualMachineSize {
		return page.Value
	})
}

type disks struct {
	client *armcompute.DisksClient
}

func (c *armClients) Disks() (DisksAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armcompute.NewDisksClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create disks client: %w", err)
	}
	return &disks{client: client}, nil
}

func (d *disks) Get(ctx context.Context, ref Ref) (*armcompute.Disk, error) {
	resp, err := d.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Disk, nil
}

func (d *disks) List(ctx context.Context, ref Ref) ([]*armcompute.Disk, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := d.client.NewListPager(nil)
		return collect(ctx, pager, func(page armcompute.DisksClientListResponse) []*armcompute.Disk {
			return page.Value
		})
	}
	pager := d.client.NewListByResourceGroupPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armcompute.DisksClientListByResourceGroupResponse) []*armcompute.Disk {
		return page.Value
	})
}

func (d *disks) CreateOrUpdate(ctx context.Context, ref Ref, model armcompute.Disk) (*armcompute.Disk, error) {
	poller, err := d.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.Disk, nil
}

func (d *disks) Delete(ctx context.Context, ref Ref) error {
	poller, err := d.client.BeginDelete(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

func (d *disks) GrantAccess(ctx context.Context, ref Ref, access armcompute.AccessLevel, durationSeconds int32) (string, error) {
	poller, err := d.client.BeginGrantAccess(ctx, ref.ResourceGroup, ref.Name, armcompute.GrantAccessData{
		Access:            to.Ptr(access),
		DurationInSeconds: to.Ptr(durationSeconds),
	}, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return "", err
	}
	if resp.AccessSAS == nil {
		return "", nil
	}
	return *resp.AccessSAS, nil
}

func (d *disks) RevokeAccess(ctx context.Context, ref Ref) error {
	poller, err := d.client.BeginRevokeAccess(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

type virtualMachines struct {
	client *armcompute.VirtualMachinesClient
	sizes  *armcompute.VirtualMachineSizesClient
}

func (c *armClients) VirtualMachines() (VirtualMachinesAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armcompute.NewVirtualMachinesClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual machines client: %w", err)
	}
	sizes, err := armcompute.NewVirtualMachineSizesClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual machine sizes client: %w", err)
	}
	return &virtualMachines{client: client, sizes: sizes}, nil
}

func (v *virtualMachines) Get(ctx context.Context, ref Ref) (*armcompute.VirtualMachine, error) {
	resp, err := v.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualMachine, nil
}

func (v *virtualMachines) List(ctx context.Context, ref Ref) ([]*armcompute.VirtualMachine, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := v.client.NewListAllPager(nil)
		return collect(ctx, pager, func(page armcompute.VirtualMachinesClientListAllResponse) []*armcompute.VirtualMachine {
			return page.Value
		})
	}
	pager := v.client.NewListPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armcompute.VirtualMachinesClientListResponse) []*armcompute.VirtualMachine {
		return page.Value
	})
}

func (v *virtualMachines) CreateOrUpdate(ctx context.Context, ref Ref, model armcompute.VirtualMachine) (*armcompute.VirtualMachine, error) {
	poller, err := v.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualMachine, nil
}

func (v *virtualMachines) Submit(ctx context.Context, ref Ref, model armcompute.VirtualMachine) error {
	_, err := v.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	return err
}

func (v *virtualMachines) Delete(ctx context.Context, ref Ref) error {
	poller, err := v.client.BeginDelete(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

func (v *virtualMachines) InstanceView(ctx context.Context, ref Ref) (*armcompute.VirtualMachineInstanceView, error) {
	resp, err := v.client.InstanceView(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualMachineInstanceView, nil
}

func (v *virtualMachines) Power(ctx context.Context, ref Ref, action PowerAction) error {
	var err error
	switch action {
	case PowerStart:
		poller, beginErr := v.client.BeginStart(ctx, ref.ResourceGroup, ref.Name, nil)
		_, err = wait(ctx, poller, beginErr)
	case PowerOff:
		poller, beginErr := v.client.BeginPowerOff(ctx, ref.ResourceGroup, ref.Name, nil)
		_, err = wait(ctx, poller, beginErr)
	case PowerRestart:
		poller, beginErr := v.client.BeginRestart(ctx, ref.ResourceGroup, ref.Name, nil)
		_, err = wait(ctx, poller, beginErr)
	case PowerDeallocate:
		poller, beginErr := v.client.BeginDeallocate(ctx, ref.ResourceGroup, ref.Name, nil)
		_, err = wait(ctx, poller, beginErr)
	case PowerRedeploy:
		poller, beginErr := v.client.BeginRedeploy(ctx, ref.ResourceGroup, ref.Name, nil)
		_, err = wait(ctx, poller, beginErr)
	case ActionConvertToManagedDisks:
		poller, beginErr := v.client.BeginConvertToManagedDisks(ctx, ref.ResourceGroup, ref.Name, nil)
		_, err = wait(ctx, poller, beginErr)
	case ActionReapply:
		poller, beginErr := v.client.BeginReapply(ctx, ref.ResourceGroup, ref.Name, nil)
		_, err = wait(ctx, poller, beginErr)
	case ActionPerformMaintenance:
		poller, beginErr := v.client.BeginPerformMaintenance(ctx, ref.ResourceGroup, ref.Name, nil)
		_, err = wait(ctx, poller, beginErr)
	case ActionSimulateEviction:
		_, err = v.client.SimulateEviction(ctx, ref.ResourceGroup, ref.Name, nil)
	default:
		return fmt.Errorf("unknown power action %q", action)
	}
	return err
}

func (v *virtualMachines) Generalize(ctx context.Context, ref Ref) error {
	_, err := v.client.Generalize(ctx, ref.ResourceGroup, ref.Name, nil)
	return err
}

func (v *virtualMachines) Capture(ctx context.Context, ref Ref, params armcompute.VirtualMachineCaptureParameters) (*armcompute.VirtualMachineCaptureResult, error) {
	poller, err := v.client.BeginCapture(ctx, ref.ResourceGroup, ref.Name, params, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualMachineCaptureResult, nil
}

func (v *virtualMachines) Reimage(ctx context.Context, ref Ref, tempDisk bool) error {
	poller, err := v.client.BeginReimage(ctx, ref.ResourceGroup, ref.Name, &armcompute.VirtualMachinesClientBeginReimageOptions{
		Parameters: &armcompute.VirtualMachineReimageParameters{TempDisk: to.Ptr(tempDisk)},
	})
	_, err = wait(ctx, poller, err)
	return err
}

func (v *virtualMachines) AssessPatches(ctx context.Context, ref Ref) (*armcompute.VirtualMachineAssessPatchesResult, error) {
	poller, err := v.client.BeginAssessPatches(ctx, ref.ResourceGroup, ref.Name, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualMachineAssessPatchesResult, nil
}

// RetrieveBootDiagnosticsData returns SAS URIs of the boot logs. A zero
// expiry leaves the service default of two hours.
func (v *virtualMachines) RetrieveBootDiagnosticsData(ctx context.Context, ref Ref, expiryMinutes int32) (*armcompute.RetrieveBootDiagnosticsDataResult, error) {
	var options *armcompute.VirtualMachinesClientRetrieveBootDiagnosticsDataOptions
	if expiryMinutes > 0 {
		options = &armcompute.VirtualMachinesClientRetrieveBootDiagnosticsDataOptions{
			SasURIExpirationTimeInMinutes: to.Ptr(expiryMinutes),
		}
	}
	resp, err := v.client.RetrieveBootDiagnosticsData(ctx, ref.ResourceGroup, ref.Name, options)
	if err != nil {
		return nil, err
	}
	return &resp.RetrieveBootDiagnosticsDataResult, nil
}

func (v *virtualMachines) ListByLocation(ctx context.Context, location string) ([]*armcompute.VirtualMachine, error) {
	pager := v.client.NewListByLocationPager(location, nil)
	return collect(ctx, pager, func(page armcompute.VirtualMachinesClientListByLocationResponse) []*armcompute.VirtualMachine {
		return page.Value
	})
}

func (v *virtualMachines) ListAvailableSizes(ctx context.Context, ref Ref) ([]*armcompute.VirtualMachineSize, error) {
	pager := v.client.NewListAvailableSizesPager(ref.ResourceGroup, ref.Name, nil)
	return collect(ctx, pager, func(page armcompute.VirtualMachinesClientListAvailableSizesResponse) []*armcompute.VirtualMachineSize {
		return page.Value
	})
}

func (v *virtualMachines) ListSizes(ctx context.Context, location string) ([]*armcompute.VirtualMachineSize, error) {
	pager := v.sizes.NewListPager(location, nil)
	return collect(ctx, pager, func(page armcompute.VirtualMachineSizesClientListResponse) []*armcompute.VirtualMachineSize {
		return page.Value
	})
}

type virtualMachineExtensions struct {
	client *armcompute.VirtualMachineExtensionsClient
}

// VirtualMachineExtensions addresses extensions with Ref.Parent as the
// virtual machine name.
func (c *armClients) VirtualMachineExtensions() (Operations[armcompute.VirtualMachineExtension], error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armcompute.NewVirtualMachineExtensionsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual machine extensions client: %w", err)
	}
	return &virtualMachineExtensions{client: client}, nil
}

func (e *virtualMachineExtensions) Get(ctx context.Context, ref Ref) (*armcompute.VirtualMachineExtension, error) {
	resp, err := e.client.Get(ctx, ref.ResourceGroup, ref.Parent, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualMachineExtension, nil
}

func (e *virtualMachineExtensions) List(ctx context.Context, ref Ref) ([]*armcompute.VirtualMachineExtension, error) {
	resp, err := e.client.List(ctx, ref.ResourceGroup, ref.Parent, nil)
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (e *virtualMachineExtensions) CreateOrUpdate(ctx context.Context, ref Ref, model armcompute.VirtualMachineExtension) (*armcompute.VirtualMachineExtension, error) {
	poller, err := e.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Parent, ref.Name, model, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualMachineExtension, nil
}

func (e *virtualMachineExtensions) Delete(ctx context.Context, ref Ref) error {
	poller, err := e.client.BeginDelete(ctx, ref.ResourceGroup, ref.Parent, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

type virtualMachineImages struct {
	client *armcompute.VirtualMachineImagesClient
}

func (c *armClients) VirtualMachineImages() (VirtualMachineImagesAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armcompute.NewVirtualMachineImagesClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual machine images client: %w", err)
	}
	return &virtualMachineImages{client: client}, nil
}

func (i *virtualMachineImages) ListPublishers(ctx context.Context, location string) ([]*armcompute.VirtualMachineImageResource, error) {
	resp, err := i.client.ListPublishers(ctx, location, nil)
	if err != nil {
		return nil, err
	}
	return resp.VirtualMachineImageResourceArray, nil
}

func (i *virtualMachineImages) ListOffers(ctx context.Context, location, publisher string) ([]*armcompute.VirtualMachineImageResource, error) {
	resp, err := i.client.ListOffers(ctx, location, publisher, nil)
	if err != nil {
		return nil, err
	}
	return resp.VirtualMachineImageResourceArray, nil
}

func (i *virtualMachineImages) ListSKUs(ctx context.Context, location, publisher, offer string) ([]*armcompute.VirtualMachineImageResource, error) {
	resp, err := i.client.ListSKUs(ctx, location, publisher, offer, nil)
	if err != nil {
		return nil, err
	}
	return resp.VirtualMachineImageResourceArray, nil
}

func (i *virtualMachineImages) List(ctx context.Context, location, publisher, offer, sku string) ([]*armcompute.VirtualMachineImageResource, error) {
	resp, err := i.client.List(ctx, location, publisher, offer, sku, nil)
	if err != nil {
		return nil, err
	}
	return resp.VirtualMachineImageResourceArray, nil
}

func (i *virtualMachineImages) Get(ctx context.Context, location, publisher, offer, sku, version string) (*armcompute.VirtualMachineImage, error) {
	resp, err := i.client.Get(ctx, location, publisher, offer, sku, version, nil)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualMachineImage, nil
}

type images struct {
	client *armcompute.ImagesClient
}

// Images serves custom images captured from machines or disks.
func (c *armClients) Images() (Operations[armcompute.Image], error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armcompute.NewImagesClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create images client: %w", err)
	}
	return &images{client: client}, nil
}

func (i *images) Get(ctx context.Context, ref Ref) (*armcompute.Image, error) {
	resp, err := i.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Image, nil
}

func (i *images) List(ctx context.Context, ref Ref) ([]*armcompute.Image, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := i.client.NewListPager(nil)
		return collect(ctx, pager, func(page armcompute.ImagesClientListResponse) []*armcompute.Image {
			return page.Value
		})
	}
	pager := i.client.NewListByResourceGroupPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armcompute.ImagesClientListByResourceGroupResponse) []*armcompute.Image {
		return page.Value
	})
}

func (i *images) CreateOrUpdate(ctx context.Context, ref Ref, model armcompute.Image) (*armcompute.Image, error) {
	poller, err := i.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.Image, nil
}

func (i *images) Delete(ctx context.Context, ref Ref) error {
	poller, err := i.client.BeginDelete(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

// ParseImageReference parses "publisher|offer|sku|version" or an image ID.
func ParseImageReference(image string) (*armcompute.ImageReference, error) {
	if IsResourceID(image) {
		return &armcompute.ImageReference{ID: to.Ptr(image)}, nil
	}
	parts := strings.Split(image, "|")
	if len(parts) != 4 {
		return nil, fmt.Errorf("image %q must be an image ID or publisher|offer|sku|version", image)
	}
	return &armcompute.ImageReference{
		Publisher: to.Ptr(parts[0]),
		Offer:     to.Ptr(parts[1]),
		SKU:       to.Ptr(parts[2]),
		Version:   to.Ptr(parts[3]),
	}, nil
}

// ExtensionHandler names a virtual machine extension handler.
type ExtensionHandler struct {
	Publisher string
	Type      string
	Version   string
}

// CustomScriptHandler is the custom script extension of an OS type.
// Anything other than Windows gets the Linux handler.
func CustomScriptHandler(osType string) ExtensionHandler {
	if strings.EqualFold(osType, "Windows") {
		return ExtensionHandler{Publisher: "Microsoft.Compute", Type: "CustomScriptExtension", Version: "1.8"}
	}
	return ExtensionHandler{Publisher: "Microsoft.Azure.Extensions", Type: "CustomScript", Version: "2.0"}
}
