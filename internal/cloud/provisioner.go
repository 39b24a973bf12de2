// Package cloud provisions virtual machines the way a cloud driver would:
// network interface, public IP, data disks and the machine itself, one
// step after another. A failed step stops the run and reports what was
// created before it. Nothing is rolled back.
package cloud

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/models"
)

const (
	StepValidate         = "validate"
	StepPublicIP         = "public_ip"
	StepNetworkInterface = "network_interface"
	StepDataDisks        = "data_disks"
	StepCreate           = "create"
	StepProvisioning     = "provisioning"
	StepUserdata         = "userdata"
)

const (
	DefaultPollInterval = 15 * time.Second
	DefaultTimeout      = 15 * time.Minute
)

const (
	stateSucceeded = "Succeeded"
	stateFailed    = "Failed"
	stateCanceled  = "Canceled"
)

// ErrProvisioningFailed is wrapped when Azure reports a terminal state
// other than Succeeded.
var ErrProvisioningFailed = errors.New("virtual machine provisioning failed")

// ProvisionError reports the step a creation stopped at and the ARM IDs of
// the resources created before it.
type ProvisionError struct {
	Name    string
	Step    string
	Created []string
	Err     error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("Error creating VM %s at step %s! (%v)", e.Name, e.Step, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Provisioner creates and destroys machines with one set of clients.
type Provisioner struct {
	clients      azure.Clients
	pollInterval time.Duration
	timeout      time.Duration
}

func NewProvisioner(clients azure.Clients, cfg models.CloudConfig) *Provisioner {
	p := &Provisioner{
		clients:      clients,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
	}
	if p.pollInterval <= 0 {
		p.pollInterval = DefaultPollInterval
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	return p
}

// run tracks the resources created by one Create.
type run struct {
	profile *VMProfile
	created []string
}

func (r *run) add(id *string) {
	if id != nil && !slices.Contains(r.created, *id) {
		r.created = append(r.created, *id)
	}
}

func (r *run) fail(step string, err error) error {
	logrus.WithError(err).WithFields(logrus.Fields{
		"name":    r.profile.Name,
		"step":    step,
		"created": r.created,
	}).Error("Provisioning failed")
	return &ProvisionError{
		Name:    r.profile.Name,
		Step:    step,
		Created: slices.Clone(r.created),
		Err:     err,
	}
}

// plan is everything Create can check before it touches Azure.
type plan struct {
	image     *armcompute.ImageReference
	osProfile *armcompute.OSProfile
	volumes   []Volume
	extension *armcompute.VirtualMachineExtension
}

func (p *Provisioner) plan(ctx context.Context, profile *VMProfile) (*plan, error) {
	if len(profile.Location) == 0 {
		groups, err := p.clients.ResourceGroups()
		if err != nil {
			return nil, err
		}
		group, err := groups.Get(ctx, azure.Ref{Name: profile.ResourceGroup})
		if err != nil {
			return nil, fmt.Errorf("unable to determine the location of resource group %s: %w", profile.ResourceGroup, err)
		}
		if group.Location != nil {
			profile.Location = *group.Location
		}
	}

	image, err := azure.ParseImageReference(profile.Image)
	if err != nil {
		return nil, err
	}
	osProfile, err := profile.osProfile()
	if err != nil {
		return nil, err
	}
	volumes, err := profile.volumes()
	if err != nil {
		return nil, err
	}
	extension, err := profile.userdataExtension()
	if err != nil {
		return nil, err
	}
	return &plan{image: image, osProfile: osProfile, volumes: volumes, extension: extension}, nil
}

// Create provisions the machine described by profile and returns it once
// Azure reports it Succeeded.
func (p *Provisioner) Create(ctx context.Context, profile *VMProfile) (*Node, error) {
	r := &run{profile: profile}
	log := logrus.WithFields(logrus.Fields{"name": profile.Name, "resource_group": profile.ResourceGroup})

	pl, err := p.plan(ctx, profile)
	if err != nil {
		return nil, r.fail(StepValidate, err)
	}
	log.WithField("location", profile.Location).Info("Creating Cloud VM")

	nicID, err := p.networkInterface(ctx, r)
	if err != nil {
		return nil, err
	}

	dataDisks, err := p.dataDisks(ctx, r, pl.volumes)
	if err != nil {
		return nil, r.fail(StepDataDisks, err)
	}

	osDisk := &armcompute.OSDisk{
		CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
		OSType:       to.Ptr(armcompute.OperatingSystemTypesLinux),
	}
	if profile.windows() {
		osDisk.OSType = to.Ptr(armcompute.OperatingSystemTypesWindows)
	}
	if profile.OSDiskSizeGB > 0 {
		osDisk.DiskSizeGB = to.Ptr(profile.OSDiskSizeGB)
	}
	if len(profile.StorageAccountType) > 0 {
		osDisk.ManagedDisk = &armcompute.ManagedDiskParameters{
			StorageAccountType: to.Ptr(armcompute.StorageAccountTypes(profile.StorageAccountType)),
		}
	}

	vm := armcompute.VirtualMachine{
		Location: to.Ptr(profile.Location),
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(profile.Size)),
			},
			StorageProfile: &armcompute.StorageProfile{
				OSDisk:         osDisk,
				ImageReference: pl.image,
				DataDisks:      dataDisks,
			},
			OSProfile: pl.osProfile,
			NetworkProfile: &armcompute.NetworkProfile{
				NetworkInterfaces: []*armcompute.NetworkInterfaceReference{{ID: to.Ptr(nicID)}},
			},
			AvailabilitySet: profile.availabilitySet(p.clients.SubscriptionID()),
		},
	}
	if len(profile.Tags) > 0 {
		vm.Tags = map[string]*string{}
		for k, v := range profile.Tags {
			vm.Tags[k] = to.Ptr(v)
		}
	}
	if len(profile.IdentityType) > 0 && !strings.EqualFold(profile.IdentityType, "None") {
		vm.Identity = &armcompute.VirtualMachineIdentity{
			Type: to.Ptr(armcompute.ResourceIdentityType(profile.IdentityType)),
		}
	}

	vms, err := p.clients.VirtualMachines()
	if err != nil {
		return nil, r.fail(StepCreate, err)
	}
	ref := azure.Ref{ResourceGroup: profile.ResourceGroup, Name: profile.Name}
	log.Debug("Requesting instance")
	if err := vms.Submit(ctx, ref, vm); err != nil {
		return nil, r.fail(StepCreate, err)
	}
	r.add(to.Ptr(azure.ResourceID(p.clients.SubscriptionID(), profile.ResourceGroup,
		"Microsoft.Compute/virtualMachines/"+profile.Name)))

	interval, timeout := p.pollSettings(profile)
	if err := p.poll(ctx, vms, ref, interval, timeout); err != nil {
		return nil, r.fail(StepProvisioning, err)
	}

	if pl.extension != nil {
		if err := p.installExtension(ctx, r, pl.extension); err != nil {
			return nil, r.fail(StepUserdata, err)
		}
	}

	node, err := p.ShowInstance(ctx, profile.Name, profile.ResourceGroup)
	if err != nil {
		return nil, err
	}
	log.Info("Created Cloud VM")
	return node, nil
}

func (p *Provisioner) pollSettings(profile *VMProfile) (time.Duration, time.Duration) {
	interval, timeout := p.pollInterval, p.timeout
	if profile.PollInterval > 0 {
		interval = profile.PollInterval
	}
	if profile.Timeout > 0 {
		timeout = profile.Timeout
	}
	return interval, timeout
}

// poll waits for the provisioning state of ref to become terminal.
func (p *Provisioner) poll(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref, interval, timeout time.Duration) error {
	last := ""
	err := azure.Poll(ctx, interval, timeout, func(ctx context.Context) (azure.PollStatus, error) {
		vm, err := vms.Get(ctx, ref)
		if err != nil {
			return azure.PollContinue, err
		}
		state := ""
		if vm.Properties != nil && vm.Properties.ProvisioningState != nil {
			state = *vm.Properties.ProvisioningState
		}
		if state != last {
			logrus.WithFields(logrus.Fields{"name": ref.Name, "state": state}).Debug("Provisioning state")
			last = state
		}
		switch {
		case strings.EqualFold(state, stateSucceeded):
			return azure.PollDone, nil
		case strings.EqualFold(state, stateFailed), strings.EqualFold(state, stateCanceled):
			return azure.PollContinue, fmt.Errorf("%w: provisioning state %s", ErrProvisioningFailed, state)
		}
		return azure.PollContinue, nil
	})
	if errors.Is(err, azure.ErrPollTimeout) {
		return fmt.Errorf("%w after %s, last provisioning state %q", err, timeout, last)
	}
	return err
}

// networkInterface returns the ID of the machine's interface, creating it
// and its public IP when they do not exist yet.
func (p *Provisioner) networkInterface(ctx context.Context, r *run) (string, error) {
	profile := r.profile
	name := profile.ifaceName()
	ref := azure.Ref{ResourceGroup: profile.ResourceGroup, Name: name}

	interfaces, err := p.clients.NetworkInterfaces()
	if err != nil {
		return "", r.fail(StepNetworkInterface, err)
	}
	existing, err := interfaces.Get(ctx, ref)
	if err == nil && existing.ID != nil {
		logrus.WithField("iface_name", name).Debug("Using existing network interface")
		return *existing.ID, nil
	}
	if err != nil && !azure.IsNotFound(err) {
		return "", r.fail(StepNetworkInterface, err)
	}

	if len(profile.Network) == 0 || len(profile.Subnet) == 0 {
		return "", r.fail(StepNetworkInterface, fmt.Errorf("network and subnet are required to create network interface %s", name))
	}
	subnets, err := p.clients.Subnets()
	if err != nil {
		return "", r.fail(StepNetworkInterface, err)
	}
	subnet, err := subnets.Get(ctx, azure.Ref{
		ResourceGroup: profile.networkResourceGroup(),
		Parent:        profile.Network,
		Name:          profile.Subnet,
	})
	if err != nil {
		return "", r.fail(StepNetworkInterface, fmt.Errorf("unable to find subnet %s of %s: %w", profile.Subnet, profile.Network, err))
	}

	ipConfig := &armnetwork.InterfaceIPConfigurationPropertiesFormat{
		Subnet:                    &armnetwork.Subnet{ID: subnet.ID},
		PrivateIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodDynamic),
	}
	if len(profile.PrivateIPAddress) > 0 {
		ipConfig.PrivateIPAddress = to.Ptr(profile.PrivateIPAddress)
		ipConfig.PrivateIPAllocationMethod = to.Ptr(armnetwork.IPAllocationMethodStatic)
	}

	if profile.AllocatePublicIP {
		id, err := p.publicIP(ctx, r, name+"-ip")
		if err != nil {
			return "", r.fail(StepPublicIP, err)
		}
		ipConfig.PublicIPAddress = &armnetwork.PublicIPAddress{ID: to.Ptr(id)}
	}

	nic, err := interfaces.CreateOrUpdate(ctx, ref, armnetwork.Interface{
		Location: to.Ptr(profile.Location),
		Properties: &armnetwork.InterfacePropertiesFormat{
			IPConfigurations: []*armnetwork.InterfaceIPConfiguration{{
				Name:       to.Ptr(name + "-ip"),
				Properties: ipConfig,
			}},
		},
	})
	if err != nil {
		return "", r.fail(StepNetworkInterface, err)
	}
	if nic.ID == nil {
		return "", r.fail(StepNetworkInterface, fmt.Errorf("network interface %s has no id", name))
	}
	r.add(nic.ID)
	return *nic.ID, nil
}

// publicIP finds or creates the public IP address called name. Standard
// SKU addresses are always static.
func (p *Provisioner) publicIP(ctx context.Context, r *run, name string) (string, error) {
	profile := r.profile
	ref := azure.Ref{ResourceGroup: profile.ResourceGroup, Name: name}
	addresses, err := p.clients.PublicIPAddresses()
	if err != nil {
		return "", err
	}
	existing, err := addresses.Get(ctx, ref)
	if err == nil && existing.ID != nil {
		return *existing.ID, nil
	}
	if err != nil && !azure.IsNotFound(err) {
		return "", err
	}

	sku := armnetwork.PublicIPAddressSKUNameBasic
	allocation := armnetwork.IPAllocationMethodDynamic
	if strings.EqualFold(profile.PublicIPSku, string(armnetwork.PublicIPAddressSKUNameStandard)) {
		sku = armnetwork.PublicIPAddressSKUNameStandard
		allocation = armnetwork.IPAllocationMethodStatic
	}
	address, err := addresses.CreateOrUpdate(ctx, ref, armnetwork.PublicIPAddress{
		Location: to.Ptr(profile.Location),
		SKU:      &armnetwork.PublicIPAddressSKU{Name: to.Ptr(sku)},
		Properties: &armnetwork.PublicIPAddressPropertiesFormat{
			PublicIPAllocationMethod: to.Ptr(allocation),
		},
	})
	if err != nil {
		return "", err
	}
	if address.ID == nil {
		return "", fmt.Errorf("public IP address %s has no id", name)
	}
	r.add(address.ID)
	return *address.ID, nil
}

// dataDisks creates an empty managed disk per volume and returns the
// attachments of the machine.
func (p *Provisioner) dataDisks(ctx context.Context, r *run, volumes []Volume) ([]*armcompute.DataDisk, error) {
	if len(volumes) == 0 {
		return nil, nil
	}
	disks, err := p.clients.Disks()
	if err != nil {
		return nil, err
	}

	attached := make([]*armcompute.DataDisk, 0, len(volumes))
	for _, volume := range volumes {
		model := armcompute.Disk{
			Location: to.Ptr(r.profile.Location),
			Properties: &armcompute.DiskProperties{
				CreationData: &armcompute.CreationData{
					CreateOption: to.Ptr(armcompute.DiskCreateOptionEmpty),
				},
				DiskSizeGB: to.Ptr(volume.DiskSizeGB),
			},
		}
		if len(volume.StorageAccountType) > 0 {
			model.SKU = &armcompute.DiskSKU{Name: to.Ptr(armcompute.DiskStorageAccountTypes(volume.StorageAccountType))}
		}
		disk, err := disks.CreateOrUpdate(ctx, azure.Ref{ResourceGroup: r.profile.ResourceGroup, Name: volume.Name}, model)
		if err != nil {
			return nil, fmt.Errorf("failed to create data disk %s: %w", volume.Name, err)
		}
		r.add(disk.ID)
		attached = append(attached, &armcompute.DataDisk{
			Name:         to.Ptr(volume.Name),
			Lun:          volume.Lun,
			Caching:      to.Ptr(armcompute.CachingTypes(volume.Caching)),
			CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesAttach),
			ManagedDisk:  &armcompute.ManagedDiskParameters{ID: disk.ID},
		})
	}
	return attached, nil
}

// userdataExtension builds the custom script extension that runs the
// userdata script, or nil when there is none. A local userdata_file is
// read and sent as the command; a URL is downloaded by the extension.
func (p *VMProfile) userdataExtension() (*armcompute.VirtualMachineExtension, error) {
	script := p.Userdata
	settings := map[string]any{}
	if len(script) == 0 && len(p.UserdataFile) > 0 {
		if strings.HasPrefix(p.UserdataFile, "http://") || strings.HasPrefix(p.UserdataFile, "https://") {
			prefix := ""
			if p.windows() && strings.HasSuffix(p.UserdataFile, ".ps1") {
				prefix = "powershell -ExecutionPolicy Unrestricted -File "
			}
			settings["fileUris"] = []any{p.UserdataFile}
			script = prefix + "./" + path.Base(p.UserdataFile)
		} else {
			data, err := os.ReadFile(p.UserdataFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read userdata file '%s': %w", p.UserdataFile, err)
			}
			script = string(data)
		}
	}
	if len(script) == 0 {
		return nil, nil
	}
	settings["commandToExecute"] = script

	handler := azure.CustomScriptHandler(p.OSType)
	return &armcompute.VirtualMachineExtension{
		Name:     to.Ptr(p.Name + "_custom_userdata_script"),
		Location: to.Ptr(p.Location),
		Properties: &armcompute.VirtualMachineExtensionProperties{
			Publisher:               to.Ptr(handler.Publisher),
			Type:                    to.Ptr(handler.Type),
			TypeHandlerVersion:      to.Ptr(handler.Version),
			AutoUpgradeMinorVersion: to.Ptr(true),
			Settings:                settings,
		},
	}, nil
}

func (p *Provisioner) installExtension(ctx context.Context, r *run, ext *armcompute.VirtualMachineExtension) error {
	ext.Location = to.Ptr(r.profile.Location)
	extensions, err := p.clients.VirtualMachineExtensions()
	if err != nil {
		return err
	}
	created, err := extensions.CreateOrUpdate(ctx, azure.Ref{
		ResourceGroup: r.profile.ResourceGroup,
		Parent:        r.profile.Name,
		Name:          *ext.Name,
	}, *ext)
	if err != nil {
		return err
	}
	r.add(created.ID)
	return nil
}

func encodeBase64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
