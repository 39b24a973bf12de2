package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
)

// Node summarises a virtual machine.
type Node struct {
	Name          string         `json:"name" yaml:"name"`
	ID            string         `json:"id" yaml:"id"`
	VMID          string         `json:"vm_id,omitempty" yaml:"vm_id,omitempty"`
	ResourceGroup string         `json:"resource_group" yaml:"resource_group"`
	Location      string         `json:"location" yaml:"location"`
	Image         string         `json:"image" yaml:"image"`
	Size          string         `json:"size" yaml:"size"`
	State         string         `json:"state" yaml:"state"`
	PrivateIPs    []string       `json:"private_ips" yaml:"private_ips"`
	PublicIPs     []string       `json:"public_ips" yaml:"public_ips"`
	Details       map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

type Location struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

type Size struct {
	Name                 string `json:"name" yaml:"name"`
	NumberOfCores        int32  `json:"number_of_cores" yaml:"number_of_cores"`
	MemoryInMB           int32  `json:"memory_in_mb" yaml:"memory_in_mb"`
	MaxDataDiskCount     int32  `json:"max_data_disk_count" yaml:"max_data_disk_count"`
	OSDiskSizeInMB       int32  `json:"os_disk_size_in_mb" yaml:"os_disk_size_in_mb"`
	ResourceDiskSizeInMB int32  `json:"resource_disk_size_in_mb" yaml:"resource_disk_size_in_mb"`
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

func imageName(storage *armcompute.StorageProfile) string {
	if storage == nil {
		return ""
	}
	if ref := storage.ImageReference; ref != nil {
		if ref.Publisher != nil {
			return strings.Join([]string{deref(ref.Publisher), deref(ref.Offer), deref(ref.SKU), deref(ref.Version)}, "|")
		}
		if ref.ID != nil {
			return *ref.ID
		}
	}
	if disk := storage.OSDisk; disk != nil && disk.Image != nil {
		return deref(disk.Image.URI)
	}
	return ""
}

// node builds the summary of vm, resolving the addresses of its interfaces.
func (p *Provisioner) node(ctx context.Context, vm *armcompute.VirtualMachine) (*Node, error) {
	n := &Node{
		Name:       deref(vm.Name),
		ID:         deref(vm.ID),
		Location:   deref(vm.Location),
		PrivateIPs: []string{},
		PublicIPs:  []string{},
	}
	n.ResourceGroup = azure.ResourceGroupFromID(n.ID)

	details, err := common.ConvertInterfaceToMap(vm)
	if err != nil {
		return nil, err
	}
	n.Details = details

	props := vm.Properties
	if props == nil {
		return n, nil
	}
	n.VMID = deref(props.VMID)
	n.State = deref(props.ProvisioningState)
	if props.HardwareProfile != nil && props.HardwareProfile.VMSize != nil {
		n.Size = string(*props.HardwareProfile.VMSize)
	}
	n.Image = imageName(props.StorageProfile)

	if props.NetworkProfile == nil {
		return n, nil
	}
	interfaces, err := p.clients.NetworkInterfaces()
	if err != nil {
		return nil, err
	}
	addresses, err := p.clients.PublicIPAddresses()
	if err != nil {
		return nil, err
	}
	for _, ref := range props.NetworkProfile.NetworkInterfaces {
		if ref == nil || ref.ID == nil {
			continue
		}
		nic, err := interfaces.Get(ctx, idRef(*ref.ID))
		if err != nil {
			logrus.WithError(err).WithField("id", *ref.ID).Debug("Unable to look up network interface")
			continue
		}
		if nic.Properties == nil {
			continue
		}
		for _, config := range nic.Properties.IPConfigurations {
			if config == nil || config.Properties == nil {
				continue
			}
			if ip := deref(config.Properties.PrivateIPAddress); len(ip) > 0 {
				n.PrivateIPs = append(n.PrivateIPs, ip)
			}
			public := config.Properties.PublicIPAddress
			if public == nil || public.ID == nil {
				continue
			}
			address, err := addresses.Get(ctx, idRef(*public.ID))
			if err != nil {
				logrus.WithError(err).WithField("id", *public.ID).Debug("Unable to look up public IP address")
				continue
			}
			if address.Properties != nil {
				if ip := deref(address.Properties.IPAddress); len(ip) > 0 {
					n.PublicIPs = append(n.PublicIPs, ip)
				}
			}
		}
	}
	return n, nil
}

func idRef(id string) azure.Ref {
	return azure.Ref{ResourceGroup: azure.ResourceGroupFromID(id), Name: azure.NameFromID(id)}
}

// ListNodes returns every machine of the subscription by name.
func (p *Provisioner) ListNodes(ctx context.Context) (map[string]*Node, error) {
	vms, err := p.clients.VirtualMachines()
	if err != nil {
		return nil, err
	}
	items, err := vms.List(ctx, azure.Ref{})
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*Node, len(items))
	for _, vm := range items {
		n, err := p.node(ctx, vm)
		if err != nil {
			return nil, err
		}
		n.Details = nil
		nodes[n.Name] = n
	}
	return nodes, nil
}

// ShowInstance returns one machine with its full details. Without a
// resource group every machine of the subscription is searched.
func (p *Provisioner) ShowInstance(ctx context.Context, name, resourceGroup string) (*Node, error) {
	vms, err := p.clients.VirtualMachines()
	if err != nil {
		return nil, err
	}
	if len(resourceGroup) == 0 {
		items, err := vms.List(ctx, azure.Ref{})
		if err != nil {
			return nil, err
		}
		for _, vm := range items {
			if strings.EqualFold(deref(vm.Name), name) {
				return p.node(ctx, vm)
			}
		}
		return nil, fmt.Errorf("virtual machine %s: %w", name, azure.ErrNotFound)
	}
	vm, err := vms.Get(ctx, azure.Ref{ResourceGroup: resourceGroup, Name: name})
	if err != nil {
		return nil, err
	}
	return p.node(ctx, vm)
}

// DestroyOptions selects what is cleaned up along with a machine.
type DestroyOptions struct {
	CleanupDisks      bool `mapstructure:"cleanup_disks"`
	CleanupDataDisks  bool `mapstructure:"cleanup_data_disks"`
	CleanupInterfaces bool `mapstructure:"cleanup_interfaces"`
}

// DestroyResult lists the ARM IDs removed by Destroy.
type DestroyResult struct {
	Name    string   `json:"name" yaml:"name"`
	Deleted []string `json:"deleted" yaml:"deleted"`
	Failed  []string `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Destroy deletes a machine, then the disks and interfaces opts asks for.
// Cleanup failures are logged and listed but do not stop the others.
func (p *Provisioner) Destroy(ctx context.Context, name, resourceGroup string, opts DestroyOptions) (*DestroyResult, error) {
	vms, err := p.clients.VirtualMachines()
	if err != nil {
		return nil, err
	}
	var vm *armcompute.VirtualMachine
	if len(resourceGroup) == 0 {
		n, err := p.ShowInstance(ctx, name, "")
		if err != nil {
			return nil, err
		}
		resourceGroup = n.ResourceGroup
	}
	vm, err = vms.Get(ctx, azure.Ref{ResourceGroup: resourceGroup, Name: name})
	if err != nil {
		return nil, err
	}

	result := &DestroyResult{Name: name}
	logrus.WithFields(logrus.Fields{"name": name, "resource_group": resourceGroup}).Info("Deleting VM")
	if err := vms.Delete(ctx, azure.Ref{ResourceGroup: resourceGroup, Name: name}); err != nil {
		return nil, fmt.Errorf("VM deletion failed: %w", err)
	}
	result.Deleted = append(result.Deleted, deref(vm.ID))

	props := vm.Properties
	if props == nil {
		return result, nil
	}
	remove := func(id string, del func(context.Context, azure.Ref) error) {
		if err := del(ctx, idRef(id)); err != nil && !azure.IsNotFound(err) {
			logrus.WithError(err).WithField("id", id).Error("Unable to clean up resource")
			result.Failed = append(result.Failed, id)
			return
		}
		result.Deleted = append(result.Deleted, id)
	}

	if storage := props.StorageProfile; storage != nil && (opts.CleanupDisks || opts.CleanupDataDisks) {
		disks, err := p.clients.Disks()
		if err != nil {
			return result, err
		}
		if opts.CleanupDisks && storage.OSDisk != nil && storage.OSDisk.ManagedDisk != nil && storage.OSDisk.ManagedDisk.ID != nil {
			remove(*storage.OSDisk.ManagedDisk.ID, disks.Delete)
		}
		if opts.CleanupDataDisks {
			for _, disk := range storage.DataDisks {
				if disk != nil && disk.ManagedDisk != nil && disk.ManagedDisk.ID != nil {
					remove(*disk.ManagedDisk.ID, disks.Delete)
				}
			}
		}
	}

	if opts.CleanupInterfaces && props.NetworkProfile != nil {
		interfaces, err := p.clients.NetworkInterfaces()
		if err != nil {
			return result, err
		}
		addresses, err := p.clients.PublicIPAddresses()
		if err != nil {
			return result, err
		}
		for _, ref := range props.NetworkProfile.NetworkInterfaces {
			if ref == nil || ref.ID == nil {
				continue
			}
			nic, err := interfaces.Get(ctx, idRef(*ref.ID))
			if err != nil {
				logrus.WithError(err).WithField("id", *ref.ID).Error("Unable to look up network interface")
				result.Failed = append(result.Failed, *ref.ID)
				continue
			}
			remove(*ref.ID, interfaces.Delete)
			if nic.Properties == nil {
				continue
			}
			for _, config := range nic.Properties.IPConfigurations {
				if config != nil && config.Properties != nil && config.Properties.PublicIPAddress != nil && config.Properties.PublicIPAddress.ID != nil {
					remove(*config.Properties.PublicIPAddress.ID, addresses.Delete)
				}
			}
		}
	}
	return result, nil
}

// AvailLocations lists the locations of the subscription.
func (p *Provisioner) AvailLocations(ctx context.Context) ([]Location, error) {
	subs, err := p.clients.Subscriptions()
	if err != nil {
		return nil, err
	}
	items, err := subs.ListLocations(ctx, p.clients.SubscriptionID())
	if err != nil {
		return nil, err
	}
	locations := make([]Location, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		locations = append(locations, Location{Name: deref(item.Name), DisplayName: deref(item.DisplayName)})
	}
	return locations, nil
}

// AvailSizes lists the machine sizes offered in location.
func (p *Provisioner) AvailSizes(ctx context.Context, location string) (map[string]Size, error) {
	if len(location) == 0 {
		return nil, fmt.Errorf("a location is required to list sizes")
	}
	vms, err := p.clients.VirtualMachines()
	if err != nil {
		return nil, err
	}
	items, err := vms.ListSizes(ctx, location)
	if err != nil {
		return nil, err
	}
	sizes := make(map[string]Size, len(items))
	for _, item := range items {
		if item == nil || item.Name == nil {
			continue
		}
		sizes[*item.Name] = Size{
			Name:                 *item.Name,
			NumberOfCores:        deref(item.NumberOfCores),
			MemoryInMB:           deref(item.MemoryInMB),
			MaxDataDiskCount:     deref(item.MaxDataDiskCount),
			OSDiskSizeInMB:       deref(item.OSDiskSizeInMB),
			ResourceDiskSizeInMB: deref(item.ResourceDiskSizeInMB),
		}
	}
	return sizes, nil
}
