package modules

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

const (
	availabilitySetModule = "azurerm_compute_availability_set"
	diskModule            = "azurerm_compute_disk"
	extensionModule       = "azurerm_compute_virtual_machine_extension"
	imageModule           = "azurerm_compute_virtual_machine_image"
	computeImageModule    = "azurerm_compute_image"
)

var availabilitySetSchema = schema{
	locationField,
	tagsField,
	{arg: "sku", path: "sku", conv: asSKU},
	{arg: "platform_update_domain_count", path: "properties.platformUpdateDomainCount", conv: asInt},
	{arg: "platform_fault_domain_count", path: "properties.platformFaultDomainCount", conv: asInt},
	{arg: "virtual_machines", path: "properties.virtualMachines", conv: asSubResources},
	{arg: "proximity_placement_group", path: "properties.proximityPlacementGroup", conv: asSubResource},
}

func (e *Env) availabilitySets() *crud[armcompute.AvailabilitySet] {
	return &crud[armcompute.AvailabilitySet]{
		noun:    "availability set",
		located: true,
		schema:  availabilitySetSchema,
		prepare: virtualMachineIDs,
		api: func(c azure.Clients) (azure.Operations[armcompute.AvailabilitySet], error) {
			return c.AvailabilitySets()
		},
	}
}

// virtualMachineIDs turns a list of virtual machine names into
// sub-resource references. Machines that do not exist are dropped.
func virtualMachineIDs(ctx context.Context, clients azure.Clients, args models.BasicConfig, ref azure.Ref) error {
	names, ok := args.GetStringSlice("virtual_machines")
	if !ok {
		return nil
	}
	vms, err := clients.VirtualMachines()
	if err != nil {
		return err
	}

	result := []any{}
	for _, name := range names {
		if azure.IsResourceID(name) {
			result = append(result, map[string]any{"id": name})
			continue
		}
		vm, err := vms.Get(ctx, azure.Ref{ResourceGroup: ref.ResourceGroup, Name: name})
		if err != nil && !azure.IsNotFound(err) {
			return err
		}
		if err != nil || vm.ID == nil {
			logrus.WithError(err).WithField("virtual_machine", name).Warn("Skipping virtual machine that could not be found")
			continue
		}
		result = append(result, map[string]any{"id": *vm.ID})
	}
	args.SetKeyWithValue("virtual_machines", result)
	return nil
}

func (e *Env) registerAvailabilitySets(reg *loader.Registry) {
	sets := e.availabilitySets()
	fns := sets.functions(e)
	fns = append(fns, function{
		name: "list_available_sizes", params: nameAndGroup, required: nameAndGroup,
		doc: "List the virtual machine sizes available in an availability set.",
		fn: func(ctx context.Context, req *loader.Request) (any, error) {
			clients, err := e.connect(ctx, req)
			if err != nil {
				return nil, err
			}
			api, err := clients.AvailabilitySets()
			if err != nil {
				return nil, err
			}
			ref, err := decodeRef(req)
			if err != nil {
				return nil, err
			}
			sizes, err := api.ListAvailableSizes(ctx, ref)
			if err != nil {
				return nil, err
			}
			return keyed(sizes)
		},
	})
	register(reg, availabilitySetModule, "compute", fns)
}

var diskSchema = schema{
	locationField,
	tagsField,
	{arg: "sku", path: "sku", conv: asSKU},
	{arg: "zones", path: "zones", conv: asStrings},
	{arg: "create_option", path: "properties.creationData.createOption", conv: asString},
	{arg: "source_uri", path: "properties.creationData.sourceUri", conv: asString},
	{arg: "source_resource_id", path: "properties.creationData.sourceResourceId", conv: asString},
	{arg: "storage_account_id", path: "properties.creationData.storageAccountId", conv: asString},
	{arg: "image_reference", path: "properties.creationData.imageReference", conv: asSubResource},
	{arg: "disk_size_gb", path: "properties.diskSizeGB", conv: asInt},
	{arg: "os_type", path: "properties.osType", conv: asString},
	{arg: "hyper_v_generation", path: "properties.hyperVGeneration", conv: asString},
	{arg: "network_access_policy", path: "properties.networkAccessPolicy", conv: asString},
	{arg: "disk_access_id", path: "properties.diskAccessId", conv: asString},
	{arg: "max_shares", path: "properties.maxShares", conv: asInt},
}

func (e *Env) disks() *crud[armcompute.Disk] {
	return &crud[armcompute.Disk]{
		noun:    "managed disk",
		located: true,
		schema:  diskSchema,
		finish: func(desc map[string]any, args models.BasicConfig) {
			if _, ok := getPath(desc, "properties.creationData.createOption"); !ok {
				setPath(desc, "properties.creationData.createOption", string(armcompute.DiskCreateOptionEmpty))
			}
		},
		api: func(c azure.Clients) (azure.Operations[armcompute.Disk], error) {
			return c.Disks()
		},
	}
}

type grantAccessArgs struct {
	ResourceArgs `mapstructure:",squash"`
	Access       string `mapstructure:"access" validate:"required,oneof=None Read Write none read write"`
	Duration     int32  `mapstructure:"duration" validate:"required,gt=0"`
}

func (e *Env) registerDisks(reg *loader.Registry) {
	fns := e.disks().functions(e)
	fns = append(fns,
		function{
			name: "grant_access", params: []string{"name", "resource_group", "access", "duration"},
			required: []string{"name", "resource_group", "access", "duration"},
			doc:      "Grant time limited SAS access to a disk.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args grantAccessArgs
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				api, err := clients.Disks()
				if err != nil {
					return nil, err
				}
				access := armcompute.AccessLevel(common.Capitalize(args.Access))
				sas, err := api.GrantAccess(ctx, args.Ref(), access, args.Duration)
				if err != nil {
					return nil, err
				}
				return map[string]any{"accessSAS": sas}, nil
			},
		},
		function{
			name: "revoke_access", params: nameAndGroup, required: nameAndGroup,
			doc: "Revoke SAS access to a disk.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				ref, err := decodeRef(req)
				if err != nil {
					return nil, err
				}
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				api, err := clients.Disks()
				if err != nil {
					return nil, err
				}
				if err := api.RevokeAccess(ctx, ref); err != nil {
					return nil, err
				}
				return true, nil
			},
		},
	)
	register(reg, diskModule, "compute", fns)
}

var extensionSchema = schema{
	locationField,
	tagsField,
	{arg: "publisher", path: "properties.publisher", conv: asString},
	{arg: "extension_type", path: "properties.type", conv: asString},
	{arg: "version", path: "properties.typeHandlerVersion", conv: asString},
	{arg: "settings", path: "properties.settings", conv: asMap},
	{arg: "protected_settings", path: "properties.protectedSettings", conv: asMap},
	{arg: "auto_upgrade_minor_version", path: "properties.autoUpgradeMinorVersion", conv: asBool},
	{arg: "enable_automatic_upgrade", path: "properties.enableAutomaticUpgrade", conv: asBool},
	{arg: "force_update_tag", path: "properties.forceUpdateTag", conv: asString},
}

func (e *Env) extensions() *crud[armcompute.VirtualMachineExtension] {
	return &crud[armcompute.VirtualMachineExtension]{
		noun:      "virtual machine extension",
		parentArg: "vm_name",
		located:   true,
		schema:    extensionSchema,
		api: func(c azure.Clients) (azure.Operations[armcompute.VirtualMachineExtension], error) {
			return c.VirtualMachineExtensions()
		},
	}
}

func (e *Env) registerVirtualMachineExtensions(reg *loader.Registry) {
	register(reg, extensionModule, "compute", e.extensions().functions(e))
}

func (e *Env) registerVirtualMachineImages(reg *loader.Registry) {
	images := func(ctx context.Context, req *loader.Request) (azure.VirtualMachineImagesAPI, error) {
		clients, err := e.connect(ctx, req)
		if err != nil {
			return nil, err
		}
		return clients.VirtualMachineImages()
	}
	arg := func(req *loader.Request, key string) string {
		value, _ := req.Args.GetString(key)
		return value
	}

	register(reg, imageModule, "compute", []function{
		{
			name: "list_publishers", params: []string{"location"}, required: []string{"location"},
			doc: "List the image publishers of a location.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				api, err := images(ctx, req)
				if err != nil {
					return nil, err
				}
				items, err := api.ListPublishers(ctx, arg(req, "location"))
				if err != nil {
					return nil, err
				}
				return keyed(items)
			},
		},
		{
			name: "list_offers", params: []string{"location", "publisher"}, required: []string{"location", "publisher"},
			doc: "List the image offers of a publisher.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				api, err := images(ctx, req)
				if err != nil {
					return nil, err
				}
				items, err := api.ListOffers(ctx, arg(req, "location"), arg(req, "publisher"))
				if err != nil {
					return nil, err
				}
				return keyed(items)
			},
		},
		{
			name: "list_skus", params: []string{"location", "publisher", "offer"},
			required: []string{"location", "publisher", "offer"},
			doc:      "List the image SKUs of an offer.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				api, err := images(ctx, req)
				if err != nil {
					return nil, err
				}
				items, err := api.ListSKUs(ctx, arg(req, "location"), arg(req, "publisher"), arg(req, "offer"))
				if err != nil {
					return nil, err
				}
				return keyed(items)
			},
		},
		{
			name: "list", params: []string{"location", "publisher", "offer", "sku"},
			required: []string{"location", "publisher", "offer", "sku"},
			doc:      "List the image versions of a SKU.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				api, err := images(ctx, req)
				if err != nil {
					return nil, err
				}
				items, err := api.List(ctx, arg(req, "location"), arg(req, "publisher"), arg(req, "offer"), arg(req, "sku"))
				if err != nil {
					return nil, err
				}
				return keyed(items)
			},
		},
		{
			name: "get", params: []string{"location", "publisher", "offer", "sku", "version"},
			required: []string{"location", "publisher", "offer", "sku", "version"},
			doc:      "Get a virtual machine image.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				api, err := images(ctx, req)
				if err != nil {
					return nil, err
				}
				image, err := api.Get(ctx, arg(req, "location"), arg(req, "publisher"), arg(req, "offer"),
					arg(req, "sku"), arg(req, "version"))
				if err != nil {
					return nil, err
				}
				return describe(image)
			},
		},
	})
}

// asImageDataDisks turns one disk ID or a list of them into image data
// disks numbered in order.
func asImageDataDisks(v any) (any, error) {
	ids, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, errors.New("The data_disk parameter is a single resource ID string or a list of resource IDs.")
	}
	result := make([]any, 0, len(ids))
	for lun, id := range ids {
		result = append(result, map[string]any{
			"lun":         lun,
			"managedDisk": map[string]any{"id": id},
		})
	}
	return result, nil
}

var computeImageSchema = schema{
	locationField,
	tagsField,
	{arg: "source_vm", path: "properties.sourceVirtualMachine", conv: asSubResource},
	{arg: "os_disk", path: "properties.storageProfile.osDisk.managedDisk", conv: asSubResource},
	{arg: "os_type", path: "properties.storageProfile.osDisk.osType", conv: asString},
	{arg: "os_state", path: "properties.storageProfile.osDisk.osState", conv: asString},
	{arg: "data_disks", path: "properties.storageProfile.dataDisks", conv: asImageDataDisks},
	{arg: "zone_resilient", path: "properties.storageProfile.zoneResilient", conv: asBool},
	{arg: "hyper_vgeneration", path: "properties.hyperVGeneration", conv: asString},
}

func (e *Env) computeImages() *crud[armcompute.Image] {
	return &crud[armcompute.Image]{
		noun:    "image",
		located: true,
		schema:  computeImageSchema,
		prepare: imageSources,
		finish: func(desc map[string]any, args models.BasicConfig) {
			if _, ok := getPath(desc, "properties.storageProfile.osDisk"); !ok {
				return
			}
			if _, ok := getPath(desc, "properties.storageProfile.osDisk.osState"); !ok {
				setPath(desc, "properties.storageProfile.osDisk.osState", string(armcompute.OperatingSystemStateTypesGeneralized))
			}
			if _, ok := getPath(desc, "properties.storageProfile.osDisk.osType"); !ok {
				setPath(desc, "properties.storageProfile.osDisk.osType", string(armcompute.OperatingSystemTypesLinux))
			}
		},
		api: func(c azure.Clients) (azure.Operations[armcompute.Image], error) {
			return c.Images()
		},
	}
}

// imageSources resolves source_vm, looked up in source_vm_group or the
// image's own group, to the machine's ID and checks that os_disk is an ID.
func imageSources(ctx context.Context, clients azure.Clients, args models.BasicConfig, ref azure.Ref) error {
	if disk, ok := args.GetString("os_disk"); ok && !azure.IsResourceID(disk) {
		return errors.New("The os_disk parameter is not a valid resource ID string.")
	}

	source, ok := args.GetString("source_vm")
	if !ok || len(source) == 0 {
		if !args.Has("os_disk") {
			return errors.New("source_vm or os_disk is required to create an image")
		}
		return nil
	}
	if azure.IsResourceID(source) {
		return nil
	}

	group := args.GetStringWithDefault("source_vm_group", ref.ResourceGroup)
	vms, err := clients.VirtualMachines()
	if err != nil {
		return err
	}
	vm, err := vms.Get(ctx, azure.Ref{ResourceGroup: group, Name: source})
	if azure.IsNotFound(err) || (err == nil && vm.ID == nil) {
		return fmt.Errorf("The source virtual machine could not be found. (%s/%s)", group, source)
	}
	if err != nil {
		return err
	}
	args.SetKeyWithValue("source_vm", *vm.ID)
	return nil
}

func (e *Env) registerComputeImages(reg *loader.Registry) {
	register(reg, computeImageModule, "compute", e.computeImages().functions(e))
}
