package modules

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

const virtualMachineModule = "azurerm_compute_virtual_machine"

// ConnectionKeys are the arguments that make up a connection profile.
var ConnectionKeys = []string{
	"subscription_id", "tenant", "client_id", "secret",
	"client_certificate_path", "client_certificate_password",
	"username", "password", "cloud_environment", "profile",
}

// ConnectionArgs copies the connection profile keys out of args.
func ConnectionArgs(args models.BasicConfig) map[string]any {
	out := map[string]any{}
	for _, key := range ConnectionKeys {
		if value, ok := args.Get(key); ok {
			out[key] = value
		}
	}
	return out
}

// virtualMachineArgs are the keyword arguments of a virtual machine create.
type virtualMachineArgs struct {
	Name          string            `mapstructure:"name" validate:"required"`
	ResourceGroup string            `mapstructure:"resource_group" validate:"required"`
	VMSize        string            `mapstructure:"vm_size" validate:"required"`
	Location      string            `mapstructure:"location"`
	Tags          map[string]string `mapstructure:"tags"`
	Zones         []string          `mapstructure:"zones"`

	AdminUsername       string   `mapstructure:"admin_username"`
	AdminPassword       string   `mapstructure:"admin_password"`
	SSHPublicKeys       []string `mapstructure:"ssh_public_keys"`
	DisablePasswordAuth *bool    `mapstructure:"disable_password_auth"`
	CustomData          string   `mapstructure:"custom_data"`
	AllowExtensions     *bool    `mapstructure:"allow_extensions"`
	ProvisionVMAgent    bool     `mapstructure:"provision_vm_agent"`
	EnableAutoUpdates   *bool    `mapstructure:"enable_automatic_updates"`
	TimeZone            string   `mapstructure:"time_zone"`

	Image              string `mapstructure:"image"`
	OSType             string `mapstructure:"os_type"`
	OSDiskName         string `mapstructure:"os_disk_name"`
	OSDiskCreateOption string `mapstructure:"os_disk_create_option"`
	OSDiskSizeGB       int    `mapstructure:"os_disk_size_gb"`
	OSDiskCaching      string `mapstructure:"os_disk_caching"`
	OSManagedDisk      string `mapstructure:"os_managed_disk"`
	OSDiskVHDURI       string `mapstructure:"os_disk_vhd_uri"`
	OSEphemeralDisk    bool   `mapstructure:"os_ephemeral_disk"`
	StorageAccountType string `mapstructure:"storage_account_type"`

	DataDisks []map[string]any `mapstructure:"data_disks"`

	NetworkInterfaces    []string `mapstructure:"network_interfaces"`
	CreateInterfaces     bool     `mapstructure:"create_interfaces"`
	AllocatePublicIP     bool     `mapstructure:"allocate_public_ip"`
	VirtualNetwork       string   `mapstructure:"virtual_network"`
	Subnet               string   `mapstructure:"subnet"`
	NetworkResourceGroup string   `mapstructure:"network_resource_group"`

	AvailabilitySet        string  `mapstructure:"availability_set"`
	ProximityPlacementGrp  string  `mapstructure:"proximity_placement_group"`
	BootDiagnosticsEnabled *bool   `mapstructure:"boot_diags_enabled"`
	DiagnosticsStorageURI  string  `mapstructure:"diag_storage_uri"`
	Priority               string  `mapstructure:"priority"`
	MaxPrice               float64 `mapstructure:"max_price"`
	UltraSSDEnabled        *bool   `mapstructure:"ultra_ssd_enabled"`

	Userdata     string `mapstructure:"userdata"`
	UserdataFile string `mapstructure:"userdata_file"`
}

func defaultVirtualMachineArgs() virtualMachineArgs {
	return virtualMachineArgs{
		AdminUsername:      "azureuser",
		OSDiskCreateOption: "FromImage",
		OSDiskSizeGB:       30,
		ProvisionVMAgent:   true,
		CreateInterfaces:   true,
	}
}

var dataDiskSchema = schema{
	{arg: "lun", path: "lun", conv: asInt},
	{arg: "name", path: "name", conv: asString},
	{arg: "caching", path: "caching", conv: asString},
	{arg: "create_option", path: "createOption", conv: asString},
	{arg: "disk_size_gb", path: "diskSizeGB", conv: asInt},
	{arg: "managed_disk", path: "managedDisk", conv: asSubResource},
	{arg: "storage_account_type", path: "managedDisk.storageAccountType", conv: asString},
	{arg: "vhd", path: "vhd", conv: asURI},
	{arg: "image", path: "image", conv: asURI},
	{arg: "write_accelerator_enabled", path: "writeAcceleratorEnabled", conv: asBool},
}

// imageReference parses an image the way azure.ParseImageReference does and
// returns it as a descriptor.
func imageReference(image string) (map[string]any, error) {
	ref, err := azure.ParseImageReference(image)
	if err != nil {
		return nil, err
	}
	return common.ConvertInterfaceToMap(ref)
}

// readKeyOrFile returns the contents of path when it names a readable file,
// otherwise value itself.
func readKeyOrFile(value string) string {
	if info, err := os.Stat(value); err == nil && !info.IsDir() {
		data, err := os.ReadFile(value)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
		logrus.WithError(err).WithField("path", value).Error("Unable to read file")
	}
	return value
}

// dataDisks applies defaults to each data disk: its position as LUN, an
// empty 10 GB disk unless a source is given.
func dataDisks(vmName string, disks []map[string]any) ([]any, error) {
	result := make([]any, 0, len(disks))
	for lun, disk := range disks {
		disk = models.BasicConfig(disk).Clone()
		if _, ok := disk["lun"]; !ok {
			disk["lun"] = lun
		}
		if _, ok := disk["name"]; !ok {
			disk["name"] = fmt.Sprintf("%s-datadisk%d", vmName, lun)
		}
		if _, ok := disk["create_option"]; !ok {
			switch {
			case disk["vhd"] != nil || disk["managed_disk"] != nil:
				disk["create_option"] = "Attach"
			case disk["image"] != nil:
				disk["create_option"] = "FromImage"
			default:
				disk["create_option"] = "Empty"
			}
		}
		if disk["create_option"] == "Empty" {
			if _, ok := disk["disk_size_gb"]; !ok {
				disk["disk_size_gb"] = 10
			}
		}
		desc, err := dataDiskSchema.descriptor(models.BasicConfig(disk))
		if err != nil {
			return nil, fmt.Errorf("data_disks[%d]: %w", lun, err)
		}
		result = append(result, desc)
	}
	return result, nil
}

// virtualMachineDescriptor builds the ARM body of a virtual machine.
func virtualMachineDescriptor(args *virtualMachineArgs, nics []string, extra models.BasicConfig) (map[string]any, error) {
	desc := map[string]any{
		"location": args.Location,
	}
	if len(args.Tags) > 0 {
		desc["tags"] = args.Tags
	}
	if len(args.Zones) > 0 {
		desc["zones"] = args.Zones
	}

	setPath(desc, "properties.hardwareProfile.vmSize", args.VMSize)

	osDisk := map[string]any{
		"createOption": args.OSDiskCreateOption,
		"diskSizeGB":   args.OSDiskSizeGB,
	}
	putString(osDisk, "osType", args.OSType)
	putString(osDisk, "name", args.OSDiskName)
	putString(osDisk, "caching", args.OSDiskCaching)
	if len(args.OSManagedDisk) > 0 {
		osDisk["managedDisk"] = map[string]any{"id": args.OSManagedDisk}
	} else if len(args.StorageAccountType) > 0 {
		osDisk["managedDisk"] = map[string]any{"storageAccountType": args.StorageAccountType}
	}
	if len(args.OSDiskVHDURI) > 0 {
		osDisk["vhd"] = map[string]any{"uri": args.OSDiskVHDURI}
	}
	if args.OSEphemeralDisk {
		osDisk["diffDiskSettings"] = map[string]any{"option": "Local"}
	}
	setPath(desc, "properties.storageProfile.osDisk", osDisk)

	if len(args.Image) > 0 {
		ref, err := imageReference(args.Image)
		if err != nil {
			return nil, err
		}
		setPath(desc, "properties.storageProfile.imageReference", ref)
	}

	if len(args.DataDisks) > 0 {
		disks, err := dataDisks(args.Name, args.DataDisks)
		if err != nil {
			return nil, err
		}
		setPath(desc, "properties.storageProfile.dataDisks", disks)
	}

	osProfile := map[string]any{
		"computerName":  args.Name,
		"adminUsername": args.AdminUsername,
	}
	putString(osProfile, "adminPassword", args.AdminPassword)
	if len(args.CustomData) > 0 {
		osProfile["customData"] = base64.StdEncoding.EncodeToString([]byte(args.CustomData))
	}
	if args.AllowExtensions != nil {
		osProfile["allowExtensionOperations"] = *args.AllowExtensions
	}

	windows := strings.EqualFold(args.OSType, "Windows")
	if len(args.SSHPublicKeys) > 0 || (!windows && !args.ProvisionVMAgent) || args.DisablePasswordAuth != nil {
		linux := map[string]any{}
		if args.DisablePasswordAuth != nil {
			linux["disablePasswordAuthentication"] = *args.DisablePasswordAuth
		}
		if len(args.SSHPublicKeys) > 0 {
			keys := make([]any, 0, len(args.SSHPublicKeys))
			for _, key := range args.SSHPublicKeys {
				keys = append(keys, map[string]any{
					"keyData": readKeyOrFile(key),
					"path":    fmt.Sprintf("/home/%s/.ssh/authorized_keys", args.AdminUsername),
				})
			}
			linux["ssh"] = map[string]any{"publicKeys": keys}
		}
		if !args.ProvisionVMAgent {
			linux["provisionVMAgent"] = false
		}
		osProfile["linuxConfiguration"] = linux
	}
	if windows && (len(args.TimeZone) > 0 || args.EnableAutoUpdates != nil || !args.ProvisionVMAgent) {
		win := map[string]any{}
		putString(win, "timeZone", args.TimeZone)
		if args.EnableAutoUpdates != nil {
			win["enableAutomaticUpdates"] = *args.EnableAutoUpdates
		}
		if !args.ProvisionVMAgent {
			win["provisionVMAgent"] = false
		}
		osProfile["windowsConfiguration"] = win
	}
	if len(args.OSManagedDisk) == 0 || args.OSDiskCreateOption != "Attach" {
		setPath(desc, "properties.osProfile", osProfile)
	}

	interfaces := make([]any, 0, len(nics))
	for i, id := range nics {
		nic := map[string]any{"id": id}
		if len(nics) > 1 {
			nic["properties"] = map[string]any{"primary": i == 0}
		}
		interfaces = append(interfaces, nic)
	}
	setPath(desc, "properties.networkProfile.networkInterfaces", interfaces)

	if args.BootDiagnosticsEnabled != nil {
		setPath(desc, "properties.diagnosticsProfile.bootDiagnostics.enabled", *args.BootDiagnosticsEnabled)
		if len(args.DiagnosticsStorageURI) > 0 {
			setPath(desc, "properties.diagnosticsProfile.bootDiagnostics.storageUri", args.DiagnosticsStorageURI)
		}
	}
	if len(args.AvailabilitySet) > 0 {
		setPath(desc, "properties.availabilitySet.id", args.AvailabilitySet)
	}
	if len(args.ProximityPlacementGrp) > 0 {
		setPath(desc, "properties.proximityPlacementGroup.id", args.ProximityPlacementGrp)
	}
	if len(args.Priority) > 0 {
		setPath(desc, "properties.priority", args.Priority)
	}
	if args.MaxPrice != 0 {
		setPath(desc, "properties.billingProfile.maxPrice", args.MaxPrice)
	}
	if args.UltraSSDEnabled != nil {
		setPath(desc, "properties.additionalCapabilities.ultraSSDEnabled", *args.UltraSSDEnabled)
	}

	if props, ok := extra.GetMap("properties"); ok {
		current, _ := desc["properties"].(map[string]any)
		merge(current, props)
	}
	return desc, nil
}

// virtualMachineDesired is the body a create would send, without the secrets
// Azure never returns and the interfaces that are created on demand.
func virtualMachineDesired(args models.BasicConfig) (map[string]any, error) {
	parsed := defaultVirtualMachineArgs()
	if err := loader.Decode(virtualMachineModule+".create_or_update", args, &parsed); err != nil {
		return nil, err
	}
	desc, err := virtualMachineDescriptor(&parsed, parsed.NetworkInterfaces, args)
	if err != nil {
		return nil, modelError(err)
	}
	if profile, ok := getPath(desc, "properties.osProfile"); ok {
		delete(profile.(map[string]any), "adminPassword")
		delete(profile.(map[string]any), "customData")
	}
	if len(parsed.NetworkInterfaces) == 0 {
		props := desc["properties"].(map[string]any)
		delete(props, "networkProfile")
	}
	return desc, nil
}

func putString(m map[string]any, key, value string) {
	if len(value) > 0 {
		m[key] = value
	}
}

// networkInterfaceIDs returns the IDs of the interfaces the machine should
// use, creating "<name>-nic0" (and its public IP) through the network
// module when none are given.
func (e *Env) networkInterfaceIDs(ctx context.Context, req *loader.Request, clients azure.Clients, args *virtualMachineArgs) ([]string, error) {
	networkGroup := args.NetworkResourceGroup
	if len(networkGroup) == 0 {
		networkGroup = args.ResourceGroup
	}

	var ids []string
	for _, nic := range args.NetworkInterfaces {
		ids = append(ids, networkID(clients, networkGroup, "networkInterfaces", nic))
	}
	if len(ids) > 0 || !args.CreateInterfaces {
		return ids, nil
	}
	if len(args.VirtualNetwork) == 0 || len(args.Subnet) == 0 {
		return nil, fmt.Errorf("virtual_network and subnet are required to create a network interface")
	}

	auth := ConnectionArgs(req.Args)
	ipConfig := map[string]any{"name": args.Name + "-nic0-cfg0"}
	if args.AllocatePublicIP {
		pipArgs := models.BasicConfig(auth).Clone()
		pipArgs.Update(map[string]any{
			"name":           args.Name + "-pip0",
			"resource_group": networkGroup,
			"location":       args.Location,
		})
		pip, err := req.Registry.Invoke(ctx, networkModule+".public_ip_address_create_or_update", pipArgs, loader.CallOptions{})
		if err != nil {
			return nil, fmt.Errorf("The public IP address could not be created. (%w)", err)
		}
		id, err := resultID(pip)
		if err != nil {
			return nil, fmt.Errorf("The public IP address could not be created. (%w)", err)
		}
		ipConfig["public_ip_address"] = id
	}

	nicArgs := models.BasicConfig(auth).Clone()
	nicArgs.Update(map[string]any{
		"name":              args.Name + "-nic0",
		"resource_group":    networkGroup,
		"location":          args.Location,
		"ip_configurations": []any{ipConfig},
		"subnet":            args.Subnet,
		"virtual_network":   args.VirtualNetwork,
	})
	nic, err := req.Registry.Invoke(ctx, networkModule+".network_interface_create_or_update", nicArgs, loader.CallOptions{})
	if err != nil {
		return nil, fmt.Errorf("The network interface could not be created. (%w)", err)
	}
	id, err := resultID(nic)
	if err != nil {
		return nil, fmt.Errorf("The network interface could not be created. (%w)", err)
	}
	return []string{id}, nil
}

// resultID reads the ARM ID out of an execution function result.
func resultID(result any) (string, error) {
	if msg, ok := loader.IsErrorResult(result); ok {
		return "", fmt.Errorf("%s", msg)
	}
	desc, ok := result.(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected result %T", result)
	}
	id, ok := desc["id"].(string)
	if !ok || len(id) == 0 {
		return "", fmt.Errorf("result has no id")
	}
	return id, nil
}

func (e *Env) virtualMachineCreateOrUpdate(ctx context.Context, req *loader.Request) (any, error) {
	args := defaultVirtualMachineArgs()
	if err := loader.Decode(req.Function, req.Args, &args); err != nil {
		return nil, err
	}

	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(args.Location) == 0 {
		if err := ensureLocation(ctx, clients, req.Args, args.ResourceGroup); err != nil {
			return nil, err
		}
		args.Location, _ = req.Args.GetString("location")
	}
	if len(args.AvailabilitySet) > 0 && !azure.IsResourceID(args.AvailabilitySet) {
		args.AvailabilitySet = azure.ResourceID(clients.SubscriptionID(), args.ResourceGroup,
			"Microsoft.Compute/availabilitySets/"+args.AvailabilitySet)
	}

	nics, err := e.networkInterfaceIDs(ctx, req, clients, &args)
	if err != nil {
		return nil, err
	}

	desc, err := virtualMachineDescriptor(&args, nics, req.Args)
	if err != nil {
		return nil, modelError(err)
	}
	model, err := build[armcompute.VirtualMachine](desc)
	if err != nil {
		return nil, err
	}

	vms, err := clients.VirtualMachines()
	if err != nil {
		return nil, err
	}
	ref := azure.Ref{ResourceGroup: args.ResourceGroup, Name: args.Name}
	vm, err := vms.CreateOrUpdate(ctx, ref, model)
	if err != nil {
		return nil, err
	}

	if err := e.installUserdata(ctx, req, &args); err != nil {
		logrus.WithError(err).WithField("virtual_machine", args.Name).Error("Unable to install the userdata script")
	}
	return describe(vm)
}

// userdataExtension returns the custom script extension arguments that run
// a userdata script or file on a Linux or Windows machine.
func userdataExtension(vmName, resourceGroup, location, osType, script, file string) map[string]any {
	settings := map[string]any{}
	if strings.HasPrefix(file, "http://") || strings.HasPrefix(file, "https://") {
		settings["fileUris"] = []any{file}
	} else if len(file) > 0 {
		script = readKeyOrFile(file)
	}
	settings["commandToExecute"] = script

	handler := azure.CustomScriptHandler(osType)
	return map[string]any{
		"name":           vmName + "_custom_userdata_script",
		"vm_name":        vmName,
		"resource_group": resourceGroup,
		"location":       location,
		"settings":       settings,
		"publisher":      handler.Publisher,
		"extension_type": handler.Type,
		"version":        handler.Version,
	}
}

func (e *Env) installUserdata(ctx context.Context, req *loader.Request, args *virtualMachineArgs) error {
	if (len(args.Userdata) == 0 && len(args.UserdataFile) == 0) || !args.ProvisionVMAgent {
		return nil
	}
	ext := models.BasicConfig(ConnectionArgs(req.Args))
	ext.Update(userdataExtension(args.Name, args.ResourceGroup, args.Location, args.OSType, args.Userdata, args.UserdataFile))
	result, err := req.Registry.Invoke(ctx, extensionModule+".create_or_update", ext, loader.CallOptions{})
	if err != nil {
		return err
	}
	_, err = resultID(result)
	return err
}

type deleteVirtualMachineArgs struct {
	ResourceArgs      `mapstructure:",squash"`
	CleanupOSDisk     bool `mapstructure:"cleanup_disks"`
	CleanupDataDisks  bool `mapstructure:"cleanup_data_disks"`
	CleanupInterfaces bool `mapstructure:"cleanup_interfaces"`
}

// virtualMachineDelete deletes a machine and, on request, the disks and
// interfaces (with their public IPs) it used.
func (e *Env) virtualMachineDelete(ctx context.Context, req *loader.Request) (any, error) {
	var args deleteVirtualMachineArgs
	if err := loader.Decode(req.Function, req.Args, &args); err != nil {
		return nil, err
	}
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	vms, err := clients.VirtualMachines()
	if err != nil {
		return nil, err
	}

	vm, err := vms.Get(ctx, args.Ref())
	if err != nil {
		return nil, err
	}
	if err := vms.Delete(ctx, args.Ref()); err != nil {
		return nil, err
	}

	if vm.Properties == nil {
		return true, nil
	}
	if storage := vm.Properties.StorageProfile; storage != nil {
		disks, err := clients.Disks()
		if err != nil {
			return nil, err
		}
		if args.CleanupOSDisk && storage.OSDisk != nil && storage.OSDisk.ManagedDisk != nil {
			deleteByID[armcompute.Disk](ctx, disks, storage.OSDisk.ManagedDisk.ID)
		}
		if args.CleanupDataDisks {
			for _, disk := range storage.DataDisks {
				if disk != nil && disk.ManagedDisk != nil {
					deleteByID[armcompute.Disk](ctx, disks, disk.ManagedDisk.ID)
				}
			}
		}
	}
	if args.CleanupInterfaces && vm.Properties.NetworkProfile != nil {
		if err := cleanupInterfaces(ctx, clients, vm.Properties.NetworkProfile.NetworkInterfaces); err != nil {
			return nil, err
		}
	}
	return true, nil
}

// deleteByID deletes the resource an ARM ID points at, logging failures.
func deleteByID[T any](ctx context.Context, ops azure.Operations[T], id *string) {
	if id == nil {
		return
	}
	ref := azure.Ref{ResourceGroup: azure.ResourceGroupFromID(*id), Name: azure.NameFromID(*id)}
	if err := ops.Delete(ctx, ref); err != nil && !azure.IsNotFound(err) {
		logrus.WithError(err).WithField("id", *id).Error("Unable to clean up resource")
	}
}

func cleanupInterfaces(ctx context.Context, clients azure.Clients, nics []*armcompute.NetworkInterfaceReference) error {
	interfaces, err := clients.NetworkInterfaces()
	if err != nil {
		return err
	}
	addresses, err := clients.PublicIPAddresses()
	if err != nil {
		return err
	}
	for _, nic := range nics {
		if nic == nil || nic.ID == nil {
			continue
		}
		ref := azure.Ref{ResourceGroup: azure.ResourceGroupFromID(*nic.ID), Name: azure.NameFromID(*nic.ID)}
		details, err := interfaces.Get(ctx, ref)
		if err != nil {
			logrus.WithError(err).WithField("id", *nic.ID).Error("Unable to look up network interface")
			continue
		}
		deleteByID(ctx, interfaces, nic.ID)
		if details.Properties == nil {
			continue
		}
		for _, config := range details.Properties.IPConfigurations {
			if config != nil && config.Properties != nil && config.Properties.PublicIPAddress != nil {
				deleteByID(ctx, addresses, config.Properties.PublicIPAddress.ID)
			}
		}
	}
	return nil
}

func (e *Env) virtualMachines() *crud[armcompute.VirtualMachine] {
	return &crud[armcompute.VirtualMachine]{
		noun:    "virtual machine",
		listAll: true,
		api: func(c azure.Clients) (azure.Operations[armcompute.VirtualMachine], error) {
			return c.VirtualMachines()
		},
	}
}

// vmAction runs fn against the machine named by the request.
func (e *Env) vmAction(fn func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref) (any, error)) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		ref, err := decodeRef(req)
		if err != nil {
			return nil, err
		}
		clients, err := e.connect(ctx, req)
		if err != nil {
			return nil, err
		}
		vms, err := clients.VirtualMachines()
		if err != nil {
			return nil, err
		}
		return fn(ctx, vms, ref)
	}
}

// vmArgsAction decodes T and runs fn against the machine it names.
func vmArgsAction[T any](e *Env, defaults T, ref func(*T) azure.Ref, fn func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref, args *T) (any, error)) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		args := defaults
		if err := loader.Decode(req.Function, req.Args, &args); err != nil {
			return nil, err
		}
		clients, err := e.connect(ctx, req)
		if err != nil {
			return nil, err
		}
		vms, err := clients.VirtualMachines()
		if err != nil {
			return nil, err
		}
		return fn(ctx, vms, ref(&args), &args)
	}
}

type captureArgs struct {
	ResourceArgs    `mapstructure:",squash"`
	DestinationName string `mapstructure:"destination_name" validate:"required"`
	Prefix          string `mapstructure:"prefix"`
	Overwrite       bool   `mapstructure:"overwrite"`
}

type reimageArgs struct {
	ResourceArgs `mapstructure:",squash"`
	TempDisk     bool `mapstructure:"temp_disk"`
}

type bootDiagnosticsArgs struct {
	ResourceArgs `mapstructure:",squash"`
	// Expiry of the SAS URIs in minutes.
	Expiry int32 `mapstructure:"sas_uri_expiration_time" validate:"omitempty,min=1,max=1440"`
}

type locationArgs struct {
	Location string `mapstructure:"location" validate:"required"`
}

func (a *captureArgs) ref() azure.Ref         { return a.Ref() }
func (a *reimageArgs) ref() azure.Ref         { return a.Ref() }
func (a *bootDiagnosticsArgs) ref() azure.Ref { return a.Ref() }

func (e *Env) virtualMachinesListByLocation(ctx context.Context, req *loader.Request) (any, error) {
	var args locationArgs
	if err := loader.Decode(req.Function, req.Args, &args); err != nil {
		return nil, err
	}
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	vms, err := clients.VirtualMachines()
	if err != nil {
		return nil, err
	}
	items, err := vms.ListByLocation(ctx, args.Location)
	if err != nil {
		return nil, err
	}
	return keyed(items)
}

func (e *Env) powerAction(action azure.PowerAction) function {
	return function{
		name: string(action), params: nameAndGroup, required: nameAndGroup,
		doc: fmt.Sprintf("Run the %s action against a virtual machine.", common.Capitalize(strings.ReplaceAll(string(action), "_", " "))),
		fn: e.vmAction(func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref) (any, error) {
			if err := vms.Power(ctx, ref, action); err != nil {
				return nil, err
			}
			return true, nil
		}),
	}
}

func (e *Env) registerVirtualMachines(reg *loader.Registry) {
	var fns []function
	for _, fn := range e.virtualMachines().functions(e) {
		switch fn.name {
		case "create_or_update":
			fn.params = []string{"name", "resource_group", "vm_size"}
			fn.required = fn.params
			fn.fn = e.virtualMachineCreateOrUpdate
			fn.descriptor = virtualMachineDesired
		case "delete":
			fn.fn = e.virtualMachineDelete
		}
		fns = append(fns, fn)
	}

	fns = append(fns,
		function{
			name: "instance_view", params: nameAndGroup, required: nameAndGroup,
			doc: "Get the instance view of a virtual machine.",
			fn: e.vmAction(func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref) (any, error) {
				view, err := vms.InstanceView(ctx, ref)
				if err != nil {
					return nil, err
				}
				return describe(view)
			}),
		},
		e.powerAction(azure.PowerStart),
		e.powerAction(azure.PowerOff),
		e.powerAction(azure.PowerRestart),
		e.powerAction(azure.PowerDeallocate),
		e.powerAction(azure.PowerRedeploy),
		function{
			name: "generalize", params: nameAndGroup, required: nameAndGroup,
			doc: "Mark a virtual machine as generalized.",
			fn: e.vmAction(func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref) (any, error) {
				if err := vms.Generalize(ctx, ref); err != nil {
					return nil, err
				}
				return true, nil
			}),
		},
		e.powerAction(azure.ActionConvertToManagedDisks),
		e.powerAction(azure.ActionReapply),
		e.powerAction(azure.ActionPerformMaintenance),
		e.powerAction(azure.ActionSimulateEviction),
		function{
			name: "capture", params: []string{"name", "destination_name", "resource_group", "prefix", "overwrite"},
			required: []string{"name", "destination_name", "resource_group"},
			doc:      "Capture the disks of a virtual machine into a container and return a template for similar machines.",
			fn: vmArgsAction(e, captureArgs{Prefix: "capture-"}, (*captureArgs).ref,
				func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref, args *captureArgs) (any, error) {
					result, err := vms.Capture(ctx, ref, armcompute.VirtualMachineCaptureParameters{
						VhdPrefix:                to.Ptr(args.Prefix),
						DestinationContainerName: to.Ptr(args.DestinationName),
						OverwriteVhds:            to.Ptr(args.Overwrite),
					})
					if err != nil {
						return nil, err
					}
					return describe(result)
				}),
		},
		function{
			name: "reimage", params: []string{"name", "resource_group", "temp_disk"}, required: nameAndGroup,
			doc: "Reimage a virtual machine with an ephemeral OS disk back to its initial state.",
			fn: vmArgsAction(e, reimageArgs{}, (*reimageArgs).ref,
				func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref, args *reimageArgs) (any, error) {
					if err := vms.Reimage(ctx, ref, args.TempDisk); err != nil {
						return nil, err
					}
					return true, nil
				}),
		},
		function{
			name: "assess_patches", params: nameAndGroup, required: nameAndGroup,
			doc: "Assess the patches available to a virtual machine.",
			fn: e.vmAction(func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref) (any, error) {
				result, err := vms.AssessPatches(ctx, ref)
				if err != nil {
					return nil, err
				}
				return describe(result)
			}),
		},
		function{
			name: "retrieve_boot_diagnostics_data", params: []string{"name", "resource_group", "sas_uri_expiration_time"},
			required: nameAndGroup,
			doc:      "Get SAS URIs of the boot diagnostic logs of a virtual machine.",
			fn: vmArgsAction(e, bootDiagnosticsArgs{}, (*bootDiagnosticsArgs).ref,
				func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref, args *bootDiagnosticsArgs) (any, error) {
					result, err := vms.RetrieveBootDiagnosticsData(ctx, ref, args.Expiry)
					if err != nil {
						return nil, err
					}
					return describe(result)
				}),
		},
		function{
			name: "list_by_location", params: []string{"location"}, required: []string{"location"},
			doc: "List the virtual machines of the subscription in a location.",
			fn:  e.virtualMachinesListByLocation,
		},
		function{
			name: "list_available_sizes", params: nameAndGroup, required: nameAndGroup,
			doc: "List the sizes a virtual machine can be resized to.",
			fn: e.vmAction(func(ctx context.Context, vms azure.VirtualMachinesAPI, ref azure.Ref) (any, error) {
				sizes, err := vms.ListAvailableSizes(ctx, ref)
				if err != nil {
					return nil, err
				}
				return keyed(sizes)
			}),
		},
	)
	register(reg, virtualMachineModule, "compute", fns)
}
