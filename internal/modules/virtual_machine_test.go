package modules

import (
	"encoding/base64"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/testing/mocks/azuremock"
)

func seedNetwork(clients *azuremock.Clients) {
	clients.SeedResourceGroup("rg1", "eastus")
	clients.VirtualNetworkStore.Put(azure.Ref{ResourceGroup: "rg1", Name: "vnet1"},
		armnetwork.VirtualNetwork{Location: to.Ptr("eastus")})
	clients.SubnetStore.Put(azure.Ref{ResourceGroup: "rg1", Parent: "vnet1", Name: "default"},
		armnetwork.Subnet{Properties: &armnetwork.SubnetPropertiesFormat{AddressPrefix: to.Ptr("10.0.0.0/24")}})
}

func TestImageReference(t *testing.T) {
	t.Run("marketplace image", func(t *testing.T) {
		ref, err := imageReference("Canonical|UbuntuServer|18.04-LTS|latest")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"publisher": "Canonical",
			"offer":     "UbuntuServer",
			"sku":       "18.04-LTS",
			"version":   "latest",
		}, ref)
	})

	t.Run("image ID", func(t *testing.T) {
		id := "/subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/images/golden"
		ref, err := imageReference(id)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": id}, ref)
	})

	t.Run("malformed image", func(t *testing.T) {
		_, err := imageReference("Canonical|UbuntuServer")
		assert.Error(t, err)
	})
}

func TestDataDisks(t *testing.T) {
	disks, err := dataDisks("vm1", []map[string]any{
		{},
		{"managed_disk": "/subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/disks/existing"},
		{"lun": 7, "disk_size_gb": 128, "name": "logs"},
	})
	require.NoError(t, err)
	require.Len(t, disks, 3)

	first := disks[0].(map[string]any)
	assert.Equal(t, int64(0), first["lun"])
	assert.Equal(t, "vm1-datadisk0", first["name"])
	assert.Equal(t, "Empty", first["createOption"])
	assert.Equal(t, int64(10), first["diskSizeGB"])

	second := disks[1].(map[string]any)
	assert.Equal(t, "Attach", second["createOption"])
	assert.NotContains(t, second, "diskSizeGB")

	third := disks[2].(map[string]any)
	assert.Equal(t, int64(7), third["lun"])
	assert.Equal(t, "logs", third["name"])
	assert.Equal(t, int64(128), third["diskSizeGB"])
}

func TestUserdataExtension(t *testing.T) {
	t.Run("linux", func(t *testing.T) {
		ext := userdataExtension("vm1", "rg1", "eastus", "Linux", "echo hi", "")
		assert.Equal(t, "vm1_custom_userdata_script", ext["name"])
		assert.Equal(t, "Microsoft.Azure.Extensions", ext["publisher"])
		assert.Equal(t, "CustomScript", ext["extension_type"])
		assert.Equal(t, map[string]any{"commandToExecute": "echo hi"}, ext["settings"])
	})

	t.Run("windows with a remote script", func(t *testing.T) {
		ext := userdataExtension("vm1", "rg1", "eastus", "Windows", "powershell ./setup.ps1", "https://example.com/setup.ps1")
		assert.Equal(t, "Microsoft.Compute", ext["publisher"])
		assert.Equal(t, "CustomScriptExtension", ext["extension_type"])
		settings := ext["settings"].(map[string]any)
		assert.Equal(t, []any{"https://example.com/setup.ps1"}, settings["fileUris"])
	})
}

func TestVirtualMachineCreate(t *testing.T) {
	t.Run("creates its interface and public IP", func(t *testing.T) {
		reg, clients := newTestRegistry(t)
		seedNetwork(clients)

		result := call(t, reg, "azurerm_compute_virtual_machine.create_or_update", map[string]any{
			"name":               "vm1",
			"resource_group":     "rg1",
			"vm_size":            "Standard_B1s",
			"image":              "Canonical|UbuntuServer|18.04-LTS|latest",
			"virtual_network":    "vnet1",
			"subnet":             "default",
			"allocate_public_ip": true,
			"custom_data":        "#cloud-config",
			"ssh_public_keys":    []any{"ssh-rsa AAAAB3NzaC1yc2E test"},
		})
		desc := result.(map[string]any)
		assert.Equal(t, "eastus", desc["location"])

		assert.Equal(t, 1, clients.PublicIPAddressStore.Len())
		assert.Equal(t, 1, clients.NetworkInterfaceStore.Len())

		osProfile, ok := getPath(desc, "properties.osProfile")
		require.True(t, ok)
		profile := osProfile.(map[string]any)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("#cloud-config")), profile["customData"])
		assert.Equal(t, "azureuser", profile["adminUsername"])
		keys, _ := getPath(profile, "linuxConfiguration.ssh.publicKeys")
		require.Len(t, keys, 1)
		assert.Equal(t, "/home/azureuser/.ssh/authorized_keys", keys.([]any)[0].(map[string]any)["path"])

		nics, _ := getPath(desc, "properties.networkProfile.networkInterfaces")
		require.Len(t, nics, 1)
		assert.Equal(t, clients.NetworkInterfaceStore.ID(azure.Ref{ResourceGroup: "rg1", Name: "vm1-nic0"}),
			nics.([]any)[0].(map[string]any)["id"])

		nic, err := clients.NetworkInterfaceStore.Get(t.Context(), azure.Ref{ResourceGroup: "rg1", Name: "vm1-nic0"})
		require.NoError(t, err)
		config := nic.Properties.IPConfigurations[0]
		assert.Equal(t, "vm1-nic0-cfg0", *config.Name)
		assert.Equal(t, clients.SubnetStore.ID(azure.Ref{ResourceGroup: "rg1", Parent: "vnet1", Name: "default"}),
			*config.Properties.Subnet.ID)
		assert.Equal(t, clients.PublicIPAddressStore.ID(azure.Ref{ResourceGroup: "rg1", Name: "vm1-pip0"}),
			*config.Properties.PublicIPAddress.ID)
	})

	t.Run("named interfaces are used as given", func(t *testing.T) {
		reg, clients := newTestRegistry(t)
		clients.SeedResourceGroup("rg1", "eastus")

		result := call(t, reg, "azurerm_compute_virtual_machine.create_or_update", map[string]any{
			"name":               "vm1",
			"resource_group":     "rg1",
			"vm_size":            "Standard_B1s",
			"network_interfaces": []any{"nic-a", "nic-b"},
		})
		nics, _ := getPath(result.(map[string]any), "properties.networkProfile.networkInterfaces")
		require.Len(t, nics, 2)
		first := nics.([]any)[0].(map[string]any)
		primary, _ := getPath(first, "properties.primary")
		assert.Equal(t, true, primary)
		assert.Equal(t, 0, clients.NetworkInterfaceStore.Len())
	})

	t.Run("missing subnet fails without creating anything", func(t *testing.T) {
		reg, clients := newTestRegistry(t)
		clients.SeedResourceGroup("rg1", "eastus")

		result, err := reg.Call(t.Context(), "azurerm_compute_virtual_machine.create_or_update", map[string]any{
			"name":           "vm1",
			"resource_group": "rg1",
			"vm_size":        "Standard_B1s",
		}, loader.CallOptions{})
		require.NoError(t, err)
		_, failed := loader.IsErrorResult(result)
		assert.True(t, failed)
		assert.Equal(t, 0, clients.VirtualMachineStore.Len())
	})

	t.Run("userdata installs the custom script extension", func(t *testing.T) {
		reg, clients := newTestRegistry(t)
		seedNetwork(clients)

		call(t, reg, "azurerm_compute_virtual_machine.create_or_update", map[string]any{
			"name":            "vm1",
			"resource_group":  "rg1",
			"vm_size":         "Standard_B1s",
			"virtual_network": "vnet1",
			"subnet":          "default",
			"userdata":        "echo hello",
		})
		ext, err := clients.ExtensionStore.Get(t.Context(),
			azure.Ref{ResourceGroup: "rg1", Parent: "vm1", Name: "vm1_custom_userdata_script"})
		require.NoError(t, err)
		assert.Equal(t, "CustomScript", *ext.Properties.Type)
	})
}

func TestVirtualMachinePower(t *testing.T) {
	reg, clients := newTestRegistry(t)
	clients.VirtualMachineStore.Put(azure.Ref{ResourceGroup: "rg1", Name: "vm1"},
		armcompute.VirtualMachine{Location: to.Ptr("eastus")})
	args := map[string]any{"name": "vm1", "resource_group": "rg1"}

	for _, action := range []string{"start", "power_off"} {
		assert.Equal(t, true, call(t, reg, "azurerm_compute_virtual_machine."+action, args))
	}
	assert.Equal(t, []azure.PowerAction{azure.PowerStart, azure.PowerOff}, clients.VirtualMachineStore.Actions)

	view := call(t, reg, "azurerm_compute_virtual_machine.instance_view", args).(map[string]any)
	statuses := view["statuses"].([]any)
	assert.Equal(t, "PowerState/stopped", statuses[1].(map[string]any)["code"])

	assert.Equal(t, true, call(t, reg, "azurerm_compute_virtual_machine.generalize", args))
	assert.Equal(t, []string{"vm1"}, clients.VirtualMachineStore.Generalized)

	sizes := call(t, reg, "azurerm_compute_virtual_machine.list_available_sizes", args).(map[string]any)
	assert.Contains(t, sizes, "Standard_B1s")
}

func TestVirtualMachineDelete(t *testing.T) {
	reg, clients := newTestRegistry(t)
	seedNetwork(clients)

	call(t, reg, "azurerm_compute_virtual_machine.create_or_update", map[string]any{
		"name":               "vm1",
		"resource_group":     "rg1",
		"vm_size":            "Standard_B1s",
		"virtual_network":    "vnet1",
		"subnet":             "default",
		"allocate_public_ip": true,
	})

	t.Run("keeps interfaces by default", func(t *testing.T) {
		clients.VirtualMachineStore.Put(azure.Ref{ResourceGroup: "rg1", Name: "other"},
			armcompute.VirtualMachine{Location: to.Ptr("eastus")})
		assert.Equal(t, true, call(t, reg, "azurerm_compute_virtual_machine.delete",
			map[string]any{"name": "other", "resource_group": "rg1"}))
		assert.Equal(t, 1, clients.NetworkInterfaceStore.Len())
	})

	t.Run("cleans up interfaces and their public IPs", func(t *testing.T) {
		assert.Equal(t, true, call(t, reg, "azurerm_compute_virtual_machine.delete", map[string]any{
			"name":               "vm1",
			"resource_group":     "rg1",
			"cleanup_interfaces": true,
		}))
		assert.Equal(t, 0, clients.VirtualMachineStore.Len())
		assert.Equal(t, 0, clients.NetworkInterfaceStore.Len())
		assert.Equal(t, 0, clients.PublicIPAddressStore.Len())
	})

	t.Run("cleans up managed disks", func(t *testing.T) {
		osDisk := clients.DiskStore.Put(azure.Ref{ResourceGroup: "rg1", Name: "vm2-os"}, armcompute.Disk{Location: to.Ptr("eastus")})
		dataDisk := clients.DiskStore.Put(azure.Ref{ResourceGroup: "rg1", Name: "vm2-data"}, armcompute.Disk{Location: to.Ptr("eastus")})
		clients.VirtualMachineStore.Put(azure.Ref{ResourceGroup: "rg1", Name: "vm2"}, armcompute.VirtualMachine{
			Location: to.Ptr("eastus"),
			Properties: &armcompute.VirtualMachineProperties{
				StorageProfile: &armcompute.StorageProfile{
					OSDisk:    &armcompute.OSDisk{ManagedDisk: &armcompute.ManagedDiskParameters{ID: osDisk.ID}},
					DataDisks: []*armcompute.DataDisk{{ManagedDisk: &armcompute.ManagedDiskParameters{ID: dataDisk.ID}}},
				},
			},
		})

		call(t, reg, "azurerm_compute_virtual_machine.delete", map[string]any{
			"name":               "vm2",
			"resource_group":     "rg1",
			"cleanup_disks":      true,
			"cleanup_data_disks": true,
		})
		assert.Equal(t, 0, clients.DiskStore.Len())
	})
}

func TestVirtualMachineMaintenance(t *testing.T) {
	reg, clients := newTestRegistry(t)
	clients.VirtualMachineStore.Put(azure.Ref{ResourceGroup: "rg1", Name: "vm1"},
		armcompute.VirtualMachine{Location: to.Ptr("eastus")})
	clients.VirtualMachineStore.Put(azure.Ref{ResourceGroup: "rg2", Name: "vm2"},
		armcompute.VirtualMachine{Location: to.Ptr("westus")})
	args := map[string]any{"name": "vm1", "resource_group": "rg1"}

	t.Run("actions without a result", func(t *testing.T) {
		actions := []azure.PowerAction{
			azure.ActionConvertToManagedDisks,
			azure.ActionReapply,
			azure.ActionPerformMaintenance,
			azure.ActionSimulateEviction,
		}
		for _, action := range actions {
			assert.Equal(t, true, call(t, reg, "azurerm_compute_virtual_machine."+string(action), args))
		}
		assert.Equal(t, actions, clients.VirtualMachineStore.Actions)
	})

	t.Run("capture defaults its prefix", func(t *testing.T) {
		result := call(t, reg, "azurerm_compute_virtual_machine.capture", map[string]any{
			"name": "vm1", "resource_group": "rg1", "destination_name": "images",
		}).(map[string]any)
		assert.Equal(t, "1.0.0.0", result["contentVersion"])
		resources := result["resources"].([]any)
		assert.Equal(t, "capture-vm1-osDisk", resources[0].(map[string]any)["name"])

		require.Len(t, clients.VirtualMachineStore.Captures, 1)
		params := clients.VirtualMachineStore.Captures[0]
		assert.Equal(t, "images", *params.DestinationContainerName)
		assert.False(t, *params.OverwriteVhds)
	})

	t.Run("capture needs a destination", func(t *testing.T) {
		_, err := reg.Call(t.Context(), "azurerm_compute_virtual_machine.capture", args, loader.CallOptions{})
		assert.ErrorIs(t, err, loader.ErrMissingArgument)
	})

	t.Run("reimage", func(t *testing.T) {
		assert.Equal(t, true, call(t, reg, "azurerm_compute_virtual_machine.reimage", map[string]any{
			"name": "vm1", "resource_group": "rg1", "temp_disk": true,
		}))
		assert.Equal(t, []string{"vm1"}, clients.VirtualMachineStore.Reimaged)
	})

	t.Run("assess_patches", func(t *testing.T) {
		result := call(t, reg, "azurerm_compute_virtual_machine.assess_patches", args).(map[string]any)
		assert.Equal(t, "Succeeded", result["status"])
		assert.EqualValues(t, 2, result["otherPatchCount"])
	})

	t.Run("boot diagnostics honour the expiry", func(t *testing.T) {
		result := call(t, reg, "azurerm_compute_virtual_machine.retrieve_boot_diagnostics_data", map[string]any{
			"name": "vm1", "resource_group": "rg1", "sas_uri_expiration_time": 30,
		}).(map[string]any)
		assert.Contains(t, result["serialConsoleLogBlobUri"], "se=30m")
		assert.Contains(t, result["consoleScreenshotBlobUri"], "screenshot.bmp")

		_, err := reg.Call(t.Context(), "azurerm_compute_virtual_machine.retrieve_boot_diagnostics_data", map[string]any{
			"name": "vm1", "resource_group": "rg1", "sas_uri_expiration_time": 2000,
		}, loader.CallOptions{})
		assert.ErrorIs(t, err, loader.ErrInvalidArgument)
	})

	t.Run("list_by_location", func(t *testing.T) {
		result := call(t, reg, "azurerm_compute_virtual_machine.list_by_location",
			map[string]any{"location": "westus"}).(map[string]any)
		assert.Len(t, result, 1)
		assert.Contains(t, result, "vm2")
	})

	t.Run("missing machines soft fail", func(t *testing.T) {
		result, err := reg.Call(t.Context(), "azurerm_compute_virtual_machine.reapply",
			map[string]any{"name": "ghost", "resource_group": "rg1"}, loader.CallOptions{})
		require.NoError(t, err)
		_, failed := loader.IsErrorResult(result)
		assert.True(t, failed)
	})
}
