package states

import (
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/testing/mocks/azuremock"
)

type resourceCase struct {
	seed func(clients *azuremock.Clients)
	args map[string]any
	// update is merged into args to produce a change at path.
	update map[string]any
	path   string
}

func seedGroup(clients *azuremock.Clients) {
	clients.SeedResourceGroup("rg1", "eastus")
}

var availabilitySetCase = resourceCase{
	seed: func(clients *azuremock.Clients) {
		seedGroup(clients)
		clients.VirtualMachineStore.Put(azure.Ref{ResourceGroup: "rg1", Name: "vm1"},
			armcompute.VirtualMachine{Location: to.Ptr("eastus")})
	},
	args: map[string]any{
		"name": "as1", "resource_group": "rg1", "sku": "aligned",
		"platform_fault_domain_count": 2, "virtual_machines": []any{"vm1"},
	},
	update: map[string]any{"platform_fault_domain_count": 3},
	path:   "properties.platformFaultDomainCount",
}

// resourceCases holds one lifecycle per state in resources, keyed by the
// present function.
var resourceCases = map[string]resourceCase{
	"azurerm_resource.resource_group_present": {
		args:   map[string]any{"name": "rg9", "location": "eastus", "tags": map[string]any{"env": "dev"}},
		update: map[string]any{"tags": map[string]any{"env": "prod"}},
		path:   "tags",
	},
	"azurerm_compute_availability_set.present": availabilitySetCase,
	"azurerm_compute.availability_set_present": availabilitySetCase,
	"azurerm_compute_disk.present": {
		seed:   seedGroup,
		args:   map[string]any{"name": "disk1", "resource_group": "rg1", "sku": "Premium_LRS", "disk_size_gb": 32},
		update: map[string]any{"disk_size_gb": 64},
		path:   "properties.diskSizeGB",
	},
	"azurerm_compute_virtual_machine.present": {
		seed: seedGroup,
		args: map[string]any{
			"name": "vm1", "resource_group": "rg1", "vm_size": "Standard_B1s",
			"image":              "Canonical|UbuntuServer|18.04-LTS|latest",
			"admin_password":     "Passw0rd!Passw0rd",
			"network_interfaces": []any{"vm1-nic0"},
		},
		update: map[string]any{"vm_size": "Standard_B2s"},
		path:   "properties.hardwareProfile.vmSize",
	},
	"azurerm_compute_virtual_machine_extension.present": {
		seed: seedGroup,
		args: map[string]any{
			"name": "script", "vm_name": "vm1", "resource_group": "rg1",
			"publisher": "Microsoft.Azure.Extensions", "extension_type": "CustomScript", "version": "2.0",
		},
		update: map[string]any{"version": "2.1"},
		path:   "properties.typeHandlerVersion",
	},
	"azurerm_network.virtual_network_present": {
		seed:   seedGroup,
		args:   map[string]any{"name": "vnet1", "resource_group": "rg1", "address_prefixes": []any{"10.0.0.0/16"}},
		update: map[string]any{"address_prefixes": []any{"10.9.0.0/16"}},
		path:   "properties.addressSpace.addressPrefixes",
	},
	"azurerm_network.subnet_present": {
		args: map[string]any{
			"name": "default", "virtual_network": "vnet1", "resource_group": "rg1", "address_prefix": "10.0.0.0/24",
		},
		update: map[string]any{"address_prefix": "10.0.1.0/24"},
		path:   "properties.addressPrefix",
	},
	"azurerm_network.public_ip_address_present": {
		seed: seedGroup,
		args: map[string]any{
			"name": "pip1", "resource_group": "rg1", "sku": "standard", "public_ip_allocation_method": "Static",
		},
		update: map[string]any{"idle_timeout_in_minutes": 10},
		path:   "properties.idleTimeoutInMinutes",
	},
	"azurerm_network.network_interface_present": {
		seed: func(clients *azuremock.Clients) {
			seedGroup(clients)
			clients.SubnetStore.Put(azure.Ref{ResourceGroup: "rg1", Parent: "vnet1", Name: "default"},
				armnetwork.Subnet{Properties: &armnetwork.SubnetPropertiesFormat{AddressPrefix: to.Ptr("10.0.0.0/24")}})
		},
		args: map[string]any{
			"name": "nic1", "resource_group": "rg1", "virtual_network": "vnet1", "subnet": "default",
			"ip_configurations": []any{map[string]any{"name": "ipconfig1"}},
		},
		update: map[string]any{"enable_ip_forwarding": true},
		path:   "properties.enableIPForwarding",
	},
	"azurerm_network.network_security_group_present": {
		seed: seedGroup,
		args: map[string]any{
			"name": "nsg1", "resource_group": "rg1",
			"security_rules": []any{map[string]any{
				"name": "ssh", "priority": 100, "protocol": "Tcp", "access": "Allow", "direction": "Inbound",
				"source_address_prefix": "*", "source_port_range": "*",
				"destination_address_prefix": "*", "destination_port_range": "22",
			}},
		},
		update: map[string]any{"tags": map[string]any{"team": "ops"}},
		path:   "tags",
	},
	"azurerm_keyvault_vault.present": {
		seed: seedGroup,
		args: map[string]any{
			"name": "vault1", "resource_group": "rg1",
			"tenant_id": "00000000-0000-0000-0000-0000000000aa", "sku": "standard",
		},
		update: map[string]any{"sku": "premium"},
		path:   "properties.sku.name",
	},
	"azurerm_dns.zone_present": {
		args:   map[string]any{"name": "example.com", "resource_group": "rg1"},
		update: map[string]any{"zone_type": "Private"},
		path:   "properties.zoneType",
	},
	"azurerm_dns.record_set_present": {
		args: map[string]any{
			"name": "www", "zone_name": "example.com", "resource_group": "rg1", "record_type": "A",
			"ttl": 300, "a_records": []any{"10.0.0.1"},
		},
		update: map[string]any{"ttl": 600},
		path:   "properties.TTL",
	},
}

func merged(args, update map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range args {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

func TestResourceLifecycles(t *testing.T) {
	for _, r := range resources {
		present := r.state("present")
		tc, ok := resourceCases[present]
		require.True(t, ok, "no lifecycle for %s", present)

		t.Run(present, func(t *testing.T) {
			reg, clients := newTestStates(t)
			if tc.seed != nil {
				tc.seed(clients)
			}
			absent := r.state("absent")
			noun := r.noun + " " + tc.args["name"].(string)
			identity := map[string]any{}
			for _, key := range []string{"name", "resource_group", "virtual_network", "vm_name", "zone_name", "record_type"} {
				if v, ok := tc.args[key]; ok {
					identity[key] = v
				}
			}

			missing := apply(t, reg, absent, identity, false)
			assert.Equal(t, true, missing["result"])
			assert.Equal(t, noun+" was not found.", missing["comment"])

			dry := apply(t, reg, present, tc.args, true)
			assert.Nil(t, dry["result"], dry["comment"])
			assert.Equal(t, noun+" would be created.", dry["comment"])
			assert.Equal(t, 0, clients.Mutations())

			created := apply(t, reg, present, tc.args, false)
			require.Equal(t, true, created["result"], created["comment"])
			assert.Equal(t, noun+" has been created.", created["comment"])
			mutations := clients.Mutations()

			again := apply(t, reg, present, tc.args, false)
			assert.Equal(t, true, again["result"])
			assert.Equal(t, noun+" is already present.", again["comment"], again["changes"])
			assert.Empty(t, again["changes"])
			assert.Equal(t, mutations, clients.Mutations())

			changed := apply(t, reg, present, merged(tc.args, tc.update), true)
			assert.Nil(t, changed["result"], changed["comment"])
			assert.Equal(t, noun+" would be updated.", changed["comment"])
			assert.Contains(t, changed["changes"], tc.path)
			assert.Equal(t, mutations, clients.Mutations())

			doomed := apply(t, reg, absent, identity, true)
			assert.Nil(t, doomed["result"])
			assert.Equal(t, noun+" would be deleted.", doomed["comment"])
			assert.Equal(t, mutations, clients.Mutations())

			deleted := apply(t, reg, absent, identity, false)
			assert.Equal(t, true, deleted["result"], deleted["comment"])
			assert.Equal(t, noun+" has been deleted.", deleted["comment"])

			gone := apply(t, reg, absent, identity, false)
			assert.Equal(t, noun+" was not found.", gone["comment"])
		})
	}
}
