package states

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/modules"
	"github.com/thand-io/azurerm/internal/testing/mocks/azuremock"
)

var connectionAuth = map[string]any{"subscription_id": azuremock.SubscriptionID}

func newTestStates(t *testing.T) (*loader.Registry, *azuremock.Clients) {
	t.Helper()
	clients := azuremock.NewClients()
	exec := loader.NewRegistry()
	modules.Register(exec, clients.Connector())
	reg := loader.NewRegistry()
	Register(reg, exec)
	return reg, clients
}

func apply(t *testing.T, reg *loader.Registry, name string, args map[string]any, test bool) map[string]any {
	t.Helper()
	full := map[string]any{"connection_auth": connectionAuth}
	for k, v := range args {
		full[k] = v
	}
	result, err := reg.Call(t.Context(), name, full, loader.CallOptions{Test: test})
	require.NoError(t, err)
	m, ok := result.(map[string]any)
	require.True(t, ok, "state returned %T", result)
	return m
}

func TestRegister(t *testing.T) {
	reg, _ := newTestStates(t)
	for _, name := range []string{
		"azurerm_resource.resource_group_present",
		"azurerm_resource.resource_group_absent",
		"azurerm_compute_virtual_machine.present",
		"azurerm_compute_availability_set.absent",
		"azurerm_compute.availability_set_present",
		"azurerm_network.subnet_present",
		"azurerm_network.network_security_group_absent",
		"azurerm_keyvault_vault.present",
		"azurerm_keyvault_secret.present",
		"azurerm_keyvault_key.absent",
		"azurerm_dns.record_set_present",
	} {
		_, ok := reg.Get(name)
		assert.True(t, ok, name)
	}

	spec, ok := reg.Get("azurerm_network.subnet_present")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "virtual_network", "resource_group"}, spec.Params)
}

func TestConnectionAuthRequired(t *testing.T) {
	reg, clients := newTestStates(t)
	result, err := reg.Call(t.Context(), "azurerm_resource.resource_group_present", map[string]any{
		"name": "rg1", "location": "eastus",
	}, loader.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, false, result.(map[string]any)["result"])
	assert.Equal(t, ErrNoConnection, result.(map[string]any)["comment"])
	assert.Equal(t, 0, clients.Mutations())
}

func TestResourceGroupPresent(t *testing.T) {
	reg, clients := newTestStates(t)
	args := map[string]any{"name": "rg1", "location": "eastus", "tags": map[string]any{"env": "dev"}}

	first := apply(t, reg, "azurerm_resource.resource_group_present", args, false)
	assert.Equal(t, true, first["result"])
	assert.Equal(t, "Resource group rg1 has been created.", first["comment"])
	assert.Contains(t, first["changes"], "new")
	assert.Equal(t, 1, clients.Mutations())

	t.Run("unchanged state is a no-op", func(t *testing.T) {
		second := apply(t, reg, "azurerm_resource.resource_group_present", args, false)
		assert.Equal(t, true, second["result"])
		assert.Equal(t, "Resource group rg1 is already present.", second["comment"])
		assert.Empty(t, second["changes"])
		assert.Equal(t, 1, clients.Mutations())
	})

	t.Run("changed tags update the group", func(t *testing.T) {
		changed := apply(t, reg, "azurerm_resource.resource_group_present", map[string]any{
			"name": "rg1", "location": "eastus", "tags": map[string]any{"env": "prod"},
		}, false)
		assert.Equal(t, true, changed["result"])
		assert.Equal(t, "Resource group rg1 has been updated.", changed["comment"])
		changes := changed["changes"].(map[string]any)
		require.Contains(t, changes, "tags")
		assert.Equal(t, map[string]string{"env": "prod"}, changes["tags"].(map[string]any)["new"])
		assert.Equal(t, 2, clients.Mutations())
	})

	t.Run("location changes are not tracked", func(t *testing.T) {
		moved := apply(t, reg, "azurerm_resource.resource_group_present", map[string]any{
			"name": "rg1", "location": "westus", "tags": map[string]any{"env": "prod"},
		}, false)
		assert.Equal(t, "Resource group rg1 is already present.", moved["comment"])
	})
}

func TestDryRun(t *testing.T) {
	reg, clients := newTestStates(t)
	clients.SeedResourceGroup("rg1", "eastus")

	t.Run("create", func(t *testing.T) {
		result := apply(t, reg, "azurerm_network.virtual_network_present", map[string]any{
			"name": "vnet1", "resource_group": "rg1", "address_prefixes": []any{"10.0.0.0/16"},
		}, true)
		assert.Nil(t, result["result"])
		assert.Equal(t, "Virtual network vnet1 would be created.", result["comment"])
		assert.Contains(t, result["changes"], "new")
	})

	t.Run("delete", func(t *testing.T) {
		result := apply(t, reg, "azurerm_resource.resource_group_absent", map[string]any{"name": "rg1"}, true)
		assert.Nil(t, result["result"])
		assert.Equal(t, "Resource group rg1 would be deleted.", result["comment"])
	})

	assert.Equal(t, 0, clients.Mutations())
}

func TestVirtualNetworkPresent(t *testing.T) {
	reg, clients := newTestStates(t)
	clients.SeedResourceGroup("rg1", "eastus")
	args := map[string]any{
		"name":             "vnet1",
		"resource_group":   "rg1",
		"address_prefixes": []any{"10.0.0.0/16"},
		"dns_servers":      []any{"10.0.0.4"},
	}

	created := apply(t, reg, "azurerm_network.virtual_network_present", args, false)
	require.Equal(t, true, created["result"], created["comment"])
	again := apply(t, reg, "azurerm_network.virtual_network_present", args, false)
	assert.Equal(t, "Virtual network vnet1 is already present.", again["comment"])

	args["address_prefixes"] = []any{"10.0.0.0/16", "10.1.0.0/16"}
	dry := apply(t, reg, "azurerm_network.virtual_network_present", args, true)
	assert.Nil(t, dry["result"])
	assert.Equal(t, "Virtual network vnet1 would be updated.", dry["comment"])
	assert.Contains(t, dry["changes"], "properties.addressSpace.addressPrefixes")
	assert.Equal(t, 1, clients.VirtualNetworkStore.Calls.Creates)

	t.Run("subnets", func(t *testing.T) {
		subnet := map[string]any{
			"name": "default", "virtual_network": "vnet1", "resource_group": "rg1", "address_prefix": "10.0.0.0/24",
		}
		assert.Equal(t, true, apply(t, reg, "azurerm_network.subnet_present", subnet, false)["result"])
		again := apply(t, reg, "azurerm_network.subnet_present", subnet, false)
		assert.Equal(t, "Subnet default is already present.", again["comment"])
	})
}

func TestAbsent(t *testing.T) {
	reg, clients := newTestStates(t)

	missing := apply(t, reg, "azurerm_resource.resource_group_absent", map[string]any{"name": "rg1"}, false)
	assert.Equal(t, true, missing["result"])
	assert.Equal(t, "Resource group rg1 was not found.", missing["comment"])
	assert.Empty(t, missing["changes"])

	clients.SeedResourceGroup("rg1", "eastus")
	deleted := apply(t, reg, "azurerm_resource.resource_group_absent", map[string]any{"name": "rg1"}, false)
	assert.Equal(t, true, deleted["result"])
	assert.Equal(t, "Resource group rg1 has been deleted.", deleted["comment"])
	assert.Equal(t, map[string]any{}, deleted["changes"].(map[string]any)["new"])
	assert.Equal(t, 0, clients.ResourceGroupStore.Len())
}

func TestLookupFailures(t *testing.T) {
	reg, clients := newTestStates(t)
	clients.ResourceGroupStore.Err = errors.New("service unavailable")

	result := apply(t, reg, "azurerm_resource.resource_group_present", map[string]any{"name": "rg1", "location": "eastus"}, false)
	assert.Equal(t, false, result["result"])
	assert.Equal(t, "Unable to look up Resource group rg1! (service unavailable)", result["comment"])

	absent := apply(t, reg, "azurerm_resource.resource_group_absent", map[string]any{"name": "rg1"}, false)
	assert.Equal(t, false, absent["result"])

	t.Run("credential errors are returned", func(t *testing.T) {
		clients.Err = &azure.CredentialError{Err: errors.New("no credential")}
		_, err := reg.Call(t.Context(), "azurerm_resource.resource_group_present", map[string]any{
			"name": "rg1", "location": "eastus", "connection_auth": connectionAuth,
		}, loader.CallOptions{})
		assert.True(t, azure.IsCredentialError(err))
	})
}

func TestSecretPresent(t *testing.T) {
	reg, clients := newTestStates(t)
	vaultURL := "https://vault1.vault.azure.net/"
	store := clients.SecretsFor(vaultURL)
	args := map[string]any{"name": "db", "vault_url": vaultURL, "value": "hunter2", "content_type": "text/plain"}

	created := apply(t, reg, "azurerm_keyvault_secret.present", args, false)
	assert.Equal(t, true, created["result"])
	assert.Equal(t, "REDACTED", created["changes"].(map[string]any)["new"].(map[string]any)["value"])

	again := apply(t, reg, "azurerm_keyvault_secret.present", args, false)
	assert.Equal(t, "Secret db is already present.", again["comment"])
	assert.Equal(t, 1, store.Versions("db"))

	t.Run("value changes are redacted and add a version", func(t *testing.T) {
		args["value"] = "correct horse"
		changed := apply(t, reg, "azurerm_keyvault_secret.present", args, false)
		assert.Equal(t, "Secret db has been updated.", changed["comment"])
		assert.Equal(t, map[string]any{"old": "REDACTED_OLD_VALUE", "new": "REDACTED_NEW_VALUE"},
			changed["changes"].(map[string]any)["value"])
		assert.Equal(t, 2, store.Versions("db"))
	})

	t.Run("property changes update the latest version", func(t *testing.T) {
		args["tags"] = map[string]any{"owner": "ops"}
		args["expires_on"] = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
		changed := apply(t, reg, "azurerm_keyvault_secret.present", args, false)
		changes := changed["changes"].(map[string]any)
		assert.Contains(t, changes, "tags")
		assert.Contains(t, changes, "expires_on")
		assert.NotContains(t, changes, "value")
		assert.Equal(t, 2, store.Versions("db"))

		again := apply(t, reg, "azurerm_keyvault_secret.present", args, false)
		assert.Equal(t, "Secret db is already present.", again["comment"])
	})
}

func TestSecretAbsent(t *testing.T) {
	modules.DeletePollInterval = 10 * time.Millisecond
	reg, clients := newTestStates(t)
	vaultURL := "https://vault1.vault.azure.net/"
	store := clients.SecretsFor(vaultURL)
	store.Seed("db", "hunter2")
	args := map[string]any{"name": "db", "vault_url": vaultURL}

	dry := apply(t, reg, "azurerm_keyvault_secret.absent", args, true)
	assert.Nil(t, dry["result"])
	assert.NotContains(t, dry["changes"].(map[string]any)["old"], "value")
	assert.Equal(t, 0, store.Mutations())

	args["purge"] = true
	deleted := apply(t, reg, "azurerm_keyvault_secret.absent", args, false)
	assert.Equal(t, true, deleted["result"], deleted["comment"])
	assert.Equal(t, "Secret db has been deleted and purged.", deleted["comment"])

	gone := apply(t, reg, "azurerm_keyvault_secret.absent", args, false)
	assert.Equal(t, "Secret db was not found.", gone["comment"])
}

func TestKeyPresent(t *testing.T) {
	reg, clients := newTestStates(t)
	vaultURL := "https://vault1.vault.azure.net/"
	store := clients.KeysFor(vaultURL)
	args := map[string]any{"name": "signing", "vault_url": vaultURL, "key_type": "rsa", "size": 2048}

	created := apply(t, reg, "azurerm_keyvault_key.present", args, false)
	assert.Equal(t, true, created["result"], created["comment"])
	again := apply(t, reg, "azurerm_keyvault_key.present", args, false)
	assert.Equal(t, "Key signing is already present.", again["comment"])

	t.Run("size changes create a new version", func(t *testing.T) {
		args["size"] = 4096
		changed := apply(t, reg, "azurerm_keyvault_key.present", args, false)
		assert.Equal(t, map[string]any{"old": 2048, "new": 4096}, changed["changes"].(map[string]any)["size"])
		assert.Equal(t, 2, store.Versions("signing"))
	})

	t.Run("attribute changes update the key", func(t *testing.T) {
		args["enabled"] = false
		changed := apply(t, reg, "azurerm_keyvault_key.present", args, false)
		assert.Equal(t, map[string]any{"old": true, "new": false}, changed["changes"].(map[string]any)["enabled"])
		assert.Equal(t, 2, store.Versions("signing"))
	})

	t.Run("absent", func(t *testing.T) {
		deleted := apply(t, reg, "azurerm_keyvault_key.absent", map[string]any{"name": "signing", "vault_url": vaultURL}, false)
		assert.Equal(t, "Key signing has been deleted.", deleted["comment"])
	})
}
