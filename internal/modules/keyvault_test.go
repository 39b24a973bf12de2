package modules

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/loader"
)

const testVaultURL = "https://vault1.vault.azure.net/"

func TestVaultCreate(t *testing.T) {
	reg, clients := newTestRegistry(t)
	clients.SeedResourceGroup("rg1", "eastus")
	tenant := "11111111-1111-1111-1111-111111111111"

	result := call(t, reg, "azurerm_keyvault_vault.create_or_update", map[string]any{
		"name":           "vault1",
		"resource_group": "rg1",
		"tenant_id":      tenant,
		"sku":            "Standard",
		"access_policies": []any{
			map[string]any{
				"object_id":   "22222222-2222-2222-2222-222222222222",
				"permissions": map[string]any{"secrets": []any{"get", "list"}},
			},
		},
	})
	desc := result.(map[string]any)
	assert.Equal(t, "eastus", desc["location"])

	sku, _ := getPath(desc, "properties.sku")
	assert.Equal(t, map[string]any{"family": "A", "name": "standard"}, sku)
	uri, _ := getPath(desc, "properties.vaultUri")
	assert.Equal(t, testVaultURL, uri)

	policies, _ := getPath(desc, "properties.accessPolicies")
	require.Len(t, policies, 1)
	assert.Equal(t, tenant, policies.([]any)[0].(map[string]any)["tenantId"])

	t.Run("access policies are added and removed", func(t *testing.T) {
		policy := map[string]any{
			"tenant_id":   tenant,
			"object_id":   "33333333-3333-3333-3333-333333333333",
			"permissions": map[string]any{"keys": []any{"get"}},
		}
		result := call(t, reg, "azurerm_keyvault_vault.update_access_policy", map[string]any{
			"name":            "vault1",
			"resource_group":  "rg1",
			"operation_kind":  "ADD",
			"access_policies": []any{policy},
		})
		added, _ := getPath(result.(map[string]any), "properties.accessPolicies")
		assert.Len(t, added, 2)

		result = call(t, reg, "azurerm_keyvault_vault.update_access_policy", map[string]any{
			"name":            "vault1",
			"resource_group":  "rg1",
			"operation_kind":  "remove",
			"access_policies": []any{policy},
		})
		remaining, _ := getPath(result.(map[string]any), "properties.accessPolicies")
		assert.Len(t, remaining, 1)
	})

	t.Run("unknown operation kinds are rejected", func(t *testing.T) {
		_, err := reg.Call(t.Context(), "azurerm_keyvault_vault.update_access_policy", map[string]any{
			"name":            "vault1",
			"resource_group":  "rg1",
			"operation_kind":  "merge",
			"access_policies": []any{map[string]any{"object_id": "x"}},
		}, loader.CallOptions{})
		assert.ErrorIs(t, err, loader.ErrInvalidArgument)
	})

	t.Run("subscription listing", func(t *testing.T) {
		vaults := call(t, reg, "azurerm_keyvault_vault.list_by_subscription", map[string]any{"resource_group": "ignored"})
		assert.Contains(t, vaults.(map[string]any), "vault1")
	})

	t.Run("deleted vaults can be purged", func(t *testing.T) {
		call(t, reg, "azurerm_keyvault_vault.delete", map[string]any{"name": "vault1", "resource_group": "rg1"})
		deleted := call(t, reg, "azurerm_keyvault_vault.list_deleted", map[string]any{})
		assert.Contains(t, deleted.(map[string]any), "vault1")
		assert.Equal(t, true, call(t, reg, "azurerm_keyvault_vault.purge_deleted",
			map[string]any{"name": "vault1", "location": "eastus"}))
	})
}

func TestSecrets(t *testing.T) {
	prev := DeletePollInterval
	DeletePollInterval = 10 * time.Millisecond
	t.Cleanup(func() { DeletePollInterval = prev })

	reg, clients := newTestRegistry(t)
	identity := map[string]any{"name": "db-password", "vault_url": testVaultURL}

	first := call(t, reg, "azurerm_keyvault_secret.set_secret", map[string]any{
		"name": "db-password", "value": "hunter2", "vault_url": testVaultURL,
		"content_type": "text/plain", "tags": map[string]any{"app": "db"},
	}).(map[string]any)
	assert.Equal(t, "hunter2", first["value"])
	call(t, reg, "azurerm_keyvault_secret.set_secret", map[string]any{
		"name": "db-password", "value": "correct horse", "vault_url": testVaultURL,
	})
	assert.Equal(t, 2, clients.SecretsFor(testVaultURL).Versions("db-password"))

	t.Run("get returns the latest version", func(t *testing.T) {
		secret := call(t, reg, "azurerm_keyvault_secret.get_secret", identity).(map[string]any)
		assert.Equal(t, "correct horse", secret["value"])
	})

	t.Run("lists are keyed by name and by version", func(t *testing.T) {
		secrets := call(t, reg, "azurerm_keyvault_secret.list_properties_of_secrets",
			map[string]any{"vault_url": testVaultURL}).(map[string]any)
		assert.Len(t, secrets, 1)
		assert.Contains(t, secrets, "db-password")

		versions := call(t, reg, "azurerm_keyvault_secret.list_properties_of_secret_versions", identity).(map[string]any)
		assert.Len(t, versions, 2)
		_, version := vaultItem(first["id"].(string))
		assert.Contains(t, versions, version)
	})

	t.Run("invalid vault URLs are rejected", func(t *testing.T) {
		_, err := reg.Call(t.Context(), "azurerm_keyvault_secret.get_secret",
			map[string]any{"name": "db-password", "vault_url": "not a url"}, loader.CallOptions{})
		assert.ErrorIs(t, err, loader.ErrInvalidArgument)
	})

	var backup string
	t.Run("backup is base64", func(t *testing.T) {
		backup = call(t, reg, "azurerm_keyvault_secret.backup_secret", identity).(string)
		_, err := base64.StdEncoding.DecodeString(backup)
		assert.NoError(t, err)
	})

	t.Run("delete waits for the deletion", func(t *testing.T) {
		deleted := call(t, reg, "azurerm_keyvault_secret.delete_secret", map[string]any{
			"name": "db-password", "vault_url": testVaultURL, "wait": true,
		}).(map[string]any)
		assert.NotEmpty(t, deleted["recoveryId"])

		listed := call(t, reg, "azurerm_keyvault_secret.list_deleted_secrets",
			map[string]any{"vault_url": testVaultURL}).(map[string]any)
		assert.Contains(t, listed, "db-password")
	})

	t.Run("purged secrets restore from backup", func(t *testing.T) {
		assert.Equal(t, true, call(t, reg, "azurerm_keyvault_secret.purge_deleted_secret", identity))
		restored := call(t, reg, "azurerm_keyvault_secret.restore_secret_backup", map[string]any{
			"backup": backup, "vault_url": testVaultURL,
		}).(map[string]any)
		assert.Equal(t, "correct horse", restored["value"])
	})

	t.Run("missing secrets are error mappings", func(t *testing.T) {
		result, err := reg.Call(t.Context(), "azurerm_keyvault_secret.get_secret",
			map[string]any{"name": "missing", "vault_url": testVaultURL}, loader.CallOptions{})
		require.NoError(t, err)
		_, failed := loader.IsErrorResult(result)
		assert.True(t, failed)
	})
}

func TestKeyType(t *testing.T) {
	tests := []struct {
		kind string
		hsm  bool
		want azkeys.KeyType
	}{
		{kind: "rsa", want: azkeys.KeyTypeRSA},
		{kind: "RSA", hsm: true, want: azkeys.KeyTypeRSAHSM},
		{kind: "ec", hsm: true, want: azkeys.KeyTypeECHSM},
		{kind: "EC-HSM", want: azkeys.KeyTypeECHSM},
		{kind: "oct", want: azkeys.KeyTypeOct},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, err := KeyType(tt.kind, tt.hsm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := KeyType("dsa", false)
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	reg, clients := newTestRegistry(t)

	t.Run("rsa keys", func(t *testing.T) {
		key := call(t, reg, "azurerm_keyvault_key.create_rsa_key", map[string]any{
			"name": "signing", "vault_url": testVaultURL, "size": 3072,
			"key_operations": []any{"Sign", "Verify"},
		}).(map[string]any)
		kty, _ := getPath(key, "key.kty")
		assert.Equal(t, "RSA", kty)
		ops, _ := getPath(key, "key.key_ops")
		assert.Equal(t, []any{"sign", "verify"}, ops)
	})

	t.Run("ec keys in hardware", func(t *testing.T) {
		key := call(t, reg, "azurerm_keyvault_key.create_ec_key", map[string]any{
			"name": "exchange", "vault_url": testVaultURL, "curve": "p-256", "hardware_protected": true,
		}).(map[string]any)
		kty, _ := getPath(key, "key.kty")
		assert.Equal(t, "EC-HSM", kty)
		crv, _ := getPath(key, "key.crv")
		assert.Equal(t, "P-256", crv)
	})

	t.Run("create_key needs a known type", func(t *testing.T) {
		result, err := reg.Call(t.Context(), "azurerm_keyvault_key.create_key", map[string]any{
			"name": "bad", "vault_url": testVaultURL, "key_type": "dsa",
		}, loader.CallOptions{})
		require.NoError(t, err)
		msg, failed := loader.IsErrorResult(result)
		assert.True(t, failed)
		assert.Contains(t, msg, "dsa")
		assert.Equal(t, 0, clients.KeysFor(testVaultURL).Versions("bad"))
	})

	t.Run("list is keyed by name", func(t *testing.T) {
		keys := call(t, reg, "azurerm_keyvault_key.list", map[string]any{"vault_url": testVaultURL}).(map[string]any)
		assert.Len(t, keys, 2)
		assert.Contains(t, keys, "signing")
		assert.Contains(t, keys, "exchange")
	})

	t.Run("delete and recover", func(t *testing.T) {
		identity := map[string]any{"name": "signing", "vault_url": testVaultURL}
		call(t, reg, "azurerm_keyvault_key.begin_delete_key", identity)
		call(t, reg, "azurerm_keyvault_key.get_deleted_key", identity)
		deleted := call(t, reg, "azurerm_keyvault_key.list_deleted_keys", map[string]any{"vault_url": testVaultURL}).(map[string]any)
		assert.Len(t, deleted, 1)
		assert.Contains(t, deleted, "signing")
		recovered := call(t, reg, "azurerm_keyvault_key.begin_recover_deleted_key", identity).(map[string]any)
		kty, _ := getPath(recovered, "key.kty")
		assert.Equal(t, "RSA", kty)
	})

	t.Run("import_key stores the given material", func(t *testing.T) {
		modulus := base64.RawURLEncoding.EncodeToString([]byte{0xc0, 0xff, 0xee, 0x01})
		key := call(t, reg, "azurerm_keyvault_key.import_key", map[string]any{
			"name": "imported", "vault_url": testVaultURL, "key_type": "rsa",
			"n": modulus, "e": "AQAB", "tags": map[string]any{"origin": "byok"},
		}).(map[string]any)
		kty, _ := getPath(key, "key.kty")
		assert.Equal(t, "RSA", kty)
		n, _ := getPath(key, "key.n")
		assert.Equal(t, modulus, n)
		kid, _ := getPath(key, "key.kid")
		assert.Contains(t, kid, testVaultURL+"keys/imported/")
		assert.Equal(t, map[string]any{"origin": "byok"}, key["tags"])
		assert.Equal(t, 1, clients.KeysFor(testVaultURL).Versions("imported"))
	})

	t.Run("import_key rejects malformed members", func(t *testing.T) {
		result, err := reg.Call(t.Context(), "azurerm_keyvault_key.import_key", map[string]any{
			"name": "broken", "vault_url": testVaultURL, "key_type": "ec", "x": "not base64!",
		}, loader.CallOptions{})
		require.NoError(t, err)
		msg, failed := loader.IsErrorResult(result)
		assert.True(t, failed)
		assert.Contains(t, msg, "x must be base64url encoded")
		assert.Equal(t, 0, clients.KeysFor(testVaultURL).Versions("broken"))
	})
}
