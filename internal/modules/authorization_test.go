package modules

import (
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/testing/mocks/azuremock"
)

const readerRoleID = "/subscriptions/" + azuremock.SubscriptionID +
	"/providers/Microsoft.Authorization/roleDefinitions/acdd72a7-3385-48ef-bd42-f606fba81ae7"

func TestRoleAssignments(t *testing.T) {
	reg, clients := newTestRegistry(t)
	clients.RoleDefinitionStore.Items = []*armauthorization.RoleDefinition{{
		ID:         to.Ptr(readerRoleID),
		Name:       to.Ptr("acdd72a7-3385-48ef-bd42-f606fba81ae7"),
		Properties: &armauthorization.RoleDefinitionProperties{RoleName: to.Ptr("Reader")},
	}}
	principal := "44444444-4444-4444-4444-444444444444"

	tests := []struct {
		name string
		role string
	}{
		{name: "by role name", role: "Reader"},
		{name: "by GUID", role: "acdd72a7-3385-48ef-bd42-f606fba81ae7"},
		{name: "by ID", role: readerRoleID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignment := call(t, reg, "azurerm_authorization.role_assignment_create", map[string]any{
				"role_definition_id": tt.role,
				"principal_id":       principal,
			}).(map[string]any)
			roleID, _ := getPath(assignment, "properties.roleDefinitionId")
			assert.Equal(t, readerRoleID, roleID)
			scope, _ := getPath(assignment, "properties.scope")
			assert.Equal(t, "/subscriptions/"+azuremock.SubscriptionID, scope)
			assert.NotEmpty(t, assignment["name"])
		})
	}

	t.Run("unknown role names fail", func(t *testing.T) {
		result, err := reg.Call(t.Context(), "azurerm_authorization.role_assignment_create", map[string]any{
			"role_definition_id": "Owner",
			"principal_id":       principal,
		}, loader.CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"error": `role definition "Owner": resource not found`}, result)
	})

	t.Run("list and delete", func(t *testing.T) {
		listed := call(t, reg, "azurerm_authorization.role_assignments_list", map[string]any{}).(map[string]any)
		assert.Len(t, listed, 3)

		call(t, reg, "azurerm_authorization.role_assignment_create", map[string]any{
			"name": "fixed", "role_definition_id": "Reader", "principal_id": principal,
		})
		assert.Equal(t, true, call(t, reg, "azurerm_authorization.role_assignment_delete", map[string]any{"name": "fixed"}))
		assert.Len(t, clients.RoleAssignmentStore.Items, 3)
	})

	t.Run("definitions", func(t *testing.T) {
		definitions := call(t, reg, "azurerm_authorization.role_definitions_list", map[string]any{}).(map[string]any)
		assert.Contains(t, definitions, "acdd72a7-3385-48ef-bd42-f606fba81ae7")
		definition := call(t, reg, "azurerm_authorization.role_definition_get", map[string]any{"role_id": readerRoleID}).(map[string]any)
		name, _ := getPath(definition, "properties.roleName")
		assert.Equal(t, "Reader", name)
	})
}

func TestStorageAccounts(t *testing.T) {
	reg, clients := newTestRegistry(t)
	clients.StorageAccountStore.Put(azure.Ref{ResourceGroup: "rg1", Name: "files"},
		armstorage.Account{Location: to.Ptr("eastus"), Kind: to.Ptr(armstorage.KindStorageV2)})
	args := map[string]any{"name": "files", "resource_group": "rg1"}

	accounts := call(t, reg, "azurerm_storage.accounts_list", map[string]any{}).(map[string]any)
	assert.Contains(t, accounts, "files")

	keys := call(t, reg, "azurerm_storage.account_list_keys", args).(map[string]any)
	require.Contains(t, keys, "key1")
	assert.Equal(t, "a2V5MQ==", keys["key1"].(map[string]any)["value"])

	assert.Equal(t, true, call(t, reg, "azurerm_storage.account_delete", args))
	assert.Equal(t, 0, clients.StorageAccountStore.Len())
}
