package modules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/testing/mocks/azuremock"
)

func TestPolicy(t *testing.T) {
	reg, clients := newTestRegistry(t)
	builtIn := clients.PolicyDefinitionStore.SeedBuiltIn("allowed-locations", "Allowed locations")
	subscription := "/subscriptions/" + azuremock.SubscriptionID
	group := subscription + "/resourceGroups/rg1"

	softFail := func(t *testing.T, name string, args map[string]any) string {
		t.Helper()
		result, err := reg.Call(t.Context(), name, args, loader.CallOptions{})
		require.NoError(t, err)
		msg, failed := loader.IsErrorResult(result)
		require.True(t, failed, "expected an error mapping, got %v", result)
		return msg
	}

	t.Run("definitions", func(t *testing.T) {
		rule := map[string]any{
			"if":   map[string]any{"field": "type", "equals": "Microsoft.Storage/storageAccounts"},
			"then": map[string]any{"effect": "audit"},
		}
		definition := call(t, reg, "azurerm_resource.policy_definition_create_or_update", map[string]any{
			"name":         "audit-storage",
			"policy_rule":  rule,
			"display_name": "Audit storage accounts",
			"mode":         "All",
		}).(map[string]any)
		effect, _ := getPath(definition, "properties.policyRule.then.effect")
		assert.Equal(t, "audit", effect)
		policyType, _ := getPath(definition, "properties.policyType")
		assert.Equal(t, "Custom", policyType)

		got := call(t, reg, "azurerm_resource.policy_definition_get", map[string]any{"name": "audit-storage"}).(map[string]any)
		assert.Equal(t, "Audit storage accounts", got["properties"].(map[string]any)["displayName"])
	})

	t.Run("the policy rule must be a mapping", func(t *testing.T) {
		before := clients.PolicyDefinitionStore.Mutations()
		msg := softFail(t, "azurerm_resource.policy_definition_create_or_update", map[string]any{
			"name": "broken", "policy_rule": "deny everything",
		})
		assert.Equal(t, "The policy rule must be a dictionary!", msg)
		assert.Equal(t, before, clients.PolicyDefinitionStore.Mutations())
	})

	t.Run("definitions list", func(t *testing.T) {
		all := call(t, reg, "azurerm_resource.policy_definitions_list", map[string]any{}).(map[string]any)
		assert.Len(t, all, 2)
		assert.Contains(t, all, "allowed-locations")

		custom := call(t, reg, "azurerm_resource.policy_definitions_list", map[string]any{"hide_builtin": "true"}).(map[string]any)
		assert.Len(t, custom, 1)
		assert.Contains(t, custom, "audit-storage")
	})

	t.Run("assignments resolve definitions by name", func(t *testing.T) {
		assignment := call(t, reg, "azurerm_resource.policy_assignment_create", map[string]any{
			"name":            "locations",
			"scope":           subscription,
			"definition_name": "allowed-locations",
			"parameters":      map[string]any{"listOfAllowedLocations": []any{"eastus"}},
		}).(map[string]any)
		id, _ := getPath(assignment, "properties.policyDefinitionId")
		assert.Equal(t, *builtIn.ID, id)
		allowed, _ := getPath(assignment, "properties.parameters.listOfAllowedLocations.value")
		assert.Equal(t, []any{"eastus"}, allowed)

		call(t, reg, "azurerm_resource.policy_assignment_create", map[string]any{
			"name":             "audit",
			"scope":            group,
			"definition_name":  "audit-storage",
			"enforcement_mode": "DoNotEnforce",
		})

		got := call(t, reg, "azurerm_resource.policy_assignment_get", map[string]any{"name": "audit", "scope": group}).(map[string]any)
		mode, _ := getPath(got, "properties.enforcementMode")
		assert.Equal(t, "DoNotEnforce", mode)
	})

	t.Run("unknown definitions create nothing", func(t *testing.T) {
		before := clients.PolicyAssignmentStore.Mutations()
		msg := softFail(t, "azurerm_resource.policy_assignment_create", map[string]any{
			"name": "ghost", "scope": subscription, "definition_name": "no-such-policy",
		})
		assert.Equal(t, `The policy definition named "no-such-policy" could not be found.`, msg)
		assert.Equal(t, before, clients.PolicyAssignmentStore.Mutations())
	})

	t.Run("assignment lists", func(t *testing.T) {
		all := call(t, reg, "azurerm_resource.policy_assignments_list", map[string]any{}).(map[string]any)
		assert.Len(t, all, 2)

		inGroup := call(t, reg, "azurerm_resource.policy_assignments_list_for_resource_group",
			map[string]any{"resource_group": "rg1"}).(map[string]any)
		assert.Len(t, inGroup, 1)
		assert.Contains(t, inGroup, "audit")
	})

	t.Run("deletes report a boolean", func(t *testing.T) {
		assert.Equal(t, true, call(t, reg, "azurerm_resource.policy_assignment_delete",
			map[string]any{"name": "audit", "scope": group}))
		assert.Equal(t, false, call(t, reg, "azurerm_resource.policy_assignment_delete",
			map[string]any{"name": "audit", "scope": group}))
		assert.Equal(t, 1, clients.PolicyAssignmentStore.Len())

		assert.Equal(t, true, call(t, reg, "azurerm_resource.policy_definition_delete", map[string]any{"name": "audit-storage"}))
		assert.Equal(t, false, call(t, reg, "azurerm_resource.policy_definition_delete", map[string]any{"name": "audit-storage"}))
	})

	t.Run("credential failures are returned from deletes", func(t *testing.T) {
		clients.Err = &azure.CredentialError{Err: errors.New("expired")}
		t.Cleanup(func() { clients.Err = nil })

		result, err := reg.Call(t.Context(), "azurerm_resource.policy_definition_delete",
			map[string]any{"name": "allowed-locations"}, loader.CallOptions{})
		assert.Nil(t, result)
		assert.True(t, azure.IsCredentialError(err))
	})

	t.Run("policy errors are titled by family", func(t *testing.T) {
		spec, ok := reg.Get("azurerm_resource.policy_definitions_list")
		require.True(t, ok)
		assert.Equal(t, "policy", spec.Family)
	})
}
