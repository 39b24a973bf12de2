package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/loader"
)

var storageTemplate = map[string]any{
	"$schema":        "https://schema.management.azure.com/schemas/2019-04-01/deploymentTemplate.json#",
	"contentVersion": "1.0.0.0",
	"resources": []any{
		map[string]any{"name": "logs", "type": "Microsoft.Storage/storageAccounts"},
		map[string]any{"name": "web", "type": "Microsoft.Web/sites"},
	},
}

func TestDeployments(t *testing.T) {
	reg, clients := newTestRegistry(t)
	clients.SeedResourceGroup("rg1", "eastus")

	softFail := func(t *testing.T, name string, args map[string]any) map[string]any {
		t.Helper()
		result, err := reg.Call(t.Context(), name, args, loader.CallOptions{})
		require.NoError(t, err)
		_, failed := loader.IsErrorResult(result)
		require.True(t, failed, "expected an error mapping, got %v", result)
		return result.(map[string]any)
	}

	t.Run("inline template is validated then deployed", func(t *testing.T) {
		deployed := call(t, reg, "azurerm_resource.deployment_create_or_update", map[string]any{
			"name":            "web",
			"resource_group":  "rg1",
			"deploy_template": storageTemplate,
			"deploy_params":   `{"sku": {"value": "Standard_LRS"}}`,
		}).(map[string]any)

		state, _ := getPath(deployed, "properties.provisioningState")
		assert.Equal(t, "Succeeded", state)
		mode, _ := getPath(deployed, "properties.mode")
		assert.Equal(t, "Incremental", mode)
		level, _ := getPath(deployed, "properties.debugSetting.detailLevel")
		assert.Equal(t, "none", level)
		sku, _ := getPath(deployed, "properties.parameters.sku.value")
		assert.Equal(t, "Standard_LRS", sku)
		require.Len(t, clients.DeploymentStore.Submitted, 1)
	})

	t.Run("operations are keyed by operation ID", func(t *testing.T) {
		operations := call(t, reg, "azurerm_resource.deployment_operations_list", map[string]any{
			"name": "web", "resource_group": "rg1",
		}).(map[string]any)
		assert.Len(t, operations, 2)
		assert.Contains(t, operations, "1")

		limited := call(t, reg, "azurerm_resource.deployment_operations_list", map[string]any{
			"name": "web", "resource_group": "rg1", "result_limit": "1",
		}).(map[string]any)
		assert.Len(t, limited, 1)

		operation := call(t, reg, "azurerm_resource.deployment_operation_get", map[string]any{
			"operation": "2", "deployment": "web", "resource_group": "rg1",
		}).(map[string]any)
		target, _ := getPath(operation, "properties.targetResource.resourceName")
		assert.Equal(t, "web", target)
	})

	t.Run("links", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "template.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"contentVersion": "1.0.0.0", "resources": []}`), 0o600))

		call(t, reg, "azurerm_resource.deployment_create_or_update", map[string]any{
			"name":            "from-file",
			"resource_group":  "rg1",
			"deploy_mode":     "complete",
			"debug_setting":   map[string]any{"detail_level": "requestContent"},
			"template_link":   map[string]any{"uri": path},
			"parameters_link": "https://example.com/params.json",
		})
		submitted := clients.DeploymentStore.Submitted[len(clients.DeploymentStore.Submitted)-1]
		require.NotNil(t, submitted.Properties)
		assert.Equal(t, armresources.DeploymentModeComplete, *submitted.Properties.Mode)
		assert.Equal(t, "requestContent", *submitted.Properties.DebugSetting.DetailLevel)
		assert.Nil(t, submitted.Properties.TemplateLink)
		assert.Equal(t, "1.0.0.0", submitted.Properties.Template.(map[string]any)["contentVersion"])
		require.NotNil(t, submitted.Properties.ParametersLink)
		assert.Equal(t, "https://example.com/params.json", *submitted.Properties.ParametersLink.URI)

		call(t, reg, "azurerm_resource.deployment_create_or_update", map[string]any{
			"name":           "remote",
			"resource_group": "rg1",
			"template_link":  "https://example.com/template.json",
		})
		submitted = clients.DeploymentStore.Submitted[len(clients.DeploymentStore.Submitted)-1]
		assert.Nil(t, submitted.Properties.Template)
		assert.Equal(t, "https://example.com/template.json", *submitted.Properties.TemplateLink.URI)
	})

	t.Run("rejected deployments are not submitted", func(t *testing.T) {
		tests := []struct {
			name  string
			args  map[string]any
			setup func()
			want  string
		}{
			{
				name: "validation error",
				args: map[string]any{"deploy_template": storageTemplate},
				setup: func() {
					clients.DeploymentStore.ValidationError = &armresources.ErrorResponse{
						Code: to.Ptr("InvalidTemplate"), Message: to.Ptr("resource type is not known"),
					}
				},
				want: "InvalidTemplate: resource type is not known",
			},
			{name: "unknown mode", args: map[string]any{"deploy_template": storageTemplate, "deploy_mode": "partial"}, want: "deploy_mode must be"},
			{name: "no template", args: map[string]any{}, want: "deploy_template or template_link is required"},
			{name: "template is not an object", args: map[string]any{"deploy_template": "[1, 2]"}, want: "deploy_template must be a JSON object"},
			{name: "link without uri", args: map[string]any{"template_link": map[string]any{"version": "1"}}, want: "template_link has no uri"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				clients.DeploymentStore.ValidationError = nil
				if tt.setup != nil {
					tt.setup()
				}
				t.Cleanup(func() { clients.DeploymentStore.ValidationError = nil })

				before := clients.DeploymentStore.Mutations()
				args := map[string]any{"name": "bad", "resource_group": "rg1"}
				for k, v := range tt.args {
					args[k] = v
				}
				result := softFail(t, "azurerm_resource.deployment_create_or_update", args)
				assert.Contains(t, result["error"], tt.want)
				assert.Equal(t, before, clients.DeploymentStore.Mutations())
			})
		}
	})

	t.Run("deployment_validate reports template errors", func(t *testing.T) {
		args := map[string]any{"name": "check", "resource_group": "rg1", "deploy_template": storageTemplate}
		valid := call(t, reg, "azurerm_resource.deployment_validate", args).(map[string]any)
		state, _ := getPath(valid, "properties.provisioningState")
		assert.Equal(t, "Succeeded", state)

		clients.DeploymentStore.ValidationError = &armresources.ErrorResponse{Code: to.Ptr("InvalidTemplate")}
		t.Cleanup(func() { clients.DeploymentStore.ValidationError = nil })
		result := softFail(t, "azurerm_resource.deployment_validate", args)
		assert.Contains(t, result["error"], "failed validation")
	})

	t.Run("get, list and export", func(t *testing.T) {
		ref := map[string]any{"name": "web", "resource_group": "rg1"}
		assert.Equal(t, true, call(t, reg, "azurerm_resource.deployment_check_existence", ref))
		assert.Equal(t, false, call(t, reg, "azurerm_resource.deployment_check_existence",
			map[string]any{"name": "ghost", "resource_group": "rg1"}))

		deployment := call(t, reg, "azurerm_resource.deployment_get", ref).(map[string]any)
		assert.Equal(t, "web", deployment["name"])

		deployments := call(t, reg, "azurerm_resource.deployments_list", map[string]any{"resource_group": "rg1"}).(map[string]any)
		assert.Len(t, deployments, 3)
		assert.Contains(t, deployments, "from-file")

		exported := call(t, reg, "azurerm_resource.deployment_export_template", ref).(map[string]any)
		resources, _ := getPath(exported, "template.resources")
		assert.Len(t, resources, 2)
	})

	t.Run("cancel reports its result", func(t *testing.T) {
		result := call(t, reg, "azurerm_resource.deployment_cancel", map[string]any{"name": "web", "resource_group": "rg1"})
		assert.Equal(t, map[string]any{"result": true}, result)
		deployment := call(t, reg, "azurerm_resource.deployment_get", map[string]any{"name": "web", "resource_group": "rg1"}).(map[string]any)
		state, _ := getPath(deployment, "properties.provisioningState")
		assert.Equal(t, "Canceled", state)

		failed := softFail(t, "azurerm_resource.deployment_cancel", map[string]any{"name": "ghost", "resource_group": "rg1"})
		assert.Equal(t, false, failed["result"])
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, true, call(t, reg, "azurerm_resource.deployment_delete", map[string]any{"name": "web", "resource_group": "rg1"}))
		assert.Equal(t, 2, clients.DeploymentStore.Len())

		result := softFail(t, "azurerm_resource.deployment_operations_list", map[string]any{"name": "web", "resource_group": "rg1"})
		assert.NotEmpty(t, result["error"])
	})
}
