package modules

import (
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/models"
)

func TestSchemaDescriptor(t *testing.T) {
	t.Run("maps arguments onto dotted paths", func(t *testing.T) {
		desc, err := virtualNetworkSchema.descriptor(models.BasicConfig{
			"location":         "eastus",
			"tags":             map[string]any{"env": "dev"},
			"address_prefixes": "10.0.0.0/16,10.1.0.0/16",
			"unrelated":        true,
		})
		require.NoError(t, err)

		assert.Equal(t, "eastus", desc["location"])
		assert.Equal(t, map[string]string{"env": "dev"}, desc["tags"])
		prefixes, ok := getPath(desc, "properties.addressSpace.addressPrefixes")
		require.True(t, ok)
		assert.Equal(t, []string{"10.0.0.0/16", "10.1.0.0/16"}, prefixes)
		assert.NotContains(t, desc, "unrelated")
	})

	t.Run("properties are merged verbatim", func(t *testing.T) {
		desc, err := virtualNetworkSchema.descriptor(models.BasicConfig{
			"address_prefixes": []any{"10.0.0.0/16"},
			"properties": map[string]any{
				"addressSpace": map[string]any{"extra": "kept"},
				"flowTimeoutInMinutes": 10,
			},
		})
		require.NoError(t, err)

		space, ok := getPath(desc, "properties.addressSpace")
		require.True(t, ok)
		assert.Equal(t, map[string]any{
			"addressPrefixes": []string{"10.0.0.0/16"},
			"extra":           "kept",
		}, space)
		timeout, _ := getPath(desc, "properties.flowTimeoutInMinutes")
		assert.Equal(t, 10, timeout)
	})

	t.Run("conversion failures name the argument", func(t *testing.T) {
		_, err := availabilitySetSchema.descriptor(models.BasicConfig{
			"platform_fault_domain_count": "many",
		})
		assert.ErrorContains(t, err, "platform_fault_domain_count")
	})

	t.Run("nested element schemas", func(t *testing.T) {
		desc, err := networkSecurityGroupSchema.descriptor(models.BasicConfig{
			"security_rules": []any{
				map[string]any{"name": "ssh", "priority": "100", "access": "Allow"},
			},
		})
		require.NoError(t, err)
		rules, _ := getPath(desc, "properties.securityRules")
		require.Len(t, rules, 1)
		rule := rules.([]any)[0].(map[string]any)
		assert.Equal(t, "ssh", rule["name"])
		priority, _ := getPath(rule, "properties.priority")
		assert.Equal(t, int64(100), priority)
	})
}

func TestAsSKU(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{in: "aligned", want: map[string]any{"name": "Aligned"}},
		{in: "Classic", want: map[string]any{"name": "Classic"}},
		{in: "Premium_LRS", want: map[string]any{"name": "Premium_LRS"}},
		{in: map[string]any{"name": "Standard", "tier": "Regional"}, want: map[string]any{"name": "Standard", "tier": "Regional"}},
	}
	for _, tt := range tests {
		got, err := asSKU(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestBuild(t *testing.T) {
	t.Run("descriptor becomes a model", func(t *testing.T) {
		set, err := build[armcompute.AvailabilitySet](map[string]any{
			"location": "eastus",
			"sku":      map[string]any{"name": "Aligned"},
			"properties": map[string]any{
				"platformFaultDomainCount": 2,
			},
		})
		require.NoError(t, err)
		require.NotNil(t, set.SKU)
		assert.Equal(t, "Aligned", *set.SKU.Name)
		assert.Equal(t, int32(2), *set.Properties.PlatformFaultDomainCount)
	})

	t.Run("schema mismatch is a build error", func(t *testing.T) {
		_, err := build[armcompute.AvailabilitySet](map[string]any{
			"properties": map[string]any{
				"platformFaultDomainCount": "two",
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "The object model could not be built.")
	})
}
