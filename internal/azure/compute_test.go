package azure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageReference(t *testing.T) {
	t.Run("marketplace image", func(t *testing.T) {
		ref, err := ParseImageReference("Canonical|UbuntuServer|18.04-LTS|latest")
		require.NoError(t, err)
		assert.Equal(t, "Canonical", *ref.Publisher)
		assert.Equal(t, "UbuntuServer", *ref.Offer)
		assert.Equal(t, "18.04-LTS", *ref.SKU)
		assert.Equal(t, "latest", *ref.Version)
		assert.Nil(t, ref.ID)
	})

	t.Run("image ID in any case", func(t *testing.T) {
		id := "/Subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/images/golden"
		ref, err := ParseImageReference(id)
		require.NoError(t, err)
		assert.Equal(t, id, *ref.ID)
		assert.Nil(t, ref.Publisher)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseImageReference("Canonical|UbuntuServer")
		assert.ErrorContains(t, err, "publisher|offer|sku|version")
	})
}

func TestCustomScriptHandler(t *testing.T) {
	tests := []struct {
		osType string
		want   ExtensionHandler
	}{
		{osType: "Linux", want: ExtensionHandler{Publisher: "Microsoft.Azure.Extensions", Type: "CustomScript", Version: "2.0"}},
		{osType: "", want: ExtensionHandler{Publisher: "Microsoft.Azure.Extensions", Type: "CustomScript", Version: "2.0"}},
		{osType: "windows", want: ExtensionHandler{Publisher: "Microsoft.Compute", Type: "CustomScriptExtension", Version: "1.8"}},
	}
	for _, tt := range tests {
		t.Run(tt.osType, func(t *testing.T) {
			assert.Equal(t, tt.want, CustomScriptHandler(tt.osType))
		})
	}
}
