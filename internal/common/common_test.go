package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagged struct {
	Name     string  `json:"name"`
	Location *string `json:"location,omitempty"`
}

func TestConvertInterfaceToMap(t *testing.T) {
	m, err := ConvertInterfaceToMap(&tagged{Name: "rg1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "rg1"}, m)

	m, err = ConvertInterfaceToMap(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	var missing *tagged
	m, err = ConvertInterfaceToMap(missing)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestConvertSliceToMaps(t *testing.T) {
	location := "eastus"
	maps, err := ConvertSliceToMaps([]*tagged{{Name: "a", Location: &location}, nil, {Name: "b"}})
	require.NoError(t, err)
	require.Len(t, maps, 2)

	keyed := KeyByField(append(maps, map[string]any{"id": 1}), "name")
	assert.Equal(t, []string{"2", "a", "b"}, SortedKeys(keyed))
	assert.Equal(t, "eastus", keyed["a"].(map[string]any)["location"])
}

func TestPasswordComplexity(t *testing.T) {
	tests := []struct {
		password string
		expected int
	}{
		{"password", 1},
		{"Password", 2},
		{"Passw0rd", 3},
		{"Passw0rd!", 4},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.expected, PasswordComplexity(tt.password))
		})
	}
}

func TestStrings(t *testing.T) {
	assert.True(t, ContainsInsensitive("2021-04-01-Preview", "preview"))
	assert.Equal(t, "vm1", LastSegment("/subscriptions/s/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/vm1/"))
	assert.Equal(t, "name", LastSegment("name"))
	assert.Equal(t, "Succeeded", Capitalize("sUCCEEDED"))
	assert.Equal(t, "", Capitalize(""))
}

func TestUserAgent(t *testing.T) {
	agent := UserAgent()
	assert.LessOrEqual(t, len(agent), 24)
	assert.Contains(t, agent, "azurerm/")
}
