package states

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/azure"
)

const stateFile = `
rg1:
  azurerm_resource.resource_group_present:
    - location: eastus
    - tags:
        env: dev

vnet1:
  azurerm_network.virtual_network_present:
    - resource_group: rg1
    - address_prefixes:
        - 10.0.0.0/16

default:
  azurerm_network.subnet_present:
    name: default
    virtual_network: vnet1
    resource_group: rg1
    address_prefix: 10.0.0.0/24
`

func TestParse(t *testing.T) {
	decls, err := Parse([]byte(stateFile))
	require.NoError(t, err)
	require.Len(t, decls, 3)

	assert.Equal(t, "rg1", decls[0].ID)
	assert.Equal(t, "azurerm_resource.resource_group_present", decls[0].Function)
	assert.Equal(t, "rg1", decls[0].Args["name"])
	assert.Equal(t, map[string]any{"env": "dev"}, decls[0].Args["tags"])

	assert.Equal(t, "vnet1", decls[1].ID)
	assert.Equal(t, []any{"10.0.0.0/16"}, decls[1].Args["address_prefixes"])
	assert.Equal(t, "vnet1", decls[2].Args["virtual_network"])

	t.Run("invalid documents", func(t *testing.T) {
		for _, doc := range []string{
			"- a\n- b\n",
			"rg1: just a string\n",
			"rg1:\n  fn: 3\n",
		} {
			_, err := Parse([]byte(doc))
			assert.Error(t, err, doc)
		}
	})

	t.Run("empty documents", func(t *testing.T) {
		decls, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, decls)
	})
}

func TestRunner(t *testing.T) {
	reg, clients := newTestStates(t)
	path := filepath.Join(t.TempDir(), "network.yaml")
	require.NoError(t, os.WriteFile(path, []byte(stateFile), 0o600))

	decls, err := LoadFile(path)
	require.NoError(t, err)

	runner := &Runner{Registry: reg, Defaults: map[string]any{"connection_auth": connectionAuth}}

	t.Run("dry run", func(t *testing.T) {
		runner.Test = true
		summary, err := runner.Run(t.Context(), decls)
		require.NoError(t, err)
		require.Len(t, summary.Results, 3)
		for _, r := range summary.Results {
			assert.Nil(t, r.Result.Result, r.ID)
		}
		assert.Equal(t, 0, clients.Mutations())
	})

	t.Run("apply", func(t *testing.T) {
		runner.Test = false
		summary, err := runner.Run(t.Context(), decls)
		require.NoError(t, err)
		assert.True(t, summary.OK(), "%+v", summary.Results)
		assert.Equal(t, 3, summary.Succeeded)
		assert.Equal(t, 3, summary.Changed)
	})

	t.Run("second apply changes nothing", func(t *testing.T) {
		before := clients.Mutations()
		summary, err := runner.Run(t.Context(), decls)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Changed)
		assert.Equal(t, before, clients.Mutations())
	})

	t.Run("unknown functions fail the declaration", func(t *testing.T) {
		summary, err := runner.Run(t.Context(), []Declaration{{ID: "x", Function: "azurerm_nope.present", Args: map[string]any{}}})
		require.Error(t, err)
		require.Len(t, summary.Results, 1)
		assert.Equal(t, 1, summary.Failed)
	})

	t.Run("credential errors stop the run", func(t *testing.T) {
		clients.Err = &azure.CredentialError{Err: assert.AnError}
		defer func() { clients.Err = nil }()
		summary, err := runner.Run(t.Context(), decls)
		assert.True(t, azure.IsCredentialError(err))
		assert.Len(t, summary.Results, 1)
	})
}

func TestRunnerNotFoundIsNotAFailure(t *testing.T) {
	reg, clients := newTestStates(t)
	runner := &Runner{Registry: reg, Defaults: map[string]any{"connection_auth": connectionAuth}}
	summary, err := runner.Run(t.Context(), []Declaration{{
		ID: "old", Function: "azurerm_network.public_ip_address_absent",
		Args: map[string]any{"name": "old", "resource_group": "rg1"},
	}})
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, 0, clients.Mutations())
	assert.Equal(t, 0, summary.Changed)
}

const templatedStateFile = `
rg1:
  azurerm_resource.resource_group_present:
    - location: ${ .vars.location }

vnet1:
  azurerm_network.virtual_network_present:
    - resource_group: ${ .results.rg1.name }
    - address_prefixes: ${ .vars.prefixes }

broken:
  azurerm_resource.resource_group_present:
    - location: ${ .vars[ }
`

func TestRunnerVars(t *testing.T) {
	reg, clients := newTestStates(t)
	decls, err := Parse([]byte(templatedStateFile))
	require.NoError(t, err)

	runner := &Runner{
		Registry: reg,
		Defaults: map[string]any{"connection_auth": connectionAuth},
		Vars:     map[string]any{"location": "eastus", "prefixes": []string{"10.1.0.0/16"}},
	}
	summary, err := runner.Run(t.Context(), decls)
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, 2, summary.Succeeded, "%+v", summary.Results)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Results[2].Result.Comment, "failed to render arguments")

	rg, err := clients.ResourceGroupStore.Get(t.Context(), azure.Ref{Name: "rg1"})
	require.NoError(t, err)
	assert.Equal(t, "eastus", *rg.Location)

	vnet, err := clients.VirtualNetworkStore.Get(t.Context(), azure.Ref{ResourceGroup: "rg1", Name: "vnet1"})
	require.NoError(t, err)
	require.NotNil(t, vnet.Properties.AddressSpace)
	assert.Equal(t, "10.1.0.0/16", *vnet.Properties.AddressSpace.AddressPrefixes[0])
}
