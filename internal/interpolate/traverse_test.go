package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExpr(t *testing.T) {
	for value, expected := range map[string]bool{
		"${ .vars.location }":    true,
		"  ${.name}\n":           true,
		"eastus":                 false,
		"${ .vars.location":      false,
		"prefix-${ .vars.name }": false,
		"":                       false,
	} {
		assert.Equal(t, expected, IsExpr(value), value)
	}
}

func TestTraverse(t *testing.T) {
	input := map[string]any{
		"vars": map[string]any{"location": "eastus", "zones": []any{"1", "2"}},
		"results": map[string]any{
			"rg1": map[string]any{"changes": map[string]any{"new": map[string]any{"id": "/subscriptions/sub/resourceGroups/rg1"}}},
		},
	}

	t.Run("plain values pass through", func(t *testing.T) {
		args := map[string]any{"name": "web", "count": 2, "enabled": true, "missing": nil}
		result, err := Traverse(args, input, nil)
		require.NoError(t, err)
		assert.Equal(t, args, result)
	})

	t.Run("expressions are replaced", func(t *testing.T) {
		args := map[string]any{
			"location": "${ .vars.location }",
			"zones":    "${ .vars.zones }",
			"tags": map[string]any{
				"group": "${ .results.rg1.changes.new.id }",
				"owner": "ops",
			},
			"address_prefixes": []any{"10.0.0.0/16", "${ .vars.zones | length | tostring }"},
		}
		result, err := Traverse(args, input, nil)
		require.NoError(t, err)

		out := result.(map[string]any)
		assert.Equal(t, "eastus", out["location"])
		assert.Equal(t, []any{"1", "2"}, out["zones"])
		assert.Equal(t, map[string]any{"group": "/subscriptions/sub/resourceGroups/rg1", "owner": "ops"}, out["tags"])
		assert.Equal(t, []any{"10.0.0.0/16", "2"}, out["address_prefixes"])
	})

	t.Run("the input node is not modified", func(t *testing.T) {
		args := map[string]any{"nested": map[string]any{"location": "${ .vars.location }"}}
		_, err := Traverse(args, input, nil)
		require.NoError(t, err)
		assert.Equal(t, "${ .vars.location }", args["nested"].(map[string]any)["location"])
	})

	t.Run("missing paths are null", func(t *testing.T) {
		result, err := Traverse("${ .vars.nothing.here }", input, nil)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("variables", func(t *testing.T) {
		result, err := Traverse("${ $prefix + .vars.location }", input, map[string]any{"$prefix": "az-"})
		require.NoError(t, err)
		assert.Equal(t, "az-eastus", result)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Traverse(map[string]any{"bad": "${ .vars[ }"}, input, nil)
		assert.ErrorContains(t, err, "failed to parse jq expression")

		_, err = Traverse([]any{"${ $undefined }"}, input, nil)
		assert.ErrorContains(t, err, "failed to compile jq expression")

		_, err = Traverse("${ .vars.location | error }", input, nil)
		assert.ErrorContains(t, err, "jq evaluation error")

		_, err = Traverse("${ empty }", input, nil)
		assert.ErrorContains(t, err, "no result")
	})
}

func TestQuery(t *testing.T) {
	input := map[string]any{
		"web1": map[string]any{"state": "Succeeded", "public_ips": []any{"20.1.2.3"}},
		"web2": map[string]any{"state": "Failed", "public_ips": []any{}},
	}

	t.Run("single result", func(t *testing.T) {
		results, err := Query(".web1.state", input)
		require.NoError(t, err)
		assert.Equal(t, []any{"Succeeded"}, results)
	})

	t.Run("every result is returned", func(t *testing.T) {
		results, err := Query(`to_entries | sort_by(.key) | .[] | .value.state`, input)
		require.NoError(t, err)
		assert.Equal(t, []any{"Succeeded", "Failed"}, results)
	})

	t.Run("no results", func(t *testing.T) {
		results, err := Query(".[] | select(.state == \"Canceled\")", input)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("invalid filters", func(t *testing.T) {
		_, err := Query(".[", input)
		assert.Error(t, err)

		_, err = Query(".web1.state | tonumber", input)
		assert.ErrorContains(t, err, "jq evaluation error")
	})
}

func TestGetVariableNamesAndValues(t *testing.T) {
	names, values := getVariableNamesAndValues(map[string]any{"$a": 1, "$b": "two"})
	require.Len(t, names, 2)
	require.Len(t, values, 2)

	pairs := map[string]any{}
	for i, name := range names {
		pairs[name] = values[i]
	}
	assert.Equal(t, map[string]any{"$a": 1, "$b": "two"}, pairs)
}
