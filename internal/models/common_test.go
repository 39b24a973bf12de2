package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicConfig_Getters(t *testing.T) {
	config := BasicConfig{
		"name":    "vm1",
		"count":   "3",
		"enabled": "true",
		"ratio":   2,
		"tags":    map[any]any{"env": "dev"},
		"zones":   []any{"1", "2"},
		"empty":   nil,
	}

	t.Run("string", func(t *testing.T) {
		value, ok := config.GetString("name")
		assert.True(t, ok)
		assert.Equal(t, "vm1", value)

		_, ok = config.GetString("missing")
		assert.False(t, ok)
		assert.Equal(t, "fallback", config.GetStringWithDefault("missing", "fallback"))
	})

	t.Run("int coerced from string", func(t *testing.T) {
		value, ok := config.GetInt("count")
		assert.True(t, ok)
		assert.Equal(t, 3, value)
		assert.Equal(t, 7, config.GetIntWithDefault("missing", 7))
	})

	t.Run("bool coerced from string", func(t *testing.T) {
		value, ok := config.GetBool("enabled")
		assert.True(t, ok)
		assert.True(t, value)
		assert.False(t, config.GetBoolWithDefault("missing", false))
	})

	t.Run("float from int", func(t *testing.T) {
		value, ok := config.GetFloat("ratio")
		assert.True(t, ok)
		assert.Equal(t, 2.0, value)
	})

	t.Run("map with interface keys", func(t *testing.T) {
		value, ok := config.GetMap("tags")
		assert.True(t, ok)
		assert.Equal(t, map[string]any{"env": "dev"}, value)
	})

	t.Run("string slice", func(t *testing.T) {
		value, ok := config.GetStringSlice("zones")
		assert.True(t, ok)
		assert.Equal(t, []string{"1", "2"}, value)
	})

	t.Run("nil values are absent", func(t *testing.T) {
		assert.False(t, config.Has("empty"))
		_, ok := config.Get("empty")
		assert.False(t, ok)
	})
}

func TestBasicConfig_NilReceiver(t *testing.T) {
	var config *BasicConfig
	_, ok := config.GetString("anything")
	assert.False(t, ok)
	assert.Equal(t, map[string]any{}, config.AsMap())
	config.Update(map[string]any{"a": 1})
}

func TestBasicConfig_CloneAndWithout(t *testing.T) {
	config := BasicConfig{"a": 1, "b": 2}
	clone := config.Without("b")

	assert.Equal(t, BasicConfig{"a": 1}, clone)
	assert.Equal(t, BasicConfig{"a": 1, "b": 2}, config)

	var empty BasicConfig
	update := empty.Clone()
	update.SetKeyWithValue("x", true)
	assert.Equal(t, BasicConfig{"x": true}, update)
}

func TestStateResult_AsMap(t *testing.T) {
	result := NewStateResult("rg1")
	assert.False(t, result.IsSuccess())

	result.Pending("Resource group rg1 would be created.")
	m := result.AsMap()
	assert.Nil(t, m["result"])
	assert.Equal(t, "rg1", m["name"])
	assert.True(t, result.IsPending())

	result.Changes["new"] = map[string]any{"name": "rg1"}
	result.Succeed("Resource group rg1 has been created.")
	m = result.AsMap()
	assert.Equal(t, true, m["result"])
	assert.True(t, result.HasChanges())
}
