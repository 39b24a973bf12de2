package models

import (
	"maps"

	"github.com/spf13/cast"
)

// BasicConfig is a loosely typed bag of keyword arguments or configuration
// values. Getters coerce scalars so values read from YAML, env vars or the
// command line can be used interchangeably.
type BasicConfig map[string]any

func (pc *BasicConfig) Has(key string) bool {
	if pc == nil {
		return false
	}
	value, ok := (*pc)[key]
	return ok && value != nil
}

func (pc *BasicConfig) Get(key string) (any, bool) {
	if pc == nil {
		return nil, false
	}
	value, ok := (*pc)[key]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

func (pc *BasicConfig) GetString(key string) (string, bool) {
	value, ok := pc.Get(key)
	if !ok {
		return "", false
	}
	strValue, err := cast.ToStringE(value)
	if err != nil {
		return "", false
	}
	return strValue, true
}

func (pc *BasicConfig) GetStringWithDefault(key string, defaultValue string) string {
	if value, ok := pc.GetString(key); ok && len(value) > 0 {
		return value
	}
	return defaultValue
}

func (pc *BasicConfig) GetInt(key string) (int, bool) {
	value, ok := pc.Get(key)
	if !ok {
		return 0, false
	}
	intValue, err := cast.ToIntE(value)
	if err != nil {
		return 0, false
	}
	return intValue, true
}

func (pc *BasicConfig) GetIntWithDefault(key string, defaultValue int) int {
	if value, ok := pc.GetInt(key); ok {
		return value
	}
	return defaultValue
}

func (pc *BasicConfig) GetFloat(key string) (float64, bool) {
	value, ok := pc.Get(key)
	if !ok {
		return 0, false
	}
	floatValue, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, false
	}
	return floatValue, true
}

func (pc *BasicConfig) GetBool(key string) (bool, bool) {
	value, ok := pc.Get(key)
	if !ok {
		return false, false
	}
	boolValue, err := cast.ToBoolE(value)
	if err != nil {
		return false, false
	}
	return boolValue, true
}

func (pc *BasicConfig) GetBoolWithDefault(key string, defaultValue bool) bool {
	if value, ok := pc.GetBool(key); ok {
		return value
	}
	return defaultValue
}

func (pc *BasicConfig) GetMap(key string) (map[string]any, bool) {
	value, ok := pc.Get(key)
	if !ok {
		return nil, false
	}
	mapValue, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, false
	}
	return mapValue, true
}

func (pc *BasicConfig) GetStringSlice(key string) ([]string, bool) {
	value, ok := pc.Get(key)
	if !ok {
		return nil, false
	}
	sliceValue, err := cast.ToStringSliceE(value)
	if err != nil {
		return nil, false
	}
	return sliceValue, true
}

func (pc *BasicConfig) AsMap() map[string]any {
	if pc == nil || *pc == nil {
		return map[string]any{}
	}
	return map[string]any(*pc)
}

func (pc *BasicConfig) SetKeyWithValue(key string, value any) {
	if pc == nil {
		return
	}
	if *pc == nil {
		*pc = BasicConfig{}
	}
	(*pc)[key] = value
}

func (pc *BasicConfig) Update(updateMap map[string]any) {
	if pc == nil {
		return
	}
	if *pc == nil {
		*pc = BasicConfig{}
	}
	for key, value := range updateMap {
		(*pc)[key] = value
	}
}

// Clone returns a shallow copy.
func (pc BasicConfig) Clone() BasicConfig {
	if pc == nil {
		return BasicConfig{}
	}
	return maps.Clone(pc)
}

// Without returns a shallow copy with the given keys removed.
func (pc BasicConfig) Without(keys ...string) BasicConfig {
	out := pc.Clone()
	for _, key := range keys {
		delete(out, key)
	}
	return out
}
