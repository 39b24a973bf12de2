package common

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ConvertMapToInterface decodes a plain map into the given value by way of
// its JSON representation. SDK models carry their own JSON codecs, so this is
// how keyword arguments become typed request bodies.
func ConvertMapToInterface(m map[string]any, i any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, i)
}

func ConvertInterfaceToInterface(from any, to any) error {

	if from == nil {
		return nil
	}

	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}

// ConvertInterfaceToMap returns the plain mapping form of any serializable
// value. A nil input yields a nil map.
func ConvertInterfaceToMap(from any) (map[string]any, error) {
	if from == nil {
		return nil, nil
	}

	data, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	var result map[string]any
	err = json.Unmarshal(data, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConvertSliceToMaps converts a page of SDK models into plain mappings,
// skipping nil entries.
func ConvertSliceToMaps[T any](items []*T) ([]map[string]any, error) {
	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		m, err := ConvertInterfaceToMap(item)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, nil
}

// KeyByField indexes a list of mappings by the string value at key. Entries
// without that key are indexed by their position.
func KeyByField(items []map[string]any, key string) map[string]any {
	result := make(map[string]any, len(items))
	for i, item := range items {
		name, ok := item[key].(string)
		if !ok || len(name) == 0 {
			name = fmt.Sprintf("%d", i)
		}
		result[name] = item
	}
	return result
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
