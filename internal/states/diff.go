package states

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
)

// Diff compares a live resource descriptor with the desired one and returns
// the differences keyed by dotted path, each as {"old": ..., "new": ...}.
//
// Only keys present in desired are compared. Strings and resource IDs
// compare case-insensitively, and a resource name matches an ID ending in
// it. Lists are compared element by element after sorting. Top-level tags
// are always compared, exactly, with missing tags meaning none. Location is
// never compared.
func Diff(actual, desired map[string]any) map[string]any {
	changes := map[string]any{}
	if actual == nil {
		actual = map[string]any{}
	}

	oldTags, newTags := stringMap(actual["tags"]), stringMap(desired["tags"])
	if !reflect.DeepEqual(oldTags, newTags) {
		changes["tags"] = change(tagsValue(actual["tags"]), tagsValue(desired["tags"]))
	}

	for _, key := range common.SortedKeys(desired) {
		if key == "tags" || key == "location" {
			continue
		}
		diffValue(key, actual[key], desired[key], changes)
	}
	return changes
}

func diffValue(path string, old, new any, changes map[string]any) {
	if new == nil {
		return
	}
	if desiredMap, ok := asMap(new); ok {
		actualMap, ok := asMap(old)
		if !ok {
			changes[path] = change(old, new)
			return
		}
		for _, key := range common.SortedKeys(desiredMap) {
			diffValue(path+"."+key, actualMap[key], desiredMap[key], changes)
		}
		return
	}
	if !equal(old, new) {
		changes[path] = change(old, new)
	}
}

// equal reports whether actual satisfies desired under the rules of Diff.
func equal(actual, desired any) bool {
	if desired == nil {
		return true
	}
	if desiredMap, ok := asMap(desired); ok {
		actualMap, ok := asMap(actual)
		if !ok {
			return false
		}
		for key, value := range desiredMap {
			if !equal(actualMap[key], value) {
				return false
			}
		}
		return true
	}
	if desiredList, ok := asList(desired); ok {
		actualList, ok := asList(actual)
		if !ok {
			return len(desiredList) == 0 && actual == nil
		}
		if len(actualList) != len(desiredList) {
			return false
		}
		actualList, desiredList = sorted(actualList), sorted(desiredList)
		for i := range desiredList {
			if !equal(actualList[i], desiredList[i]) {
				return false
			}
		}
		return true
	}
	return scalarEqual(actual, desired)
}

func scalarEqual(actual, desired any) bool {
	if actual == nil {
		return false
	}
	if a, ok := actual.(bool); ok {
		d, err := cast.ToBoolE(desired)
		return err == nil && a == d
	}
	if _, ok := actual.(string); !ok {
		a, errA := cast.ToFloat64E(actual)
		d, errD := cast.ToFloat64E(desired)
		if errA == nil && errD == nil {
			return a == d
		}
	}

	a, d := cast.ToString(actual), cast.ToString(desired)
	if strings.EqualFold(a, d) {
		return true
	}
	// A resource given by name matches the ID the service reports.
	if azure.IsResourceID(a) != azure.IsResourceID(d) {
		return strings.EqualFold(azure.NameFromID(a), azure.NameFromID(d))
	}
	return false
}

// sorted orders list elements by name (maps) or value (everything else).
func sorted(items []any) []any {
	out := make([]any, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}

func sortKey(v any) string {
	if m, ok := asMap(v); ok {
		if name, ok := m["name"]; ok {
			return strings.ToLower(cast.ToString(name))
		}
		data, _ := json.Marshal(m)
		return strings.ToLower(string(data))
	}
	return strings.ToLower(cast.ToString(v))
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func stringMap(v any) map[string]string {
	m, err := cast.ToStringMapStringE(v)
	if err != nil || m == nil {
		return map[string]string{}
	}
	return m
}

func tagsValue(v any) any {
	if v == nil {
		return map[string]string{}
	}
	return v
}
