package modules

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/models"
)

// field maps one keyword argument onto a dotted path of an ARM descriptor.
type field struct {
	arg  string
	path string
	conv func(any) (any, error)
}

// schema describes how keyword arguments become the ARM JSON body of one
// resource type.
type schema []field

// descriptor builds the ARM body from args. A "properties" argument is
// merged verbatim underneath the descriptor's own properties.
func (s schema) descriptor(args models.BasicConfig) (map[string]any, error) {
	out := map[string]any{}
	for _, f := range s {
		value, ok := args.Get(f.arg)
		if !ok {
			continue
		}
		if f.conv != nil {
			converted, err := f.conv(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.arg, err)
			}
			value = converted
		}
		setPath(out, f.path, value)
	}

	if extra, ok := args.GetMap("properties"); ok {
		props, _ := out["properties"].(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		merge(props, extra)
		out["properties"] = props
	}
	return out, nil
}

// describer returns s.descriptor with failures reported the way create
// calls report them.
func (s schema) describer() func(models.BasicConfig) (map[string]any, error) {
	return func(args models.BasicConfig) (map[string]any, error) {
		desc, err := s.descriptor(args)
		if err != nil {
			return nil, modelError(err)
		}
		return desc, nil
	}
}

// build decodes an ARM descriptor into an SDK model.
func build[T any](desc map[string]any) (T, error) {
	var model T
	if err := common.ConvertMapToInterface(desc, &model); err != nil {
		return model, modelError(err)
	}
	return model, nil
}

func modelError(err error) error {
	return fmt.Errorf("The object model could not be built. (%v)", err)
}

func setPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func getPath(m map[string]any, path string) (any, bool) {
	var current any = m
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// merge copies src into dst, descending into nested maps.
func merge(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			merge(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}

func asString(v any) (any, error) {
	return cast.ToStringE(v)
}

func asInt(v any) (any, error) {
	return cast.ToInt64E(v)
}

func asFloat(v any) (any, error) {
	return cast.ToFloat64E(v)
}

func asBool(v any) (any, error) {
	return cast.ToBoolE(v)
}

func asStrings(v any) (any, error) {
	if s, ok := v.(string); ok {
		return strings.Split(s, ","), nil
	}
	return cast.ToStringSliceE(v)
}

func asTags(v any) (any, error) {
	return cast.ToStringMapStringE(v)
}

func asMap(v any) (any, error) {
	return cast.ToStringMapE(v)
}

// asSKU accepts a plain SKU name. Single word names are capitalised the
// way the service spells them ("aligned" becomes "Aligned"); names with a
// tier suffix such as Premium_LRS are kept as given.
func asSKU(v any) (any, error) {
	if s, ok := v.(string); ok {
		if !strings.Contains(s, "_") {
			s = common.Capitalize(s)
		}
		return map[string]any{"name": s}, nil
	}
	return cast.ToStringMapE(v)
}

// asSubResource wraps an ARM ID as {"id": ...}.
func asSubResource(v any) (any, error) {
	if s, ok := v.(string); ok {
		return map[string]any{"id": s}, nil
	}
	return cast.ToStringMapE(v)
}

// asSubResources wraps every ARM ID or name of a list as {"id": ...}.
func asSubResources(v any) (any, error) {
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}
	result := make([]any, 0, len(items))
	for i, item := range items {
		ref, err := asSubResource(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		result = append(result, ref)
	}
	return result, nil
}

func asURI(v any) (any, error) {
	if s, ok := v.(string); ok {
		return map[string]any{"uri": s}, nil
	}
	return cast.ToStringMapE(v)
}

// each applies an element schema to every map of a list argument.
func each(element schema) func(any) (any, error) {
	return func(v any) (any, error) {
		items, err := cast.ToSliceE(v)
		if err != nil {
			return nil, err
		}
		result := make([]any, 0, len(items))
		for i, item := range items {
			m, err := cast.ToStringMapE(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			desc, err := element.descriptor(models.BasicConfig(m))
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			result = append(result, desc)
		}
		return result, nil
	}
}

var tagsField = field{arg: "tags", path: "tags", conv: asTags}
var locationField = field{arg: "location", path: "location", conv: asString}
