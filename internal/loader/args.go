package loader

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode maps keyword arguments onto a struct with mapstructure tags. Input
// is weakly typed so values parsed from the command line line up with values
// written in YAML. The result is checked against its validate tags.
func Decode(function string, args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(args); err != nil {
		return Invalid(function, err)
	}

	if reflect.Indirect(reflect.ValueOf(out)).Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(out); err != nil {
		return Invalid(function, err)
	}
	return nil
}

// BindPositional assigns positional values to the parameter names of spec
// and merges keyword arguments over them.
func BindPositional(spec *FuncSpec, positional []any, kwargs map[string]any) (map[string]any, error) {
	if len(positional) > len(spec.Params) {
		return nil, &InvocationError{
			Function: spec.Name,
			Err: fmt.Errorf("%w: takes %d positional arguments but %d were given",
				ErrInvalidArgument, len(spec.Params), len(positional)),
		}
	}

	args := make(map[string]any, len(positional)+len(kwargs))
	for i, value := range positional {
		args[spec.Params[i]] = value
	}
	for key, value := range kwargs {
		args[key] = value
	}
	return args, nil
}
