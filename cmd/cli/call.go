package cli

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thand-io/azurerm/internal/loader"
)

// ErrFunctionFailed is returned after printing the error mapping of a
// failed call, so the command exits non-zero.
var ErrFunctionFailed = errors.New("function returned an error")

// parseValue reads a command line value as YAML so numbers, booleans,
// lists and mappings keep their type.
func parseValue(raw string) any {
	if len(raw) == 0 {
		return ""
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
		return raw
	}
	return value
}

func isKeyword(key string) bool {
	if len(key) == 0 {
		return false
	}
	for i, r := range key {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// parseCallArgs splits arguments into positional values and key=value
// keyword arguments.
func parseCallArgs(raw []string) ([]any, map[string]any) {
	var positional []any
	kwargs := map[string]any{}
	for _, arg := range raw {
		if key, value, ok := strings.Cut(arg, "="); ok && isKeyword(key) {
			kwargs[key] = parseValue(value)
			continue
		}
		positional = append(positional, parseValue(arg))
	}
	return positional, kwargs
}

// lookup finds name among execution functions, then state functions.
func lookup(name string, regs ...*loader.Registry) (*loader.Registry, *loader.FuncSpec, error) {
	for _, reg := range regs {
		if spec, ok := reg.Get(name); ok {
			return reg, spec, nil
		}
	}
	return nil, nil, &loader.InvocationError{Function: name, Err: loader.ErrUnknownFunction}
}

var callCmd = &cobra.Command{
	Use:   "call <function> [args...] [key=value...]",
	Short: "Run an execution or state function",
	Long: `Run one function by name, e.g.

  azurerm call azurerm_resource.resource_group_get rg1
  azurerm call azurerm_compute_disk.create_or_update disk1 rg1 disk_size_gb=64
  azurerm call azurerm_resource.resource_group_present rg1 location=eastus --test

Values are read as YAML, so lists and mappings can be passed inline.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		test, _ := cmd.Flags().GetBool("test")

		exec, state := registries()
		reg, spec, err := lookup(args[0], exec, state)
		if err != nil {
			return err
		}

		positional, kwargs := parseCallArgs(args[1:])
		callArgs, err := loader.BindPositional(spec, positional, kwargs)
		if err != nil {
			return err
		}
		for key, value := range cfg.CallDefaults() {
			if _, ok := callArgs[key]; !ok {
				callArgs[key] = value
			}
		}

		result, err := reg.Call(ctx, spec.Name, callArgs, loader.CallOptions{Test: test})
		if err != nil {
			return err
		}
		if err := render(cmd, result); err != nil {
			return err
		}
		if msg, failed := loader.IsErrorResult(result); failed {
			logrus.WithField("function", spec.Name).Debug(msg)
			return fmt.Errorf("%s: %w", spec.Name, ErrFunctionFailed)
		}
		return nil
	},
}

var functionsCmd = &cobra.Command{
	Use:   "functions [prefix]",
	Short: "List the registered functions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) > 0 {
			prefix = strings.ToLower(args[0])
		}
		exec, state := registries()
		functions := map[string]string{}
		for _, reg := range []*loader.Registry{exec, state} {
			for _, name := range reg.Names() {
				if !strings.HasPrefix(name, prefix) {
					continue
				}
				spec, _ := reg.Get(name)
				functions[name] = spec.Doc
			}
		}
		return render(cmd, functions)
	},
}

func init() {
	callCmd.Flags().BoolP("test", "t", false, "Dry run: report what a state function would change")
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(functionsCmd)
}
