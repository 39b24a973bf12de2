package states

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/interpolate"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

// Declaration is one entry of a state file:
//
//	rg1:
//	  azurerm_resource.resource_group_present:
//	    - location: eastus
//	    - connection_auth: {profile: default}
//
// The name argument defaults to the ID.
type Declaration struct {
	ID       string
	Function string
	Args     map[string]any
}

// LoadFile reads the declarations of a state file in document order.
func LoadFile(path string) ([]Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	decls, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return decls, nil
}

// Parse reads the declarations of a YAML state document in order.
func Parse(data []byte) ([]Declaration, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: a state file is a mapping of IDs to declarations", root.Line)
	}

	var decls []Declaration
	for i := 0; i+1 < len(root.Content); i += 2 {
		id, body := root.Content[i], root.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: %s must map a state function to its arguments", body.Line, id.Value)
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			fn, argsNode := body.Content[j], body.Content[j+1]
			args, err := declarationArgs(argsNode)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", argsNode.Line, id.Value, err)
			}
			if _, ok := args["name"]; !ok {
				args["name"] = id.Value
			}
			decls = append(decls, Declaration{ID: id.Value, Function: fn.Value, Args: args})
		}
	}
	return decls, nil
}

// declarationArgs accepts the list of single-key mappings of state files as
// well as a plain mapping.
func declarationArgs(node *yaml.Node) (map[string]any, error) {
	args := map[string]any{}
	switch node.Kind {
	case yaml.SequenceNode:
		var items []map[string]any
		if err := node.Decode(&items); err != nil {
			return nil, err
		}
		for _, item := range items {
			for k, v := range item {
				args[k] = v
			}
		}
	case yaml.MappingNode:
		if err := node.Decode(&args); err != nil {
			return nil, err
		}
	case yaml.ScalarNode:
		if len(node.Value) > 0 && node.Tag != "!!null" {
			return nil, fmt.Errorf("arguments must be a list or a mapping")
		}
	default:
		return nil, fmt.Errorf("arguments must be a list or a mapping")
	}
	return args, nil
}

// RunResult is the result of one declaration.
type RunResult struct {
	ID       string              `json:"id" yaml:"id"`
	Function string              `json:"function" yaml:"function"`
	Result   *models.StateResult `json:"result" yaml:"result"`
}

type Summary struct {
	Results   []RunResult `json:"results" yaml:"results"`
	Succeeded int         `json:"succeeded" yaml:"succeeded"`
	Failed    int         `json:"failed" yaml:"failed"`
	Changed   int         `json:"changed" yaml:"changed"`
}

// OK reports whether every declaration succeeded.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// Runner applies declarations through a registry of state functions.
type Runner struct {
	Registry *loader.Registry
	// Test runs every state as a dry run.
	Test bool
	// Defaults are arguments added to declarations that do not set them,
	// e.g. connection_auth.
	Defaults map[string]any
	// Vars are exposed to ${ ... } expressions in arguments as .vars.
	// Results of earlier declarations are exposed as .results.<id>.
	Vars map[string]any
}

// Run applies decls in order. A failed state does not stop the run; an
// error that cannot be folded into a state result does, and is returned
// with the summary so far.
func (r *Runner) Run(ctx context.Context, decls []Declaration) (*Summary, error) {
	summary := &Summary{}
	results := map[string]any{}
	for _, decl := range decls {
		args, err := r.evaluate(decl, results)
		if err != nil {
			declArgs := models.BasicConfig(decl.Args)
			name, _ := declArgs.GetString("name")
			summary.add(decl, models.NewStateResult(name).Fail(err.Error()))
			continue
		}
		for k, v := range r.Defaults {
			if _, ok := args[k]; !ok {
				args[k] = v
			}
		}

		logrus.WithFields(logrus.Fields{
			"id":       decl.ID,
			"function": decl.Function,
			"test":     r.Test,
		}).Info("Applying state")

		value, err := r.Registry.Call(ctx, decl.Function, args, loader.CallOptions{Test: r.Test})
		if err != nil {
			name, _ := args.GetString("name")
			result := models.NewStateResult(name).Fail(err.Error())
			summary.add(decl, result)
			return summary, fmt.Errorf("%s: %w", decl.ID, err)
		}

		var result *models.StateResult
		if msg, ok := loader.IsErrorResult(value); ok {
			name, _ := args.GetString("name")
			result = models.NewStateResult(name).Fail(msg)
		} else {
			result = ParseResult(value)
		}
		summary.add(decl, result)
		if state, err := common.ConvertInterfaceToMap(result); err == nil {
			results[decl.ID] = state
		}
	}
	return summary, nil
}

// evaluate replaces the ${ ... } expressions of the arguments of decl.
func (r *Runner) evaluate(decl Declaration, results map[string]any) (models.BasicConfig, error) {
	input := map[string]any{
		"vars":    r.vars(),
		"results": results,
	}
	evaluated, err := interpolate.Traverse(decl.Args, input, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to render arguments: %w", err)
	}
	args, _ := evaluated.(map[string]any)
	return models.BasicConfig(args).Clone(), nil
}

// vars returns Vars as plain JSON values so jq can address them.
func (r *Runner) vars() map[string]any {
	if len(r.Vars) == 0 {
		return map[string]any{}
	}
	vars, err := common.ConvertInterfaceToMap(r.Vars)
	if err != nil {
		logrus.WithError(err).Warn("Unable to expose state variables")
		return map[string]any{}
	}
	return vars
}

func (s *Summary) add(decl Declaration, result *models.StateResult) {
	s.Results = append(s.Results, RunResult{ID: decl.ID, Function: decl.Function, Result: result})
	switch {
	case result.IsPending() || result.IsSuccess():
		s.Succeeded++
	default:
		s.Failed++
	}
	if result.HasChanges() {
		s.Changed++
	}
}
