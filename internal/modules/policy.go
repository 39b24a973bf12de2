package modules

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armpolicy"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/loader"
)

type policyAssignmentArgs struct {
	Name           string         `mapstructure:"name" validate:"required"`
	Scope          string         `mapstructure:"scope" validate:"required"`
	DefinitionName string         `mapstructure:"definition_name" validate:"required"`
	DisplayName    string         `mapstructure:"display_name"`
	Description    string         `mapstructure:"description"`
	Enforcement    string         `mapstructure:"enforcement_mode" validate:"omitempty,oneof=Default DoNotEnforce"`
	NotScopes      []string       `mapstructure:"not_scopes"`
	Parameters     map[string]any `mapstructure:"parameters"`
}

type scopedNameArgs struct {
	Name  string `mapstructure:"name" validate:"required"`
	Scope string `mapstructure:"scope" validate:"required"`
}

type policyDefinitionArgs struct {
	Name        string         `mapstructure:"name" validate:"required"`
	PolicyRule  any            `mapstructure:"policy_rule"`
	DisplayName string         `mapstructure:"display_name"`
	Description string         `mapstructure:"description"`
	Mode        string         `mapstructure:"mode"`
	Parameters  map[string]any `mapstructure:"parameters"`
	Metadata    map[string]any `mapstructure:"metadata"`
}

var errPolicyRule = errors.New("The policy rule must be a dictionary!")

func optional(s string) *string {
	if len(s) == 0 {
		return nil
	}
	return to.Ptr(s)
}

// parameterValues accepts {"name": value} or {"name": {"value": value}}.
func parameterValues(params map[string]any) map[string]*armpolicy.ParameterValuesValue {
	if len(params) == 0 {
		return nil
	}
	values := make(map[string]*armpolicy.ParameterValuesValue, len(params))
	for name, v := range params {
		if m, ok := v.(map[string]any); ok {
			if value, ok := m["value"]; ok && len(m) == 1 {
				v = value
			}
		}
		values[name] = &armpolicy.ParameterValuesValue{Value: v}
	}
	return values
}

// definitionID finds a definition by name among both custom and built-in
// definitions. Get does not return built-in definitions.
func definitionID(ctx context.Context, api azure.PolicyDefinitionsAPI, name string) (string, error) {
	definitions, err := api.List(ctx)
	if err != nil {
		return "", err
	}
	for _, definition := range definitions {
		if definition.Name != nil && *definition.Name == name && definition.ID != nil {
			return *definition.ID, nil
		}
	}
	return "", fmt.Errorf("The policy definition named %q could not be found.", name)
}

// deleted reports a delete as a boolean. Failures are logged and become
// false unless they are fatal.
func deleted(req *loader.Request, err error) (any, error) {
	if err == nil {
		return true, nil
	}
	if loader.IsFatal(err) {
		return nil, err
	}
	azure.LogCloudError("policy", err, req.Args.GetStringWithDefault("azurerm_log_level", "error"))
	return false, nil
}

func policyFunc[T any](e *Env, fn func(ctx context.Context, clients azure.Clients, args *T) (any, error)) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		var args T
		if err := loader.Decode(req.Function, req.Args, &args); err != nil {
			return nil, err
		}
		clients, err := e.connect(ctx, req)
		if err != nil {
			return nil, err
		}
		return fn(ctx, clients, &args)
	}
}

func (e *Env) policyAssignmentsList(ctx context.Context, req *loader.Request) (any, error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	api, err := clients.PolicyAssignments()
	if err != nil {
		return nil, err
	}
	group := req.Args.GetStringWithDefault("resource_group", "")
	filter := req.Args.GetStringWithDefault("filter", "")
	assignments, err := api.List(ctx, group, filter)
	if err != nil {
		return nil, err
	}
	return keyed(assignments)
}

func (e *Env) registerPolicy(reg *loader.Registry) {
	register(reg, resourceModule, "policy", []function{
		{
			name:     "policy_assignment_create",
			params:   []string{"name", "scope", "definition_name"},
			required: []string{"name", "scope", "definition_name"},
			doc:      "Assign a policy definition, built-in or custom, to a scope.",
			fn: policyFunc(e, func(ctx context.Context, clients azure.Clients, args *policyAssignmentArgs) (any, error) {
				definitions, err := clients.PolicyDefinitions()
				if err != nil {
					return nil, err
				}
				id, err := definitionID(ctx, definitions, args.DefinitionName)
				if err != nil {
					return nil, err
				}
				props := &armpolicy.AssignmentProperties{
					PolicyDefinitionID: to.Ptr(id),
					DisplayName:        optional(args.DisplayName),
					Description:        optional(args.Description),
					Parameters:         parameterValues(args.Parameters),
				}
				if len(args.NotScopes) > 0 {
					props.NotScopes = to.SliceOfPtrs(args.NotScopes...)
				}
				if len(args.Enforcement) > 0 {
					props.EnforcementMode = to.Ptr(armpolicy.EnforcementMode(args.Enforcement))
				}

				api, err := clients.PolicyAssignments()
				if err != nil {
					return nil, err
				}
				assignment, err := api.Create(ctx, args.Scope, args.Name, armpolicy.Assignment{Properties: props})
				if err != nil {
					return nil, err
				}
				return describe(assignment)
			}),
		},
		{
			name: "policy_assignment_get", params: []string{"name", "scope"}, required: []string{"name", "scope"},
			doc: "Get a policy assignment.",
			fn: policyFunc(e, func(ctx context.Context, clients azure.Clients, args *scopedNameArgs) (any, error) {
				api, err := clients.PolicyAssignments()
				if err != nil {
					return nil, err
				}
				assignment, err := api.Get(ctx, args.Scope, args.Name)
				if err != nil {
					return nil, err
				}
				return describe(assignment)
			}),
		},
		{
			name: "policy_assignment_delete", params: []string{"name", "scope"}, required: []string{"name", "scope"},
			doc: "Delete a policy assignment. Returns whether it was deleted.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args scopedNameArgs
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				api, err := clients.PolicyAssignments()
				if err != nil {
					return nil, err
				}
				return deleted(req, api.Delete(ctx, args.Scope, args.Name))
			},
		},
		{
			name: "policy_assignments_list_for_resource_group", params: []string{"resource_group", "filter"}, required: []string{"resource_group"},
			doc: "List the policy assignments of a resource group.",
			fn:  e.policyAssignmentsList,
		},
		{
			name: "policy_assignments_list", params: []string{"filter"},
			doc: "List the policy assignments of the subscription.",
			fn:  e.policyAssignmentsList,
		},
		{
			name: "policy_definition_create_or_update", params: []string{"name", "policy_rule"}, required: []string{"name", "policy_rule"},
			doc: "Create or update a custom policy definition.",
			fn: policyFunc(e, func(ctx context.Context, clients azure.Clients, args *policyDefinitionArgs) (any, error) {
				rule, ok := args.PolicyRule.(map[string]any)
				if !ok {
					return nil, errPolicyRule
				}
				props := &armpolicy.DefinitionProperties{
					PolicyRule:  rule,
					DisplayName: optional(args.DisplayName),
					Description: optional(args.Description),
					Mode:        optional(args.Mode),
				}
				if len(args.Metadata) > 0 {
					props.Metadata = args.Metadata
				}
				if len(args.Parameters) > 0 {
					var params map[string]*armpolicy.ParameterDefinitionsValue
					if err := common.ConvertInterfaceToInterface(args.Parameters, &params); err != nil {
						return nil, fmt.Errorf("The object model could not be built. (%v)", err)
					}
					props.Parameters = params
				}

				api, err := clients.PolicyDefinitions()
				if err != nil {
					return nil, err
				}
				definition, err := api.CreateOrUpdate(ctx, args.Name, armpolicy.Definition{Properties: props})
				if err != nil {
					return nil, err
				}
				return describe(definition)
			}),
		},
		{
			name: "policy_definition_delete", params: []string{"name"}, required: []string{"name"},
			doc: "Delete a custom policy definition. Returns whether it was deleted.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				api, err := clients.PolicyDefinitions()
				if err != nil {
					return nil, err
				}
				name, _ := req.Args.GetString("name")
				return deleted(req, api.Delete(ctx, name))
			},
		},
		{
			name: "policy_definition_get", params: []string{"name"}, required: []string{"name"},
			doc: "Get a custom policy definition.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				api, err := clients.PolicyDefinitions()
				if err != nil {
					return nil, err
				}
				name, _ := req.Args.GetString("name")
				definition, err := api.Get(ctx, name)
				if err != nil {
					return nil, err
				}
				return describe(definition)
			},
		},
		{
			name: "policy_definitions_list", params: []string{"hide_builtin"},
			doc: "List the policy definitions of the subscription, built-in ones included unless hide_builtin is set.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args struct {
					HideBuiltIn bool `mapstructure:"hide_builtin"`
				}
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				api, err := clients.PolicyDefinitions()
				if err != nil {
					return nil, err
				}
				definitions, err := api.List(ctx)
				if err != nil {
					return nil, err
				}
				shown := make([]*armpolicy.Definition, 0, len(definitions))
				for _, definition := range definitions {
					if args.HideBuiltIn && definition.Properties != nil && definition.Properties.PolicyType != nil &&
						*definition.Properties.PolicyType == armpolicy.PolicyTypeBuiltIn {
						continue
					}
					shown = append(shown, definition)
				}
				return keyed(shown)
			},
		},
	})
}
