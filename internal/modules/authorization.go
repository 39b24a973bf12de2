package modules

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
)

const authorizationModule = "azurerm_authorization"

// ScopeArgs name the scope of a role query and an optional OData filter.
// The scope defaults to the subscription.
type ScopeArgs struct {
	Scope  string `mapstructure:"scope"`
	Filter string `mapstructure:"filter"`
}

type roleDefinitionArgs struct {
	ScopeArgs `mapstructure:",squash"`
	RoleID    string `mapstructure:"role_id" validate:"required"`
}

type roleAssignmentArgs struct {
	ScopeArgs        `mapstructure:",squash"`
	Name             string `mapstructure:"name"`
	RoleDefinitionID string `mapstructure:"role_definition_id" validate:"required"`
	PrincipalID      string `mapstructure:"principal_id" validate:"required"`
}

type deleteRoleAssignmentArgs struct {
	ScopeArgs `mapstructure:",squash"`
	Name      string `mapstructure:"name" validate:"required"`
}

func (s *ScopeArgs) scope(clients azure.Clients) (string, error) {
	if len(s.Scope) > 0 {
		return s.Scope, nil
	}
	if len(clients.SubscriptionID()) == 0 {
		return "", azure.ErrSubscriptionRequired
	}
	return "/subscriptions/" + clients.SubscriptionID(), nil
}

// roleDefinitionID accepts a role definition ID, its GUID or a role name
// such as "Reader".
func roleDefinitionID(ctx context.Context, api azure.RoleDefinitionsAPI, scope, role string) (string, error) {
	if azure.IsResourceID(role) {
		return role, nil
	}
	if _, err := uuid.Parse(role); err == nil {
		return scope + "/providers/Microsoft.Authorization/roleDefinitions/" + role, nil
	}
	definitions, err := api.List(ctx, scope, fmt.Sprintf("roleName eq '%s'", role))
	if err != nil {
		return "", err
	}
	for _, definition := range definitions {
		if definition.ID != nil && definition.Properties != nil && definition.Properties.RoleName != nil &&
			*definition.Properties.RoleName == role {
			return *definition.ID, nil
		}
	}
	return "", fmt.Errorf("role definition %q: %w", role, azure.ErrNotFound)
}

func (e *Env) registerAuthorization(reg *loader.Registry) {
	register(reg, authorizationModule, "authorization", []function{
		{
			name: "role_definitions_list", params: []string{"scope", "filter"},
			doc: "List role definitions available at a scope.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args ScopeArgs
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				scope, err := args.scope(clients)
				if err != nil {
					return nil, err
				}
				api, err := clients.RoleDefinitions()
				if err != nil {
					return nil, err
				}
				definitions, err := api.List(ctx, scope, args.Filter)
				if err != nil {
					return nil, err
				}
				return keyed(definitions)
			},
		},
		{
			name: "role_definition_get", params: []string{"role_id", "scope"}, required: []string{"role_id"},
			doc: "Get a role definition by ID.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args roleDefinitionArgs
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				scope, err := args.scope(clients)
				if err != nil {
					return nil, err
				}
				api, err := clients.RoleDefinitions()
				if err != nil {
					return nil, err
				}
				definition, err := api.Get(ctx, scope, args.RoleID)
				if err != nil {
					return nil, err
				}
				return describe(definition)
			},
		},
		{
			name: "role_assignments_list", params: []string{"scope", "filter"},
			doc: "List role assignments at a scope.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args ScopeArgs
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				scope, err := args.scope(clients)
				if err != nil {
					return nil, err
				}
				api, err := clients.RoleAssignments()
				if err != nil {
					return nil, err
				}
				assignments, err := api.List(ctx, scope, args.Filter)
				if err != nil {
					return nil, err
				}
				return keyed(assignments)
			},
		},
		{
			name:     "role_assignment_create",
			params:   []string{"role_definition_id", "principal_id", "scope", "name"},
			required: []string{"role_definition_id", "principal_id"},
			doc:      "Assign a role to a principal. The assignment name defaults to a new UUID.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args roleAssignmentArgs
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				scope, err := args.scope(clients)
				if err != nil {
					return nil, err
				}
				definitions, err := clients.RoleDefinitions()
				if err != nil {
					return nil, err
				}
				roleID, err := roleDefinitionID(ctx, definitions, scope, args.RoleDefinitionID)
				if err != nil {
					return nil, err
				}
				api, err := clients.RoleAssignments()
				if err != nil {
					return nil, err
				}
				name := args.Name
				if len(name) == 0 {
					name = uuid.NewString()
				}
				assignment, err := api.Create(ctx, scope, name, roleID, args.PrincipalID)
				if err != nil {
					return nil, err
				}
				return describe(assignment)
			},
		},
		{
			name: "role_assignment_delete", params: []string{"name", "scope"}, required: []string{"name"},
			doc: "Delete a role assignment.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args deleteRoleAssignmentArgs
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				clients, err := e.connect(ctx, req)
				if err != nil {
					return nil, err
				}
				scope, err := args.scope(clients)
				if err != nil {
					return nil, err
				}
				api, err := clients.RoleAssignments()
				if err != nil {
					return nil, err
				}
				if err := api.Delete(ctx, scope, args.Name); err != nil {
					return nil, err
				}
				return true, nil
			},
		},
	})
}
