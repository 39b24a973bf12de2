package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization"
)

type RoleDefinitionsAPI interface {
	List(ctx context.Context, scope, filter string) ([]*armauthorization.RoleDefinition, error)
	Get(ctx context.Context, scope, id string) (*armauthorization.RoleDefinition, error)
}

type RoleAssignmentsAPI interface {
	List(ctx context.Context, scope, filter string) ([]*armauthorization.RoleAssignment, error)
	Create(ctx context.Context, scope, name, roleDefinitionID, principalID string) (*armauthorization.RoleAssignment, error)
	Delete(ctx context.Context, scope, name string) error
}

type roleDefinitions struct {
	client *armauthorization.RoleDefinitionsClient
}

func (c *armClients) RoleDefinitions() (RoleDefinitionsAPI, error) {
	client, err := armauthorization.NewRoleDefinitionsClient(c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create role definitions client: %w", err)
	}
	return &roleDefinitions{client: client}, nil
}

func (r *roleDefinitions) List(ctx context.Context, scope, filter string) ([]*armauthorization.RoleDefinition, error) {
	var options *armauthorization.RoleDefinitionsClientListOptions
	if len(filter) > 0 {
		options = &armauthorization.RoleDefinitionsClientListOptions{Filter: to.Ptr(filter)}
	}
	pager := r.client.NewListPager(scope, options)
	return collect(ctx, pager, func(page armauthorization.RoleDefinitionsClientListResponse) []*armauthorization.RoleDefinition {
		return page.Value
	})
}

func (r *roleDefinitions) Get(ctx context.Context, scope, id string) (*armauthorization.RoleDefinition, error) {
	resp, err := r.client.Get(ctx, scope, id, nil)
	if err != nil {
		return nil, err
	}
	return &resp.RoleDefinition, nil
}

type roleAssignments struct {
	client *armauthorization.RoleAssignmentsClient
}

func (c *armClients) RoleAssignments() (RoleAssignmentsAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armauthorization.NewRoleAssignmentsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create role assignments client: %w", err)
	}
	return &roleAssignments{client: client}, nil
}

func (r *roleAssignments) List(ctx context.Context, scope, filter string) ([]*armauthorization.RoleAssignment, error) {
	var options *armauthorization.RoleAssignmentsClientListForScopeOptions
	if len(filter) > 0 {
		options = &armauthorization.RoleAssignmentsClientListForScopeOptions{Filter: to.Ptr(filter)}
	}
	pager := r.client.NewListForScopePager(scope, options)
	return collect(ctx, pager, func(page armauthorization.RoleAssignmentsClientListForScopeResponse) []*armauthorization.RoleAssignment {
		return page.Value
	})
}

func (r *roleAssignments) Create(ctx context.Context, scope, name, roleDefinitionID, principalID string) (*armauthorization.RoleAssignment, error) {
	resp, err := r.client.Create(ctx, scope, name, armauthorization.RoleAssignmentCreateParameters{
		Properties: &armauthorization.RoleAssignmentProperties{
			RoleDefinitionID: to.Ptr(roleDefinitionID),
			PrincipalID:      to.Ptr(principalID),
		},
	}, nil)
	if err != nil {
		return nil, err
	}
	return &resp.RoleAssignment, nil
}

func (r *roleAssignments) Delete(ctx context.Context, scope, name string) error {
	_, err := r.client.Delete(ctx, scope, name, nil)
	return err
}
