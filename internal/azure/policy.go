package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armpolicy"
)

type PolicyAssignmentsAPI interface {
	Get(ctx context.Context, scope, name string) (*armpolicy.Assignment, error)
	// List lists the assignments of a resource group, or of the whole
	// subscription when resourceGroup is empty.
	List(ctx context.Context, resourceGroup, filter string) ([]*armpolicy.Assignment, error)
	Create(ctx context.Context, scope, name string, assignment armpolicy.Assignment) (*armpolicy.Assignment, error)
	Delete(ctx context.Context, scope, name string) error
}

// PolicyDefinitionsAPI covers the definitions of the subscription. List
// includes the built-in definitions.
type PolicyDefinitionsAPI interface {
	Get(ctx context.Context, name string) (*armpolicy.Definition, error)
	List(ctx context.Context) ([]*armpolicy.Definition, error)
	CreateOrUpdate(ctx context.Context, name string, definition armpolicy.Definition) (*armpolicy.Definition, error)
	Delete(ctx context.Context, name string) error
}

type policyAssignments struct {
	client *armpolicy.AssignmentsClient
}

func (c *armClients) PolicyAssignments() (PolicyAssignmentsAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armpolicy.NewAssignmentsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create policy assignments client: %w", err)
	}
	return &policyAssignments{client: client}, nil
}

func (p *policyAssignments) Get(ctx context.Context, scope, name string) (*armpolicy.Assignment, error) {
	resp, err := p.client.Get(ctx, scope, name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Assignment, nil
}

func (p *policyAssignments) List(ctx context.Context, resourceGroup, filter string) ([]*armpolicy.Assignment, error) {
	if len(resourceGroup) == 0 {
		var options *armpolicy.AssignmentsClientListOptions
		if len(filter) > 0 {
			options = &armpolicy.AssignmentsClientListOptions{Filter: to.Ptr(filter)}
		}
		pager := p.client.NewListPager(options)
		return collect(ctx, pager, func(page armpolicy.AssignmentsClientListResponse) []*armpolicy.Assignment {
			return page.Value
		})
	}

	var options *armpolicy.AssignmentsClientListForResourceGroupOptions
	if len(filter) > 0 {
		options = &armpolicy.AssignmentsClientListForResourceGroupOptions{Filter: to.Ptr(filter)}
	}
	pager := p.client.NewListForResourceGroupPager(resourceGroup, options)
	return collect(ctx, pager, func(page armpolicy.AssignmentsClientListForResourceGroupResponse) []*armpolicy.Assignment {
		return page.Value
	})
}

func (p *policyAssignments) Create(ctx context.Context, scope, name string, assignment armpolicy.Assignment) (*armpolicy.Assignment, error) {
	resp, err := p.client.Create(ctx, scope, name, assignment, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Assignment, nil
}

func (p *policyAssignments) Delete(ctx context.Context, scope, name string) error {
	_, err := p.client.Delete(ctx, scope, name, nil)
	return err
}

type policyDefinitions struct {
	client *armpolicy.DefinitionsClient
}

func (c *armClients) PolicyDefinitions() (PolicyDefinitionsAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armpolicy.NewDefinitionsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create policy definitions client: %w", err)
	}
	return &policyDefinitions{client: client}, nil
}

func (p *policyDefinitions) Get(ctx context.Context, name string) (*armpolicy.Definition, error) {
	resp, err := p.client.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Definition, nil
}

func (p *policyDefinitions) List(ctx context.Context) ([]*armpolicy.Definition, error) {
	pager := p.client.NewListPager(nil)
	return collect(ctx, pager, func(page armpolicy.DefinitionsClientListResponse) []*armpolicy.Definition {
		return page.Value
	})
}

func (p *policyDefinitions) CreateOrUpdate(ctx context.Context, name string, definition armpolicy.Definition) (*armpolicy.Definition, error) {
	resp, err := p.client.CreateOrUpdate(ctx, name, definition, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Definition, nil
}

func (p *policyDefinitions) Delete(ctx context.Context, name string) error {
	_, err := p.client.Delete(ctx, name, nil)
	return err
}
