package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
)

type ResourceGroupsAPI interface {
	Operations[armresources.ResourceGroup]
	CheckExistence(ctx context.Context, name string) (bool, error)
}

type ResourcesAPI interface {
	GetByID(ctx context.Context, id string, apiVersion string) (*armresources.GenericResource, error)
	// ProviderAPIVersions lists the API versions of a resource type, newest
	// first as the provider reports them.
	ProviderAPIVersions(ctx context.Context, namespace string, resourceType string) ([]string, error)
}

type resourceGroups struct {
	client *armresources.ResourceGroupsClient
}

func (c *armClients) ResourceGroups() (ResourceGroupsAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armresources.NewResourceGroupsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create resource groups client: %w", err)
	}
	return &resourceGroups{client: client}, nil
}

func (r *resourceGroups) Get(ctx context.Context, ref Ref) (*armresources.ResourceGroup, error) {
	resp, err := r.client.Get(ctx, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.ResourceGroup, nil
}

func (r *resourceGroups) List(ctx context.Context, _ Ref) ([]*armresources.ResourceGroup, error) {
	pager := r.client.NewListPager(nil)
	return collect(ctx, pager, func(page armresources.ResourceGroupsClientListResponse) []*armresources.ResourceGroup {
		return page.Value
	})
}

func (r *resourceGroups) CreateOrUpdate(ctx context.Context, ref Ref, model armresources.ResourceGroup) (*armresources.ResourceGroup, error) {
	resp, err := r.client.CreateOrUpdate(ctx, ref.Name, model, nil)
	if err != nil {
		return nil, err
	}
	return &resp.ResourceGroup, nil
}

func (r *resourceGroups) Delete(ctx context.Context, ref Ref) error {
	poller, err := r.client.BeginDelete(ctx, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

func (r *resourceGroups) CheckExistence(ctx context.Context, name string) (bool, error) {
	resp, err := r.client.CheckExistence(ctx, name, nil)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

type resources struct {
	client    *armresources.Client
	providers *armresources.ProvidersClient
}

func (c *armClients) Resources() (ResourcesAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armresources.NewClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create resources client: %w", err)
	}
	providers, err := armresources.NewProvidersClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create providers client: %w", err)
	}
	return &resources{client: client, providers: providers}, nil
}

func (r *resources) GetByID(ctx context.Context, id string, apiVersion string) (*armresources.GenericResource, error) {
	resp, err := r.client.GetByID(ctx, id, apiVersion, nil)
	if err != nil {
		return nil, err
	}
	return &resp.GenericResource, nil
}

func (r *resources) ProviderAPIVersions(ctx context.Context, namespace string, resourceType string) ([]string, error) {
	resp, err := r.providers.Get(ctx, namespace, nil)
	if err != nil {
		return nil, err
	}
	for _, rt := range resp.ResourceTypes {
		if rt == nil || rt.ResourceType == nil {
			continue
		}
		if strings.EqualFold(*rt.ResourceType, resourceType) {
			versions := make([]string, 0, len(rt.APIVersions))
			for _, v := range rt.APIVersions {
				if v != nil {
					versions = append(versions, *v)
				}
			}
			return versions, nil
		}
	}
	return nil, fmt.Errorf("%w: resource type %s/%s", ErrNotFound, namespace, resourceType)
}

// DeploymentsAPI covers template deployments of one resource group and the
// operations they ran. Operation refs carry the deployment as Parent and the
// operation id as Name.
type DeploymentsAPI interface {
	Get(ctx context.Context, ref Ref) (*armresources.DeploymentExtended, error)
	List(ctx context.Context, ref Ref) ([]*armresources.DeploymentExtended, error)
	CheckExistence(ctx context.Context, ref Ref) (bool, error)
	Validate(ctx context.Context, ref Ref, deployment armresources.Deployment) (*armresources.DeploymentValidateResult, error)
	CreateOrUpdate(ctx context.Context, ref Ref, deployment armresources.Deployment) (*armresources.DeploymentExtended, error)
	Delete(ctx context.Context, ref Ref) error
	Cancel(ctx context.Context, ref Ref) error
	ExportTemplate(ctx context.Context, ref Ref) (*armresources.DeploymentExportResult, error)
	GetOperation(ctx context.Context, ref Ref) (*armresources.DeploymentOperation, error)
	ListOperations(ctx context.Context, ref Ref, top int32) ([]*armresources.DeploymentOperation, error)
}

type deployments struct {
	client     *armresources.DeploymentsClient
	operations *armresources.DeploymentOperationsClient
}

func (c *armClients) Deployments() (DeploymentsAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armresources.NewDeploymentsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create deployments client: %w", err)
	}
	operations, err := armresources.NewDeploymentOperationsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create deployment operations client: %w", err)
	}
	return &deployments{client: client, operations: operations}, nil
}

func (d *deployments) Get(ctx context.Context, ref Ref) (*armresources.DeploymentExtended, error) {
	resp, err := d.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.DeploymentExtended, nil
}

func (d *deployments) List(ctx context.Context, ref Ref) ([]*armresources.DeploymentExtended, error) {
	pager := d.client.NewListByResourceGroupPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armresources.DeploymentsClientListByResourceGroupResponse) []*armresources.DeploymentExtended {
		return page.Value
	})
}

func (d *deployments) CheckExistence(ctx context.Context, ref Ref) (bool, error) {
	resp, err := d.client.CheckExistence(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (d *deployments) Validate(ctx context.Context, ref Ref, deployment armresources.Deployment) (*armresources.DeploymentValidateResult, error) {
	poller, err := d.client.BeginValidate(ctx, ref.ResourceGroup, ref.Name, deployment, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.DeploymentValidateResult, nil
}

func (d *deployments) CreateOrUpdate(ctx context.Context, ref Ref, deployment armresources.Deployment) (*armresources.DeploymentExtended, error) {
	poller, err := d.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, deployment, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.DeploymentExtended, nil
}

func (d *deployments) Delete(ctx context.Context, ref Ref) error {
	poller, err := d.client.BeginDelete(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

func (d *deployments) Cancel(ctx context.Context, ref Ref) error {
	_, err := d.client.Cancel(ctx, ref.ResourceGroup, ref.Name, nil)
	return err
}

func (d *deployments) ExportTemplate(ctx context.Context, ref Ref) (*armresources.DeploymentExportResult, error) {
	resp, err := d.client.ExportTemplate(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.DeploymentExportResult, nil
}

func (d *deployments) GetOperation(ctx context.Context, ref Ref) (*armresources.DeploymentOperation, error) {
	resp, err := d.operations.Get(ctx, ref.ResourceGroup, ref.Parent, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.DeploymentOperation, nil
}

func (d *deployments) ListOperations(ctx context.Context, ref Ref, top int32) ([]*armresources.DeploymentOperation, error) {
	var options *armresources.DeploymentOperationsClientListOptions
	if top > 0 {
		options = &armresources.DeploymentOperationsClientListOptions{Top: &top}
	}
	pager := d.operations.NewListPager(ref.ResourceGroup, ref.Parent, options)
	return collect(ctx, pager, func(page armresources.DeploymentOperationsClientListResponse) []*armresources.DeploymentOperation {
		return page.Value
	})
}
