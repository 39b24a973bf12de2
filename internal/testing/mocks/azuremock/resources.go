package azuremock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"github.com/thand-io/azurerm/internal/azure"
)

type ResourceGroups struct {
	*Memory[armresources.ResourceGroup]
}

func NewResourceGroups(sub string) *ResourceGroups {
	m := NewMemory[armresources.ResourceGroup](sub, "")
	m.IDFunc = func(ref azure.Ref) string {
		return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", sub, ref.Name)
	}
	return &ResourceGroups{Memory: m}
}

func (r *ResourceGroups) CheckExistence(ctx context.Context, name string) (bool, error) {
	_, err := r.Get(ctx, azure.Ref{Name: name})
	if azure.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type Resources struct {
	Generic     map[string]*armresources.GenericResource
	APIVersions map[string][]string
}

func (r *Resources) GetByID(ctx context.Context, id string, apiVersion string) (*armresources.GenericResource, error) {
	if res, ok := r.Generic[strings.ToLower(id)]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("%s: %w", id, azure.ErrNotFound)
}

func (r *Resources) ProviderAPIVersions(ctx context.Context, namespace string, resourceType string) ([]string, error) {
	if versions, ok := r.APIVersions[strings.ToLower(namespace+"/"+resourceType)]; ok {
		return versions, nil
	}
	return nil, fmt.Errorf("%s/%s: %w", namespace, resourceType, azure.ErrNotFound)
}

// Deployments stores template deployments. Every resource in a submitted
// template becomes one succeeded deployment operation.
type Deployments struct {
	*Memory[armresources.DeploymentExtended]

	mu         sync.Mutex
	templates  map[string]any
	operations map[string][]*armresources.DeploymentOperation

	// ValidationError, when set, is reported by Validate as a template error.
	ValidationError *armresources.ErrorResponse
	// Submitted records every deployment passed to CreateOrUpdate.
	Submitted []armresources.Deployment
	Cancelled []azure.Ref
}

func NewDeployments(sub string) *Deployments {
	return &Deployments{
		Memory:     NewMemory[armresources.DeploymentExtended](sub, "Microsoft.Resources/deployments"),
		templates:  map[string]any{},
		operations: map[string][]*armresources.DeploymentOperation{},
	}
}

func (d *Deployments) CheckExistence(ctx context.Context, ref azure.Ref) (bool, error) {
	_, err := d.Get(ctx, ref)
	if azure.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Deployments) Validate(ctx context.Context, ref azure.Ref, deployment armresources.Deployment) (*armresources.DeploymentValidateResult, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	if d.ValidationError != nil {
		return &armresources.DeploymentValidateResult{Error: d.ValidationError}, nil
	}
	return &armresources.DeploymentValidateResult{
		Properties: extendedProperties(deployment, armresources.ProvisioningStateSucceeded),
	}, nil
}

func (d *Deployments) CreateOrUpdate(ctx context.Context, ref azure.Ref, deployment armresources.Deployment) (*armresources.DeploymentExtended, error) {
	created, err := d.Memory.CreateOrUpdate(ctx, ref, armresources.DeploymentExtended{
		Location:   deployment.Location,
		Tags:       deployment.Tags,
		Properties: extendedProperties(deployment, armresources.ProvisioningStateSucceeded),
	})
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.Submitted = append(d.Submitted, deployment)
	var template any
	if deployment.Properties != nil {
		template = deployment.Properties.Template
	}
	d.templates[key(ref)] = template
	d.operations[key(ref)] = d.templateOperations(ref, template)
	return created, nil
}

func extendedProperties(deployment armresources.Deployment, state armresources.ProvisioningState) *armresources.DeploymentPropertiesExtended {
	props := &armresources.DeploymentPropertiesExtended{ProvisioningState: to.Ptr(state)}
	if deployment.Properties != nil {
		props.Mode = deployment.Properties.Mode
		props.DebugSetting = deployment.Properties.DebugSetting
		props.Parameters = deployment.Properties.Parameters
		props.ParametersLink = deployment.Properties.ParametersLink
		props.TemplateLink = deployment.Properties.TemplateLink
	}
	return props
}

func (d *Deployments) templateOperations(ref azure.Ref, template any) []*armresources.DeploymentOperation {
	body, _ := template.(map[string]any)
	resources, _ := body["resources"].([]any)
	operations := make([]*armresources.DeploymentOperation, 0, len(resources))
	for i, r := range resources {
		resource, _ := r.(map[string]any)
		name, _ := resource["name"].(string)
		kind, _ := resource["type"].(string)
		id := strconv.Itoa(i + 1)
		operations = append(operations, &armresources.DeploymentOperation{
			ID:          to.Ptr(d.ID(ref) + "/operations/" + id),
			OperationID: to.Ptr(id),
			Properties: &armresources.DeploymentOperationProperties{
				ProvisioningState:     to.Ptr(string(armresources.ProvisioningStateSucceeded)),
				ProvisioningOperation: to.Ptr(armresources.ProvisioningOperationCreate),
				TargetResource: &armresources.TargetResource{
					ID:           to.Ptr(azure.ResourceID(SubscriptionID, ref.ResourceGroup, kind+"/"+name)),
					ResourceName: to.Ptr(name),
					ResourceType: to.Ptr(kind),
				},
			},
		})
	}
	return operations
}

func (d *Deployments) Delete(ctx context.Context, ref azure.Ref) error {
	if err := d.Memory.Delete(ctx, ref); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.templates, key(ref))
	delete(d.operations, key(ref))
	return nil
}

func (d *Deployments) Cancel(ctx context.Context, ref azure.Ref) error {
	deployment, err := d.Get(ctx, ref)
	if err != nil {
		return err
	}
	if deployment.Properties == nil {
		deployment.Properties = &armresources.DeploymentPropertiesExtended{}
	}
	deployment.Properties.ProvisioningState = to.Ptr(armresources.ProvisioningStateCanceled)
	d.Put(ref, *deployment)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.Cancelled = append(d.Cancelled, ref)
	return nil
}

func (d *Deployments) ExportTemplate(ctx context.Context, ref azure.Ref) (*armresources.DeploymentExportResult, error) {
	if _, err := d.Get(ctx, ref); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return &armresources.DeploymentExportResult{Template: d.templates[key(ref)]}, nil
}

func (d *Deployments) GetOperation(ctx context.Context, ref azure.Ref) (*armresources.DeploymentOperation, error) {
	operations, err := d.ListOperations(ctx, ref, 0)
	if err != nil {
		return nil, err
	}
	for _, operation := range operations {
		if operation.OperationID != nil && *operation.OperationID == ref.Name {
			return operation, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", ref, azure.ErrNotFound)
}

// ListOperations returns the operations of the deployment named by
// ref.Parent, at most top of them when top is positive.
func (d *Deployments) ListOperations(ctx context.Context, ref azure.Ref, top int32) ([]*armresources.DeploymentOperation, error) {
	deployment := azure.Ref{ResourceGroup: ref.ResourceGroup, Name: ref.Parent}
	if _, err := d.Get(ctx, deployment); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	operations := d.operations[key(deployment)]
	if top > 0 && int(top) < len(operations) {
		operations = operations[:top]
	}
	return operations, nil
}

type Subscriptions struct {
	Items     []*armsubscriptions.Subscription
	Locations []*armsubscriptions.Location
	Tenants   []*armsubscriptions.TenantIDDescription
}

func NewSubscriptions(sub string) *Subscriptions {
	return &Subscriptions{
		Items: []*armsubscriptions.Subscription{{
			ID:             to.Ptr("/subscriptions/" + sub),
			SubscriptionID: to.Ptr(sub),
			DisplayName:    to.Ptr("Test Subscription"),
		}},
		Locations: []*armsubscriptions.Location{
			{Name: to.Ptr("eastus"), DisplayName: to.Ptr("East US")},
			{Name: to.Ptr("westus"), DisplayName: to.Ptr("West US")},
		},
		Tenants: []*armsubscriptions.TenantIDDescription{{
			TenantID: to.Ptr("00000000-0000-0000-0000-000000000000"),
		}},
	}
}

func (s *Subscriptions) List(ctx context.Context) ([]*armsubscriptions.Subscription, error) {
	return s.Items, nil
}

func (s *Subscriptions) Get(ctx context.Context, subscriptionID string) (*armsubscriptions.Subscription, error) {
	for _, item := range s.Items {
		if item.SubscriptionID != nil && strings.EqualFold(*item.SubscriptionID, subscriptionID) {
			return item, nil
		}
	}
	return nil, fmt.Errorf("subscription %s: %w", subscriptionID, azure.ErrNotFound)
}

func (s *Subscriptions) ListLocations(ctx context.Context, subscriptionID string) ([]*armsubscriptions.Location, error) {
	return s.Locations, nil
}

func (s *Subscriptions) ListTenants(ctx context.Context) ([]*armsubscriptions.TenantIDDescription, error) {
	return s.Tenants, nil
}
