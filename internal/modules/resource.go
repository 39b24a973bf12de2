package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/loader"
)

const resourceModule = "azurerm_resource"

var resourceGroupSchema = schema{
	locationField,
	tagsField,
	{arg: "managed_by", path: "managedBy", conv: asString},
}

func (e *Env) registerResource(reg *loader.Registry) {
	register(reg, resourceModule, "resource", []function{
		{name: "resource_groups_list", doc: "List all resource groups within a subscription.", fn: e.resourceGroupsList},
		{name: "resource_group_check_existence", params: []string{"name"}, required: []string{"name"},
			doc: "Check for the existence of a named resource group.", fn: e.resourceGroupCheckExistence},
		{name: "resource_group_get", params: []string{"name"}, required: []string{"name"},
			doc: "Get a resource group.", fn: e.resourceGroupGet},
		{name: "resource_group_create_or_update", params: []string{"name", "location"}, required: []string{"name", "location"},
			doc: "Create or update a resource group in a given location.", fn: e.resourceGroupCreateOrUpdate,
			descriptor: resourceGroupSchema.describer()},
		{name: "resource_group_delete", params: []string{"name"}, required: []string{"name"},
			doc: "Delete a resource group from the subscription.", fn: e.resourceGroupDelete},
		{name: "resource_get_by_id", params: []string{"resource_id", "api_version"}, required: []string{"resource_id"},
			doc: "Get any resource by its ARM ID.", fn: e.resourceGetByID},
		{name: "provider_api_versions", params: []string{"resource_provider", "resource_type"}, required: []string{"resource_provider", "resource_type"},
			doc: "List the API versions of a resource type.", fn: e.providerAPIVersions},
	})

	register(reg, resourceModule, "subscription", []function{
		{name: "subscriptions_list", doc: "List all subscriptions for a tenant.", fn: e.subscriptionsList},
		{name: "subscription_get", params: []string{"subscription_id"},
			doc: "Get details about a subscription.", fn: e.subscriptionGet},
		{name: "subscriptions_list_locations", params: []string{"subscription_id"},
			doc: "List all locations for a subscription.", fn: e.subscriptionsListLocations},
		{name: "tenants_list", doc: "List all tenants for your account.", fn: e.tenantsList},
	})
}

func (e *Env) resourceGroups(ctx context.Context, req *loader.Request) (azure.ResourceGroupsAPI, error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	return clients.ResourceGroups()
}

func (e *Env) resourceGroupsList(ctx context.Context, req *loader.Request) (any, error) {
	groups, err := e.resourceGroups(ctx, req)
	if err != nil {
		return nil, err
	}
	items, err := groups.List(ctx, azure.Ref{})
	if err != nil {
		return nil, err
	}
	return keyed(items)
}

func (e *Env) resourceGroupCheckExistence(ctx context.Context, req *loader.Request) (any, error) {
	groups, err := e.resourceGroups(ctx, req)
	if err != nil {
		return nil, err
	}
	name, _ := req.Args.GetString("name")
	return groups.CheckExistence(ctx, name)
}

func (e *Env) resourceGroupGet(ctx context.Context, req *loader.Request) (any, error) {
	groups, err := e.resourceGroups(ctx, req)
	if err != nil {
		return nil, err
	}
	name, _ := req.Args.GetString("name")
	group, err := groups.Get(ctx, azure.Ref{Name: name})
	if err != nil {
		return nil, err
	}
	return describe(group)
}

func (e *Env) resourceGroupCreateOrUpdate(ctx context.Context, req *loader.Request) (any, error) {
	groups, err := e.resourceGroups(ctx, req)
	if err != nil {
		return nil, err
	}
	name, _ := req.Args.GetString("name")

	desc, err := resourceGroupSchema.descriptor(req.Args)
	if err != nil {
		return nil, modelError(err)
	}
	model, err := build[armresources.ResourceGroup](desc)
	if err != nil {
		return nil, err
	}

	group, err := groups.CreateOrUpdate(ctx, azure.Ref{Name: name}, model)
	if err != nil {
		return nil, err
	}
	return describe(group)
}

func (e *Env) resourceGroupDelete(ctx context.Context, req *loader.Request) (any, error) {
	groups, err := e.resourceGroups(ctx, req)
	if err != nil {
		return nil, err
	}
	name, _ := req.Args.GetString("name")
	if err := groups.Delete(ctx, azure.Ref{Name: name}); err != nil {
		return nil, err
	}
	return true, nil
}

func (e *Env) resourceGetByID(ctx context.Context, req *loader.Request) (any, error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	resources, err := clients.Resources()
	if err != nil {
		return nil, err
	}

	id, _ := req.Args.GetString("resource_id")
	apiVersion, ok := req.Args.GetString("api_version")
	if !ok || len(apiVersion) == 0 {
		apiVersion, err = latestAPIVersion(ctx, resources, id)
		if err != nil {
			return nil, err
		}
	}

	resource, err := resources.GetByID(ctx, id, apiVersion)
	if err != nil {
		return nil, err
	}
	return describe(resource)
}

// latestAPIVersion picks the newest stable API version of the resource
// type an ID points at.
func latestAPIVersion(ctx context.Context, resources azure.ResourcesAPI, id string) (string, error) {
	parsed, err := arm.ParseResourceID(id)
	if err != nil {
		return "", loader.Invalid("resource_get_by_id", fmt.Errorf("invalid resource ID %q: %w", id, err))
	}
	versions, err := resources.ProviderAPIVersions(ctx, parsed.ResourceType.Namespace,
		strings.Join(parsed.ResourceType.Types, "/"))
	if err != nil {
		return "", err
	}
	for _, version := range versions {
		if !common.ContainsInsensitive(version, "preview") {
			return version, nil
		}
	}
	if len(versions) > 0 {
		return versions[0], nil
	}
	return "", fmt.Errorf("no API versions found for %s", parsed.ResourceType.String())
}

func (e *Env) providerAPIVersions(ctx context.Context, req *loader.Request) (any, error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	resources, err := clients.Resources()
	if err != nil {
		return nil, err
	}
	namespace, _ := req.Args.GetString("resource_provider")
	resourceType, _ := req.Args.GetString("resource_type")
	return resources.ProviderAPIVersions(ctx, namespace, resourceType)
}

func (e *Env) subscriptions(ctx context.Context, req *loader.Request) (azure.SubscriptionsAPI, error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	return clients.Subscriptions()
}

// subscriptionID is the subscription_id argument, or the subscription of
// the connection profile when the call does not name one.
func (e *Env) subscriptionID(ctx context.Context, req *loader.Request) (string, error) {
	if id, ok := req.Args.GetString("subscription_id"); ok && len(id) > 0 {
		return id, nil
	}
	clients, err := e.connect(ctx, req)
	if err != nil {
		return "", err
	}
	if len(clients.SubscriptionID()) == 0 {
		return "", azure.ErrSubscriptionRequired
	}
	return clients.SubscriptionID(), nil
}

func (e *Env) subscriptionsList(ctx context.Context, req *loader.Request) (any, error) {
	subs, err := e.subscriptions(ctx, req)
	if err != nil {
		return nil, err
	}
	items, err := subs.List(ctx)
	if err != nil {
		return nil, err
	}
	maps, err := common.ConvertSliceToMaps(items)
	if err != nil {
		return nil, err
	}
	return common.KeyByField(maps, "subscriptionId"), nil
}

func (e *Env) subscriptionGet(ctx context.Context, req *loader.Request) (any, error) {
	subs, err := e.subscriptions(ctx, req)
	if err != nil {
		return nil, err
	}
	subscriptionID, err := e.subscriptionID(ctx, req)
	if err != nil {
		return nil, err
	}
	sub, err := subs.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return describe(sub)
}

func (e *Env) subscriptionsListLocations(ctx context.Context, req *loader.Request) (any, error) {
	subs, err := e.subscriptions(ctx, req)
	if err != nil {
		return nil, err
	}
	subscriptionID, err := e.subscriptionID(ctx, req)
	if err != nil {
		return nil, err
	}
	locations, err := subs.ListLocations(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return keyed(locations)
}

func (e *Env) tenantsList(ctx context.Context, req *loader.Request) (any, error) {
	subs, err := e.subscriptions(ctx, req)
	if err != nil {
		return nil, err
	}
	tenants, err := subs.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	maps, err := common.ConvertSliceToMaps(tenants)
	if err != nil {
		return nil, err
	}
	return common.KeyByField(maps, "tenantId"), nil
}
