package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

const vaultModule = "azurerm_keyvault_vault"

// vaultSKU accepts "standard" or "premium". Vault SKU names are lower case
// and always in family A.
func vaultSKU(v any) (any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	name, err := cast.ToStringE(v)
	if err != nil {
		return nil, err
	}
	return map[string]any{"family": "A", "name": strings.ToLower(name)}, nil
}

var accessPolicySchema = schema{
	{arg: "tenant_id", path: "tenantId", conv: asString},
	{arg: "object_id", path: "objectId", conv: asString},
	{arg: "application_id", path: "applicationId", conv: asString},
	{arg: "permissions", path: "permissions", conv: asMap},
}

var vaultSchema = schema{
	locationField,
	tagsField,
	{arg: "tenant_id", path: "properties.tenantId", conv: asString},
	{arg: "sku", path: "properties.sku", conv: vaultSKU},
	{arg: "access_policies", path: "properties.accessPolicies", conv: each(accessPolicySchema)},
	{arg: "vault_uri", path: "properties.vaultUri", conv: asString},
	{arg: "create_mode", path: "properties.createMode", conv: asString},
	{arg: "enabled_for_deployment", path: "properties.enabledForDeployment", conv: asBool},
	{arg: "enabled_for_disk_encryption", path: "properties.enabledForDiskEncryption", conv: asBool},
	{arg: "enabled_for_template_deployment", path: "properties.enabledForTemplateDeployment", conv: asBool},
	{arg: "enable_soft_delete", path: "properties.enableSoftDelete", conv: asBool},
	{arg: "soft_delete_retention", path: "properties.softDeleteRetentionInDays", conv: asInt},
	{arg: "enable_purge_protection", path: "properties.enablePurgeProtection", conv: asBool},
	{arg: "enable_rbac_authorization", path: "properties.enableRbacAuthorization", conv: asBool},
	{arg: "public_network_access", path: "properties.publicNetworkAccess", conv: asString},
	{arg: "network_acls", path: "properties.networkAcls", conv: asMap},
}

type vaultLocationArgs struct {
	Name     string `mapstructure:"name" validate:"required"`
	Location string `mapstructure:"location" validate:"required"`
}

type accessPolicyList struct {
	Policies []*armkeyvault.AccessPolicyEntry `json:"policies"`
}

type accessPolicyArgs struct {
	ResourceArgs   `mapstructure:",squash"`
	Operation      string           `mapstructure:"operation_kind" validate:"required"`
	AccessPolicies []map[string]any `mapstructure:"access_policies" validate:"required"`
}

func (e *Env) vaults(ctx context.Context, req *loader.Request) (azure.Clients, azure.VaultsAPI, error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	api, err := clients.Vaults()
	if err != nil {
		return nil, nil, err
	}
	return clients, api, nil
}

// vaultDescriptor builds the vault body. Access policies without a tenant
// get the vault's.
func vaultDescriptor(args models.BasicConfig) (map[string]any, error) {
	desc, err := vaultSchema.descriptor(args)
	if err != nil {
		return nil, modelError(err)
	}
	if tenant, ok := getPath(desc, "properties.tenantId"); ok {
		policies, _ := getPath(desc, "properties.accessPolicies")
		items, _ := policies.([]any)
		for _, item := range items {
			if policy, ok := item.(map[string]any); ok {
				if _, ok := policy["tenantId"]; !ok {
					policy["tenantId"] = tenant
				}
			}
		}
	}
	return desc, nil
}

func (e *Env) vaultCreateOrUpdate(ctx context.Context, req *loader.Request) (any, error) {
	ref, err := decodeRef(req)
	if err != nil {
		return nil, err
	}
	clients, api, err := e.vaults(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := ensureLocation(ctx, clients, req.Args, ref.ResourceGroup); err != nil {
		return nil, err
	}

	desc, err := vaultDescriptor(req.Args)
	if err != nil {
		return nil, err
	}
	params, err := build[armkeyvault.VaultCreateOrUpdateParameters](desc)
	if err != nil {
		return nil, err
	}
	vault, err := api.CreateOrUpdate(ctx, ref, params)
	if err != nil {
		return nil, err
	}
	return describe(vault)
}

func (e *Env) registerVaults(reg *loader.Registry) {
	register(reg, vaultModule, "keyvault", []function{
		{
			name: "create_or_update", params: []string{"name", "resource_group", "tenant_id", "sku"},
			required: []string{"name", "resource_group", "tenant_id", "sku"},
			doc:        "Create or update a key vault.",
			fn:         e.vaultCreateOrUpdate,
			descriptor: vaultDescriptor,
		},
		{
			name: "delete", params: nameAndGroup, required: nameAndGroup,
			doc: "Delete a key vault.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				ref, err := decodeRef(req)
				if err != nil {
					return nil, err
				}
				_, api, err := e.vaults(ctx, req)
				if err != nil {
					return nil, err
				}
				if err := api.Delete(ctx, ref); err != nil {
					return nil, err
				}
				return true, nil
			},
		},
		{
			name: "get", params: nameAndGroup, required: nameAndGroup,
			doc: "Get a key vault.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				ref, err := decodeRef(req)
				if err != nil {
					return nil, err
				}
				_, api, err := e.vaults(ctx, req)
				if err != nil {
					return nil, err
				}
				vault, err := api.Get(ctx, ref)
				if err != nil {
					return nil, err
				}
				return describe(vault)
			},
		},
		{
			name: "list", params: []string{"resource_group"},
			doc: "List key vaults in a resource group, or the subscription when none is given.",
			fn:  e.vaultsList,
		},
		{
			name: "list_by_subscription",
			doc:  "List key vaults in the subscription.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				req.Args = req.Args.Without("resource_group")
				return e.vaultsList(ctx, req)
			},
		},
		{
			name: "check_name_availability", params: []string{"name"}, required: []string{"name"},
			doc: "Check whether a key vault name is available.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				_, api, err := e.vaults(ctx, req)
				if err != nil {
					return nil, err
				}
				name, _ := req.Args.GetString("name")
				result, err := api.CheckNameAvailability(ctx, name)
				if err != nil {
					return nil, err
				}
				return describe(result)
			},
		},
		{
			name: "get_deleted", params: []string{"name", "location"}, required: []string{"name", "location"},
			doc: "Get a deleted key vault.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args vaultLocationArgs
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				_, api, err := e.vaults(ctx, req)
				if err != nil {
					return nil, err
				}
				vault, err := api.GetDeleted(ctx, args.Name, args.Location)
				if err != nil {
					return nil, err
				}
				return describe(vault)
			},
		},
		{
			name: "list_deleted",
			doc:  "List deleted key vaults in the subscription.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				_, api, err := e.vaults(ctx, req)
				if err != nil {
					return nil, err
				}
				vaults, err := api.ListDeleted(ctx)
				if err != nil {
					return nil, err
				}
				return keyed(vaults)
			},
		},
		{
			name: "purge_deleted", params: []string{"name", "location"}, required: []string{"name", "location"},
			doc: "Permanently delete a deleted key vault.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				var args vaultLocationArgs
				if err := loader.Decode(req.Function, req.Args, &args); err != nil {
					return nil, err
				}
				_, api, err := e.vaults(ctx, req)
				if err != nil {
					return nil, err
				}
				if err := api.PurgeDeleted(ctx, args.Name, args.Location); err != nil {
					return nil, err
				}
				return true, nil
			},
		},
		{
			name:     "update_access_policy",
			params:   []string{"name", "resource_group", "operation_kind", "access_policies"},
			required: []string{"name", "resource_group", "operation_kind", "access_policies"},
			doc:      "Add, replace or remove access policies of a key vault.",
			fn:       e.vaultUpdateAccessPolicy,
		},
	})
}

func (e *Env) vaultsList(ctx context.Context, req *loader.Request) (any, error) {
	_, api, err := e.vaults(ctx, req)
	if err != nil {
		return nil, err
	}
	group, _ := req.Args.GetString("resource_group")
	vaults, err := api.List(ctx, azure.Ref{ResourceGroup: group})
	if err != nil {
		return nil, err
	}
	return keyed(vaults)
}

func accessPolicyKind(kind string) (armkeyvault.AccessPolicyUpdateKind, error) {
	for _, known := range armkeyvault.PossibleAccessPolicyUpdateKindValues() {
		if strings.EqualFold(string(known), kind) {
			return known, nil
		}
	}
	return "", fmt.Errorf("operation_kind must be one of add, replace or remove, got %q", kind)
}

func (e *Env) vaultUpdateAccessPolicy(ctx context.Context, req *loader.Request) (any, error) {
	var args accessPolicyArgs
	if err := loader.Decode(req.Function, req.Args, &args); err != nil {
		return nil, err
	}
	kind, err := accessPolicyKind(args.Operation)
	if err != nil {
		return nil, loader.Invalid(req.Function, err)
	}

	items := make([]any, 0, len(args.AccessPolicies))
	for _, policy := range args.AccessPolicies {
		items = append(items, policy)
	}
	converted, err := each(accessPolicySchema)(items)
	if err != nil {
		return nil, modelError(err)
	}
	list, err := build[accessPolicyList](map[string]any{"policies": converted})
	if err != nil {
		return nil, err
	}

	_, api, err := e.vaults(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := api.UpdateAccessPolicy(ctx, args.Ref(), kind, list.Policies)
	if err != nil {
		return nil, err
	}
	return describe(result)
}
