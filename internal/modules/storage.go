package modules

import (
	"context"
	"fmt"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/loader"
)

const storageModule = "azurerm_storage"

func (e *Env) storageAccounts(ctx context.Context, req *loader.Request) (azure.StorageAccountsAPI, error) {
	clients, err := e.connect(ctx, req)
	if err != nil {
		return nil, err
	}
	return clients.StorageAccounts()
}

// storageFunc resolves name and resource_group and hands the storage
// accounts client to fn.
func (e *Env) storageFunc(fn func(ctx context.Context, api azure.StorageAccountsAPI, ref azure.Ref) (any, error)) loader.Func {
	return func(ctx context.Context, req *loader.Request) (any, error) {
		ref, err := decodeRef(req)
		if err != nil {
			return nil, err
		}
		api, err := e.storageAccounts(ctx, req)
		if err != nil {
			return nil, err
		}
		return fn(ctx, api, ref)
	}
}

func (e *Env) registerStorage(reg *loader.Registry) {
	register(reg, storageModule, "storage", []function{
		{
			name: "accounts_list", params: []string{"resource_group"},
			doc: "List storage accounts in a resource group, or the subscription when none is given.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				api, err := e.storageAccounts(ctx, req)
				if err != nil {
					return nil, err
				}
				group, _ := req.Args.GetString("resource_group")
				accounts, err := api.List(ctx, azure.Ref{ResourceGroup: group})
				if err != nil {
					return nil, err
				}
				return keyed(accounts)
			},
		},
		{
			name: "account_get", params: nameAndGroup, required: nameAndGroup,
			doc: "Get a storage account.",
			fn: e.storageFunc(func(ctx context.Context, api azure.StorageAccountsAPI, ref azure.Ref) (any, error) {
				account, err := api.Get(ctx, ref)
				if err != nil {
					return nil, err
				}
				return describe(account)
			}),
		},
		{
			name: "account_delete", params: nameAndGroup, required: nameAndGroup,
			doc: "Delete a storage account.",
			fn: e.storageFunc(func(ctx context.Context, api azure.StorageAccountsAPI, ref azure.Ref) (any, error) {
				if err := api.Delete(ctx, ref); err != nil {
					return nil, err
				}
				return true, nil
			}),
		},
		{
			name: "account_list_keys", params: nameAndGroup, required: nameAndGroup,
			doc: "List the access keys of a storage account, keyed by key name.",
			fn: e.storageFunc(func(ctx context.Context, api azure.StorageAccountsAPI, ref azure.Ref) (any, error) {
				keys, err := api.ListKeys(ctx, ref)
				if err != nil {
					return nil, err
				}
				maps, err := common.ConvertSliceToMaps(keys)
				if err != nil {
					return nil, fmt.Errorf("The object model could not be parsed. (%v)", err)
				}
				return common.KeyByField(maps, "keyName"), nil
			}),
		},
	})
}
