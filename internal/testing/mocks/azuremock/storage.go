package azuremock

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
)

type StorageAccounts struct {
	*Memory[armstorage.Account]
	// Keys are returned by ListKeys for every account.
	Keys []*armstorage.AccountKey
}

func (s *StorageAccounts) ListKeys(ctx context.Context, ref azure.Ref) ([]*armstorage.AccountKey, error) {
	if _, err := s.Get(ctx, ref); err != nil {
		return nil, err
	}
	if s.Keys != nil {
		return s.Keys, nil
	}
	return []*armstorage.AccountKey{
		{KeyName: to.Ptr("key1"), Value: to.Ptr("a2V5MQ=="), Permissions: to.Ptr(armstorage.KeyPermissionFull)},
		{KeyName: to.Ptr("key2"), Value: to.Ptr("a2V5Mg=="), Permissions: to.Ptr(armstorage.KeyPermissionFull)},
	}, nil
}

type RoleDefinitions struct {
	Items []*armauthorization.RoleDefinition
}

func (r *RoleDefinitions) List(ctx context.Context, scope, filter string) ([]*armauthorization.RoleDefinition, error) {
	return r.Items, nil
}

func (r *RoleDefinitions) Get(ctx context.Context, scope, id string) (*armauthorization.RoleDefinition, error) {
	for _, item := range r.Items {
		if item.ID != nil && (*item.ID == id || common.LastSegment(*item.ID) == id) {
			return item, nil
		}
		if item.Name != nil && *item.Name == id {
			return item, nil
		}
	}
	return nil, azure.ErrNotFound
}

type RoleAssignments struct {
	Items []*armauthorization.RoleAssignment
}

func (r *RoleAssignments) List(ctx context.Context, scope, filter string) ([]*armauthorization.RoleAssignment, error) {
	var result []*armauthorization.RoleAssignment
	for _, item := range r.Items {
		if item.Properties != nil && item.Properties.Scope != nil && *item.Properties.Scope != scope {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}

func (r *RoleAssignments) Create(ctx context.Context, scope, name, roleDefinitionID, principalID string) (*armauthorization.RoleAssignment, error) {
	item := &armauthorization.RoleAssignment{
		ID:   to.Ptr(scope + "/providers/Microsoft.Authorization/roleAssignments/" + name),
		Name: to.Ptr(name),
		Type: to.Ptr("Microsoft.Authorization/roleAssignments"),
		Properties: &armauthorization.RoleAssignmentPropertiesWithScope{
			PrincipalID:      to.Ptr(principalID),
			RoleDefinitionID: to.Ptr(roleDefinitionID),
			Scope:            to.Ptr(scope),
		},
	}
	r.Items = append(r.Items, item)
	return item, nil
}

func (r *RoleAssignments) Delete(ctx context.Context, scope, name string) error {
	for i, item := range r.Items {
		if item.Name != nil && *item.Name == name {
			r.Items = append(r.Items[:i], r.Items[i+1:]...)
			return nil
		}
	}
	return azure.ErrNotFound
}
