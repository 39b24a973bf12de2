package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
)

type VaultsAPI interface {
	Get(ctx context.Context, ref Ref) (*armkeyvault.Vault, error)
	// List lists vaults in a resource group, or the subscription when the
	// resource group is empty.
	List(ctx context.Context, ref Ref) ([]*armkeyvault.Vault, error)
	CreateOrUpdate(ctx context.Context, ref Ref, params armkeyvault.VaultCreateOrUpdateParameters) (*armkeyvault.Vault, error)
	Delete(ctx context.Context, ref Ref) error
	CheckNameAvailability(ctx context.Context, name string) (*armkeyvault.CheckNameAvailabilityResult, error)
	GetDeleted(ctx context.Context, name, location string) (*armkeyvault.DeletedVault, error)
	ListDeleted(ctx context.Context) ([]*armkeyvault.DeletedVault, error)
	PurgeDeleted(ctx context.Context, name, location string) error
	UpdateAccessPolicy(
		ctx context.Context,
		ref Ref,
		kind armkeyvault.AccessPolicyUpdateKind,
		policies []*armkeyvault.AccessPolicyEntry,
	) (*armkeyvault.VaultAccessPolicyParameters, error)
}

type vaults struct {
	client *armkeyvault.VaultsClient
}

func (c *armClients) Vaults() (VaultsAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armkeyvault.NewVaultsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create vaults client: %w", err)
	}
	return &vaults{client: client}, nil
}

func (v *vaults) Get(ctx context.Context, ref Ref) (*armkeyvault.Vault, error) {
	resp, err := v.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Vault, nil
}

func (v *vaults) List(ctx context.Context, ref Ref) ([]*armkeyvault.Vault, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := v.client.NewListBySubscriptionPager(nil)
		return collect(ctx, pager, func(page armkeyvault.VaultsClientListBySubscriptionResponse) []*armkeyvault.Vault {
			return page.Value
		})
	}
	pager := v.client.NewListByResourceGroupPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armkeyvault.VaultsClientListByResourceGroupResponse) []*armkeyvault.Vault {
		return page.Value
	})
}

func (v *vaults) CreateOrUpdate(ctx context.Context, ref Ref, params armkeyvault.VaultCreateOrUpdateParameters) (*armkeyvault.Vault, error) {
	poller, err := v.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, params, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.Vault, nil
}

func (v *vaults) Delete(ctx context.Context, ref Ref) error {
	_, err := v.client.Delete(ctx, ref.ResourceGroup, ref.Name, nil)
	return err
}

func (v *vaults) CheckNameAvailability(ctx context.Context, name string) (*armkeyvault.CheckNameAvailabilityResult, error) {
	resp, err := v.client.CheckNameAvailability(ctx, armkeyvault.VaultCheckNameAvailabilityParameters{
		Name: to.Ptr(name),
		Type: to.Ptr("Microsoft.KeyVault/vaults"),
	}, nil)
	if err != nil {
		return nil, err
	}
	return &resp.CheckNameAvailabilityResult, nil
}

func (v *vaults) GetDeleted(ctx context.Context, name, location string) (*armkeyvault.DeletedVault, error) {
	resp, err := v.client.GetDeleted(ctx, name, location, nil)
	if err != nil {
		return nil, err
	}
	return &resp.DeletedVault, nil
}

func (v *vaults) ListDeleted(ctx context.Context) ([]*armkeyvault.DeletedVault, error) {
	pager := v.client.NewListDeletedPager(nil)
	return collect(ctx, pager, func(page armkeyvault.VaultsClientListDeletedResponse) []*armkeyvault.DeletedVault {
		return page.Value
	})
}

func (v *vaults) PurgeDeleted(ctx context.Context, name, location string) error {
	poller, err := v.client.BeginPurgeDeleted(ctx, name, location, nil)
	_, err = wait(ctx, poller, err)
	return err
}

func (v *vaults) UpdateAccessPolicy(
	ctx context.Context,
	ref Ref,
	kind armkeyvault.AccessPolicyUpdateKind,
	policies []*armkeyvault.AccessPolicyEntry,
) (*armkeyvault.VaultAccessPolicyParameters, error) {
	resp, err := v.client.UpdateAccessPolicy(ctx, ref.ResourceGroup, ref.Name, kind, armkeyvault.VaultAccessPolicyParameters{
		Properties: &armkeyvault.VaultAccessPolicyProperties{
			AccessPolicies: policies,
		},
	}, nil)
	if err != nil {
		return nil, err
	}
	return &resp.VaultAccessPolicyParameters, nil
}
