package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
)

type StorageAccountsAPI interface {
	Get(ctx context.Context, ref Ref) (*armstorage.Account, error)
	List(ctx context.Context, ref Ref) ([]*armstorage.Account, error)
	Delete(ctx context.Context, ref Ref) error
	ListKeys(ctx context.Context, ref Ref) ([]*armstorage.AccountKey, error)
}

type storageAccounts struct {
	client *armstorage.AccountsClient
}

func (c *armClients) StorageAccounts() (StorageAccountsAPI, error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armstorage.NewAccountsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create storage accounts client: %w", err)
	}
	return &storageAccounts{client: client}, nil
}

func (s *storageAccounts) Get(ctx context.Context, ref Ref) (*armstorage.Account, error) {
	resp, err := s.client.GetProperties(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Account, nil
}

func (s *storageAccounts) List(ctx context.Context, ref Ref) ([]*armstorage.Account, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := s.client.NewListPager(nil)
		return collect(ctx, pager, func(page armstorage.AccountsClientListResponse) []*armstorage.Account {
			return page.Value
		})
	}
	pager := s.client.NewListByResourceGroupPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armstorage.AccountsClientListByResourceGroupResponse) []*armstorage.Account {
		return page.Value
	})
}

func (s *storageAccounts) Delete(ctx context.Context, ref Ref) error {
	_, err := s.client.Delete(ctx, ref.ResourceGroup, ref.Name, nil)
	return err
}

func (s *storageAccounts) ListKeys(ctx context.Context, ref Ref) ([]*armstorage.AccountKey, error) {
	resp, err := s.client.ListKeys(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}
