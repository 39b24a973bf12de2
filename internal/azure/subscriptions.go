package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
)

type SubscriptionsAPI interface {
	List(ctx context.Context) ([]*armsubscriptions.Subscription, error)
	Get(ctx context.Context, subscriptionID string) (*armsubscriptions.Subscription, error)
	ListLocations(ctx context.Context, subscriptionID string) ([]*armsubscriptions.Location, error)
	ListTenants(ctx context.Context) ([]*armsubscriptions.TenantIDDescription, error)
}

type subscriptions struct {
	client  *armsubscriptions.Client
	tenants *armsubscriptions.TenantsClient
}

// Subscriptions does not need a bound subscription.
func (c *armClients) Subscriptions() (SubscriptionsAPI, error) {
	client, err := armsubscriptions.NewClient(c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions client: %w", err)
	}
	tenants, err := armsubscriptions.NewTenantsClient(c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create tenants client: %w", err)
	}
	return &subscriptions{client: client, tenants: tenants}, nil
}

func (s *subscriptions) List(ctx context.Context) ([]*armsubscriptions.Subscription, error) {
	pager := s.client.NewListPager(nil)
	return collect(ctx, pager, func(page armsubscriptions.ClientListResponse) []*armsubscriptions.Subscription {
		return page.Value
	})
}

func (s *subscriptions) Get(ctx context.Context, subscriptionID string) (*armsubscriptions.Subscription, error) {
	resp, err := s.client.Get(ctx, subscriptionID, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Subscription, nil
}

func (s *subscriptions) ListLocations(ctx context.Context, subscriptionID string) ([]*armsubscriptions.Location, error) {
	pager := s.client.NewListLocationsPager(subscriptionID, nil)
	return collect(ctx, pager, func(page armsubscriptions.ClientListLocationsResponse) []*armsubscriptions.Location {
		return page.Value
	})
}

func (s *subscriptions) ListTenants(ctx context.Context) ([]*armsubscriptions.TenantIDDescription, error) {
	pager := s.tenants.NewListPager(nil)
	return collect(ctx, pager, func(page armsubscriptions.TenantsClientListResponse) []*armsubscriptions.TenantIDDescription {
		return page.Value
	})
}
