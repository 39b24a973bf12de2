package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
)

type virtualNetworks struct {
	client *armnetwork.VirtualNetworksClient
}

func (c *armClients) VirtualNetworks() (Operations[armnetwork.VirtualNetwork], error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armnetwork.NewVirtualNetworksClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual networks client: %w", err)
	}
	return &virtualNetworks{client: client}, nil
}

func (n *virtualNetworks) Get(ctx context.Context, ref Ref) (*armnetwork.VirtualNetwork, error) {
	resp, err := n.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualNetwork, nil
}

func (n *virtualNetworks) List(ctx context.Context, ref Ref) ([]*armnetwork.VirtualNetwork, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := n.client.NewListAllPager(nil)
		return collect(ctx, pager, func(page armnetwork.VirtualNetworksClientListAllResponse) []*armnetwork.VirtualNetwork {
			return page.Value
		})
	}
	pager := n.client.NewListPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armnetwork.VirtualNetworksClientListResponse) []*armnetwork.VirtualNetwork {
		return page.Value
	})
}

func (n *virtualNetworks) CreateOrUpdate(ctx context.Context, ref Ref, model armnetwork.VirtualNetwork) (*armnetwork.VirtualNetwork, error) {
	poller, err := n.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.VirtualNetwork, nil
}

func (n *virtualNetworks) Delete(ctx context.Context, ref Ref) error {
	poller, err := n.client.BeginDelete(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

// subnets are addressed with Ref.Parent as the virtual network name.
type subnets struct {
	client *armnetwork.SubnetsClient
}

func (c *armClients) Subnets() (Operations[armnetwork.Subnet], error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armnetwork.NewSubnetsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create subnets client: %w", err)
	}
	return &subnets{client: client}, nil
}

func (s *subnets) Get(ctx context.Context, ref Ref) (*armnetwork.Subnet, error) {
	resp, err := s.client.Get(ctx, ref.ResourceGroup, ref.Parent, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Subnet, nil
}

func (s *subnets) List(ctx context.Context, ref Ref) ([]*armnetwork.Subnet, error) {
	pager := s.client.NewListPager(ref.ResourceGroup, ref.Parent, nil)
	return collect(ctx, pager, func(page armnetwork.SubnetsClientListResponse) []*armnetwork.Subnet {
		return page.Value
	})
}

func (s *subnets) CreateOrUpdate(ctx context.Context, ref Ref, model armnetwork.Subnet) (*armnetwork.Subnet, error) {
	poller, err := s.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Parent, ref.Name, model, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.Subnet, nil
}

func (s *subnets) Delete(ctx context.Context, ref Ref) error {
	poller, err := s.client.BeginDelete(ctx, ref.ResourceGroup, ref.Parent, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

type publicIPAddresses struct {
	client *armnetwork.PublicIPAddressesClient
}

func (c *armClients) PublicIPAddresses() (Operations[armnetwork.PublicIPAddress], error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armnetwork.NewPublicIPAddressesClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create public ip addresses client: %w", err)
	}
	return &publicIPAddresses{client: client}, nil
}

func (p *publicIPAddresses) Get(ctx context.Context, ref Ref) (*armnetwork.PublicIPAddress, error) {
	resp, err := p.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.PublicIPAddress, nil
}

func (p *publicIPAddresses) List(ctx context.Context, ref Ref) ([]*armnetwork.PublicIPAddress, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := p.client.NewListAllPager(nil)
		return collect(ctx, pager, func(page armnetwork.PublicIPAddressesClientListAllResponse) []*armnetwork.PublicIPAddress {
			return page.Value
		})
	}
	pager := p.client.NewListPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armnetwork.PublicIPAddressesClientListResponse) []*armnetwork.PublicIPAddress {
		return page.Value
	})
}

func (p *publicIPAddresses) CreateOrUpdate(ctx context.Context, ref Ref, model armnetwork.PublicIPAddress) (*armnetwork.PublicIPAddress, error) {
	poller, err := p.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.PublicIPAddress, nil
}

func (p *publicIPAddresses) Delete(ctx context.Context, ref Ref) error {
	poller, err := p.client.BeginDelete(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

type networkInterfaces struct {
	client *armnetwork.InterfacesClient
}

func (c *armClients) NetworkInterfaces() (Operations[armnetwork.Interface], error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armnetwork.NewInterfacesClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create network interfaces client: %w", err)
	}
	return &networkInterfaces{client: client}, nil
}

func (i *networkInterfaces) Get(ctx context.Context, ref Ref) (*armnetwork.Interface, error) {
	resp, err := i.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Interface, nil
}

func (i *networkInterfaces) List(ctx context.Context, ref Ref) ([]*armnetwork.Interface, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := i.client.NewListAllPager(nil)
		return collect(ctx, pager, func(page armnetwork.InterfacesClientListAllResponse) []*armnetwork.Interface {
			return page.Value
		})
	}
	pager := i.client.NewListPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armnetwork.InterfacesClientListResponse) []*armnetwork.Interface {
		return page.Value
	})
}

func (i *networkInterfaces) CreateOrUpdate(ctx context.Context, ref Ref, model armnetwork.Interface) (*armnetwork.Interface, error) {
	poller, err := i.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.Interface, nil
}

func (i *networkInterfaces) Delete(ctx context.Context, ref Ref) error {
	poller, err := i.client.BeginDelete(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

type securityGroups struct {
	client *armnetwork.SecurityGroupsClient
}

func (c *armClients) NetworkSecurityGroups() (Operations[armnetwork.SecurityGroup], error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armnetwork.NewSecurityGroupsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create network security groups client: %w", err)
	}
	return &securityGroups{client: client}, nil
}

func (g *securityGroups) Get(ctx context.Context, ref Ref) (*armnetwork.SecurityGroup, error) {
	resp, err := g.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.SecurityGroup, nil
}

func (g *securityGroups) List(ctx context.Context, ref Ref) ([]*armnetwork.SecurityGroup, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := g.client.NewListAllPager(nil)
		return collect(ctx, pager, func(page armnetwork.SecurityGroupsClientListAllResponse) []*armnetwork.SecurityGroup {
			return page.Value
		})
	}
	pager := g.client.NewListPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armnetwork.SecurityGroupsClientListResponse) []*armnetwork.SecurityGroup {
		return page.Value
	})
}

func (g *securityGroups) CreateOrUpdate(ctx context.Context, ref Ref, model armnetwork.SecurityGroup) (*armnetwork.SecurityGroup, error) {
	poller, err := g.client.BeginCreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	resp, err := wait(ctx, poller, err)
	if err != nil {
		return nil, err
	}
	return &resp.SecurityGroup, nil
}

func (g *securityGroups) Delete(ctx context.Context, ref Ref) error {
	poller, err := g.client.BeginDelete(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}
