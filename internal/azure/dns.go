package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/dns/armdns"
)

type dnsZones struct {
	client *armdns.ZonesClient
}

func (c *armClients) DNSZones() (Operations[armdns.Zone], error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armdns.NewZonesClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create dns zones client: %w", err)
	}
	return &dnsZones{client: client}, nil
}

func (z *dnsZones) Get(ctx context.Context, ref Ref) (*armdns.Zone, error) {
	resp, err := z.client.Get(ctx, ref.ResourceGroup, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Zone, nil
}

func (z *dnsZones) List(ctx context.Context, ref Ref) ([]*armdns.Zone, error) {
	if len(ref.ResourceGroup) == 0 {
		pager := z.client.NewListPager(nil)
		return collect(ctx, pager, func(page armdns.ZonesClientListResponse) []*armdns.Zone {
			return page.Value
		})
	}
	pager := z.client.NewListByResourceGroupPager(ref.ResourceGroup, nil)
	return collect(ctx, pager, func(page armdns.ZonesClientListByResourceGroupResponse) []*armdns.Zone {
		return page.Value
	})
}

func (z *dnsZones) CreateOrUpdate(ctx context.Context, ref Ref, model armdns.Zone) (*armdns.Zone, error) {
	resp, err := z.client.CreateOrUpdate(ctx, ref.ResourceGroup, ref.Name, model, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Zone, nil
}

func (z *dnsZones) Delete(ctx context.Context, ref Ref) error {
	poller, err := z.client.BeginDelete(ctx, ref.ResourceGroup, ref.Name, nil)
	_, err = wait(ctx, poller, err)
	return err
}

// recordSets are addressed with Ref.Parent as the zone name and Ref.Type as
// the record type (A, AAAA, CNAME, ...).
type recordSets struct {
	client *armdns.RecordSetsClient
}

func (c *armClients) RecordSets() (Operations[armdns.RecordSet], error) {
	sub, err := c.subscription()
	if err != nil {
		return nil, err
	}
	client, err := armdns.NewRecordSetsClient(sub, c.token(), c.armOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create dns record sets client: %w", err)
	}
	return &recordSets{client: client}, nil
}

func recordType(ref Ref) armdns.RecordType {
	return armdns.RecordType(strings.ToUpper(ref.Type))
}

func (r *recordSets) Get(ctx context.Context, ref Ref) (*armdns.RecordSet, error) {
	resp, err := r.client.Get(ctx, ref.ResourceGroup, ref.Parent, ref.Name, recordType(ref), nil)
	if err != nil {
		return nil, err
	}
	return &resp.RecordSet, nil
}

// List lists every record set of the zone, or only those of Ref.Type when set.
func (r *recordSets) List(ctx context.Context, ref Ref) ([]*armdns.RecordSet, error) {
	if len(ref.Type) > 0 {
		pager := r.client.NewListByTypePager(ref.ResourceGroup, ref.Parent, recordType(ref), nil)
		return collect(ctx, pager, func(page armdns.RecordSetsClientListByTypeResponse) []*armdns.RecordSet {
			return page.Value
		})
	}
	pager := r.client.NewListByDNSZonePager(ref.ResourceGroup, ref.Parent, nil)
	return collect(ctx, pager, func(page armdns.RecordSetsClientListByDNSZoneResponse) []*armdns.RecordSet {
		return page.Value
	})
}

func (r *recordSets) CreateOrUpdate(ctx context.Context, ref Ref, model armdns.RecordSet) (*armdns.RecordSet, error) {
	resp, err := r.client.CreateOrUpdate(ctx, ref.ResourceGroup, ref.Parent, ref.Name, recordType(ref), model, nil)
	if err != nil {
		return nil, err
	}
	return &resp.RecordSet, nil
}

func (r *recordSets) Delete(ctx context.Context, ref Ref) error {
	_, err := r.client.Delete(ctx, ref.ResourceGroup, ref.Parent, ref.Name, recordType(ref), nil)
	return err
}
