package modules

import (
	"context"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/dns/armdns"
	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

const dnsModule = "azurerm_dns"

// camelKey turns a snake_case record field such as ipv4_address into the
// service spelling ipv4Address.
func camelKey(key string) string {
	parts := strings.Split(key, "_")
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func camelKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[camelKey(k)] = v
	}
	return out
}

// record converts a single record given as a map or as the bare value of
// its main field.
func record(field string) func(any) (any, error) {
	return func(v any) (any, error) {
		if s, ok := v.(string); ok {
			return map[string]any{field: s}, nil
		}
		m, err := cast.ToStringMapE(v)
		if err != nil {
			return nil, err
		}
		return camelKeys(m), nil
	}
}

// records converts a list of records, each given as a map or as the bare
// value of field.
func records(field string) func(any) (any, error) {
	single := record(field)
	return func(v any) (any, error) {
		items, err := cast.ToSliceE(v)
		if err != nil {
			return nil, err
		}
		result := make([]any, 0, len(items))
		for _, item := range items {
			converted, err := single(item)
			if err != nil {
				return nil, err
			}
			result = append(result, converted)
		}
		return result, nil
	}
}

// txtRecords accepts strings, lists of strings or {"value": [...]} maps.
func txtRecords(v any) (any, error) {
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}
	result := make([]any, 0, len(items))
	for _, item := range items {
		switch value := item.(type) {
		case string:
			result = append(result, map[string]any{"value": []any{value}})
		case []any:
			result = append(result, map[string]any{"value": value})
		default:
			m, err := cast.ToStringMapE(item)
			if err != nil {
				return nil, err
			}
			result = append(result, m)
		}
	}
	return result, nil
}

var zoneSchema = schema{
	locationField,
	tagsField,
	{arg: "zone_type", path: "properties.zoneType", conv: asString},
	{arg: "registration_virtual_networks", path: "properties.registrationVirtualNetworks", conv: each(schema{{arg: "id", path: "id", conv: asString}})},
	{arg: "resolution_virtual_networks", path: "properties.resolutionVirtualNetworks", conv: each(schema{{arg: "id", path: "id", conv: asString}})},
}

var recordSetSchema = schema{
	{arg: "ttl", path: "properties.TTL", conv: asInt},
	{arg: "metadata", path: "properties.metadata", conv: asTags},
	{arg: "target_resource", path: "properties.targetResource", conv: asSubResource},
	{arg: "a_records", path: "properties.ARecords", conv: records("ipv4Address")},
	{arg: "aaaa_records", path: "properties.AAAARecords", conv: records("ipv6Address")},
	{arg: "mx_records", path: "properties.MXRecords", conv: records("exchange")},
	{arg: "ns_records", path: "properties.NSRecords", conv: records("nsdname")},
	{arg: "ptr_records", path: "properties.PTRRecords", conv: records("ptrdname")},
	{arg: "srv_records", path: "properties.SRVRecords", conv: records("target")},
	{arg: "txt_records", path: "properties.TXTRecords", conv: txtRecords},
	{arg: "caa_records", path: "properties.caaRecords", conv: records("value")},
	{arg: "cname_record", path: "properties.CNAMERecord", conv: record("cname")},
	{arg: "soa_record", path: "properties.SOARecord", conv: record("host")},
}

func (e *Env) dnsZones() *crud[armdns.Zone] {
	return &crud[armdns.Zone]{
		prefix: "zone_",
		plural: "zones_",
		noun:   "DNS zone",
		noList: true,
		schema: zoneSchema,
		finish: func(desc map[string]any, args models.BasicConfig) {
			// Zones are global resources.
			if _, ok := desc["location"]; !ok {
				desc["location"] = "global"
			}
		},
		api: func(c azure.Clients) (azure.Operations[armdns.Zone], error) {
			return c.DNSZones()
		},
	}
}

func (e *Env) recordSets() *crud[armdns.RecordSet] {
	return &crud[armdns.RecordSet]{
		prefix:    "record_set_",
		plural:    "record_sets_",
		noun:      "DNS record set",
		parentArg: "zone_name",
		typeArg:   "record_type",
		noList:    true,
		schema:    recordSetSchema,
		api: func(c azure.Clients) (azure.Operations[armdns.RecordSet], error) {
			return c.RecordSets()
		},
	}
}

func (e *Env) registerDNS(reg *loader.Registry) {
	zones := e.dnsZones()
	sets := e.recordSets()

	fns := zones.functions(e)
	fns = append(fns,
		function{
			name: "zones_list",
			doc:  "List DNS zones in the subscription.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				req.Args = req.Args.Without("resource_group")
				return zones.list(e)(ctx, req)
			},
		},
		function{
			name: "zones_list_by_resource_group", params: []string{"resource_group"}, required: []string{"resource_group"},
			doc: "List DNS zones in a resource group.",
			fn:  zones.list(e),
		},
	)

	fns = append(fns, sets.functions(e)...)
	fns = append(fns,
		function{
			name:     "record_sets_list_by_dns_zone",
			params:   []string{"zone_name", "resource_group"},
			required: []string{"zone_name", "resource_group"},
			doc:      "List every record set of a DNS zone.",
			fn: func(ctx context.Context, req *loader.Request) (any, error) {
				req.Args = req.Args.Without("record_type")
				return sets.list(e)(ctx, req)
			},
		},
		function{
			name:     "record_sets_list_by_type",
			params:   []string{"zone_name", "resource_group", "record_type"},
			required: []string{"zone_name", "resource_group", "record_type"},
			doc:      "List the record sets of one type in a DNS zone.",
			fn:       sets.list(e),
		},
	)
	register(reg, dnsModule, "dns", fns)
}
