package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCamelKey(t *testing.T) {
	assert.Equal(t, "ipv4Address", camelKey("ipv4_address"))
	assert.Equal(t, "exchange", camelKey("exchange"))
	assert.Equal(t, "minimumTtl", camelKey("minimum_ttl"))
}

func TestRecordSetSchema(t *testing.T) {
	desc, err := recordSetSchema.descriptor(map[string]any{
		"ttl":          "300",
		"a_records":    []any{"10.0.0.4", map[string]any{"ipv4_address": "10.0.0.5"}},
		"mx_records":   []any{map[string]any{"preference": 10, "exchange": "mail.example.com"}},
		"txt_records":  []any{"v=spf1 -all", []any{"part1", "part2"}},
		"cname_record": "www.example.com",
	})
	require.NoError(t, err)

	ttl, _ := getPath(desc, "properties.TTL")
	assert.Equal(t, int64(300), ttl)
	a, _ := getPath(desc, "properties.ARecords")
	assert.Equal(t, []any{
		map[string]any{"ipv4Address": "10.0.0.4"},
		map[string]any{"ipv4Address": "10.0.0.5"},
	}, a)
	mx, _ := getPath(desc, "properties.MXRecords")
	assert.Equal(t, []any{map[string]any{"preference": 10, "exchange": "mail.example.com"}}, mx)
	txt, _ := getPath(desc, "properties.TXTRecords")
	assert.Equal(t, []any{
		map[string]any{"value": []any{"v=spf1 -all"}},
		map[string]any{"value": []any{"part1", "part2"}},
	}, txt)
	cname, _ := getPath(desc, "properties.CNAMERecord")
	assert.Equal(t, map[string]any{"cname": "www.example.com"}, cname)
}

func TestDNS(t *testing.T) {
	reg, clients := newTestRegistry(t)

	zone := call(t, reg, "azurerm_dns.zone_create_or_update", map[string]any{
		"name": "example.com", "resource_group": "rg1",
	}).(map[string]any)
	assert.Equal(t, "global", zone["location"])

	set := call(t, reg, "azurerm_dns.record_set_create_or_update", map[string]any{
		"name":           "www",
		"zone_name":      "example.com",
		"resource_group": "rg1",
		"record_type":    "A",
		"ttl":            300,
		"a_records":      []any{"10.0.0.4"},
	}).(map[string]any)
	records, _ := getPath(set, "properties.ARecords")
	require.Len(t, records, 1)
	assert.Equal(t, "10.0.0.4", records.([]any)[0].(map[string]any)["ipv4Address"])

	call(t, reg, "azurerm_dns.record_set_create_or_update", map[string]any{
		"name":           "www",
		"zone_name":      "example.com",
		"resource_group": "rg1",
		"record_type":    "TXT",
		"txt_records":    []any{"hello"},
	})

	t.Run("record sets by zone and by type", func(t *testing.T) {
		all := call(t, reg, "azurerm_dns.record_sets_list_by_dns_zone", map[string]any{
			"zone_name": "example.com", "resource_group": "rg1", "record_type": "A",
		}).(map[string]any)
		// Both sets are named www, so the zone listing collapses to one key.
		assert.Len(t, all, 1)
		assert.Equal(t, 2, clients.RecordSetStore.Len())

		typed := call(t, reg, "azurerm_dns.record_sets_list_by_type", map[string]any{
			"zone_name": "example.com", "resource_group": "rg1", "record_type": "TXT",
		}).(map[string]any)
		require.Contains(t, typed, "www")
		txt, _ := getPath(typed["www"].(map[string]any), "properties.TXTRecords")
		assert.Len(t, txt, 1)
	})

	t.Run("zones by subscription and resource group", func(t *testing.T) {
		assert.Contains(t, call(t, reg, "azurerm_dns.zones_list", map[string]any{"resource_group": "other"}), "example.com")
		assert.Empty(t, call(t, reg, "azurerm_dns.zones_list_by_resource_group", map[string]any{"resource_group": "other"}))
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, true, call(t, reg, "azurerm_dns.record_set_delete", map[string]any{
			"name": "www", "zone_name": "example.com", "resource_group": "rg1", "record_type": "TXT",
		}))
		assert.Equal(t, 1, clients.RecordSetStore.Len())
	})
}
