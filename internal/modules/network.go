package modules

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/spf13/cast"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
)

const networkModule = "azurerm_network"

// networkID returns value unchanged when it already is an ARM ID, otherwise
// the ID of the named network resource in resourceGroup.
func networkID(clients azure.Clients, resourceGroup, kind, value string) string {
	if azure.IsResourceID(value) {
		return value
	}
	return azure.ResourceID(clients.SubscriptionID(), resourceGroup, fmt.Sprintf("Microsoft.Network/%s/%s", kind, value))
}

// resolveID rewrites args[key] from a resource name into an ARM ID.
func resolveID(clients azure.Clients, args models.BasicConfig, resourceGroup, key, kind string) {
	if value, ok := args.GetString(key); ok && len(value) > 0 {
		args.SetKeyWithValue(key, networkID(clients, resourceGroup, kind, value))
	}
}

var virtualNetworkSchema = schema{
	locationField,
	tagsField,
	{arg: "address_prefixes", path: "properties.addressSpace.addressPrefixes", conv: asStrings},
	{arg: "dns_servers", path: "properties.dhcpOptions.dnsServers", conv: asStrings},
	{arg: "enable_ddos_protection", path: "properties.enableDdosProtection", conv: asBool},
	{arg: "enable_vm_protection", path: "properties.enableVmProtection", conv: asBool},
}

var subnetSchema = schema{
	{arg: "address_prefix", path: "properties.addressPrefix", conv: asString},
	{arg: "address_prefixes", path: "properties.addressPrefixes", conv: asStrings},
	{arg: "network_security_group", path: "properties.networkSecurityGroup", conv: asSubResource},
	{arg: "route_table", path: "properties.routeTable", conv: asSubResource},
	{arg: "nat_gateway", path: "properties.natGateway", conv: asSubResource},
	{arg: "service_endpoints", path: "properties.serviceEndpoints", conv: serviceEndpoints},
	{arg: "private_endpoint_network_policies", path: "properties.privateEndpointNetworkPolicies", conv: asString},
}

// serviceEndpoints accepts plain service names such as "Microsoft.Storage".
func serviceEndpoints(v any) (any, error) {
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}
	result := make([]any, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			result = append(result, map[string]any{"service": s})
			continue
		}
		result = append(result, item)
	}
	return result, nil
}

var publicIPAddressSchema = schema{
	locationField,
	tagsField,
	{arg: "sku", path: "sku", conv: asSKU},
	{arg: "zones", path: "zones", conv: asStrings},
	{arg: "public_ip_allocation_method", path: "properties.publicIPAllocationMethod", conv: asString},
	{arg: "public_ip_address_version", path: "properties.publicIPAddressVersion", conv: asString},
	{arg: "idle_timeout_in_minutes", path: "properties.idleTimeoutInMinutes", conv: asInt},
	{arg: "domain_name_label", path: "properties.dnsSettings.domainNameLabel", conv: asString},
	{arg: "reverse_fqdn", path: "properties.dnsSettings.reverseFqdn", conv: asString},
}

var ipConfigurationSchema = schema{
	{arg: "name", path: "name", conv: asString},
	{arg: "primary", path: "properties.primary", conv: asBool},
	{arg: "private_ip_address", path: "properties.privateIPAddress", conv: asString},
	{arg: "private_ip_allocation_method", path: "properties.privateIPAllocationMethod", conv: asString},
	{arg: "private_ip_address_version", path: "properties.privateIPAddressVersion", conv: asString},
	{arg: "subnet", path: "properties.subnet", conv: asSubResource},
	{arg: "public_ip_address", path: "properties.publicIPAddress", conv: asSubResource},
}

var networkInterfaceSchema = schema{
	locationField,
	tagsField,
	{arg: "ip_configurations", path: "properties.ipConfigurations", conv: each(ipConfigurationSchema)},
	{arg: "network_security_group", path: "properties.networkSecurityGroup", conv: asSubResource},
	{arg: "enable_accelerated_networking", path: "properties.enableAcceleratedNetworking", conv: asBool},
	{arg: "enable_ip_forwarding", path: "properties.enableIPForwarding", conv: asBool},
	{arg: "dns_servers", path: "properties.dnsSettings.dnsServers", conv: asStrings},
}

var securityRuleSchema = schema{
	{arg: "name", path: "name", conv: asString},
	{arg: "description", path: "properties.description", conv: asString},
	{arg: "priority", path: "properties.priority", conv: asInt},
	{arg: "protocol", path: "properties.protocol", conv: asString},
	{arg: "access", path: "properties.access", conv: asString},
	{arg: "direction", path: "properties.direction", conv: asString},
	{arg: "source_address_prefix", path: "properties.sourceAddressPrefix", conv: asString},
	{arg: "source_address_prefixes", path: "properties.sourceAddressPrefixes", conv: asStrings},
	{arg: "destination_address_prefix", path: "properties.destinationAddressPrefix", conv: asString},
	{arg: "destination_address_prefixes", path: "properties.destinationAddressPrefixes", conv: asStrings},
	{arg: "source_port_range", path: "properties.sourcePortRange", conv: asString},
	{arg: "source_port_ranges", path: "properties.sourcePortRanges", conv: asStrings},
	{arg: "destination_port_range", path: "properties.destinationPortRange", conv: asString},
	{arg: "destination_port_ranges", path: "properties.destinationPortRanges", conv: asStrings},
}

var networkSecurityGroupSchema = schema{
	locationField,
	tagsField,
	{arg: "security_rules", path: "properties.securityRules", conv: each(securityRuleSchema)},
}

func (e *Env) virtualNetworks() *crud[armnetwork.VirtualNetwork] {
	return &crud[armnetwork.VirtualNetwork]{
		prefix:       "virtual_network_",
		plural:       "virtual_networks_",
		noun:         "virtual network",
		located:      true,
		listAll:      true,
		createParams: []string{"address_prefixes"},
		schema:       virtualNetworkSchema,
		api: func(c azure.Clients) (azure.Operations[armnetwork.VirtualNetwork], error) {
			return c.VirtualNetworks()
		},
	}
}

func (e *Env) subnets() *crud[armnetwork.Subnet] {
	return &crud[armnetwork.Subnet]{
		prefix:       "subnet_",
		plural:       "subnets_",
		noun:         "subnet",
		parentArg:    "virtual_network",
		createParams: []string{"address_prefix"},
		schema:       subnetSchema,
		prepare: func(ctx context.Context, clients azure.Clients, args models.BasicConfig, ref azure.Ref) error {
			resolveID(clients, args, ref.ResourceGroup, "network_security_group", "networkSecurityGroups")
			resolveID(clients, args, ref.ResourceGroup, "route_table", "routeTables")
			return nil
		},
		api: func(c azure.Clients) (azure.Operations[armnetwork.Subnet], error) {
			return c.Subnets()
		},
	}
}

func (e *Env) publicIPAddresses() *crud[armnetwork.PublicIPAddress] {
	return &crud[armnetwork.PublicIPAddress]{
		prefix:  "public_ip_address_",
		plural:  "public_ip_addresses_",
		noun:    "public IP address",
		located: true,
		listAll: true,
		schema:  publicIPAddressSchema,
		api: func(c azure.Clients) (azure.Operations[armnetwork.PublicIPAddress], error) {
			return c.PublicIPAddresses()
		},
	}
}

func (e *Env) networkInterfaces() *crud[armnetwork.Interface] {
	return &crud[armnetwork.Interface]{
		prefix:       "network_interface_",
		plural:       "network_interfaces_",
		noun:         "network interface",
		located:      true,
		listAll:      true,
		createParams: []string{"ip_configurations", "subnet", "virtual_network"},
		schema:       networkInterfaceSchema,
		prepare:      prepareNetworkInterface,
		api: func(c azure.Clients) (azure.Operations[armnetwork.Interface], error) {
			return c.NetworkInterfaces()
		},
	}
}

// prepareNetworkInterface binds every IP configuration to the subnet named
// by subnet and virtual_network, and resolves public IP and security group
// names into IDs. The subnet has to exist.
func prepareNetworkInterface(ctx context.Context, clients azure.Clients, args models.BasicConfig, ref azure.Ref) error {
	subnetName, _ := args.GetString("subnet")
	vnetName, _ := args.GetString("virtual_network")
	subnets, err := clients.Subnets()
	if err != nil {
		return err
	}
	subnet, err := subnets.Get(ctx, azure.Ref{ResourceGroup: ref.ResourceGroup, Parent: vnetName, Name: subnetName})
	if err != nil {
		return fmt.Errorf("unable to find subnet %s in virtual network %s: %w", subnetName, vnetName, err)
	}
	if subnet.ID == nil {
		return fmt.Errorf("subnet %s has no ID", subnetName)
	}

	value, _ := args.Get("ip_configurations")
	configs, err := cast.ToSliceE(value)
	if err != nil {
		return modelError(fmt.Errorf("ip_configurations: %w", err))
	}
	result := make([]any, 0, len(configs))
	for i, item := range configs {
		config, err := cast.ToStringMapE(item)
		if err != nil {
			return modelError(fmt.Errorf("ip_configurations[%d]: %w", i, err))
		}
		config = models.BasicConfig(config).Clone()
		config["subnet"] = *subnet.ID
		if ip, ok := config["public_ip_address"].(string); ok && len(ip) > 0 {
			config["public_ip_address"] = networkID(clients, ref.ResourceGroup, "publicIPAddresses", ip)
		}
		if _, ok := config["primary"]; !ok && len(configs) > 1 {
			config["primary"] = i == 0
		}
		result = append(result, config)
	}
	args.SetKeyWithValue("ip_configurations", result)

	resolveID(clients, args, ref.ResourceGroup, "network_security_group", "networkSecurityGroups")
	return nil
}

func (e *Env) networkSecurityGroups() *crud[armnetwork.SecurityGroup] {
	return &crud[armnetwork.SecurityGroup]{
		prefix:  "network_security_group_",
		plural:  "network_security_groups_",
		noun:    "network security group",
		located: true,
		listAll: true,
		schema:  networkSecurityGroupSchema,
		api: func(c azure.Clients) (azure.Operations[armnetwork.SecurityGroup], error) {
			return c.NetworkSecurityGroups()
		},
	}
}

func (e *Env) registerNetwork(reg *loader.Registry) {
	var fns []function
	fns = append(fns, e.virtualNetworks().functions(e)...)
	fns = append(fns, e.subnets().functions(e)...)
	fns = append(fns, e.publicIPAddresses().functions(e)...)
	fns = append(fns, e.networkInterfaces().functions(e)...)
	fns = append(fns, e.networkSecurityGroups().functions(e)...)
	register(reg, networkModule, "network", fns)
}
