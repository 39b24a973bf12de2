// Package states registers the state functions. Each one compares the
// desired state of a resource with what Azure reports and calls the
// execution functions needed to close the gap.
package states

import (
	"github.com/thand-io/azurerm/internal/loader"
)

// resources lists every type reconciled through its execution module's
// get, create_or_update and delete functions.
var resources = []*resource{
	{module: "azurerm_resource", kind: "resource_group_", noun: "Resource group"},

	{module: "azurerm_compute_availability_set", noun: "Availability set"},
	{module: "azurerm_compute_disk", noun: "Managed disk"},
	{module: "azurerm_compute_virtual_machine", noun: "Virtual machine"},
	{module: "azurerm_compute_virtual_machine_extension", noun: "Virtual machine extension"},

	{module: "azurerm_network", kind: "virtual_network_", noun: "Virtual network"},
	{module: "azurerm_network", kind: "subnet_", noun: "Subnet"},
	{module: "azurerm_network", kind: "public_ip_address_", noun: "Public IP address"},
	{module: "azurerm_network", kind: "network_interface_", noun: "Network interface"},
	{module: "azurerm_network", kind: "network_security_group_", noun: "Network security group"},

	{module: "azurerm_keyvault_vault", noun: "Key vault"},

	{module: "azurerm_dns", kind: "zone_", noun: "DNS zone"},
	{module: "azurerm_dns", kind: "record_set_", noun: "Record set"},

	// Older state files address availability sets through azurerm_compute.
	{module: "azurerm_compute_availability_set", noun: "Availability set",
		stateModule: "azurerm_compute", stateKind: "availability_set_"},
}

// Register adds every state function to reg. State functions reach Azure
// only through the execution functions registered in exec.
func Register(reg, exec *loader.Registry) {
	env := &Env{Exec: exec}
	for _, r := range resources {
		env.register(reg, r)
	}
	env.registerSecrets(reg)
	env.registerKeys(reg)
}

func (e *Env) register(reg *loader.Registry, r *resource) {
	var params []string
	family := ""
	if spec, ok := e.Exec.Get(r.function("get")); ok {
		params = spec.Params
		family = spec.Family
	}
	reg.Register(loader.FuncSpec{
		Name:     r.state("present"),
		Params:   params,
		Required: params,
		Family:   family,
		Doc:      "Ensure the " + lowerFirst(r.noun) + " exists with the given properties.",
		Fn:       e.present(r),
	})
	reg.Register(loader.FuncSpec{
		Name:     r.state("absent"),
		Params:   params,
		Required: params,
		Family:   family,
		Doc:      "Ensure the " + lowerFirst(r.noun) + " does not exist.",
		Fn:       e.absent(r),
	})
}

func lowerFirst(s string) string {
	if len(s) == 0 {
		return s
	}
	if len(s) > 1 && s[1] >= 'A' && s[1] <= 'Z' {
		// Acronyms such as DNS keep their case.
		return s
	}
	return string(s[0]|0x20) + s[1:]
}
