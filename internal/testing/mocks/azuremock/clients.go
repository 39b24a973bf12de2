package azuremock

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/dns/armdns"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/models"
)

const SubscriptionID = "00000000-0000-0000-0000-000000000001"

// Clients is an in-memory azure.Clients. Every resource type has its own
// store so tests can seed state and count calls.
type Clients struct {
	Subscription string
	Env          *azure.Environment
	Cred         *azure.Credential
	// Err, when set, is returned by every adapter getter.
	Err error

	ResourceGroupStore *ResourceGroups
	ResourceStore      *Resources
	DeploymentStore    *Deployments
	SubscriptionStore  *Subscriptions

	AvailabilitySetStore *AvailabilitySets
	DiskStore            *Disks
	VirtualMachineStore  *VirtualMachines
	ExtensionStore       *Memory[armcompute.VirtualMachineExtension]
	ImageStore           *VirtualMachineImages
	ComputeImageStore    *Memory[armcompute.Image]

	VirtualNetworkStore       *Memory[armnetwork.VirtualNetwork]
	SubnetStore               *Memory[armnetwork.Subnet]
	PublicIPAddressStore      *Memory[armnetwork.PublicIPAddress]
	NetworkInterfaceStore     *Memory[armnetwork.Interface]
	NetworkSecurityGroupStore *Memory[armnetwork.SecurityGroup]

	VaultStore  *Vaults
	SecretStore map[string]*Secrets
	KeyStore    map[string]*Keys

	ZoneStore      *Memory[armdns.Zone]
	RecordSetStore *Memory[armdns.RecordSet]

	StorageAccountStore *StorageAccounts

	RoleDefinitionStore *RoleDefinitions
	RoleAssignmentStore *RoleAssignments

	PolicyAssignmentStore *PolicyAssignments
	PolicyDefinitionStore *PolicyDefinitions
}

func NewClients() *Clients {
	sub := SubscriptionID

	extensions := NewMemory[armcompute.VirtualMachineExtension](sub, "Microsoft.Compute/virtualMachines")
	extensions.IDFunc = func(ref azure.Ref) string {
		return azure.ResourceID(sub, ref.ResourceGroup,
			fmt.Sprintf("Microsoft.Compute/virtualMachines/%s/extensions/%s", ref.Parent, ref.Name))
	}

	subnets := NewMemory[armnetwork.Subnet](sub, "Microsoft.Network/virtualNetworks")
	subnets.IDFunc = func(ref azure.Ref) string {
		return azure.ResourceID(sub, ref.ResourceGroup,
			fmt.Sprintf("Microsoft.Network/virtualNetworks/%s/subnets/%s", ref.Parent, ref.Name))
	}

	recordSets := NewMemory[armdns.RecordSet](sub, "Microsoft.Network/dnszones")
	recordSets.IDFunc = func(ref azure.Ref) string {
		return azure.ResourceID(sub, ref.ResourceGroup,
			fmt.Sprintf("Microsoft.Network/dnszones/%s/%s/%s", ref.Parent, ref.Type, ref.Name))
	}

	return &Clients{
		Subscription: sub,
		Env:          azure.PublicCloud(),
		Cred:         &azure.Credential{Kind: azure.CredentialDefault},

		ResourceGroupStore: NewResourceGroups(sub),
		ResourceStore:      &Resources{Generic: map[string]*armresources.GenericResource{}, APIVersions: map[string][]string{}},
		DeploymentStore:    NewDeployments(sub),
		SubscriptionStore:  NewSubscriptions(sub),

		AvailabilitySetStore: &AvailabilitySets{Memory: NewMemory[armcompute.AvailabilitySet](sub, "Microsoft.Compute/availabilitySets")},
		DiskStore:            &Disks{Memory: NewMemory[armcompute.Disk](sub, "Microsoft.Compute/disks")},
		VirtualMachineStore:  NewVirtualMachines(sub),
		ExtensionStore:       extensions,
		ImageStore:           NewVirtualMachineImages(),
		ComputeImageStore:    NewMemory[armcompute.Image](sub, "Microsoft.Compute/images"),

		VirtualNetworkStore:       NewMemory[armnetwork.VirtualNetwork](sub, "Microsoft.Network/virtualNetworks"),
		SubnetStore:               subnets,
		PublicIPAddressStore:      NewMemory[armnetwork.PublicIPAddress](sub, "Microsoft.Network/publicIPAddresses"),
		NetworkInterfaceStore:     NewMemory[armnetwork.Interface](sub, "Microsoft.Network/networkInterfaces"),
		NetworkSecurityGroupStore: NewMemory[armnetwork.SecurityGroup](sub, "Microsoft.Network/networkSecurityGroups"),

		VaultStore:  NewVaults(sub),
		SecretStore: map[string]*Secrets{},
		KeyStore:    map[string]*Keys{},

		ZoneStore:      NewMemory[armdns.Zone](sub, "Microsoft.Network/dnszones"),
		RecordSetStore: recordSets,

		StorageAccountStore: &StorageAccounts{Memory: NewMemory[armstorage.Account](sub, "Microsoft.Storage/storageAccounts")},

		RoleDefinitionStore: &RoleDefinitions{},
		RoleAssignmentStore: &RoleAssignments{},

		PolicyAssignmentStore: NewPolicyAssignments(sub),
		PolicyDefinitionStore: NewPolicyDefinitions(sub),
	}
}

// Connector returns an azure.Connector that always hands out c.
func (c *Clients) Connector() azure.Connector {
	return func(ctx context.Context, profile *models.BasicConfig) (azure.Clients, error) {
		if c.Err != nil {
			return nil, c.Err
		}
		return c, nil
	}
}

// Mutations sums create and delete calls across every ARM store.
func (c *Clients) Mutations() int {
	total := c.ResourceGroupStore.Mutations() +
		c.DeploymentStore.Mutations() +
		c.AvailabilitySetStore.Mutations() +
		c.DiskStore.Mutations() +
		c.VirtualMachineStore.Mutations() +
		c.ExtensionStore.Mutations() +
		c.ComputeImageStore.Mutations() +
		c.VirtualNetworkStore.Mutations() +
		c.SubnetStore.Mutations() +
		c.PublicIPAddressStore.Mutations() +
		c.NetworkInterfaceStore.Mutations() +
		c.NetworkSecurityGroupStore.Mutations() +
		c.VaultStore.Mutations() +
		c.ZoneStore.Mutations() +
		c.RecordSetStore.Mutations() +
		c.StorageAccountStore.Mutations() +
		c.PolicyAssignmentStore.Mutations() +
		c.PolicyDefinitionStore.Mutations()
	for _, s := range c.SecretStore {
		total += s.Mutations()
	}
	for _, k := range c.KeyStore {
		total += k.Mutations()
	}
	return total
}

func (c *Clients) SubscriptionID() string { return c.Subscription }
func (c *Clients) Environment() *azure.Environment { return c.Env }
func (c *Clients) Credential() *azure.Credential { return c.Cred }

func get[T any](c *Clients, api T) (T, error) {
	var zero T
	if c.Err != nil {
		return zero, c.Err
	}
	return api, nil
}

func (c *Clients) ResourceGroups() (azure.ResourceGroupsAPI, error) {
	return get[azure.ResourceGroupsAPI](c, c.ResourceGroupStore)
}

func (c *Clients) Resources() (azure.ResourcesAPI, error) {
	return get[azure.ResourcesAPI](c, c.ResourceStore)
}

func (c *Clients) Deployments() (azure.DeploymentsAPI, error) {
	return get[azure.DeploymentsAPI](c, c.DeploymentStore)
}

func (c *Clients) PolicyAssignments() (azure.PolicyAssignmentsAPI, error) {
	return get[azure.PolicyAssignmentsAPI](c, c.PolicyAssignmentStore)
}

func (c *Clients) PolicyDefinitions() (azure.PolicyDefinitionsAPI, error) {
	return get[azure.PolicyDefinitionsAPI](c, c.PolicyDefinitionStore)
}

func (c *Clients) Subscriptions() (azure.SubscriptionsAPI, error) {
	return get[azure.SubscriptionsAPI](c, c.SubscriptionStore)
}

func (c *Clients) AvailabilitySets() (azure.AvailabilitySetsAPI, error) {
	return get[azure.AvailabilitySetsAPI](c, c.AvailabilitySetStore)
}

func (c *Clients) Disks() (azure.DisksAPI, error) {
	return get[azure.DisksAPI](c, c.DiskStore)
}

func (c *Clients) VirtualMachines() (azure.VirtualMachinesAPI, error) {
	return get[azure.VirtualMachinesAPI](c, c.VirtualMachineStore)
}

func (c *Clients) VirtualMachineExtensions() (azure.Operations[armcompute.VirtualMachineExtension], error) {
	return get[azure.Operations[armcompute.VirtualMachineExtension]](c, c.ExtensionStore)
}

func (c *Clients) VirtualMachineImages() (azure.VirtualMachineImagesAPI, error) {
	return get[azure.VirtualMachineImagesAPI](c, c.ImageStore)
}

func (c *Clients) Images() (azure.Operations[armcompute.Image], error) {
	return get[azure.Operations[armcompute.Image]](c, c.ComputeImageStore)
}

func (c *Clients) VirtualNetworks() (azure.Operations[armnetwork.VirtualNetwork], error) {
	return get[azure.Operations[armnetwork.VirtualNetwork]](c, c.VirtualNetworkStore)
}

func (c *Clients) Subnets() (azure.Operations[armnetwork.Subnet], error) {
	return get[azure.Operations[armnetwork.Subnet]](c, c.SubnetStore)
}

func (c *Clients) PublicIPAddresses() (azure.Operations[armnetwork.PublicIPAddress], error) {
	return get[azure.Operations[armnetwork.PublicIPAddress]](c, c.PublicIPAddressStore)
}

func (c *Clients) NetworkInterfaces() (azure.Operations[armnetwork.Interface], error) {
	return get[azure.Operations[armnetwork.Interface]](c, c.NetworkInterfaceStore)
}

func (c *Clients) NetworkSecurityGroups() (azure.Operations[armnetwork.SecurityGroup], error) {
	return get[azure.Operations[armnetwork.SecurityGroup]](c, c.NetworkSecurityGroupStore)
}

func (c *Clients) Vaults() (azure.VaultsAPI, error) {
	return get[azure.VaultsAPI](c, c.VaultStore)
}

// SecretsFor returns the secret store of a vault, creating it on first use.
func (c *Clients) SecretsFor(vaultURL string) *Secrets {
	if _, ok := c.SecretStore[vaultURL]; !ok {
		c.SecretStore[vaultURL] = NewSecrets(vaultURL)
	}
	return c.SecretStore[vaultURL]
}

// KeysFor returns the key store of a vault, creating it on first use.
func (c *Clients) KeysFor(vaultURL string) *Keys {
	if _, ok := c.KeyStore[vaultURL]; !ok {
		c.KeyStore[vaultURL] = NewKeys(vaultURL)
	}
	return c.KeyStore[vaultURL]
}

func (c *Clients) Secrets(vaultURL string) (azure.SecretsAPI, error) {
	if len(vaultURL) == 0 {
		return nil, fmt.Errorf("vault_url is required")
	}
	return get[azure.SecretsAPI](c, c.SecretsFor(vaultURL))
}

func (c *Clients) Keys(vaultURL string) (azure.KeysAPI, error) {
	if len(vaultURL) == 0 {
		return nil, fmt.Errorf("vault_url is required")
	}
	return get[azure.KeysAPI](c, c.KeysFor(vaultURL))
}

func (c *Clients) DNSZones() (azure.Operations[armdns.Zone], error) {
	return get[azure.Operations[armdns.Zone]](c, c.ZoneStore)
}

func (c *Clients) RecordSets() (azure.Operations[armdns.RecordSet], error) {
	return get[azure.Operations[armdns.RecordSet]](c, c.RecordSetStore)
}

func (c *Clients) StorageAccounts() (azure.StorageAccountsAPI, error) {
	return get[azure.StorageAccountsAPI](c, c.StorageAccountStore)
}

func (c *Clients) RoleDefinitions() (azure.RoleDefinitionsAPI, error) {
	return get[azure.RoleDefinitionsAPI](c, c.RoleDefinitionStore)
}

func (c *Clients) RoleAssignments() (azure.RoleAssignmentsAPI, error) {
	return get[azure.RoleAssignmentsAPI](c, c.RoleAssignmentStore)
}

// SeedResourceGroup creates a resource group in the given location.
func (c *Clients) SeedResourceGroup(name, location string) {
	c.ResourceGroupStore.Put(azure.Ref{Name: name}, armresources.ResourceGroup{
		Location: to.Ptr(location),
	})
}

var _ azure.Clients = (*Clients)(nil)
