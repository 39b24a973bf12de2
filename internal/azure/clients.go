package azure

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/dns/armdns"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/models"
)

// ErrSubscriptionRequired is returned by resource manager clients when the
// connection profile has no subscription_id.
var ErrSubscriptionRequired = errors.New("subscription_id is required to connect to Azure Resource Manager")

// Clients hands out typed adapters over the Azure SDK, all bound to one
// credential, cloud and subscription.
type Clients interface {
	SubscriptionID() string
	Environment() *Environment
	Credential() *Credential

	// resource
	ResourceGroups() (ResourceGroupsAPI, error)
	Resources() (ResourcesAPI, error)
	Deployments() (DeploymentsAPI, error)

	// policy
	PolicyAssignments() (PolicyAssignmentsAPI, error)
	PolicyDefinitions() (PolicyDefinitionsAPI, error)

	// subscription
	Subscriptions() (SubscriptionsAPI, error)

	// compute
	AvailabilitySets() (AvailabilitySetsAPI, error)
	Disks() (DisksAPI, error)
	VirtualMachines() (VirtualMachinesAPI, error)
	VirtualMachineExtensions() (Operations[armcompute.VirtualMachineExtension], error)
	VirtualMachineImages() (VirtualMachineImagesAPI, error)
	Images() (Operations[armcompute.Image], error)

	// network
	VirtualNetworks() (Operations[armnetwork.VirtualNetwork], error)
	Subnets() (Operations[armnetwork.Subnet], error)
	PublicIPAddresses() (Operations[armnetwork.PublicIPAddress], error)
	NetworkInterfaces() (Operations[armnetwork.Interface], error)
	NetworkSecurityGroups() (Operations[armnetwork.SecurityGroup], error)

	// keyvault
	Vaults() (VaultsAPI, error)
	Secrets(vaultURL string) (SecretsAPI, error)
	Keys(vaultURL string) (KeysAPI, error)

	// dns
	DNSZones() (Operations[armdns.Zone], error)
	RecordSets() (Operations[armdns.RecordSet], error)

	// storage
	StorageAccounts() (StorageAccountsAPI, error)

	// authorization
	RoleDefinitions() (RoleDefinitionsAPI, error)
	RoleAssignments() (RoleAssignmentsAPI, error)
}

// Connector turns a connection profile into Clients.
type Connector func(ctx context.Context, profile *models.BasicConfig) (Clients, error)

type armClients struct {
	subscriptionID string
	env            *Environment
	cred           *Credential
}

// Connect resolves the cloud environment and credential of a connection
// profile. No request is sent until an adapter is used.
func Connect(ctx context.Context, profile *models.BasicConfig) (Clients, error) {
	cloudName := profile.GetStringWithDefault("cloud_environment", "")

	env, err := ResolveEnvironment(ctx, cloudName)
	if err != nil {
		logrus.WithError(err).Errorln("Failed to resolve Azure cloud environment")
		return nil, err
	}

	cred, err := NewCredential(profile, env)
	if err != nil {
		return nil, err
	}

	subscriptionID := profile.GetStringWithDefault("subscription_id", "")

	logrus.WithFields(logrus.Fields{
		"cloud":        env.Name,
		"credential":   cred.Kind,
		"subscription": subscriptionID,
	}).Debug("Connected to Azure")

	return NewClients(subscriptionID, env, cred), nil
}

// NewClients binds an already resolved credential and environment.
func NewClients(subscriptionID string, env *Environment, cred *Credential) Clients {
	if env == nil {
		env = PublicCloud()
	}
	return &armClients{
		subscriptionID: subscriptionID,
		env:            env,
		cred:           cred,
	}
}

func (c *armClients) SubscriptionID() string {
	return c.subscriptionID
}

func (c *armClients) Environment() *Environment {
	return c.env
}

func (c *armClients) Credential() *Credential {
	return c.cred
}

func (c *armClients) token() azcore.TokenCredential {
	return c.cred.Token
}

func (c *armClients) coreOptions() azcore.ClientOptions {
	return policy.ClientOptions{
		Cloud: c.env.Cloud,
		Telemetry: policy.TelemetryOptions{
			ApplicationID: common.UserAgent(),
		},
	}
}

func (c *armClients) armOptions() *arm.ClientOptions {
	return &arm.ClientOptions{
		ClientOptions: c.coreOptions(),
	}
}

// subscription returns the bound subscription or ErrSubscriptionRequired.
func (c *armClients) subscription() (string, error) {
	if len(c.subscriptionID) == 0 {
		return "", ErrSubscriptionRequired
	}
	return c.subscriptionID, nil
}
