package azure

import (
	"errors"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/models"
)

type CredentialKind string

const (
	CredentialClientSecret      CredentialKind = "client_secret"
	CredentialClientCertificate CredentialKind = "client_certificate"
	CredentialUsernamePassword  CredentialKind = "username_password"
	CredentialDefault           CredentialKind = "default"
)

// The public client id of the Azure CLI, used for username/password logins
// when no application is named.
const azureCLIClientID = "04b07795-8ddb-461a-bbee-02f9e1bf7b46"

type Credential struct {
	Kind  CredentialKind
	Token azcore.TokenCredential
}

// CredentialError marks a failure to build or use credentials. These are
// never converted into error mappings.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("failed to authenticate with Azure: %v", e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// IsCredentialError reports whether err came from credential resolution or
// was an authentication rejection from the identity platform.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return true
	}
	var authErr *azidentity.AuthenticationFailedError
	return errors.As(err, &authErr)
}

// ResolveCredentialKind picks the authentication mechanism for a connection
// profile. Service principal secrets win over certificates, certificates
// over username/password, and anything else falls through to the default
// credential chain.
func ResolveCredentialKind(profile *models.BasicConfig) CredentialKind {
	_, hasClientID := profile.GetString("client_id")
	_, hasTenant := profile.GetString("tenant")

	if hasClientID && hasTenant {
		if _, ok := profile.GetString("secret"); ok {
			return CredentialClientSecret
		}
		if _, ok := profile.GetString("client_certificate_path"); ok {
			return CredentialClientCertificate
		}
	}

	_, hasUsername := profile.GetString("username")
	_, hasPassword := profile.GetString("password")
	if hasUsername && hasPassword {
		return CredentialUsernamePassword
	}

	return CredentialDefault
}

// NewCredential builds the token credential for a connection profile
// against the given cloud environment.
func NewCredential(profile *models.BasicConfig, env *Environment) (*Credential, error) {
	if env == nil {
		env = PublicCloud()
	}

	clientOptions := azcore.ClientOptions{
		Cloud: env.Cloud,
	}

	kind := ResolveCredentialKind(profile)
	tenantID := profile.GetStringWithDefault("tenant", "")
	clientID := profile.GetStringWithDefault("client_id", "")

	var cred azcore.TokenCredential
	var err error

	switch kind {
	case CredentialClientSecret:
		logrus.Debug("Using Azure client secret authentication")
		secret, _ := profile.GetString("secret")
		cred, err = azidentity.NewClientSecretCredential(tenantID, clientID, secret,
			&azidentity.ClientSecretCredentialOptions{ClientOptions: clientOptions})

	case CredentialClientCertificate:
		logrus.Debug("Using Azure client certificate authentication")
		cred, err = newCertificateCredential(profile, tenantID, clientID, clientOptions)

	case CredentialUsernamePassword:
		logrus.Debug("Using Azure username and password authentication")
		username, _ := profile.GetString("username")
		password, _ := profile.GetString("password")
		if len(tenantID) == 0 {
			tenantID = "organizations"
		}
		if len(clientID) == 0 {
			clientID = azureCLIClientID
		}
		cred, err = azidentity.NewUsernamePasswordCredential(tenantID, clientID, username, password,
			&azidentity.UsernamePasswordCredentialOptions{ClientOptions: clientOptions})

	default:
		logrus.Debug("Using Azure default credential chain")
		cred, err = azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
			ClientOptions: clientOptions,
			TenantID:      tenantID,
		})
	}

	if err != nil {
		logrus.WithError(err).WithField("kind", kind).Errorln("Failed to create Azure credentials")
		return nil, &CredentialError{Err: err}
	}

	return &Credential{
		Kind:  kind,
		Token: cred,
	}, nil
}

func newCertificateCredential(
	profile *models.BasicConfig,
	tenantID string,
	clientID string,
	clientOptions azcore.ClientOptions,
) (azcore.TokenCredential, error) {
	path, _ := profile.GetString("client_certificate_path")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client certificate %s: %w", path, err)
	}

	var password []byte
	if pass, ok := profile.GetString("client_certificate_password"); ok {
		password = []byte(pass)
	}

	certs, key, err := azidentity.ParseCertificates(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client certificate %s: %w", path, err)
	}

	return azidentity.NewClientCertificateCredential(tenantID, clientID, certs, key,
		&azidentity.ClientCertificateCredentialOptions{ClientOptions: clientOptions})
}
