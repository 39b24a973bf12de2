package azure

import (
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/models"
)

const testTenant = "00000000-0000-0000-0000-000000000000"

func TestResolveCredentialKind(t *testing.T) {
	tests := []struct {
		name     string
		profile  models.BasicConfig
		expected CredentialKind
	}{
		{
			name: "service principal secret",
			profile: models.BasicConfig{
				"client_id": "app",
				"secret":    "shh",
				"tenant":    testTenant,
			},
			expected: CredentialClientSecret,
		},
		{
			name: "secret wins over username and certificate",
			profile: models.BasicConfig{
				"client_id":               "app",
				"secret":                  "shh",
				"tenant":                  testTenant,
				"client_certificate_path": "/tmp/cert.pem",
				"username":                "user@example.com",
				"password":                "pass",
			},
			expected: CredentialClientSecret,
		},
		{
			name: "certificate",
			profile: models.BasicConfig{
				"client_id":               "app",
				"tenant":                  testTenant,
				"client_certificate_path": "/tmp/cert.pem",
			},
			expected: CredentialClientCertificate,
		},
		{
			name: "secret without tenant is not a service principal",
			profile: models.BasicConfig{
				"client_id": "app",
				"secret":    "shh",
			},
			expected: CredentialDefault,
		},
		{
			name: "username and password",
			profile: models.BasicConfig{
				"username": "user@example.com",
				"password": "pass",
			},
			expected: CredentialUsernamePassword,
		},
		{
			name:     "empty profile",
			profile:  models.BasicConfig{},
			expected: CredentialDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveCredentialKind(&tt.profile))
		})
	}
}

func TestNewCredential_ClientSecret(t *testing.T) {
	profile := models.BasicConfig{
		"client_id": "11111111-1111-1111-1111-111111111111",
		"secret":    "shh",
		"tenant":    testTenant,
	}

	cred, err := NewCredential(&profile, PublicCloud())
	require.NoError(t, err)
	assert.Equal(t, CredentialClientSecret, cred.Kind)

	_, isSecret := cred.Token.(*azidentity.ClientSecretCredential)
	assert.True(t, isSecret)
	_, isDefault := cred.Token.(*azidentity.DefaultAzureCredential)
	assert.False(t, isDefault)
}

func TestNewCredential_MissingCertificate(t *testing.T) {
	profile := models.BasicConfig{
		"client_id":               "11111111-1111-1111-1111-111111111111",
		"tenant":                  testTenant,
		"client_certificate_path": "/nonexistent/cert.pem",
	}

	_, err := NewCredential(&profile, nil)
	require.Error(t, err)
	assert.True(t, IsCredentialError(err))

	var credErr *CredentialError
	assert.True(t, errors.As(err, &credErr))
}

func TestIsCredentialError(t *testing.T) {
	assert.False(t, IsCredentialError(nil))
	assert.False(t, IsCredentialError(errors.New("boom")))
	assert.True(t, IsCredentialError(&CredentialError{Err: errors.New("boom")}))
}
