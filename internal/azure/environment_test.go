package azure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnvironment_Names(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		authority string
		storage   string
	}{
		{"default", "", cloud.AzurePublic.ActiveDirectoryAuthorityHost, "core.windows.net"},
		{"public", "AZURE_PUBLIC_CLOUD", cloud.AzurePublic.ActiveDirectoryAuthorityHost, "core.windows.net"},
		{"public alias", "AZURE_PUBLIC", cloud.AzurePublic.ActiveDirectoryAuthorityHost, "core.windows.net"},
		{"china", "AZURE_CHINA_CLOUD", cloud.AzureChina.ActiveDirectoryAuthorityHost, "core.chinacloudapi.cn"},
		{"china alias", "azure_china", cloud.AzureChina.ActiveDirectoryAuthorityHost, "core.chinacloudapi.cn"},
		{"government", "AZURE_US_GOV_CLOUD", cloud.AzureGovernment.ActiveDirectoryAuthorityHost, "core.usgovcloudapi.net"},
		{"government alias", "AZURE_GOVERNMENT", cloud.AzureGovernment.ActiveDirectoryAuthorityHost, "core.usgovcloudapi.net"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ResolveEnvironment(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.authority, env.Cloud.ActiveDirectoryAuthorityHost)
			assert.Equal(t, tt.storage, env.StorageEndpointSuffix)
		})
	}
}

func TestResolveEnvironment_Unavailable(t *testing.T) {
	for _, name := range []string{"AZURE_GERMAN_CLOUD", "MARS"} {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveEnvironment(context.Background(), name)
			require.Error(t, err)

			var envErr *EnvironmentError
			require.True(t, errors.As(err, &envErr))
			assert.Equal(t, "The Azure cloud environment "+name+" is not available.", err.Error())
		})
	}
}

func TestEnvironmentFromMetadata(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metadata/endpoints", r.URL.Path)
		assert.Equal(t, metadataAPIVersion, r.URL.Query().Get("api-version"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"name": "Other",
				"resourceManager": "https://other.example.com/",
				"authentication": {"loginEndpoint": "https://login.other.example.com/", "audiences": ["https://other/"]},
				"suffixes": {"storage": "other.example.com"}
			},
			{
				"name": "AzureStack",
				"resourceManager": "` + server.URL + `/",
				"authentication": {
					"loginEndpoint": "https://login.stack.example.com/",
					"audiences": ["https://management.stack.example.com/", "https://second/"]
				},
				"suffixes": {"storage": "stack.example.com", "keyVaultDns": "vault.stack.example.com"}
			}
		]`))
	}))
	defer server.Close()

	env, err := EnvironmentFromMetadata(context.Background(), resty.New(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "https://login.stack.example.com/", env.Cloud.ActiveDirectoryAuthorityHost)
	rm := env.Cloud.Services[cloud.ResourceManager]
	assert.Equal(t, "https://management.stack.example.com/", rm.Audience)
	assert.Equal(t, server.URL+"/", rm.Endpoint)
	assert.Equal(t, "stack.example.com", env.StorageEndpointSuffix)
	assert.Equal(t, "vault.stack.example.com", env.KeyVaultDNSSuffix)
}

func TestEnvironmentFromMetadata_SingleDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"authentication": {"loginEndpoint": "https://login.example.com/", "audiences": []},
			"suffixes": {"storage": "example.com"}
		}`))
	}))
	defer server.Close()

	env, err := EnvironmentFromMetadata(context.Background(), resty.New(), server.URL+"/")
	require.NoError(t, err)

	rm := env.Cloud.Services[cloud.ResourceManager]
	assert.Equal(t, server.URL+"/", rm.Endpoint)
	assert.Equal(t, server.URL+"/", rm.Audience)
}

func TestEnvironmentFromMetadata_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := EnvironmentFromMetadata(context.Background(), resty.New(), server.URL)
	require.Error(t, err)

	var envErr *EnvironmentError
	assert.True(t, errors.As(err, &envErr))
}
