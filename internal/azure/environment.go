package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const metadataAPIVersion = "2019-05-01"

// Environment describes the endpoints of one Azure cloud.
type Environment struct {
	Name                  string
	Cloud                 cloud.Configuration
	StorageEndpointSuffix string
	KeyVaultDNSSuffix     string
}

func PublicCloud() *Environment {
	return &Environment{
		Name:                  "AZURE_PUBLIC_CLOUD",
		Cloud:                 cloud.AzurePublic,
		StorageEndpointSuffix: "core.windows.net",
		KeyVaultDNSSuffix:     "vault.azure.net",
	}
}

func ChinaCloud() *Environment {
	return &Environment{
		Name:                  "AZURE_CHINA_CLOUD",
		Cloud:                 cloud.AzureChina,
		StorageEndpointSuffix: "core.chinacloudapi.cn",
		KeyVaultDNSSuffix:     "vault.azure.cn",
	}
}

func USGovernmentCloud() *Environment {
	return &Environment{
		Name:                  "AZURE_US_GOV_CLOUD",
		Cloud:                 cloud.AzureGovernment,
		StorageEndpointSuffix: "core.usgovcloudapi.net",
		KeyVaultDNSSuffix:     "vault.usgovcloudapi.net",
	}
}

var knownEnvironments = map[string]func() *Environment{
	"AZURE_PUBLIC_CLOUD": PublicCloud,
	"AZURE_PUBLIC":       PublicCloud,
	"AZURE_CHINA_CLOUD":  ChinaCloud,
	"AZURE_CHINA":        ChinaCloud,
	"AZURE_US_GOV_CLOUD": USGovernmentCloud,
	"AZURE_GOVERNMENT":   USGovernmentCloud,
}

// EnvironmentError is returned for cloud names that cannot be resolved.
type EnvironmentError struct {
	Name string
	Err  error
}

func (e *EnvironmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("The Azure cloud environment %s is not available. (%v)", e.Name, e.Err)
	}
	return fmt.Sprintf("The Azure cloud environment %s is not available.", e.Name)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// ResolveEnvironment maps a cloud_environment value onto its endpoints. An
// empty name is the public cloud. Names starting with http are treated as
// an Azure Stack style resource manager endpoint and discovered from its
// metadata document.
func ResolveEnvironment(ctx context.Context, name string) (*Environment, error) {
	if len(name) == 0 {
		return PublicCloud(), nil
	}

	if strings.HasPrefix(strings.ToLower(name), "http") {
		return EnvironmentFromMetadata(ctx, resty.New().SetTimeout(30*time.Second), name)
	}

	if builder, ok := knownEnvironments[strings.ToUpper(name)]; ok {
		return builder(), nil
	}

	return nil, &EnvironmentError{Name: name}
}

type metadataDocument struct {
	Name            string `json:"name"`
	ResourceManager string `json:"resourceManager"`
	Authentication  struct {
		LoginEndpoint string   `json:"loginEndpoint"`
		Audiences     []string `json:"audiences"`
	} `json:"authentication"`
	Suffixes struct {
		Storage     string `json:"storage"`
		KeyVaultDNS string `json:"keyVaultDns"`
	} `json:"suffixes"`
}

// EnvironmentFromMetadata fetches <endpoint>/metadata/endpoints and builds
// the environment it describes. The document is either a single cloud or
// a list of clouds, in which case the one served by endpoint is picked.
func EnvironmentFromMetadata(ctx context.Context, client *resty.Client, endpoint string) (*Environment, error) {
	base := strings.TrimRight(endpoint, "/")

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParam("api-version", metadataAPIVersion).
		Get(base + "/metadata/endpoints")
	if err != nil {
		return nil, &EnvironmentError{Name: endpoint, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &EnvironmentError{
			Name: endpoint,
			Err:  fmt.Errorf("metadata endpoint returned %s", resp.Status()),
		}
	}

	doc, err := parseMetadata(resp.Body(), base)
	if err != nil {
		return nil, &EnvironmentError{Name: endpoint, Err: err}
	}

	resourceManager := doc.ResourceManager
	if len(resourceManager) == 0 {
		resourceManager = base + "/"
	}
	if len(doc.Authentication.LoginEndpoint) == 0 {
		return nil, &EnvironmentError{Name: endpoint, Err: fmt.Errorf("metadata has no login endpoint")}
	}

	audience := resourceManager
	if len(doc.Authentication.Audiences) > 0 {
		audience = doc.Authentication.Audiences[0]
	}

	env := &Environment{
		Name: endpoint,
		Cloud: cloud.Configuration{
			ActiveDirectoryAuthorityHost: doc.Authentication.LoginEndpoint,
			Services: map[cloud.ServiceName]cloud.ServiceConfiguration{
				cloud.ResourceManager: {
					Audience: audience,
					Endpoint: resourceManager,
				},
			},
		},
		StorageEndpointSuffix: doc.Suffixes.Storage,
		KeyVaultDNSSuffix:     doc.Suffixes.KeyVaultDNS,
	}

	logrus.WithFields(logrus.Fields{
		"endpoint":  endpoint,
		"authority": env.Cloud.ActiveDirectoryAuthorityHost,
	}).Debug("Resolved Azure cloud environment from metadata")

	return env, nil
}

func parseMetadata(body []byte, base string) (*metadataDocument, error) {
	trimmed := strings.TrimSpace(string(body))

	if strings.HasPrefix(trimmed, "[") {
		var docs []metadataDocument
		if err := json.Unmarshal(body, &docs); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("metadata lists no clouds")
		}
		for i := range docs {
			if strings.EqualFold(strings.TrimRight(docs[i].ResourceManager, "/"), base) {
				return &docs[i], nil
			}
		}
		return &docs[0], nil
	}

	var doc metadataDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &doc, nil
}
