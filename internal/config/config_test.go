package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/models"
)

const testConfig = `
logging:
  level: warn
  format: json
profile: dev
profiles:
  dev:
    subscription_id: 00000000-0000-0000-0000-000000000000
    tenant: contoso.onmicrosoft.com
    client_id: app
    secret: s3cret
  prod:
    subscription_id: 11111111-1111-1111-1111-111111111111
fileserver:
  containers:
    - account_name: acct
      container_name: salt
  file_ignore_glob:
    - "*.pyc"
cloud:
  resource_group: rg1
  poll_interval: 5s
  profiles:
    web:
      size: Standard_B1s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "azurerm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 262144, config.Fileserver.FileBufferSize)
	assert.Equal(t, "sha256", config.Fileserver.HashType)
	assert.Equal(t, 15*time.Second, config.Cloud.PollInterval)
	assert.Equal(t, 15*time.Minute, config.Cloud.Timeout)
}

func TestLoad(t *testing.T) {
	t.Cleanup(func() { logrus.SetLevel(logrus.InfoLevel) })

	t.Run("config file", func(t *testing.T) {
		path := writeConfig(t, testConfig)
		config, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, path, config.ConfigFile())
		assert.Equal(t, "warn", config.Logging.Level)
		assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
		assert.Equal(t, "dev", config.Profile)
		assert.Len(t, config.Profiles, 2)

		require.Len(t, config.Fileserver.Containers, 1)
		assert.Equal(t, "salt", config.Fileserver.Containers[0].ContainerName)
		assert.Equal(t, []string{"*.pyc"}, config.Fileserver.FileIgnoreGlob)
		assert.Equal(t, 262144, config.Fileserver.FileBufferSize)

		assert.Equal(t, "rg1", config.Cloud.ResourceGroup)
		assert.Equal(t, 5*time.Second, config.Cloud.PollInterval)
		assert.Equal(t, 15*time.Minute, config.Cloud.Timeout)
		assert.Equal(t, "Standard_B1s", config.Cloud.Profiles["web"]["size"])
	})

	t.Run("environment wins over the file", func(t *testing.T) {
		t.Setenv("AZURERM_LOGGING_LEVEL", "debug")
		t.Setenv("AZURERM_PROFILE", "prod")
		t.Setenv("AZURERM_CLOUD_LOCATION", "westus")

		config, err := Load(writeConfig(t, testConfig))
		require.NoError(t, err)
		assert.Equal(t, "debug", config.Logging.Level)
		assert.Equal(t, "prod", config.Profile)
		assert.Equal(t, "westus", config.Cloud.Location)
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, err := Load(writeConfig(t, "logging:\n  level: loud\n"))
		assert.ErrorContains(t, err, "log level")
	})

	t.Run("unreadable config", func(t *testing.T) {
		_, err := Load(writeConfig(t, "logging: [\n"))
		assert.ErrorContains(t, err, "error reading config file")
	})
}

func TestConnector(t *testing.T) {
	path := writeConfig(t, testConfig)
	config, err := Load(path)
	require.NoError(t, err)
	t.Cleanup(func() { logrus.SetLevel(logrus.InfoLevel) })

	var seen models.BasicConfig
	connect := config.Connector(func(ctx context.Context, profile *models.BasicConfig) (azure.Clients, error) {
		seen = profile.Clone()
		return nil, nil
	})

	t.Run("default profile", func(t *testing.T) {
		_, err := connect(context.Background(), &models.BasicConfig{})
		require.NoError(t, err)
		assert.Equal(t, "app", seen["client_id"])
		assert.Equal(t, "s3cret", seen["secret"])
	})

	t.Run("named profile with overrides", func(t *testing.T) {
		_, err := connect(context.Background(), &models.BasicConfig{
			"profile":         "prod",
			"subscription_id": "22222222-2222-2222-2222-222222222222",
		})
		require.NoError(t, err)
		assert.Equal(t, "22222222-2222-2222-2222-222222222222", seen["subscription_id"])
		assert.NotContains(t, seen, "client_id")
		assert.NotContains(t, seen, "profile")
	})

	t.Run("unknown profile is a credential error", func(t *testing.T) {
		_, err := connect(context.Background(), &models.BasicConfig{"profile": "missing"})
		assert.True(t, azure.IsCredentialError(err))
	})

	t.Run("profiles are copied", func(t *testing.T) {
		_, err := connect(context.Background(), &models.BasicConfig{"secret": "other"})
		require.NoError(t, err)
		profile, err := config.ConnectionProfile("dev")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", profile["secret"])
	})

	t.Run("no profiles at all", func(t *testing.T) {
		empty := DefaultConfig()
		profile, err := empty.ConnectionProfile("")
		require.NoError(t, err)
		assert.Empty(t, profile)
	})
}

func TestCallDefaults(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, map[string]any{"azurerm_log_level": "error"}, config.CallDefaults())

	config.LogLevel = ""
	assert.Empty(t, config.CallDefaults())
}
