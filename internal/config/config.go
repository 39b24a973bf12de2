package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/thand-io/azurerm/internal/models"
)

const (
	ConfigName = "azurerm"
	EnvPrefix  = "AZURERM"
)

// Config is the configuration of the azurerm command.
type Config struct {
	Logging models.LoggingConfig `mapstructure:"logging"`

	// Profile names the connection profile used when a call does not name
	// one itself.
	Profile  string                    `mapstructure:"profile"`
	Profiles map[string]map[string]any `mapstructure:"profiles"`

	Fileserver models.FileserverConfig `mapstructure:"fileserver"`
	Cloud      models.CloudConfig      `mapstructure:"cloud"`

	// LogLevel is the level provider errors are logged at.
	LogLevel string `mapstructure:"azurerm_log_level"`

	v *viper.Viper
}

// DefaultConfig returns the configuration built from defaults alone.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		logrus.WithError(err).Fatal("Error unmarshaling default config")
	}
	config.v = v
	return &config
}

// Load loads the configuration from the config file, the environment and
// an optional .env file, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	if err := setupViperConfig(v, configFile); err != nil {
		return nil, err
	}

	bindEnvironmentVariables(v)

	config, err := readAndUnmarshalConfig(v)
	if err != nil {
		return nil, err
	}

	if err := setupLogging(config, v); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnvFile loads the .env file if it exists
func loadEnvFile() error {
	if err := gotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("error loading .env file: %w", err)
		}
	}
	return nil
}

func setupViperConfig(v *viper.Viper, configFile string) error {
	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/azurerm")

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)
	}

	setupHomeConfigPath(v)

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	return nil
}

// setupHomeConfigPath adds ~/.config/azurerm when a home directory is known
func setupHomeConfigPath(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil || len(home) == 0 {
		return
	}
	v.AddConfigPath(filepath.Join(home, ".config", "azurerm"))
}

// bindEnvironmentVariables binds the keys AutomaticEnv cannot discover
// because they have no default.
func bindEnvironmentVariables(v *viper.Viper) {
	bindLoggingEnvVars(v)
	bindCloudEnvVars(v)

	v.BindEnv("profile", "AZURERM_PROFILE")
	v.BindEnv("azurerm_log_level", "AZURERM_LOG_LEVEL")
}

func bindLoggingEnvVars(v *viper.Viper) {
	v.BindEnv("logging.level", "AZURERM_LOGGING_LEVEL")
	v.BindEnv("logging.format", "AZURERM_LOGGING_FORMAT")
	v.BindEnv("logging.output", "AZURERM_LOGGING_OUTPUT")
}

func bindCloudEnvVars(v *viper.Viper) {
	v.BindEnv("cloud.profile", "AZURERM_CLOUD_PROFILE")
	v.BindEnv("cloud.resource_group", "AZURERM_CLOUD_RESOURCE_GROUP")
	v.BindEnv("cloud.location", "AZURERM_CLOUD_LOCATION")
}

// readAndUnmarshalConfig reads the configuration file and unmarshals it
func readAndUnmarshalConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment variables apply.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.v = v

	return &config, nil
}

func setupLogging(config *Config, v *viper.Viper) error {
	logrusLevel, err := logrus.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}

	logrus.SetLevel(logrusLevel)

	switch strings.ToLower(config.Logging.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		logrus.WithFields(logrus.Fields{
			"format": config.Logging.Format,
		}).Warn("Unknown log format")
	}

	switch strings.ToLower(config.Logging.Output) {
	case "", "stderr":
		logrus.SetOutput(os.Stderr)
	case "stdout":
		logrus.SetOutput(os.Stdout)
	default:
		file, err := os.OpenFile(config.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		logrus.SetOutput(file)
	}

	if logrusLevel >= logrus.DebugLevel {
		for key, value := range v.AllSettings() {
			if key == "profiles" {
				// Connection profiles carry secrets.
				continue
			}
			logrus.Debugf("Config '%s': %v", key, value)
		}
	}

	return nil
}

// SetVerbose forces debug logging, as the --verbose flag does.
func (c *Config) SetVerbose() {
	c.Logging.Level = logrus.DebugLevel.String()
	logrus.SetLevel(logrus.DebugLevel)
}

// ConfigFile returns the file the configuration was read from, if any.
func (c *Config) ConfigFile() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("azurerm_log_level", "error")

	// Filesystem backend defaults
	v.SetDefault("fileserver.file_buffer_size", 262144)
	v.SetDefault("fileserver.hash_type", "sha256")

	// Provisioning defaults
	v.SetDefault("cloud.poll_interval", "15s")
	v.SetDefault("cloud.timeout", "15m")
}
