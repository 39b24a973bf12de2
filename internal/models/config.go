package models

import "time"

type LoggingConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"text"`
	Output string `mapstructure:"output"`
}

// FileserverContainer is one blob container served by the filesystem
// backend.
type FileserverContainer struct {
	AccountName   string `mapstructure:"account_name" json:"account_name" validate:"required"`
	ContainerName string `mapstructure:"container_name" json:"container_name" validate:"required"`
	AccountKey    string `mapstructure:"account_key" json:"account_key,omitempty"`
	SASToken      string `mapstructure:"sas_token" json:"sas_token,omitempty"`
	UseIdentity   bool   `mapstructure:"use_identity" json:"use_identity,omitempty"`
	Saltenv       string `mapstructure:"saltenv" json:"saltenv,omitempty"`
	// Optional full endpoint override, e.g. for sovereign clouds or Azurite.
	EndpointSuffix string `mapstructure:"endpoint_suffix" json:"endpoint_suffix,omitempty"`
	ProxyURL       string `mapstructure:"proxy_url" json:"proxy_url,omitempty"`
}

type FileserverConfig struct {
	Containers      []FileserverContainer `mapstructure:"containers"`
	FileBufferSize  int                   `mapstructure:"file_buffer_size" default:"262144"`
	FileIgnoreRegex []string              `mapstructure:"file_ignore_regex"`
	FileIgnoreGlob  []string              `mapstructure:"file_ignore_glob"`
	HashType        string                `mapstructure:"hash_type" default:"sha256"`
}

// CloudConfig carries the defaults used by the provisioning hook.
type CloudConfig struct {
	Profile       string                    `mapstructure:"profile"`
	ResourceGroup string                    `mapstructure:"resource_group"`
	Location      string                    `mapstructure:"location"`
	PollInterval  time.Duration             `mapstructure:"poll_interval" default:"15s"`
	Timeout       time.Duration             `mapstructure:"timeout" default:"15m"`
	Profiles      map[string]map[string]any `mapstructure:"profiles"`
}
