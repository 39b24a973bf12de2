package config

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/models"
)

// ProfileKey is the call argument naming a configured connection profile.
const ProfileKey = "profile"

// ConnectionProfile returns a copy of the named connection profile. An
// empty name selects the default profile, and no profile at all yields an
// empty one so credentials can still come from the environment.
func (c *Config) ConnectionProfile(name string) (models.BasicConfig, error) {
	if len(name) == 0 {
		name = c.Profile
	}
	if len(name) == 0 {
		return models.BasicConfig{}, nil
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("connection profile %q is not configured", name)
	}
	return models.BasicConfig(profile).Clone(), nil
}

// Connector wraps connect so every call is resolved against the configured
// connection profiles. Keys passed with the call win over the profile.
func (c *Config) Connector(connect azure.Connector) azure.Connector {
	if connect == nil {
		connect = azure.Connect
	}
	return func(ctx context.Context, args *models.BasicConfig) (azure.Clients, error) {
		name := ""
		if args != nil {
			name = args.GetStringWithDefault(ProfileKey, "")
		}
		profile, err := c.ConnectionProfile(name)
		if err != nil {
			return nil, &azure.CredentialError{Err: err}
		}
		if args != nil {
			profile.Update(args.Without(ProfileKey))
		}
		logrus.WithFields(logrus.Fields{
			"profile": name,
			"keys":    len(profile),
		}).Debug("Resolved connection profile")
		return connect(ctx, &profile)
	}
}

// CallDefaults are the arguments added to every call that does not set
// them itself.
func (c *Config) CallDefaults() map[string]any {
	defaults := map[string]any{}
	if len(c.LogLevel) > 0 {
		defaults["azurerm_log_level"] = c.LogLevel
	}
	return defaults
}
