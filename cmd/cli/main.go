package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/config"
	"github.com/thand-io/azurerm/internal/loader"
	"github.com/thand-io/azurerm/internal/models"
	"github.com/thand-io/azurerm/internal/modules"
	"github.com/thand-io/azurerm/internal/states"
)

// Global configuration instance
var cfg *config.Config

// connect is replaced in tests.
var connect azure.Connector = azure.Connect

// loadConfig loads the configuration based on the --config flag or default locations
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	return config.Load(configFile)
}

func preRunConfigE(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err == nil && verbose {
		cfg.SetVerbose()
	}

	if profile, err := cmd.Flags().GetString("profile"); err == nil && len(profile) > 0 {
		cfg.Profile = profile
	}

	logrus.WithFields(logrus.Fields{
		"config":  cfg.ConfigFile(),
		"profile": cfg.Profile,
	}).Debug("Loaded configuration")
	return nil
}

// commandContext bounds a command by --timeout and cancels it on interrupt.
func commandContext(cmd *cobra.Command) (context.Context, func()) {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		timeout = 0
	}
	return common.WithInterrupt(cmd.Context(), timeout)
}

// registries builds the execution and state function registries.
func registries() (exec, state *loader.Registry) {
	exec = loader.NewRegistry()
	modules.Register(exec, cfg.Connector(connect))
	state = loader.NewRegistry()
	states.Register(state, exec)
	return exec, state
}

// clients connects with the connection profile of the provisioning hook.
func clients(ctx context.Context) (azure.Clients, error) {
	profile := cfg.Cloud.Profile
	if len(profile) == 0 {
		profile = cfg.Profile
	}
	args := cfg.CallDefaults()
	if len(profile) > 0 {
		args[config.ProfileKey] = profile
	}
	settings := models.BasicConfig(args)
	return cfg.Connector(connect)(ctx, &settings)
}

var rootCmd = &cobra.Command{
	Use:   "azurerm",
	Short: "Manage Azure Resource Manager resources",
	Long: `Run execution functions, apply state files, serve files out of blob
containers and provision virtual machines against Azure Resource Manager.

If no config file is specified, azurerm looks for azurerm.yaml in the following locations:
  - ./azurerm.yaml
  - ./config/azurerm.yaml
  - /etc/azurerm/azurerm.yaml
  - ~/.config/azurerm/azurerm.yaml`,
	PersistentPreRunE: preRunConfigE,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (optional)")
	rootCmd.PersistentFlags().StringP("profile", "p", "", "Connection profile to use when a call names none")
	rootCmd.PersistentFlags().StringP("output", "o", "json", "Output format: json or yaml")
	rootCmd.PersistentFlags().StringP("query", "q", "", "jq filter applied to the output")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Minute, "Time limit of the command, 0 for none")
}

func GetCommandOptions() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
