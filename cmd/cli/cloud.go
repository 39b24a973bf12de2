package cli

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thand-io/azurerm/internal/cloud"
)

func provisioner(ctx context.Context) (*cloud.Provisioner, error) {
	c, err := clients(ctx)
	if err != nil {
		return nil, err
	}
	return cloud.NewProvisioner(c, cfg.Cloud), nil
}

func resourceGroupFlag(cmd *cobra.Command) string {
	rg, _ := cmd.Flags().GetString("resource-group")
	if len(rg) == 0 {
		rg = cfg.Cloud.ResourceGroup
	}
	return rg
}

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Provision and manage virtual machines",
}

var cloudCreateCmd = &cobra.Command{
	Use:   "create <name> [key=value...]",
	Short: "Create a virtual machine from a cloud profile",
	Long: `Create a virtual machine. Settings come from the cloud defaults of the
configuration, then the profile named with --from, then key=value arguments:

  azurerm cloud create web1 --from ubuntu size=Standard_B2s allocate_public_ip=true`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		_, overrides := parseCallArgs(args[1:])
		overrides["name"] = args[0]
		if rg, _ := cmd.Flags().GetString("resource-group"); len(rg) > 0 {
			overrides["resource_group"] = rg
		}

		from, _ := cmd.Flags().GetString("from")
		if len(from) == 0 {
			from = cfg.Cloud.Profile
			if _, ok := cfg.Cloud.Profiles[from]; !ok {
				from = ""
			}
		}
		profile, err := cloud.ResolveProfile(cfg.Cloud, from, overrides)
		if err != nil {
			return err
		}

		p, err := provisioner(ctx)
		if err != nil {
			return err
		}
		node, err := p.Create(ctx, profile)
		if err != nil {
			var provisionErr *cloud.ProvisionError
			if errors.As(err, &provisionErr) && len(provisionErr.Created) > 0 {
				logrus.WithFields(logrus.Fields{
					"step":    provisionErr.Step,
					"created": provisionErr.Created,
				}).Warn("Resources created before the failure were left in place")
			}
			return err
		}
		return render(cmd, node)
	},
}

var cloudDestroyCmd = &cobra.Command{
	Use:   "destroy <name>",
	Short: "Delete a virtual machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var opts cloud.DestroyOptions
		opts.CleanupDisks, _ = cmd.Flags().GetBool("cleanup-disks")
		opts.CleanupDataDisks, _ = cmd.Flags().GetBool("cleanup-data-disks")
		opts.CleanupInterfaces, _ = cmd.Flags().GetBool("cleanup-interfaces")

		p, err := provisioner(ctx)
		if err != nil {
			return err
		}
		result, err := p.Destroy(ctx, args[0], resourceGroupFlag(cmd), opts)
		if err != nil {
			return err
		}
		return render(cmd, result)
	},
}

var cloudListCmd = &cobra.Command{
	Use:   "list-nodes",
	Short: "List the virtual machines of the subscription",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		p, err := provisioner(ctx)
		if err != nil {
			return err
		}
		nodes, err := p.ListNodes(ctx)
		if err != nil {
			return err
		}
		return render(cmd, nodes)
	},
}

var cloudShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one virtual machine in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		p, err := provisioner(ctx)
		if err != nil {
			return err
		}
		rg, _ := cmd.Flags().GetString("resource-group")
		node, err := p.ShowInstance(ctx, args[0], rg)
		if err != nil {
			return err
		}
		return render(cmd, node)
	},
}

var cloudLocationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List the locations of the subscription",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		p, err := provisioner(ctx)
		if err != nil {
			return err
		}
		locations, err := p.AvailLocations(ctx)
		if err != nil {
			return err
		}
		return render(cmd, locations)
	},
}

var cloudSizesCmd = &cobra.Command{
	Use:   "sizes [location]",
	Short: "List the machine sizes offered in a location",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		location := cfg.Cloud.Location
		if len(args) > 0 {
			location = args[0]
		}
		p, err := provisioner(ctx)
		if err != nil {
			return err
		}
		sizes, err := p.AvailSizes(ctx, location)
		if err != nil {
			return err
		}
		return render(cmd, sizes)
	},
}

func init() {
	cloudCmd.PersistentFlags().StringP("resource-group", "g", "", "Resource group of the machine")
	cloudCreateCmd.Flags().String("from", "", "Cloud profile the machine is built from")
	cloudDestroyCmd.Flags().Bool("cleanup-disks", false, "Also delete the OS disk")
	cloudDestroyCmd.Flags().Bool("cleanup-data-disks", false, "Also delete the data disks")
	cloudDestroyCmd.Flags().Bool("cleanup-interfaces", false, "Also delete the network interfaces and their public IPs")

	cloudCmd.AddCommand(cloudCreateCmd)
	cloudCmd.AddCommand(cloudDestroyCmd)
	cloudCmd.AddCommand(cloudListCmd)
	cloudCmd.AddCommand(cloudShowCmd)
	cloudCmd.AddCommand(cloudLocationsCmd)
	cloudCmd.AddCommand(cloudSizesCmd)
	rootCmd.AddCommand(cloudCmd)
}
