package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/fileserver"
)

// newBackend is replaced in tests.
var newBackend = func(cmd *cobra.Command) (*fileserver.Backend, error) {
	cloudName, _ := cmd.Flags().GetString("cloud-environment")
	env, err := azure.ResolveEnvironment(cmd.Context(), cloudName)
	if err != nil {
		return nil, err
	}
	return fileserver.New(cfg.Fileserver, fileserver.WithEnvironment(env))
}

func saltenv(cmd *cobra.Command) string {
	env, _ := cmd.Flags().GetString("saltenv")
	return env
}

var fileserverCmd = &cobra.Command{
	Use:   "fileserver",
	Short: "Browse the files served out of blob containers",
}

var fileserverEnvsCmd = &cobra.Command{
	Use:   "envs",
	Short: "List the environments served",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := newBackend(cmd)
		if err != nil {
			return err
		}
		return render(cmd, backend.Envs())
	},
}

var fileserverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the files of an environment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		backend, err := newBackend(cmd)
		if err != nil {
			return err
		}
		files, err := backend.FileList(ctx, saltenv(cmd))
		if err != nil {
			return err
		}
		return render(cmd, files)
	},
}

var fileserverDirsCmd = &cobra.Command{
	Use:   "dirs",
	Short: "List the directories of an environment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		backend, err := newBackend(cmd)
		if err != nil {
			return err
		}
		dirs, err := backend.DirList(ctx, saltenv(cmd))
		if err != nil {
			return err
		}
		return render(cmd, dirs)
	},
}

var fileserverFindCmd = &cobra.Command{
	Use:   "find <path>",
	Short: "Find a file and show its hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		backend, err := newBackend(cmd)
		if err != nil {
			return err
		}
		fnd, err := backend.FindFile(ctx, args[0], saltenv(cmd))
		if err != nil {
			return err
		}
		hashType, _ := cmd.Flags().GetString("hash-type")
		hash, err := backend.FileHash(ctx, fileserver.HashLoad{Path: args[0], Saltenv: saltenv(cmd), HashType: hashType}, fnd)
		if err != nil {
			return err
		}
		return render(cmd, map[string]any{"file": fnd, "hash": hash})
	},
}

// catFile streams a file chunk by chunk, as a master serves it.
func catFile(cmd *cobra.Command, backend *fileserver.Backend, rel string, w io.Writer) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	fnd, err := backend.FindFile(ctx, rel, saltenv(cmd))
	if err != nil {
		return err
	}
	for loc := int64(0); ; {
		chunk, err := backend.ServeFile(ctx, fileserver.ServeLoad{Path: rel, Loc: loc, Saltenv: saltenv(cmd)}, fnd)
		if err != nil {
			return err
		}
		if len(chunk.Data) == 0 {
			return nil
		}
		if _, err := w.Write(chunk.Data); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		loc += int64(len(chunk.Data))
	}
}

var fileserverCatCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print the content of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := newBackend(cmd)
		if err != nil {
			return err
		}
		return catFile(cmd, backend, args[0], cmd.OutOrStdout())
	},
}

func init() {
	fileserverCmd.PersistentFlags().String("saltenv", fileserver.DefaultSaltenv, "Environment to serve")
	fileserverCmd.PersistentFlags().String("cloud-environment", "", "Azure cloud of the storage accounts")
	fileserverFindCmd.Flags().String("hash-type", "", "Hash algorithm, defaults to the configured one")

	fileserverCmd.AddCommand(fileserverEnvsCmd)
	fileserverCmd.AddCommand(fileserverListCmd)
	fileserverCmd.AddCommand(fileserverDirsCmd)
	fileserverCmd.AddCommand(fileserverFindCmd)
	fileserverCmd.AddCommand(fileserverCatCmd)
	rootCmd.AddCommand(fileserverCmd)
}
