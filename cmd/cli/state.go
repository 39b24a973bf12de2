package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thand-io/azurerm/internal/config"
	"github.com/thand-io/azurerm/internal/states"
)

// ErrStateFailed is returned when a state run has failed declarations.
var ErrStateFailed = errors.New("one or more states failed")

// parseVars reads --var key=value flags.
func parseVars(raw []string) (map[string]any, error) {
	vars := map[string]any{}
	for _, item := range raw {
		key, value, ok := strings.Cut(item, "=")
		if !ok || !isKeyword(key) {
			return nil, fmt.Errorf("variable %q must be key=value", item)
		}
		vars[key] = parseValue(value)
	}
	return vars, nil
}

// stateDefaults are the arguments added to declarations without them.
func stateDefaults() map[string]any {
	defaults := cfg.CallDefaults()
	if len(cfg.Profile) > 0 {
		defaults["connection_auth"] = map[string]any{config.ProfileKey: cfg.Profile}
	}
	return defaults
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Reconcile resources with state files",
}

var stateApplyCmd = &cobra.Command{
	Use:   "apply <file> [file...]",
	Short: "Apply the declarations of state files in order",
	Long: `Apply the declarations of one or more state files. Declarations without
connection_auth use the selected connection profile. Arguments may use
${ ... } jq expressions over .vars, set with --var, and .results.<id> of
earlier declarations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		test, _ := cmd.Flags().GetBool("test")
		rawVars, _ := cmd.Flags().GetStringArray("var")
		vars, err := parseVars(rawVars)
		if err != nil {
			return err
		}

		var decls []states.Declaration
		for _, path := range args {
			loaded, err := states.LoadFile(path)
			if err != nil {
				return err
			}
			decls = append(decls, loaded...)
		}

		_, reg := registries()
		runner := &states.Runner{
			Registry: reg,
			Test:     test,
			Defaults: stateDefaults(),
			Vars:     vars,
		}

		summary, runErr := runner.Run(ctx, decls)
		if summary != nil {
			if err := render(cmd, summary); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"succeeded": summary.Succeeded,
				"failed":    summary.Failed,
				"changed":   summary.Changed,
				"test":      test,
			}).Info("State run finished")
		}
		if runErr != nil {
			return runErr
		}
		if !summary.OK() {
			return ErrStateFailed
		}
		return nil
	},
}

func init() {
	stateApplyCmd.Flags().BoolP("test", "t", false, "Dry run: report changes without making them")
	stateApplyCmd.Flags().StringArray("var", nil, "Variable exposed to expressions as .vars.<key> (key=value)")
	stateCmd.AddCommand(stateApplyCmd)
	rootCmd.AddCommand(stateCmd)
}
