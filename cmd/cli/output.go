package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thand-io/azurerm/internal/interpolate"
)

// plain converts value into the maps, slices and scalars jq and the YAML
// encoder work with, following its json tags.
func plain(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return out, nil
}

// writeOutput filters value through query, when given, and writes it as
// JSON or YAML. A query emitting several values writes one document each.
func writeOutput(w io.Writer, value any, format, query string) error {
	out, err := plain(value)
	if err != nil {
		return err
	}

	docs := []any{out}
	if len(query) > 0 {
		docs, err = interpolate.Query(query, out)
		if err != nil {
			return err
		}
	}

	switch strings.ToLower(format) {
	case "", "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		for _, doc := range docs {
			if err := encoder.Encode(doc); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	case "yaml", "yml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		for _, doc := range docs {
			if err := encoder.Encode(doc); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}

// render writes value with the --output and --query flags of cmd.
func render(cmd *cobra.Command, value any) error {
	format, _ := cmd.Flags().GetString("output")
	query, _ := cmd.Flags().GetString("query")
	return writeOutput(cmd.OutOrStdout(), value, format, query)
}
