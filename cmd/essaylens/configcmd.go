package main

import (
	"encoding/json"
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"essaylens/internal/registry"
)

func newConfigCmd(o *cliOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: "config prints the configuration after the file, flags and catalog\n" +
			"selection are applied. The output can be saved and passed back with -c.",
		Example: "  essaylens config --format toml > essaylens.toml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := o.cfg
			if err := registry.Apply(&cfg); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "yaml", "yml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case "toml":
				return toml.NewEncoder(out).Encode(cfg)
			default:
				return fmt.Errorf("unknown format %q (want yaml, json or toml)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml|json|toml")
	return cmd
}
