package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"essaylens/internal/registry"
	"essaylens/pkg/types"
)

type modelsOutput struct {
	Catalog   []catalogRow  `json:"catalog"`
	Local     []types.Model `json:"local"`
	ModelsDir string        `json:"models_dir,omitempty"`
}

type catalogRow struct {
	types.ModelSpec
	NCtx      int  `json:"n_ctx"`
	Installed bool `json:"installed"`
}

func newModelsCmd(o *cliOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "models",
		Short:   "List catalog models and GGUF files in the models directory",
		Example: "  essaylens models --models-dir ~/models",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := o.cfg.ModelsDir
			res := modelsOutput{ModelsDir: dir, Local: []types.Model{}}
			for _, spec := range registry.Catalog() {
				res.Catalog = append(res.Catalog, catalogRow{
					ModelSpec: spec,
					NCtx:      registry.NCtx(spec),
					Installed: dir != "" && registry.Installed(spec, dir),
				})
			}
			if dir != "" {
				local, err := registry.LoadDir(dir)
				if err != nil {
					o.log.Warn().Err(err).Str("dir", dir).Msg("scan models dir")
				} else {
					res.Local = local
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tFAMILY\tN_CTX\tRAM_GB\tINSTALLED")
			for _, r := range res.Catalog {
				installed := "-"
				if r.Installed {
					installed = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", r.Key, r.DisplayName, r.Family, r.NCtx, r.MinRAMGB, installed)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if dir == "" {
				return nil
			}
			fmt.Fprintf(out, "\nlocal files in %s:\n", dir)
			tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tQUANT\tCATALOG")
			for _, m := range res.Local {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Quant, m.CatalogKey)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
