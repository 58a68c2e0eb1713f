package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/sceneswitch/internal/catalog"
)

func newEffectsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "effects",
		Short: "List the available effects and export presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Batch.CatalogFile)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(cat.Effects))
			for _, e := range cat.Effects {
				rows = append(rows, []string{e.Icon, e.Code, e.Name, e.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"", "Code", "Name", "Description"}, rows, nil))

			presets := make([][]string, 0, len(cat.ExportPresets))
			for _, p := range cat.ExportPresets {
				presets = append(presets, []string{p.ID, p.Name, p.AspectRatio, p.Resolution})
			}
			fmt.Fprintln(out, renderTable([]string{"Preset", "Name", "Aspect", "Resolution"}, presets, nil))
			return nil
		},
	}
}
