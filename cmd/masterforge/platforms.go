package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/shahzroux/masterforge"
	"github.com/shahzroux/masterforge/domain/model"
	"github.com/spf13/cobra"
)

func newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List loudness targets and their mastering presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPLATFORM\tTARGET\tCEILING\tINTENSITY")
			for _, p := range model.Platforms {
				preset, err := masterforge.ApplyPlatformTarget(masterforge.DefaultMasteringParams(), p.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%.0f LUFS\t%.1f dBTP\t%.0f%%\n",
					p.ID, p.Label, p.TargetLUFS, preset.LimiterCeiling, preset.Intensity)
			}
			return tw.Flush()
		},
	}
}
