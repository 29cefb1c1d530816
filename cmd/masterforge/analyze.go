package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shahzroux/masterforge"
	"github.com/spf13/cobra"
)

type analyzeReport struct {
	File        string                          `json:"file"`
	Measurement masterforge.LoudnessMeasurement `json:"measurement"`
	Meters      masterforge.Meters              `json:"meters"`
	Platform    masterforge.Platform            `json:"platform"`
	GapLU       float64                         `json:"gap_lu"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		platformID string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Measure loudness, true peak and loudness range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := masterforge.LookupPlatform(platformID)
			if err != nil {
				return err
			}

			e, err := a.engine(nil)
			if err != nil {
				return err
			}
			defer e.Close()

			buf, _, err := e.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m, err := e.Analyze(cmd.Context(), buf)
			if err != nil {
				return err
			}

			report := analyzeReport{
				File:        args[0],
				Measurement: m,
				Meters:      e.Meters(buf, m),
				Platform:    platform,
				GapLU:       masterforge.GapToTarget(m, platform),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printAnalysis(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&platformID, "platform", "p", "spotify", "target platform for the gap report")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printAnalysis(w io.Writer, r analyzeReport) {
	m := r.Measurement
	fmt.Fprintf(w, "File:            %s\n", r.File)
	fmt.Fprintf(w, "Format:          %d Hz, %d ch, %.1f s\n", m.SampleRate, m.Channels, m.Duration)
	fmt.Fprintf(w, "Integrated:      %.1f LUFS\n", m.IntegratedLUFS)
	fmt.Fprintf(w, "True peak:       %.1f dBTP\n", m.TruePeakDB)
	fmt.Fprintf(w, "Loudness range:  %.1f LU\n", m.LRA)
	fmt.Fprintf(w, "Target:          %s (%.0f LUFS), gap %+.1f LU\n", r.Platform.Label, r.Platform.TargetLUFS, r.GapLU)
	fmt.Fprintf(w, "Meters:          loudness %.0f%%  dynamics %.0f%%  stereo %.0f%%  clarity %.0f%%\n",
		r.Meters.Loudness, r.Meters.Dynamics, r.Meters.Stereo, r.Meters.Clarity)
}
