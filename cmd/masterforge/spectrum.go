package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shahzroux/masterforge"
	"github.com/spf13/cobra"
)

func newSpectrumCmd(a *app) *cobra.Command {
	var opts masterforge.SpectrumOptions

	cmd := &cobra.Command{
		Use:   "spectrum FILE",
		Short: "Print the band magnitude spectrum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine(nil)
			if err != nil {
				return err
			}
			defer e.Close()
			buf, _, err := e.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			spec, err := e.Spectrum(buf, opts)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "low Hz\thigh Hz\tdBFS\t\t")
			for _, b := range spec.Bands {
				// one bar cell per 3 dB above -90 dBFS
				bars := int((b.LevelDB + 90) / 3)
				fmt.Fprintf(tw, "%.0f\t%.0f\t%.1f\t%s\t\n", b.LowHz, b.HighHz, b.LevelDB, strings.Repeat("#", max(0, bars)))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&opts.Bands, "bands", 32, "number of log-spaced bands")
	cmd.Flags().IntVar(&opts.FFTSize, "fft", 4096, "FFT size (power of two)")
	return cmd
}
