package main

import (
	"fmt"
	"sync"

	"github.com/shahzroux/masterforge"
	"github.com/spf13/cobra"
)

type masterFlags struct {
	outDir     string
	format     string
	rate       int
	platformID string
	multiband  bool
	intensity  float64
	eqLow      float64
	eqMid      float64
	eqHigh     float64
	ceiling    float64
	threshold  float64
	ratio      float64
}

func newMasterCmd(a *app) *cobra.Command {
	f := &masterFlags{}

	cmd := &cobra.Command{
		Use:   "master FILE",
		Short: "Render the mastering chain and export the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}

			progressCh := make(chan masterforge.ProgressUpdate, 32)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for upd := range progressCh {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%-8s] %3.0f%%  %s\n", upd.Stage, upd.Percent, upd.Message)
				}
			}()
			defer func() {
				close(progressCh)
				wg.Wait()
			}()

			e, err := a.engine(progressCh)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			buf, _, err := e.Load(ctx, args[0])
			if err != nil {
				return err
			}
			before, err := e.Analyze(ctx, buf)
			if err != nil {
				return err
			}
			mastered, err := e.Master(ctx, buf, opts...)
			if err != nil {
				return err
			}
			after, err := e.Analyze(ctx, mastered)
			if err != nil {
				return err
			}

			res, err := e.Export(ctx, mastered, masterforge.ExportRequest{
				Format:     masterforge.ExportFormat(f.format),
				SampleRate: f.rate,
				BaseName:   baseName(args[0]),
			})
			if err != nil {
				return err
			}
			path, err := e.Save(ctx, res, f.outDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Before:  %.1f LUFS  %.1f dBTP  LRA %.1f\n", before.IntegratedLUFS, before.TruePeakDB, before.LRA)
			fmt.Fprintf(out, "After:   %.1f LUFS  %.1f dBTP  LRA %.1f\n", after.IntegratedLUFS, after.TruePeakDB, after.LRA)
			fmt.Fprintf(out, "Wrote:   %s (%d bytes, %d Hz)\n", path, len(res.Data), res.SampleRate)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.outDir, "out", "o", "", "output directory (default from config)")
	fl.StringVarP(&f.format, "format", "f", "", "export format: wav16, wav24, wav32f or mp3 (default from config)")
	fl.IntVarP(&f.rate, "rate", "r", 0, "export sample rate in Hz (default from config)")
	fl.StringVarP(&f.platformID, "platform", "p", "", "apply a platform's ceiling and intensity preset")
	fl.BoolVar(&f.multiband, "multiband", false, "use 3-band dynamics")
	fl.Float64Var(&f.intensity, "intensity", 0, "overall intensity, 0-100 %")
	fl.Float64Var(&f.eqLow, "eq-low", 0, "80 Hz shelf gain in dB")
	fl.Float64Var(&f.eqMid, "eq-mid", 0, "1 kHz peak gain in dB")
	fl.Float64Var(&f.eqHigh, "eq-high", 0, "8 kHz shelf gain in dB")
	fl.Float64Var(&f.ceiling, "ceiling", 0, "limiter ceiling in dBTP")
	fl.Float64Var(&f.threshold, "threshold", 0, "compressor threshold in dB")
	fl.Float64Var(&f.ratio, "ratio", 0, "compressor ratio")
	return cmd
}

// options turns the flags the user actually set into mastering options. The
// platform preset is applied first so explicit flags override it.
func (f *masterFlags) options(cmd *cobra.Command) ([]masterforge.Option, error) {
	changed := cmd.Flags().Changed
	var opts []masterforge.Option

	if changed("platform") {
		if _, err := masterforge.LookupPlatform(f.platformID); err != nil {
			return nil, err
		}
		opts = append(opts, masterforge.WithPlatform(f.platformID))
	}
	if changed("format") {
		if _, err := masterforge.ParseExportFormat(f.format); err != nil {
			return nil, err
		}
	}
	if changed("intensity") {
		opts = append(opts, masterforge.WithIntensity(f.intensity))
	}
	if changed("ceiling") {
		opts = append(opts, masterforge.WithLimiterCeiling(f.ceiling))
	}
	if changed("eq-low") || changed("eq-mid") || changed("eq-high") {
		opts = append(opts, func(p *masterforge.MasteringParams) {
			if changed("eq-low") {
				p.EQLow = f.eqLow
			}
			if changed("eq-mid") {
				p.EQMid = f.eqMid
			}
			if changed("eq-high") {
				p.EQHigh = f.eqHigh
			}
		})
	}
	if changed("threshold") || changed("ratio") {
		opts = append(opts, func(p *masterforge.MasteringParams) {
			if changed("threshold") {
				p.Compressor.Threshold = f.threshold
			}
			if changed("ratio") {
				p.Compressor.Ratio = f.ratio
			}
		})
	}
	if changed("multiband") {
		opts = append(opts, func(p *masterforge.MasteringParams) { p.Multiband = f.multiband })
	}
	return opts, nil
}
