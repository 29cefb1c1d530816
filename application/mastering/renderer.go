package mastering

import (
	"context"
	"time"

	"github.com/shahzroux/masterforge/application/pipeline"
	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/internal/dsp"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"github.com/shahzroux/masterforge/pkg/progress"
	"go.uber.org/zap"
)

// Renderer builds and runs the mastering chain for one buffer at a time.
// It holds no per-render state and is safe for concurrent use.
type Renderer struct {
	pool     *pipeline.WorkerPool
	pipeline *pipeline.Pipeline
	log      *logger.Logger
}

// NewRenderer creates a renderer that fans per-channel filtering out over pool
func NewRenderer(pool *pipeline.WorkerPool, log *logger.Logger) *Renderer {
	if log == nil {
		log = logger.Nop()
	}
	if pool == nil {
		pool = pipeline.NewWorkerPool(0, log)
	}
	return &Renderer{
		pool:     pool,
		pipeline: pipeline.NewPipeline(log),
		log:      log,
	}
}

// Render processes buf through the chain and returns a new buffer with the same
// rate, channel count and length. Stage progress goes to reporter, which may be
// nil. Out-of-range parameters are clamped, never rejected. The source buffer
// is never written; nothing is returned unless every stage completed.
func (r *Renderer) Render(ctx context.Context, buf *model.PCMBuffer, params model.MasteringParams, reporter progress.Reporter) (*model.PCMBuffer, error) {
	if buf == nil {
		return nil, pkgerrors.ErrNothingToProcess
	}
	p := params.Sanitized()
	rate := buf.SampleRate()
	start := time.Now()

	log := r.log.With(
		zap.Int("channels", buf.NumChannels()),
		zap.Int("frames", buf.Frames()),
		zap.Bool("multiband", p.Multiband),
	)
	job := &pipeline.Job{Reporter: reporter, Log: log}

	var work [][]float64
	source := make([][]float64, buf.NumChannels())
	for c := range source {
		source[c] = buf.Channel(c)
	}

	stages := []pipeline.Stage{
		{
			Name: progress.StageEQ, Percent: 25, Message: "eq applied",
			Run: func(ctx context.Context) (err error) {
				work, err = r.equalize(ctx, source, p, rate)
				return err
			},
		},
		{
			Name: progress.StageDynamics, Percent: 60, Message: "dynamics applied",
			Run: func(ctx context.Context) (err error) {
				if p.Multiband {
					work, err = r.multiband(ctx, work, p, rate)
					return err
				}
				work = singleBand(work, p.Compressor, rate)
				return nil
			},
		},
		{
			Name: progress.StageMakeup, Percent: 75, Message: "makeup gain applied",
			Run: func(ctx context.Context) (err error) {
				g := dsp.DBToLinear(p.MakeupGainDB())
				work, err = pipeline.MapChannels(ctx, r.pool, work, func(ch []float64) []float64 {
					return dsp.ApplyGain(ch, g)
				})
				return err
			},
		},
		{
			Name: progress.StageLimit, Percent: 100, Message: "limiter applied",
			Run: func(context.Context) error {
				work = limit(work, p.LimiterCeiling, rate)
				return nil
			},
		},
	}

	if err := r.pipeline.Run(ctx, job, stages...); err != nil {
		return nil, err
	}

	out, err := model.NewPCMBuffer(rate, work)
	if err != nil {
		return nil, pkgerrors.NewProcessingError(string(progress.StageDone), "failed to assemble rendered buffer", err)
	}

	log.Info("render finished",
		zap.Float64("makeup_db", p.MakeupGainDB()),
		zap.Float64("ceiling_db", p.LimiterCeiling),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// equalize runs the three EQ sections over every channel, gains scaled by intensity
func (r *Renderer) equalize(ctx context.Context, channels [][]float64, p model.MasteringParams, rate int) ([][]float64, error) {
	scale := p.Intensity / 100
	return pipeline.MapChannels(ctx, r.pool, channels, func(ch []float64) []float64 {
		return eqCascade(p.EQLow*scale, p.EQMid*scale, p.EQHigh*scale, rate).Apply(ch)
	})
}

func singleBand(channels [][]float64, d model.DynamicsParams, rate int) [][]float64 {
	c := dsp.NewCompressor(dsp.CompressorConfig{
		ThresholdDB: d.Threshold,
		Ratio:       d.Ratio,
		KneeDB:      kneeDB,
		AttackMs:    d.AttackMs,
		ReleaseMs:   d.ReleaseMs,
	}, rate)
	return c.Process(channels)
}

// multiband splits every channel at 200 Hz and 5 kHz, compresses each band with
// detection linked across channels, and sums the bands back per channel
func (r *Renderer) multiband(ctx context.Context, channels [][]float64, p model.MasteringParams, rate int) ([][]float64, error) {
	xover := dsp.Crossover3{
		LowHz:      crossoverLowHz,
		HighHz:     crossoverHighHz,
		Q:          crossoverQ,
		SampleRate: rate,
	}

	split := make([]dsp.Bands, len(channels))
	err := r.pool.ForEach(ctx, len(channels), func(_ context.Context, i int) error {
		split[i] = xover.Split(channels[i])
		return nil
	})
	if err != nil {
		return nil, err
	}

	low := make([][]float64, len(channels))
	mid := make([][]float64, len(channels))
	high := make([][]float64, len(channels))
	for i, b := range split {
		low[i], mid[i], high[i] = b.Low, b.Mid, b.High
	}

	bands := []struct {
		signal [][]float64
		params model.BandParams
		timing bandTiming
	}{
		{low, p.Low, lowBandTiming},
		{mid, p.Mid, midBandTiming},
		{high, p.High, highBandTiming},
	}
	processed := make([][][]float64, len(bands))
	err = r.pool.ForEach(ctx, len(bands), func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := bands[i]
		processed[i] = bandCompressor(b.params.Threshold, b.params.Ratio, b.timing, rate).Process(b.signal)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(channels))
	for c := range out {
		out[c] = dsp.Mix(processed[0][c], processed[1][c], processed[2][c])
	}
	return out, nil
}

// limit applies the 20:1 limiter at the ceiling and then the ceiling guard
func limit(channels [][]float64, ceilingDB float64, rate int) [][]float64 {
	l := dsp.NewCompressor(dsp.CompressorConfig{
		ThresholdDB: ceilingDB,
		Ratio:       limiterRatio,
		KneeDB:      0,
		AttackMs:    limiterAttackMs,
		ReleaseMs:   limiterReleaseMs,
	}, rate)
	return dsp.NewCeilingGuard(ceilingDB, guardReleaseMs, rate).Process(l.Process(channels))
}
