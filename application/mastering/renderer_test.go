package mastering

import (
	"context"
	"testing"

	"github.com/shahzroux/masterforge/application/loudness"
	"github.com/shahzroux/masterforge/application/pipeline"
	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/internal/testsignal"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"github.com/shahzroux/masterforge/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRenderer(t *testing.T) (*Renderer, *loudness.Analyzer) {
	log := logger.FromZap(zaptest.NewLogger(t))
	pool := pipeline.NewWorkerPool(2, log)
	return NewRenderer(pool, log), loudness.NewAnalyzer(pool, log)
}

func program(seconds float64) *model.PCMBuffer {
	return testsignal.Generate(testsignal.Options{
		DurationSecs: seconds,
		ToneFreq:     110,
		ToneLevel:    -6,
		NoiseLevel:   -12,
	})
}

func TestRenderNilBuffer(t *testing.T) {
	r, _ := newTestRenderer(t)
	out, err := r.Render(context.Background(), nil, model.DefaultMasteringParams(), nil)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, pkgerrors.ErrNothingToProcess)
}

func TestRenderKeepsShapeAndSource(t *testing.T) {
	r, _ := newTestRenderer(t)
	src := program(1)
	before := src.CopyChannel(0)

	out, err := r.Render(context.Background(), src, model.DefaultMasteringParams(), nil)
	require.NoError(t, err)

	assert.NotSame(t, src, out)
	assert.Equal(t, src.SampleRate(), out.SampleRate())
	assert.Equal(t, src.NumChannels(), out.NumChannels())
	assert.Equal(t, src.Frames(), out.Frames())
	assert.Equal(t, before, src.Channel(0))
}

func TestRenderRespectsCeiling(t *testing.T) {
	r, a := newTestRenderer(t)
	src := program(2)

	hot := model.DefaultMasteringParams()
	hot.Intensity = 100
	hot.EQLow, hot.EQMid, hot.EQHigh = 12, 12, 12
	hot.Compressor = model.DynamicsParams{Threshold: -40, Ratio: 1, AttackMs: 10, ReleaseMs: 100}

	multi := hot
	multi.Multiband = true

	tests := []struct {
		name    string
		params  model.MasteringParams
		ceiling float64
	}{
		{"defaults", model.DefaultMasteringParams(), -1},
		{"hot single band", withCeiling(hot, -0.3), -0.3},
		{"hot multiband", withCeiling(multi, -3), -3},
		{"above contract is clamped", withCeiling(hot, 0.5), model.MaxLimiterCeilingDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(context.Background(), src, tt.params, nil)
			require.NoError(t, err)

			m, err := a.Measure(context.Background(), out)
			require.NoError(t, err)
			assert.LessOrEqual(t, m.TruePeakDB, tt.ceiling+0.2)
		})
	}
}

func withCeiling(p model.MasteringParams, c float64) model.MasteringParams {
	p.LimiterCeiling = c
	return p
}

func TestRenderTowardsPlatformTarget(t *testing.T) {
	r, a := newTestRenderer(t)
	src := testsignal.Sine(1000, -20, 4, 44100, 2)

	before, err := a.Measure(context.Background(), src)
	require.NoError(t, err)
	require.InDelta(t, -23.3, before.IntegratedLUFS, 0.15)

	params, err := model.ApplyPlatformTarget(model.DefaultMasteringParams(), "spotify")
	require.NoError(t, err)
	assert.Equal(t, -1.0, params.LimiterCeiling)
	assert.Equal(t, 70.0, params.Intensity)

	out, err := r.Render(context.Background(), src, params, nil)
	require.NoError(t, err)
	after, err := a.Measure(context.Background(), out)
	require.NoError(t, err)

	assert.Greater(t, after.IntegratedLUFS, before.IntegratedLUFS)
	target := -14.0
	assert.Less(t, abs(after.IntegratedLUFS-target), abs(before.IntegratedLUFS-target))
}

func TestMultibandDiffersFromSingleBand(t *testing.T) {
	r, _ := newTestRenderer(t)
	src := program(1)

	single := model.DefaultMasteringParams()
	multi := single
	multi.Multiband = true
	multi.Low = model.BandParams{Threshold: single.Compressor.Threshold, Ratio: single.Compressor.Ratio}
	multi.Mid = multi.Low
	multi.High = multi.Low

	a, err := r.Render(context.Background(), src, single, nil)
	require.NoError(t, err)
	b, err := r.Render(context.Background(), src, multi, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Channel(0), b.Channel(0))
}

func TestRenderTransparentAtZeroIntensity(t *testing.T) {
	r, _ := newTestRenderer(t)
	src := testsignal.Sine(440, -40, 0.5, 44100, 2)

	p := model.DefaultMasteringParams()
	p.Intensity = 0

	out, err := r.Render(context.Background(), src, p, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, src.Channel(0), out.Channel(0), 1e-9)
}

func TestRenderDeterministic(t *testing.T) {
	r, _ := newTestRenderer(t)
	src := program(1)
	p := model.DefaultMasteringParams()
	p.Multiband = true

	a, err := r.Render(context.Background(), src, p, nil)
	require.NoError(t, err)
	b, err := r.Render(context.Background(), src, p, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Channel(1), b.Channel(1))
}

func TestRenderReportsProgress(t *testing.T) {
	r, _ := newTestRenderer(t)
	rec := &progress.RecordingReporter{}

	_, err := r.Render(context.Background(), program(0.5), model.DefaultMasteringParams(), rec)
	require.NoError(t, err)

	updates := rec.Updates()
	require.Len(t, updates, 4)
	assert.Equal(t, progress.StageEQ, updates[0].Stage)
	assert.Equal(t, progress.StageLimit, updates[3].Stage)
	assert.Equal(t, 100.0, updates[3].Percent)
}

func TestRenderCancelled(t *testing.T) {
	r, _ := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := r.Render(ctx, program(0.5), model.DefaultMasteringParams(), nil)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderEmptyBuffer(t *testing.T) {
	r, _ := newTestRenderer(t)
	src := testsignal.Must(model.NewPCMBuffer(44100, [][]float64{{}}))

	out, err := r.Render(context.Background(), src, model.DefaultMasteringParams(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Frames())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
