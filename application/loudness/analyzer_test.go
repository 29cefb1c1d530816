package loudness

import (
	"context"
	"math"
	"testing"

	"github.com/shahzroux/masterforge/application/pipeline"
	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/internal/dsp"
	"github.com/shahzroux/masterforge/internal/testsignal"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	log := logger.FromZap(zaptest.NewLogger(t))
	return NewAnalyzer(pipeline.NewWorkerPool(2, log), log)
}

func TestMeasureSilence(t *testing.T) {
	m, err := newTestAnalyzer(t).Measure(context.Background(), testsignal.Silence(3, 44100, 2))
	require.NoError(t, err)

	assert.Equal(t, FloorLUFS, m.IntegratedLUFS)
	assert.Equal(t, SilencePeakDB, m.TruePeakDB)
	assert.Equal(t, 0.0, m.LRA)
	assert.Equal(t, 3.0, m.Duration)
	assert.Equal(t, 44100, m.SampleRate)
	assert.Equal(t, 2, m.Channels)
}

func TestMeasureFullScaleSine(t *testing.T) {
	m, err := newTestAnalyzer(t).Measure(context.Background(), testsignal.Sine(1000, 0, 5, 48000, 2))
	require.NoError(t, err)

	assert.InDelta(t, 0, m.TruePeakDB, 0.1)
	assert.Less(t, m.LRA, 0.5)
	// a 0 dBFS 1 kHz sine reads about -3 LUFS
	assert.InDelta(t, -3.0, m.IntegratedLUFS, 0.3)
}

func TestMeasureIsIdempotent(t *testing.T) {
	buf := testsignal.Generate(testsignal.Options{
		DurationSecs: 4,
		ToneFreq:     220,
		ToneLevel:    -12,
		NoiseLevel:   -30,
	})
	a := newTestAnalyzer(t)

	first, err := a.Measure(context.Background(), buf)
	require.NoError(t, err)
	second, err := a.Measure(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMeasureGatesSilence(t *testing.T) {
	a := newTestAnalyzer(t)
	tone := testsignal.Sine(1000, -20, 3, 44100, 2)
	withGap := testsignal.Concat(tone, testsignal.Silence(3, 44100, 2))

	toneOnly, err := a.Measure(context.Background(), tone)
	require.NoError(t, err)
	gated, err := a.Measure(context.Background(), withGap)
	require.NoError(t, err)

	assert.InDelta(t, toneOnly.IntegratedLUFS, gated.IntegratedLUFS, 0.3)
	// -20 dBFS sine, -3 dB mean-square, +0.44 dB K-weighting at 1 kHz
	assert.InDelta(t, -23.3, toneOnly.IntegratedLUFS, 0.15)
}

func TestMeasureLoudnessRange(t *testing.T) {
	buf := testsignal.Concat(
		testsignal.Sine(1000, -30, 5, 44100, 2),
		testsignal.Sine(1000, -10, 5, 44100, 2),
	)
	m, err := newTestAnalyzer(t).Measure(context.Background(), buf)
	require.NoError(t, err)
	assert.InDelta(t, 20, m.LRA, 0.5)
}

func TestMeasureUsesFirstTwoChannelsForLoudness(t *testing.T) {
	a := newTestAnalyzer(t)
	stereo := testsignal.Sine(1000, -20, 2, 44100, 2)

	loud := testsignal.Sine(1000, -1, 2, 44100, 1)
	three := testsignal.Must(model.NewPCMBuffer(44100, [][]float64{
		stereo.Channel(0), stereo.Channel(1), loud.Channel(0),
	}))

	m2, err := a.Measure(context.Background(), stereo)
	require.NoError(t, err)
	m3, err := a.Measure(context.Background(), three)
	require.NoError(t, err)

	assert.Equal(t, m2.IntegratedLUFS, m3.IntegratedLUFS)
	assert.Greater(t, m3.TruePeakDB, m2.TruePeakDB)
	assert.Equal(t, 3, m3.Channels)
}

func TestMeasureNilBuffer(t *testing.T) {
	_, err := newTestAnalyzer(t).Measure(context.Background(), nil)
	assert.ErrorIs(t, err, pkgerrors.ErrNothingToProcess)
}

func TestMeasureEmptyBuffer(t *testing.T) {
	buf := testsignal.Must(model.NewPCMBuffer(44100, [][]float64{{}, {}}))
	m, err := NewAnalyzer(nil, nil).Measure(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, FloorLUFS, m.IntegratedLUFS)
	assert.Equal(t, SilencePeakDB, m.TruePeakDB)
}

func TestMeasureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestAnalyzer(t).Measure(ctx, testsignal.Sine(1000, -6, 1, 44100, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBlockEnergies(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"empty", 0, 1},
		{"shorter than a block", 100, 1},
		{"exactly one block", 400, 1},
		{"several hops", 1000, 7},
		{"partial hop", 1050, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make([]float64, tt.length)
			for i := range ch {
				ch[i] = 0.5
			}
			e := blockEnergies([][]float64{ch}, 1000)
			require.Len(t, e, tt.want)
			if tt.length > 0 {
				assert.InDelta(t, 0.25, e[0], 1e-12)
			}
		})
	}
}

func TestIntegratedLoudnessFallbacks(t *testing.T) {
	// every block under the absolute gate: all of them are used
	quiet := []float64{1e-9, 1e-9}
	assert.InDelta(t, -70, integratedLoudness(quiet), 1e-9)

	assert.Equal(t, FloorLUFS, integratedLoudness([]float64{0, 0}))

	// one loud block dominates; the quiet one falls under the relative gate
	e := []float64{0.1, 0.0001}
	assert.InDelta(t, -0.691+10*math.Log10(0.1), integratedLoudness(e), 1e-9)
}

func TestLoudnessRangeNeedsFourBlocks(t *testing.T) {
	assert.Equal(t, 0.0, loudnessRange([]float64{0.1, 0.001, 0.01}))
	assert.InDelta(t, 20, loudnessRange([]float64{0.001, 0.001, 0.1, 0.1}), 1e-9)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, -0.2, round1(-0.25))
	assert.Equal(t, 3.1, round1(3.14))
	assert.Equal(t, -70.0, round1(-70))
}

func TestKWeight(t *testing.T) {
	const rate = 48000
	c := kWeightingCascade(rate)
	// the RBJ shelf plus high-pass give +0.44 dB at 1 kHz and a deep cut at 10 Hz
	gain1k := c[0].Coefficients().MagnitudeDB(1000, rate) + c[1].Coefficients().MagnitudeDB(1000, rate)
	assert.InDelta(t, 0.438, gain1k, 0.05)
	gain10 := c[0].Coefficients().MagnitudeDB(10, rate) + c[1].Coefficients().MagnitudeDB(10, rate)
	assert.Less(t, gain10, -10.0)

	in := testsignal.Sine(1000, -6, 0.1, rate, 1).Channel(0)
	out := KWeight(in, rate)
	assert.Len(t, out, len(in))
	assert.NotEqual(t, in, out)
	assert.Equal(t, dsp.Design(dsp.HighPass, highPassFreq, highPassQ, 0, rate), c[1].Coefficients())
}
