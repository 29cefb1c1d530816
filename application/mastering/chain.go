// Package mastering renders the offline mastering chain:
// EQ, single-band or 3-band dynamics, makeup gain and a brick-wall limiter.
package mastering

import (
	"github.com/shahzroux/masterforge/internal/dsp"
)

// EQ band centres
const (
	eqLowHz  = 80.0
	eqMidHz  = 1000.0
	eqHighHz = 8000.0
	eqMidQ   = 1.0
)

// Crossover points and slope for the multiband split
const (
	crossoverLowHz  = 200.0
	crossoverHighHz = 5000.0
	crossoverQ      = 0.7
)

// kneeDB is the soft knee of every program compressor
const kneeDB = 6.0

// Limiter settings. The ratio alone lets fast transients through, so a
// ceiling guard with the same release follows it.
const (
	limiterRatio     = 20.0
	limiterAttackMs  = 1.0
	limiterReleaseMs = 50.0
	guardReleaseMs   = 50.0
)

// bandTiming is the fixed attack/release of one multiband tier
type bandTiming struct {
	attackMs  float64
	releaseMs float64
}

var (
	lowBandTiming  = bandTiming{attackMs: 20, releaseMs: 200}
	midBandTiming  = bandTiming{attackMs: 10, releaseMs: 150}
	highBandTiming = bandTiming{attackMs: 5, releaseMs: 100}
)

// eqCascade builds the three EQ sections for one channel with gains already
// scaled by intensity
func eqCascade(lowDB, midDB, highDB float64, sampleRate int) dsp.Cascade {
	return dsp.Cascade{
		dsp.NewBiquad(dsp.LowShelf, eqLowHz, dsp.ButterworthQ, lowDB, sampleRate),
		dsp.NewBiquad(dsp.Peaking, eqMidHz, eqMidQ, midDB, sampleRate),
		dsp.NewBiquad(dsp.HighShelf, eqHighHz, dsp.ButterworthQ, highDB, sampleRate),
	}
}

func bandCompressor(threshold, ratio float64, timing bandTiming, sampleRate int) *dsp.Compressor {
	return dsp.NewCompressor(dsp.CompressorConfig{
		ThresholdDB: threshold,
		Ratio:       ratio,
		KneeDB:      kneeDB,
		AttackMs:    timing.attackMs,
		ReleaseMs:   timing.releaseMs,
	}, sampleRate)
}
