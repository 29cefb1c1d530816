package dsp

import "math"

// silenceDB is the detector level reported for digital silence
const silenceDB = -200.0

// CompressorConfig describes a feed-forward compressor
type CompressorConfig struct {
	ThresholdDB float64
	Ratio       float64
	KneeDB      float64
	AttackMs    float64
	ReleaseMs   float64
}

// Compressor is a feed-forward, peak-detecting compressor with a soft knee and
// dB-domain attack/release smoothing. Detection is linked across channels: the
// loudest channel drives one gain that is applied to all of them.
type Compressor struct {
	cfg         CompressorConfig
	attackCoef  float64
	releaseCoef float64
	grDB        float64
}

// NewCompressor builds a compressor for the given sample rate.
// Ratios below 1 are treated as 1 and non-positive times as one sample.
func NewCompressor(cfg CompressorConfig, sampleRate int) *Compressor {
	if !(cfg.Ratio >= 1) {
		cfg.Ratio = 1
	}
	if !(cfg.KneeDB >= 0) {
		cfg.KneeDB = 0
	}
	return &Compressor{
		cfg:         cfg,
		attackCoef:  timeCoef(cfg.AttackMs, sampleRate),
		releaseCoef: timeCoef(cfg.ReleaseMs, sampleRate),
	}
}

// Config returns the effective configuration
func (c *Compressor) Config() CompressorConfig { return c.cfg }

// StaticGainDB returns the steady-state gain change (<= 0) for a detector level
func (c *Compressor) StaticGainDB(levelDB float64) float64 {
	t, r, w := c.cfg.ThresholdDB, c.cfg.Ratio, c.cfg.KneeDB
	over := levelDB - t

	var out float64
	switch {
	case w > 0 && 2*math.Abs(over) <= w:
		k := over + w/2
		out = levelDB + (1/r-1)*k*k/(2*w)
	case over > 0:
		out = t + over/r
	default:
		out = levelDB
	}
	return out - levelDB
}

// Process compresses planar channels and returns new slices of equal shape
func (c *Compressor) Process(in [][]float64) [][]float64 {
	out := allocLike(in)
	frames := framesOf(in)

	for n := 0; n < frames; n++ {
		target := c.StaticGainDB(LinearToDB(peakAt(in, n)))
		if target < c.grDB {
			c.grDB = c.attackCoef*c.grDB + (1-c.attackCoef)*target
		} else {
			c.grDB = c.releaseCoef*c.grDB + (1-c.releaseCoef)*target
		}
		g := DBToLinear(c.grDB)
		for ch := range in {
			out[ch][n] = in[ch][n] * g
		}
	}
	return out
}

// CeilingGuard rides gain so that no output sample exceeds the ceiling.
// Attack is instantaneous; recovery follows a one-pole release.
type CeilingGuard struct {
	ceiling     float64
	releaseCoef float64
	env         float64
}

// NewCeilingGuard builds a guard for a ceiling in dBFS
func NewCeilingGuard(ceilingDB, releaseMs float64, sampleRate int) *CeilingGuard {
	return &CeilingGuard{
		ceiling:     DBToLinear(ceilingDB),
		releaseCoef: timeCoef(releaseMs, sampleRate),
		env:         1,
	}
}

// Process applies the guard to planar channels and returns new slices
func (g *CeilingGuard) Process(in [][]float64) [][]float64 {
	out := allocLike(in)
	frames := framesOf(in)

	for n := 0; n < frames; n++ {
		need := 1.0
		if level := peakAt(in, n); level > g.ceiling {
			need = g.ceiling / level
		}
		if need < g.env {
			g.env = need
		} else {
			g.env = g.releaseCoef*g.env + (1-g.releaseCoef)*need
		}
		for ch := range in {
			out[ch][n] = in[ch][n] * g.env
		}
	}
	return out
}

// ApplyGain multiplies every sample by a linear gain into a new slice
func ApplyGain(in []float64, gain float64) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = x * gain
	}
	return out
}

// DBToLinear converts decibels to an amplitude ratio
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts an amplitude ratio to decibels, floored for silence
func LinearToDB(v float64) float64 {
	if v <= 1e-10 {
		return silenceDB
	}
	return 20 * math.Log10(v)
}

// timeCoef is the one-pole smoothing coefficient for a time constant in ms
func timeCoef(ms float64, sampleRate int) float64 {
	samples := ms / 1000 * float64(sampleRate)
	if !(samples > 1) {
		return 0
	}
	return math.Exp(-1 / samples)
}

func peakAt(in [][]float64, n int) float64 {
	peak := 0.0
	for ch := range in {
		if v := math.Abs(in[ch][n]); v > peak {
			peak = v
		}
	}
	return peak
}

func framesOf(in [][]float64) int {
	if len(in) == 0 {
		return 0
	}
	return len(in[0])
}

func allocLike(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for ch := range in {
		out[ch] = make([]float64, len(in[ch]))
	}
	return out
}
