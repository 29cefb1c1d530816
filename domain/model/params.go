package model

import (
	"math"

	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"go.uber.org/multierr"
)

// Documented parameter ranges
const (
	MinIntensity         = 0.0
	MaxIntensity         = 100.0
	MaxEQGainDB          = 12.0
	MinRatio             = 1.0
	MaxRatio             = 20.0
	MinTimeMs            = 0.1
	MaxLimiterCeilingDB  = -0.3
	MinLimiterCeilingDB  = -6.0
	MinThresholdDB       = -60.0
	MaxStereoWidth       = 200.0
	DefaultStereoWidth   = 100.0
	DefaultLimiterCeilDB = -1.0
)

// DynamicsParams configures one compressor
type DynamicsParams struct {
	Threshold float64 `json:"threshold" mapstructure:"threshold"` // dB
	Ratio     float64 `json:"ratio" mapstructure:"ratio"`
	AttackMs  float64 `json:"attack_ms" mapstructure:"attack_ms"`
	ReleaseMs float64 `json:"release_ms" mapstructure:"release_ms"`
}

// BandParams configures one multiband compressor. Timing is fixed per band tier.
type BandParams struct {
	Threshold float64 `json:"threshold" mapstructure:"threshold"`
	Ratio     float64 `json:"ratio" mapstructure:"ratio"`
}

// MasteringParams is the full parameter record for one render.
// It is passed by value; the chain never keeps a reference to it.
type MasteringParams struct {
	Intensity      float64        `json:"intensity" mapstructure:"intensity"` // 0-100 %
	EQLow          float64        `json:"eq_low" mapstructure:"eq_low"`       // dB at 80 Hz
	EQMid          float64        `json:"eq_mid" mapstructure:"eq_mid"`       // dB at 1 kHz
	EQHigh         float64        `json:"eq_high" mapstructure:"eq_high"`     // dB at 8 kHz
	Compressor     DynamicsParams `json:"compressor" mapstructure:"compressor"`
	LimiterCeiling float64        `json:"limiter_ceiling" mapstructure:"limiter_ceiling"` // dBTP
	StereoWidth    float64        `json:"stereo_width" mapstructure:"stereo_width"`       // %
	Multiband      bool           `json:"multiband" mapstructure:"multiband"`
	Low            BandParams     `json:"low" mapstructure:"low"`
	Mid            BandParams     `json:"mid" mapstructure:"mid"`
	High           BandParams     `json:"high" mapstructure:"high"`
}

// DefaultMasteringParams returns the starting parameter set
func DefaultMasteringParams() MasteringParams {
	return MasteringParams{
		Intensity: 70,
		EQLow:     0,
		EQMid:     0,
		EQHigh:    2,
		Compressor: DynamicsParams{
			Threshold: -18,
			Ratio:     4,
			AttackMs:  10,
			ReleaseMs: 150,
		},
		LimiterCeiling: DefaultLimiterCeilDB,
		StereoWidth:    DefaultStereoWidth,
		Multiband:      false,
		Low:            BandParams{Threshold: -24, Ratio: 3},
		Mid:            BandParams{Threshold: -20, Ratio: 4},
		High:           BandParams{Threshold: -18, Ratio: 5},
	}
}

// Validate reports every value outside its documented range.
// The signal chain does not call this; it renders Sanitized() instead.
func (p MasteringParams) Validate() error {
	var err error
	check := func(field string, v, lo, hi float64) {
		if math.IsNaN(v) || v < lo || v > hi {
			err = multierr.Append(err, pkgerrors.NewInvalidParameterError(field, v,
				"must be within documented range"))
		}
	}

	check("intensity", p.Intensity, MinIntensity, MaxIntensity)
	check("eq_low", p.EQLow, -MaxEQGainDB, MaxEQGainDB)
	check("eq_mid", p.EQMid, -MaxEQGainDB, MaxEQGainDB)
	check("eq_high", p.EQHigh, -MaxEQGainDB, MaxEQGainDB)
	check("compressor.threshold", p.Compressor.Threshold, MinThresholdDB, 0)
	check("compressor.ratio", p.Compressor.Ratio, MinRatio, math.Inf(1))
	check("compressor.attack_ms", p.Compressor.AttackMs, MinTimeMs, math.Inf(1))
	check("compressor.release_ms", p.Compressor.ReleaseMs, MinTimeMs, math.Inf(1))
	check("limiter_ceiling", p.LimiterCeiling, math.Inf(-1), MaxLimiterCeilingDB)
	check("stereo_width", p.StereoWidth, 0, MaxStereoWidth)
	if p.Multiband {
		for _, b := range []struct {
			name string
			band BandParams
		}{{"low", p.Low}, {"mid", p.Mid}, {"high", p.High}} {
			check(b.name+".threshold", b.band.Threshold, MinThresholdDB, 0)
			check(b.name+".ratio", b.band.Ratio, MinRatio, math.Inf(1))
		}
	}
	return err
}

// Sanitized returns a copy clamped into the ranges the DSP stages tolerate.
//
//   - intensity: clamped to [0, 100]
//   - EQ gains: clamped to +/-12 dB
//   - thresholds: clamped to [-60, 0] dB
//   - ratios: clamped to [1, 20]
//   - attack/release: raised to at least 0.1 ms
//   - limiter ceiling: lowered to at most -0.3 dBTP
//   - stereo width: clamped to [0, 200] %
//
// NaN fields fall back to the default value for that field.
func (p MasteringParams) Sanitized() MasteringParams {
	d := DefaultMasteringParams()
	out := p

	out.Intensity = clampOr(p.Intensity, MinIntensity, MaxIntensity, d.Intensity)
	out.EQLow = clampOr(p.EQLow, -MaxEQGainDB, MaxEQGainDB, d.EQLow)
	out.EQMid = clampOr(p.EQMid, -MaxEQGainDB, MaxEQGainDB, d.EQMid)
	out.EQHigh = clampOr(p.EQHigh, -MaxEQGainDB, MaxEQGainDB, d.EQHigh)

	out.Compressor.Threshold = clampOr(p.Compressor.Threshold, MinThresholdDB, 0, d.Compressor.Threshold)
	out.Compressor.Ratio = clampOr(p.Compressor.Ratio, MinRatio, MaxRatio, d.Compressor.Ratio)
	out.Compressor.AttackMs = clampOr(p.Compressor.AttackMs, MinTimeMs, math.Inf(1), d.Compressor.AttackMs)
	out.Compressor.ReleaseMs = clampOr(p.Compressor.ReleaseMs, MinTimeMs, math.Inf(1), d.Compressor.ReleaseMs)

	out.LimiterCeiling = clampOr(p.LimiterCeiling, math.Inf(-1), MaxLimiterCeilingDB, d.LimiterCeiling)
	out.StereoWidth = clampOr(p.StereoWidth, 0, MaxStereoWidth, d.StereoWidth)

	out.Low = sanitizeBand(p.Low, d.Low)
	out.Mid = sanitizeBand(p.Mid, d.Mid)
	out.High = sanitizeBand(p.High, d.High)
	return out
}

// MakeupGainDB returns |threshold| * (1 - 1/ratio) * 0.5 * intensity/100.
// It is computed from the single-band compressor settings in both dynamics modes.
func (p MasteringParams) MakeupGainDB() float64 {
	s := p.Sanitized()
	return math.Abs(s.Compressor.Threshold) * (1 - 1/s.Compressor.Ratio) * 0.5 * (s.Intensity / 100)
}

func sanitizeBand(b, def BandParams) BandParams {
	return BandParams{
		Threshold: clampOr(b.Threshold, MinThresholdDB, 0, def.Threshold),
		Ratio:     clampOr(b.Ratio, MinRatio, MaxRatio, def.Ratio),
	}
}

func clampOr(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return math.Max(lo, math.Min(hi, v))
}
