// Package testsignal generates deterministic synthetic buffers for tests.
package testsignal

import (
	"math"

	"github.com/shahzroux/masterforge/domain/model"
)

// Options configures the synthetic audio to generate
type Options struct {
	DurationSecs float64 // total duration in seconds (default 2)
	SampleRate   int     // default 44100
	Channels     int     // default 2; every channel carries the same signal
	ToneFreq     float64 // sine frequency in Hz (0 = no tone)
	ToneLevel    float64 // sine peak level in dBFS, e.g. -20
	NoiseLevel   float64 // white noise peak level in dBFS (0 = no noise)
	SilenceGap   struct {
		Start    float64
		Duration float64
	}
}

// Generate builds a buffer from opts. Noise comes from a fixed-seed LCG so the
// same options always produce the same samples.
func Generate(opts Options) *model.PCMBuffer {
	if opts.SampleRate == 0 {
		opts.SampleRate = 44100
	}
	if opts.DurationSecs == 0 {
		opts.DurationSecs = 2
	}
	if opts.Channels == 0 {
		opts.Channels = 2
	}

	frames := int(opts.DurationSecs * float64(opts.SampleRate))
	toneAmp := 0.0
	if opts.ToneFreq > 0 {
		toneAmp = math.Pow(10, opts.ToneLevel/20)
	}
	noiseAmp := 0.0
	if opts.NoiseLevel < 0 {
		noiseAmp = math.Pow(10, opts.NoiseLevel/20)
	}
	gapStart := int(opts.SilenceGap.Start * float64(opts.SampleRate))
	gapEnd := int((opts.SilenceGap.Start + opts.SilenceGap.Duration) * float64(opts.SampleRate))

	// LCG parameters from Numerical Recipes
	state := uint32(12345)
	next := func() float64 {
		state = state*1664525 + 1013904223
		return float64(state)/float64(math.MaxUint32)*2 - 1
	}

	mono := make([]float64, frames)
	for i := range mono {
		if opts.SilenceGap.Duration > 0 && i >= gapStart && i < gapEnd {
			continue
		}
		var s float64
		if toneAmp > 0 {
			s += toneAmp * math.Sin(2*math.Pi*opts.ToneFreq*float64(i)/float64(opts.SampleRate))
		}
		if noiseAmp > 0 {
			s += noiseAmp * next()
		}
		mono[i] = s
	}

	channels := make([][]float64, opts.Channels)
	for c := range channels {
		channels[c] = make([]float64, frames)
		copy(channels[c], mono)
	}
	return Must(model.NewPCMBuffer(opts.SampleRate, channels))
}

// Sine returns a multi-channel sine at level dBFS
func Sine(freq, levelDB, seconds float64, sampleRate, channels int) *model.PCMBuffer {
	return Generate(Options{
		DurationSecs: seconds,
		SampleRate:   sampleRate,
		Channels:     channels,
		ToneFreq:     freq,
		ToneLevel:    levelDB,
	})
}

// Silence returns an all-zero buffer
func Silence(seconds float64, sampleRate, channels int) *model.PCMBuffer {
	return Generate(Options{DurationSecs: seconds, SampleRate: sampleRate, Channels: channels})
}

// Concat joins buffers of equal rate and channel count end to end
func Concat(bufs ...*model.PCMBuffer) *model.PCMBuffer {
	first := bufs[0]
	channels := make([][]float64, first.NumChannels())
	for _, b := range bufs {
		for c := range channels {
			channels[c] = append(channels[c], b.Channel(c)...)
		}
	}
	return Must(model.NewPCMBuffer(first.SampleRate(), channels))
}

// Must panics on a construction error
func Must(buf *model.PCMBuffer, err error) *model.PCMBuffer {
	if err != nil {
		panic(err)
	}
	return buf
}

// Peak returns the largest absolute sample over all channels
func Peak(buf *model.PCMBuffer) float64 {
	var p float64
	for c := 0; c < buf.NumChannels(); c++ {
		for _, x := range buf.Channel(c) {
			p = math.Max(p, math.Abs(x))
		}
	}
	return p
}
