package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, amp float64, rate, frames int) []float64 {
	out := make([]float64, frames)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func peak(x []float64) float64 {
	p := 0.0
	for _, v := range x {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

func TestDesignResponses(t *testing.T) {
	const rate = 48000
	tests := []struct {
		name    string
		typ     FilterType
		freq    float64
		q       float64
		gain    float64
		probeHz float64
		wantDB  float64
		delta   float64
	}{
		{"lowpass passband", LowPass, 1000, ButterworthQ, 0, 20, 0, 0.01},
		{"lowpass corner", LowPass, 1000, ButterworthQ, 0, 1000, -3.01, 0.05},
		{"highpass corner", HighPass, 1000, ButterworthQ, 0, 1000, -3.01, 0.05},
		{"peaking centre", Peaking, 1000, 1, 6, 1000, 6, 0.01},
		{"lowshelf floor", LowShelf, 80, ButterworthQ, 4, 10, 4, 0.2},
		{"highshelf top", HighShelf, 8000, ButterworthQ, -3, 20000, -3, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Design(tt.typ, tt.freq, tt.q, tt.gain, rate)
			assert.InDelta(t, tt.wantDB, c.MagnitudeDB(tt.probeHz, rate), tt.delta)
		})
	}
}

func TestDesignClampsAboveNyquist(t *testing.T) {
	c := Design(LowPass, 40000, ButterworthQ, 0, 44100)
	assert.False(t, math.IsNaN(c.B0))
	assert.False(t, math.IsInf(c.A1, 0))
}

func TestCascadeDoesNotModifyInput(t *testing.T) {
	in := sine(440, 0.5, 44100, 512)
	orig := append([]float64(nil), in...)

	out := Cascade{NewBiquad(HighPass, 200, ButterworthQ, 0, 44100)}.Apply(in)
	assert.Equal(t, orig, in)
	assert.Len(t, out, len(in))
}

func TestStaticGainCurve(t *testing.T) {
	c := NewCompressor(CompressorConfig{ThresholdDB: -20, Ratio: 4, KneeDB: 6}, 44100)

	assert.Equal(t, 0.0, c.StaticGainDB(-40))
	// 10 dB over at 4:1 leaves 2.5 dB over
	assert.InDelta(t, -7.5, c.StaticGainDB(-10), 1e-12)
	// knee is continuous at both edges
	assert.InDelta(t, 0, c.StaticGainDB(-23), 1e-12)
	assert.InDelta(t, -0.75*3, c.StaticGainDB(-17), 1e-12)

	hard := NewCompressor(CompressorConfig{ThresholdDB: -20, Ratio: 4}, 44100)
	assert.InDelta(t, -7.5, hard.StaticGainDB(-10), 1e-12)
	assert.Equal(t, 0.0, hard.StaticGainDB(-20))
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	const rate = 44100
	left := sine(1000, 1, rate, rate)
	right := sine(1000, 1, rate, rate)

	c := NewCompressor(CompressorConfig{ThresholdDB: -20, Ratio: 4, KneeDB: 6, AttackMs: 5, ReleaseMs: 100}, rate)
	out := c.Process([][]float64{left, right})

	require.Len(t, out, 2)
	tail := out[0][rate/2:]
	// the static curve gives -15 dB at the crests; smoothing sits a little above
	assert.GreaterOrEqual(t, peak(tail), DBToLinear(-15)*0.99)
	assert.Less(t, peak(tail), DBToLinear(-8))
	assert.Equal(t, out[0], out[1])
}

func TestCompressorLinksChannels(t *testing.T) {
	const rate = 44100
	loud := sine(500, 1, rate, rate/2)
	quiet := sine(500, 0.01, rate, rate/2)

	c := NewCompressor(CompressorConfig{ThresholdDB: -20, Ratio: 10, AttackMs: 1, ReleaseMs: 50}, rate)
	out := c.Process([][]float64{loud, quiet})

	// the quiet channel is ducked by the loud one
	assert.Less(t, peak(out[1][rate/4:]), 0.005)
}

func TestCeilingGuardHoldsCeiling(t *testing.T) {
	const rate = 44100
	in := [][]float64{sine(100, 1.5, rate, rate), sine(130, 0.2, rate, rate)}

	g := NewCeilingGuard(-1, 50, rate)
	out := g.Process(in)

	ceiling := DBToLinear(-1)
	for ch := range out {
		assert.LessOrEqual(t, peak(out[ch]), ceiling*(1+1e-12))
	}
}

func TestCeilingGuardPassesQuietSignal(t *testing.T) {
	in := [][]float64{sine(100, 0.1, 44100, 4410)}
	out := NewCeilingGuard(-1, 50, 44100).Process(in)
	assert.InDeltaSlice(t, in[0], out[0], 1e-15)
}

func TestCrossoverSeparatesBands(t *testing.T) {
	const rate = 44100
	x := Crossover3{LowHz: 200, HighHz: 5000, Q: 0.7, SampleRate: rate}

	lowTone := x.Split(sine(50, 1, rate, rate))
	assert.Greater(t, peak(lowTone.Low[rate/2:]), 0.9)
	assert.Less(t, peak(lowTone.High[rate/2:]), 0.01)

	highTone := x.Split(sine(12000, 1, rate, rate))
	assert.Greater(t, peak(highTone.High[rate/2:]), 0.8)
	assert.Less(t, peak(highTone.Low[rate/2:]), 0.01)
}

func TestMix(t *testing.T) {
	assert.Equal(t, []float64{3, 5}, Mix([]float64{1, 2}, []float64{2, 3}))
	assert.Nil(t, Mix())
}

func TestDBConversions(t *testing.T) {
	assert.InDelta(t, 0.5011872336, DBToLinear(-6), 1e-9)
	assert.InDelta(t, -6, LinearToDB(DBToLinear(-6)), 1e-12)
	assert.Equal(t, silenceDB, LinearToDB(0))
	assert.Equal(t, []float64{2, -4}, ApplyGain([]float64{1, -2}, 2))
}
