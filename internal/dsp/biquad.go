// Package dsp holds the signal-processing primitives the analyzer and the
// mastering chain are composed from: RBJ biquad sections, a feed-forward
// dynamics compressor, a ceiling guard and a plain gain stage.
//
// Every primitive processes a whole block and writes to a caller-provided or
// freshly allocated slice; none of them modify their input.
package dsp

import "math"

// FilterType selects the Audio EQ Cookbook transfer function
type FilterType int

const (
	LowPass FilterType = iota
	HighPass
	Peaking
	LowShelf
	HighShelf
)

func (t FilterType) String() string {
	switch t {
	case LowPass:
		return "lowpass"
	case HighPass:
		return "highpass"
	case Peaking:
		return "peaking"
	case LowShelf:
		return "lowshelf"
	case HighShelf:
		return "highshelf"
	default:
		return "unknown"
	}
}

// ButterworthQ is 1/sqrt(2), the Q used for shelves when none is given
const ButterworthQ = 0.7071067811865476

// Coefficients are normalised biquad coefficients (a0 == 1)
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Design computes RBJ cookbook coefficients for an analog prototype at the given
// sample rate. The frequency is clamped just below Nyquist and Q to a small
// positive minimum so that any input yields a stable section.
func Design(t FilterType, freq, q, gainDB float64, sampleRate int) Coefficients {
	fs := float64(sampleRate)
	nyquist := fs / 2
	if !(freq > 0) {
		freq = 1
	}
	if freq > nyquist*0.999 {
		freq = nyquist * 0.999
	}
	if !(q > 1e-4) {
		q = 1e-4
	}
	if math.IsNaN(gainDB) {
		gainDB = 0
	}

	w0 := 2 * math.Pi * freq / fs
	cosW := math.Cos(w0)
	sinW := math.Sin(w0)
	alpha := sinW / (2 * q)
	a := math.Pow(10, gainDB/40)

	var b0, b1, b2, a0, a1, a2 float64
	switch t {
	case LowPass:
		b0 = (1 - cosW) / 2
		b1 = 1 - cosW
		b2 = (1 - cosW) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW
		a2 = 1 - alpha
	case HighPass:
		b0 = (1 + cosW) / 2
		b1 = -(1 + cosW)
		b2 = (1 + cosW) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW
		a2 = 1 - alpha
	case Peaking:
		b0 = 1 + alpha*a
		b1 = -2 * cosW
		b2 = 1 - alpha*a
		a0 = 1 + alpha/a
		a1 = -2 * cosW
		a2 = 1 - alpha/a
	case LowShelf:
		sq := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) - (a-1)*cosW + sq)
		b1 = 2 * a * ((a - 1) - (a+1)*cosW)
		b2 = a * ((a + 1) - (a-1)*cosW - sq)
		a0 = (a + 1) + (a-1)*cosW + sq
		a1 = -2 * ((a - 1) + (a+1)*cosW)
		a2 = (a + 1) + (a-1)*cosW - sq
	case HighShelf:
		sq := 2 * math.Sqrt(a) * alpha
		b0 = a * ((a + 1) + (a-1)*cosW + sq)
		b1 = -2 * a * ((a - 1) + (a+1)*cosW)
		b2 = a * ((a + 1) + (a-1)*cosW - sq)
		a0 = (a + 1) - (a-1)*cosW + sq
		a1 = 2 * ((a - 1) - (a+1)*cosW)
		a2 = (a + 1) - (a-1)*cosW - sq
	default:
		return Coefficients{B0: 1}
	}

	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// Biquad is one second-order IIR section in transposed direct form II.
// A Biquad carries state and must not be shared between channels.
type Biquad struct {
	c      Coefficients
	z1, z2 float64
}

// NewBiquad designs a section and returns it with cleared state
func NewBiquad(t FilterType, freq, q, gainDB float64, sampleRate int) *Biquad {
	return &Biquad{c: Design(t, freq, q, gainDB, sampleRate)}
}

// Coefficients returns the section's normalised coefficients
func (b *Biquad) Coefficients() Coefficients { return b.c }

// Reset clears the filter state
func (b *Biquad) Reset() { b.z1, b.z2 = 0, 0 }

// Tick filters one sample
func (b *Biquad) Tick(x float64) float64 {
	y := b.c.B0*x + b.z1
	b.z1 = b.c.B1*x - b.c.A1*y + b.z2
	b.z2 = b.c.B2*x - b.c.A2*y
	return y
}

// Process filters in into out. in and out may be the same slice.
func (b *Biquad) Process(in, out []float64) {
	for i, x := range in {
		out[i] = b.Tick(x)
	}
}

// Cascade is a series of biquads applied in order
type Cascade []*Biquad

// Apply runs every section over in and returns a new slice
func (c Cascade) Apply(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	for _, s := range c {
		s.Process(out, out)
	}
	return out
}

// MagnitudeDB evaluates the section's response at freq in dB
func (c Coefficients) MagnitudeDB(freq float64, sampleRate int) float64 {
	w := 2 * math.Pi * freq / float64(sampleRate)
	cos1, sin1 := math.Cos(w), math.Sin(w)
	cos2, sin2 := math.Cos(2*w), math.Sin(2*w)

	numRe := c.B0 + c.B1*cos1 + c.B2*cos2
	numIm := -(c.B1*sin1 + c.B2*sin2)
	denRe := 1 + c.A1*cos1 + c.A2*cos2
	denIm := -(c.A1*sin1 + c.A2*sin2)

	num := numRe*numRe + numIm*numIm
	den := denRe*denRe + denIm*denIm
	return 10 * math.Log10(num/den)
}
