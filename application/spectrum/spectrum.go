// Package spectrum computes a band-averaged magnitude spectrum of a buffer.
// It is a pure function: the same buffer and options give the same result.
package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/shahzroux/masterforge/domain/model"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	DefaultFFTSize = 4096
	DefaultBands   = 32
	DefaultMinHz   = 20.0

	// FloorDB is reported for bands with no energy
	FloorDB = -120.0

	minFFTSize = 64
	maxFrames  = 64
)

// Options tunes the analysis. Zero values select the defaults.
type Options struct {
	FFTSize int
	Bands   int
	MinHz   float64
}

// Band is one log-spaced slice of the spectrum
type Band struct {
	LowHz    float64 `json:"low_hz"`
	HighHz   float64 `json:"high_hz"`
	CenterHz float64 `json:"center_hz"`
	LevelDB  float64 `json:"level_db"`
}

// Spectrum is the result of Analyze
type Spectrum struct {
	SampleRate int    `json:"sample_rate"`
	FFTSize    int    `json:"fft_size"`
	Frames     int    `json:"frames"`
	Bands      []Band `json:"bands"`
}

func (o Options) withDefaults() Options {
	if o.FFTSize == 0 {
		o.FFTSize = DefaultFFTSize
	}
	if o.Bands == 0 {
		o.Bands = DefaultBands
	}
	if o.MinHz == 0 {
		o.MinHz = DefaultMinHz
	}
	return o
}

// Analyze downmixes buf to mono, averages Hann-windowed FFT magnitudes over up
// to 64 evenly spaced frames, and reports the peak level of each log-spaced
// band between MinHz and Nyquist in dBFS. A full-scale sine reads about 0 dB.
func Analyze(buf *model.PCMBuffer, opts Options) (Spectrum, error) {
	if buf == nil {
		return Spectrum{}, pkgerrors.ErrNothingToProcess
	}
	opts = opts.withDefaults()
	if opts.FFTSize < minFFTSize {
		return Spectrum{}, pkgerrors.NewInvalidParameterError("fft_size", opts.FFTSize, "fft size must be at least 64")
	}
	if opts.Bands < 1 {
		return Spectrum{}, pkgerrors.NewInvalidParameterError("bands", opts.Bands, "band count must be positive")
	}
	nyquist := float64(buf.SampleRate()) / 2
	if !(opts.MinHz > 0) || opts.MinHz >= nyquist {
		return Spectrum{}, pkgerrors.NewInvalidParameterError("min_hz", opts.MinHz, "minimum frequency must be between 0 and nyquist")
	}

	mono := downmix(buf)
	mags, frames := averageMagnitudes(mono, opts.FFTSize)

	binHz := float64(buf.SampleRate()) / float64(opts.FFTSize)
	ratio := math.Pow(nyquist/opts.MinHz, 1/float64(opts.Bands))

	bands := make([]Band, opts.Bands)
	lo := opts.MinHz
	for i := range bands {
		hi := lo * ratio
		if i == len(bands)-1 {
			hi = nyquist
		}
		bands[i] = Band{
			LowHz:    lo,
			HighHz:   hi,
			CenterHz: math.Sqrt(lo * hi),
			LevelDB:  toDB(bandPeak(mags, lo, hi, binHz)),
		}
		lo = hi
	}

	return Spectrum{
		SampleRate: buf.SampleRate(),
		FFTSize:    opts.FFTSize,
		Frames:     frames,
		Bands:      bands,
	}, nil
}

func downmix(buf *model.PCMBuffer) []float64 {
	mono := make([]float64, buf.Frames())
	n := float64(buf.NumChannels())
	for c := 0; c < buf.NumChannels(); c++ {
		for i, x := range buf.Channel(c) {
			mono[i] += x / n
		}
	}
	return mono
}

// averageMagnitudes returns the mean single-sided amplitude spectrum, scaled so
// a sine of amplitude A peaks near A, and the number of frames used
func averageMagnitudes(signal []float64, size int) ([]float64, int) {
	fft := fourier.NewFFT(size)
	win := window.Hann(ones(size))
	var winSum float64
	for _, w := range win {
		winSum += w
	}

	total := len(signal) / size
	if total < 1 {
		total = 1
	}
	frames := min(total, maxFrames)
	stride := total / frames

	mags := make([]float64, size/2+1)
	frame := make([]float64, size)
	coeffs := make([]complex128, size/2+1)

	for f := 0; f < frames; f++ {
		start := f * stride * size
		for i := range frame {
			frame[i] = 0
			if j := start + i; j < len(signal) {
				frame[i] = signal[j] * win[i]
			}
		}
		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			mags[k] += cmplx.Abs(c) * 2 / winSum
		}
	}
	for k := range mags {
		mags[k] /= float64(frames)
	}
	return mags, frames
}

// bandPeak is the largest magnitude among bins in [lo, hi), or the bin nearest
// the band centre when the band is narrower than one bin
func bandPeak(mags []float64, lo, hi, binHz float64) float64 {
	first := int(math.Ceil(lo / binHz))
	last := int(math.Ceil(hi/binHz)) - 1
	if last >= len(mags) {
		last = len(mags) - 1
	}
	if first > last {
		k := int(math.Round(math.Sqrt(lo*hi) / binHz))
		return mags[min(k, len(mags)-1)]
	}
	var peak float64
	for k := first; k <= last; k++ {
		peak = math.Max(peak, mags[k])
	}
	return peak
}

func toDB(v float64) float64 {
	if v <= 0 {
		return FloorDB
	}
	return math.Max(FloorDB, 20*math.Log10(v))
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
