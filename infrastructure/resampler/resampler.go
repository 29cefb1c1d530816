// Package resampler converts PCM buffers between sample rates with the
// soxr-style polyphase FIR from github.com/tphakala/go-audio-resampler.
package resampler

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shahzroux/masterforge/application/pipeline"
	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/internal/dsp"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	resampling "github.com/tphakala/go-audio-resampler"
	"go.uber.org/zap"
)

// Quality names accepted by New
const (
	QualityQuick    = "quick"
	QualityLow      = "low"
	QualityMedium   = "medium"
	QualityHigh     = "high"
	QualityVeryHigh = "veryhigh"

	DefaultQuality = QualityHigh
)

const (
	// aliasCutoff places the anti-alias corner at this fraction of the target rate
	aliasCutoff         = 0.45
	butterworthSections = 4
	minEdgePadding      = 4096
)

// Resampler is safe for concurrent use; every call builds its own filters.
type Resampler struct {
	quality string
	pool    *pipeline.WorkerPool
	log     *logger.Logger
}

// New creates a resampler with the named quality preset. An empty name selects
// DefaultQuality.
func New(quality string, pool *pipeline.WorkerPool, log *logger.Logger) (*Resampler, error) {
	q := strings.ToLower(strings.TrimSpace(quality))
	if q == "" {
		q = DefaultQuality
	}
	switch q {
	case QualityQuick, QualityLow, QualityMedium, QualityHigh, QualityVeryHigh:
	default:
		return nil, pkgerrors.NewInvalidParameterError("resample_quality", quality,
			"must be one of quick, low, medium, high, veryhigh")
	}
	if log == nil {
		log = logger.Nop()
	}
	if pool == nil {
		pool = pipeline.NewWorkerPool(0, log)
	}
	return &Resampler{quality: q, pool: pool, log: log}, nil
}

// Quality returns the preset name in use
func (r *Resampler) Quality() string { return r.quality }

// TargetFrames is ceil(frames * to / from), the frame count that preserves duration
func TargetFrames(frames, from, to int) int {
	if frames <= 0 || from <= 0 || to <= 0 {
		return 0
	}
	n := int64(frames) * int64(to)
	return int((n + int64(from) - 1) / int64(from))
}

// Resample returns buf at targetRate with the same channel count. When the
// rates already match buf itself is returned. The output holds exactly
// TargetFrames samples per channel and stays time-aligned with the input.
func (r *Resampler) Resample(ctx context.Context, buf *model.PCMBuffer, targetRate int) (*model.PCMBuffer, error) {
	if buf == nil {
		return nil, pkgerrors.ErrNothingToProcess
	}
	if targetRate <= 0 {
		return nil, pkgerrors.NewInvalidParameterError("sample_rate", targetRate, "target sample rate must be positive")
	}
	if targetRate == buf.SampleRate() {
		return buf, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	from := buf.SampleRate()
	want := TargetFrames(buf.Frames(), from, targetRate)
	pad := edgePadding(from)

	offset, err := r.alignment(from, targetRate, buf.Frames()+2*pad, pad)
	if err != nil {
		return nil, pkgerrors.NewProcessingError("resample",
			fmt.Sprintf("failed to align %d Hz to %d Hz", from, targetRate), err)
	}

	out := make([][]float64, buf.NumChannels())
	err = r.pool.ForEach(ctx, buf.NumChannels(), func(_ context.Context, c int) error {
		ch, err := r.convert(padSilence(buf.Channel(c), pad), from, targetRate)
		if err != nil {
			return err
		}
		out[c] = window(ch, offset, want)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.NewProcessingError("resample",
			fmt.Sprintf("failed to resample %d Hz to %d Hz", from, targetRate), err)
	}

	res, err := model.NewPCMBuffer(targetRate, out)
	if err != nil {
		return nil, pkgerrors.NewProcessingError("resample", "failed to assemble resampled buffer", err)
	}

	r.log.Debug("resampled",
		zap.Int("from", buf.SampleRate()),
		zap.Int("to", targetRate),
		zap.Int("frames", want),
		zap.Int("offset", offset),
		zap.String("quality", r.quality),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// convert band-limits in below the target Nyquist when downsampling and runs
// it through the library resampler
func (r *Resampler) convert(in []float64, from, to int) ([]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if to < from {
		in = antiAlias(in, from, to)
	}
	return resampling.ResampleMono(in, float64(from), float64(to), r.preset())
}

func (r *Resampler) preset() resampling.QualityPreset {
	switch r.quality {
	case QualityQuick:
		return resampling.QualityQuick
	case QualityLow:
		return resampling.QualityLow
	case QualityMedium:
		return resampling.QualityMedium
	case QualityVeryHigh:
		return resampling.QualityVeryHigh
	}
	return resampling.QualityHigh
}

// alignment returns the index of the converted signal that holds the first
// real input sample. An impulse is sent through the same chain at the same
// length and the place it lands gives the exact delay of the library filters.
func (r *Resampler) alignment(from, to, length, pad int) (int, error) {
	ratio := float64(to) / float64(from)
	nominal := int(math.Round(float64(pad) * ratio))
	if length == 2*pad {
		return nominal, nil
	}

	impulse := make([]float64, length)
	at := length / 2
	impulse[at] = 1
	res, err := r.convert(impulse, from, to)
	if err != nil {
		return 0, err
	}

	k := peakIndex(res)
	if k < 0 {
		return nominal, nil
	}
	landed := float64(k) + parabolicOffset(res, k)
	return int(math.Round(landed - float64(at-pad)*ratio)), nil
}

// antiAlias runs an 8th order Butterworth low-pass at aliasCutoff of the
// target rate forward and then backward over in, leaving the phase untouched
func antiAlias(in []float64, from, to int) []float64 {
	c := lowPass(aliasCutoff*float64(to), from)
	out := c.Apply(in)
	reverse(out)
	for _, s := range c {
		s.Reset()
	}
	out = c.Apply(out)
	reverse(out)
	return out
}

func lowPass(cutoff float64, sampleRate int) dsp.Cascade {
	c := make(dsp.Cascade, butterworthSections)
	for k := range c {
		theta := float64(2*k+1) * math.Pi / float64(4*butterworthSections)
		c[k] = dsp.NewBiquad(dsp.LowPass, cutoff, 1/(2*math.Cos(theta)), 0, sampleRate)
	}
	return c
}

// edgePadding is the silence added on both sides so the library's warm-up and
// tail fall outside the real samples
func edgePadding(rate int) int {
	return max(minEdgePadding, rate/10)
}

func padSilence(in []float64, pad int) []float64 {
	out := make([]float64, len(in)+2*pad)
	copy(out[pad:], in)
	return out
}

// window copies n samples of s starting at offset, zero-filling what lies outside s
func window(s []float64, offset, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if j := offset + i; j >= 0 && j < len(s) {
			out[i] = s[j]
		}
	}
	return out
}

func peakIndex(s []float64) int {
	k, best := -1, 1e-9
	for i, v := range s {
		if a := math.Abs(v); a > best {
			k, best = i, a
		}
	}
	return k
}

// parabolicOffset refines a peak position to a fraction of a sample
func parabolicOffset(s []float64, k int) float64 {
	if k <= 0 || k >= len(s)-1 {
		return 0
	}
	y0, y1, y2 := s[k-1], s[k], s[k+1]
	d := y0 - 2*y1 + y2
	if d == 0 {
		return 0
	}
	off := 0.5 * (y0 - y2) / d
	if math.Abs(off) > 0.5 {
		return 0
	}
	return off
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
