// Package loudness measures integrated loudness, true peak and loudness range
// following the ITU-R BS.1770-4 gating rules.
package loudness

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shahzroux/masterforge/application/pipeline"
	"github.com/shahzroux/masterforge/domain/model"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"go.uber.org/zap"
)

const (
	blockSeconds = 0.4
	hopSeconds   = 0.1

	// loudness offset of the BS.1770 mean-square to LUFS mapping
	lufsOffset = -0.691

	absoluteGateLUFS = -70.0
	relativeGateLU   = -10.0

	// FloorLUFS is reported for silence and anything quieter
	FloorLUFS = -70.0
	// SilencePeakDB is the true peak reported for an all-zero buffer
	SilencePeakDB = -100.0

	minEnergy = 1e-10

	// loudness uses at most this many channels; the rest are ignored
	maxLoudnessChannels = 2

	lraLowPercentile  = 0.10
	lraHighPercentile = 0.95
	lraMinBlocks      = 4
)

var absoluteGate = math.Pow(10, (absoluteGateLUFS-lufsOffset)/10)

// Analyzer measures PCM buffers. The zero value is not usable; call NewAnalyzer.
type Analyzer struct {
	pool *pipeline.WorkerPool
	log  *logger.Logger
}

// NewAnalyzer creates an analyzer that K-weights channels through pool
func NewAnalyzer(pool *pipeline.WorkerPool, log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}
	if pool == nil {
		pool = pipeline.NewWorkerPool(maxLoudnessChannels, log)
	}
	return &Analyzer{pool: pool, log: log}
}

// Measure computes the loudness measurement of buf. Identical buffers always
// produce identical measurements.
func (a *Analyzer) Measure(ctx context.Context, buf *model.PCMBuffer) (model.LoudnessMeasurement, error) {
	if buf == nil {
		return model.LoudnessMeasurement{}, pkgerrors.ErrNothingToProcess
	}
	start := time.Now()

	n := buf.NumChannels()
	if n > maxLoudnessChannels {
		n = maxLoudnessChannels
	}
	source := make([][]float64, n)
	for c := 0; c < n; c++ {
		source[c] = buf.Channel(c)
	}

	rate := buf.SampleRate()
	weighted, err := pipeline.MapChannels(ctx, a.pool, source, func(ch []float64) []float64 {
		return KWeight(ch, rate)
	})
	if err != nil {
		return model.LoudnessMeasurement{}, err
	}

	energies := blockEnergies(weighted, rate)
	m := model.LoudnessMeasurement{
		IntegratedLUFS: round1(integratedLoudness(energies)),
		TruePeakDB:     round1(truePeakDB(buf)),
		LRA:            round1(loudnessRange(energies)),
		Duration:       buf.DurationSeconds(),
		SampleRate:     rate,
		Channels:       buf.NumChannels(),
	}

	a.log.Debug("loudness measured",
		zap.Int("channels", m.Channels),
		zap.Int("frames", buf.Frames()),
		zap.Int("blocks", len(energies)),
		zap.Float64("lufs", m.IntegratedLUFS),
		zap.Float64("true_peak", m.TruePeakDB),
		zap.Float64("lra", m.LRA),
		zap.Duration("duration", time.Since(start)),
	)
	return m, nil
}

// blockEnergies returns the mean square of every 400 ms block on a 100 ms hop,
// averaged over samples and channels. The last block is cut at the buffer end.
func blockEnergies(channels [][]float64, sampleRate int) []float64 {
	length := 0
	if len(channels) > 0 {
		length = len(channels[0])
	}
	block := int(math.Round(float64(sampleRate) * blockSeconds))
	hop := int(math.Round(float64(sampleRate) * hopSeconds))
	if hop < 1 {
		hop = 1
	}

	count := 1
	if length > block {
		count = (length-block)/hop + 1
	}

	energies := make([]float64, count)
	for b := range energies {
		start := b * hop
		end := min(start+block, length)
		if end <= start {
			continue
		}
		var sum float64
		for _, ch := range channels {
			for _, x := range ch[start:end] {
				sum += x * x
			}
		}
		energies[b] = sum / float64((end-start)*len(channels))
	}
	return energies
}

// integratedLoudness applies the absolute then relative gate and maps the
// surviving mean energy to LUFS
func integratedLoudness(energies []float64) float64 {
	gated := aboveAbsoluteGate(energies)
	if len(gated) == 0 {
		gated = energies
	}

	mean := meanOf(gated)
	relative := mean * math.Pow(10, relativeGateLU/10)

	var sum float64
	var kept int
	for _, e := range gated {
		if e >= relative {
			sum += e
			kept++
		}
	}
	if kept > 0 {
		mean = sum / float64(kept)
	}

	return math.Max(FloorLUFS, lufsOffset+10*math.Log10(math.Max(mean, minEnergy)))
}

// loudnessRange is the spread between the 10th and 95th percentile of the
// absolutely gated block energies, in LU
func loudnessRange(energies []float64) float64 {
	sorted := aboveAbsoluteGate(energies)
	if len(sorted) < lraMinBlocks {
		return 0
	}
	sort.Float64s(sorted)

	lo := sorted[int(math.Floor(float64(len(sorted))*lraLowPercentile))]
	hi := sorted[int(math.Floor(float64(len(sorted))*lraHighPercentile))]
	if lo <= 0 || hi <= 0 {
		return 0
	}
	return math.Abs(10*math.Log10(hi) - 10*math.Log10(lo))
}

// truePeakDB takes the larger of each sample and the midpoint with its
// predecessor over every channel
func truePeakDB(buf *model.PCMBuffer) float64 {
	var peak float64
	for c := 0; c < buf.NumChannels(); c++ {
		ch := buf.Channel(c)
		for i, x := range ch {
			if v := math.Abs(x); v > peak {
				peak = v
			}
			if i > 0 {
				if v := math.Abs(0.5*x + 0.5*ch[i-1]); v > peak {
					peak = v
				}
			}
		}
	}
	if peak <= 0 {
		return SilencePeakDB
	}
	return 20 * math.Log10(peak)
}

func aboveAbsoluteGate(energies []float64) []float64 {
	out := make([]float64, 0, len(energies))
	for _, e := range energies {
		if e > absoluteGate {
			out = append(out, e)
		}
	}
	return out
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// round1 rounds half up to one decimal
func round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}
