package loudness

import (
	"math"

	"github.com/shahzroux/masterforge/domain/model"
)

const (
	monoStereoPercent = 65
	stereoProbeFrames = 2000
)

// ComputeMeters derives the 0-100 % meter values for a buffer and its
// measurement. buf may be nil, in which case the stereo meter reads as mono.
func ComputeMeters(buf *model.PCMBuffer, m model.LoudnessMeasurement) model.Meters {
	return model.Meters{
		Loudness: clamp((m.IntegratedLUFS+30)*3.33, 0, 100),
		Dynamics: math.Min(100, m.LRA*5),
		Stereo:   stereoPercent(buf),
		Clarity:  clamp(85-math.Abs(m.IntegratedLUFS+14)*2, 20, 100),
	}
}

// stereoPercent samples about 2000 frames and scales the mean |L-R|
func stereoPercent(buf *model.PCMBuffer) float64 {
	if buf == nil || buf.NumChannels() < 2 || buf.Frames() == 0 {
		return monoStereoPercent
	}
	l, r := buf.Channel(0), buf.Channel(1)
	step := max(1, len(l)/stereoProbeFrames)

	var diff float64
	for i := 0; i < len(l); i += step {
		diff += math.Abs(l[i] - r[i])
	}
	return math.Min(100, diff/(float64(len(l))/float64(step))*600)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
