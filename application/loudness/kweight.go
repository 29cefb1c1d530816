package loudness

import "github.com/shahzroux/masterforge/internal/dsp"

// BS.1770-4 pre-filter and RLB weighting, expressed as analog prototypes for
// the cookbook transform at the buffer's own rate.
const (
	shelfFreq   = 1681.974
	shelfGainDB = 3.99984
	shelfQ      = 0.70718

	highPassFreq = 38.1355
	highPassQ    = 0.50033
)

// KWeight returns the K-weighted copy of one channel: high shelf first, then
// high-pass. The input is not modified.
func KWeight(samples []float64, sampleRate int) []float64 {
	return kWeightingCascade(sampleRate).Apply(samples)
}

func kWeightingCascade(sampleRate int) dsp.Cascade {
	return dsp.Cascade{
		dsp.NewBiquad(dsp.HighShelf, shelfFreq, shelfQ, shelfGainDB, sampleRate),
		dsp.NewBiquad(dsp.HighPass, highPassFreq, highPassQ, 0, sampleRate),
	}
}
