package dsp

// Bands holds the three outputs of a crossover for one channel
type Bands struct {
	Low, Mid, High []float64
}

// Crossover3 splits a signal into low, mid and high bands with second-order
// sections: low = LP·LP at lowHz, mid = HP at lowHz then LP at highHz,
// high = HP·HP at highHz.
type Crossover3 struct {
	LowHz, HighHz, Q float64
	SampleRate       int
}

// Split filters one channel into three new slices
func (x Crossover3) Split(in []float64) Bands {
	low := Cascade{
		NewBiquad(LowPass, x.LowHz, x.Q, 0, x.SampleRate),
		NewBiquad(LowPass, x.LowHz, x.Q, 0, x.SampleRate),
	}
	mid := Cascade{
		NewBiquad(HighPass, x.LowHz, x.Q, 0, x.SampleRate),
		NewBiquad(LowPass, x.HighHz, x.Q, 0, x.SampleRate),
	}
	high := Cascade{
		NewBiquad(HighPass, x.HighHz, x.Q, 0, x.SampleRate),
		NewBiquad(HighPass, x.HighHz, x.Q, 0, x.SampleRate),
	}
	return Bands{
		Low:  low.Apply(in),
		Mid:  mid.Apply(in),
		High: high.Apply(in),
	}
}

// Mix sums equal-length slices into a new slice
func Mix(parts ...[]float64) []float64 {
	if len(parts) == 0 {
		return nil
	}
	out := make([]float64, len(parts[0]))
	for _, p := range parts {
		for i, v := range p {
			out[i] += v
		}
	}
	return out
}
