package loudness

import (
	"testing"

	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/internal/testsignal"
	"github.com/stretchr/testify/assert"
)

func TestComputeMeters(t *testing.T) {
	tests := []struct {
		name string
		m    model.LoudnessMeasurement
		want model.Meters
	}{
		{
			name: "streaming level",
			m:    model.LoudnessMeasurement{IntegratedLUFS: -14, LRA: 6},
			want: model.Meters{Loudness: 16 * 3.33, Dynamics: 30, Stereo: 65, Clarity: 85},
		},
		{
			name: "silence clamps",
			m:    model.LoudnessMeasurement{IntegratedLUFS: -70, LRA: 0},
			want: model.Meters{Loudness: 0, Dynamics: 0, Stereo: 65, Clarity: 20},
		},
		{
			name: "hot and wide",
			m:    model.LoudnessMeasurement{IntegratedLUFS: 0, LRA: 40},
			want: model.Meters{Loudness: 99.9, Dynamics: 100, Stereo: 65, Clarity: 57},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeMeters(nil, tt.m)
			assert.InDelta(t, tt.want.Loudness, got.Loudness, 1e-9)
			assert.InDelta(t, tt.want.Dynamics, got.Dynamics, 1e-9)
			assert.InDelta(t, tt.want.Stereo, got.Stereo, 1e-9)
			assert.InDelta(t, tt.want.Clarity, got.Clarity, 1e-9)
		})
	}
}

func TestStereoMeter(t *testing.T) {
	mono := testsignal.Sine(440, -6, 1, 44100, 1)
	assert.Equal(t, 65.0, stereoPercent(mono))

	dual := testsignal.Sine(440, -6, 1, 44100, 2)
	assert.Equal(t, 0.0, stereoPercent(dual))

	// opposite polarity: |L-R| = 2|x|, far beyond the scale
	l := dual.CopyChannel(0)
	r := make([]float64, len(l))
	for i, x := range l {
		r[i] = -x
	}
	wide := testsignal.Must(model.NewPCMBuffer(44100, [][]float64{l, r}))
	assert.Equal(t, 100.0, stereoPercent(wide))
}
