package spectrum

import (
	"testing"

	"github.com/shahzroux/masterforge/internal/testsignal"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeSineLandsInItsBand(t *testing.T) {
	buf := testsignal.Sine(1000, -6, 2, 44100, 2)

	s, err := Analyze(buf, Options{})
	require.NoError(t, err)
	require.Len(t, s.Bands, DefaultBands)
	assert.Equal(t, 21, s.Frames)

	loudest := 0
	for i, b := range s.Bands {
		if b.LevelDB > s.Bands[loudest].LevelDB {
			loudest = i
		}
	}
	b := s.Bands[loudest]
	assert.LessOrEqual(t, b.LowHz, 1000.0)
	assert.Greater(t, b.HighHz, 1000.0)
	// Hann scalloping costs at most ~1.4 dB
	assert.InDelta(t, -6, b.LevelDB, 2)

	assert.Equal(t, DefaultMinHz, s.Bands[0].LowHz)
	assert.Equal(t, 22050.0, s.Bands[len(s.Bands)-1].HighHz)
}

func TestAnalyzeSilence(t *testing.T) {
	s, err := Analyze(testsignal.Silence(0.1, 48000, 1), Options{FFTSize: 1024, Bands: 8})
	require.NoError(t, err)
	for _, b := range s.Bands {
		assert.Equal(t, FloorDB, b.LevelDB)
	}
	assert.Equal(t, 4, s.Frames)
}

func TestAnalyzeShortBufferIsPadded(t *testing.T) {
	s, err := Analyze(testsignal.Sine(440, -3, 0.01, 44100, 1), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Frames)
}

func TestAnalyzeRejectsBadOptions(t *testing.T) {
	buf := testsignal.Silence(0.1, 44100, 1)

	tests := []struct {
		name string
		opts Options
	}{
		{"tiny fft", Options{FFTSize: 16}},
		{"negative bands", Options{Bands: -1}},
		{"min above nyquist", Options{MinHz: 30000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(buf, tt.opts)
			assert.Equal(t, pkgerrors.ErrCodeInvalidParameter, pkgerrors.Code(err))
		})
	}

	_, err := Analyze(nil, Options{})
	assert.ErrorIs(t, err, pkgerrors.ErrNothingToProcess)
}
