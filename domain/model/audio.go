package model

import (
	"fmt"
	"time"
)

// PCMBuffer is a decoded, planar, floating-point audio buffer.
//
// A PCMBuffer is immutable once constructed: every transform in this module
// allocates a new buffer and never writes to an existing one, so a buffer may be
// shared between any number of concurrent readers without locking. Slices returned
// by Channel must be treated as read-only.
type PCMBuffer struct {
	sampleRate int
	channels   [][]float64
	frames     int
}

// NewPCMBuffer takes ownership of channels and wraps them in a buffer.
// Every channel must have the same length.
func NewPCMBuffer(sampleRate int, channels [][]float64) (*PCMBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("buffer needs at least one channel")
	}
	frames := len(channels[0])
	for i, ch := range channels {
		if len(ch) != frames {
			return nil, fmt.Errorf("channel %d has %d frames, channel 0 has %d", i, len(ch), frames)
		}
	}
	return &PCMBuffer{
		sampleRate: sampleRate,
		channels:   channels,
		frames:     frames,
	}, nil
}

// SampleRate returns the rate in Hz
func (b *PCMBuffer) SampleRate() int { return b.sampleRate }

// NumChannels returns the channel count
func (b *PCMBuffer) NumChannels() int { return len(b.channels) }

// Frames returns the number of samples per channel
func (b *PCMBuffer) Frames() int { return b.frames }

// Channel returns the samples of channel i. The slice is shared; do not modify it.
func (b *PCMBuffer) Channel(i int) []float64 { return b.channels[i] }

// CopyChannel returns a private copy of channel i
func (b *PCMBuffer) CopyChannel(i int) []float64 {
	out := make([]float64, b.frames)
	copy(out, b.channels[i])
	return out
}

// DurationSeconds returns frames / sample rate
func (b *PCMBuffer) DurationSeconds() float64 {
	return float64(b.frames) / float64(b.sampleRate)
}

// Duration returns the buffer length as a time.Duration
func (b *PCMBuffer) Duration() time.Duration {
	return time.Duration(b.DurationSeconds() * float64(time.Second))
}

// AudioMetadata describes a decoded source file
type AudioMetadata struct {
	Path       string
	Format     string
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
	Duration   time.Duration
	Size       int64
}
