package encoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/domain/ports"
	"github.com/shahzroux/masterforge/internal/mocks"
	"github.com/shahzroux/masterforge/internal/testsignal"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, Delay: time.Millisecond, Multiplier: 1}
}

func TestWAVHeader(t *testing.T) {
	buf := testsignal.Sine(440, -6, 0.01, 48000, 2) // 480 frames

	tests := []struct {
		bits   int
		format uint16
	}{
		{16, FormatPCM},
		{24, FormatPCM},
		{32, FormatIEEEFloat},
	}
	for _, tt := range tests {
		data, err := EncodeWAV(buf, tt.bits)
		require.NoError(t, err)

		dataSize := 480 * 2 * tt.bits / 8
		require.Len(t, data, WAVHeaderSize+dataSize)

		le := binary.LittleEndian
		assert.Equal(t, "RIFF", string(data[0:4]))
		assert.Equal(t, uint32(36+dataSize), le.Uint32(data[4:8]))
		assert.Equal(t, "WAVE", string(data[8:12]))
		assert.Equal(t, "fmt ", string(data[12:16]))
		assert.Equal(t, uint32(16), le.Uint32(data[16:20]))
		assert.Equal(t, tt.format, le.Uint16(data[20:22]))
		assert.Equal(t, uint16(2), le.Uint16(data[22:24]))
		assert.Equal(t, uint32(48000), le.Uint32(data[24:28]))
		assert.Equal(t, uint32(48000*2*tt.bits/8), le.Uint32(data[28:32]))
		assert.Equal(t, uint16(2*tt.bits/8), le.Uint16(data[32:34]))
		assert.Equal(t, uint16(tt.bits), le.Uint16(data[34:36]))
		assert.Equal(t, "data", string(data[36:40]))
		assert.Equal(t, uint32(dataSize), le.Uint32(data[40:44]))
	}
}

func TestWAVSampleEncoding(t *testing.T) {
	buf := testsignal.Must(model.NewPCMBuffer(8000, [][]float64{
		{1, -1, 0.5, 2},
		{0, -2, -0.5, math.NaN()},
	}))

	data16, err := EncodeWAV(buf, 16)
	require.NoError(t, err)
	want16 := []int16{32767, 0, -32767, -32767, 16384, -16384, 32767, 0}
	for i, w := range want16 {
		got := int16(binary.LittleEndian.Uint16(data16[WAVHeaderSize+2*i:]))
		assert.Equal(t, w, got, "sample %d", i)
	}

	data24, err := EncodeWAV(buf, 24)
	require.NoError(t, err)
	first := data24[WAVHeaderSize : WAVHeaderSize+3]
	assert.Equal(t, []byte{0xFF, 0xFF, 0x7F}, first)
	third := data24[WAVHeaderSize+6 : WAVHeaderSize+9]
	assert.Equal(t, []byte{0x01, 0x00, 0x80}, third)

	data32, err := EncodeWAV(buf, 32)
	require.NoError(t, err)
	v := math.Float32frombits(binary.LittleEndian.Uint32(data32[WAVHeaderSize+4*4:]))
	assert.Equal(t, float32(0.5), v)
}

func TestWAV16RoundTrip(t *testing.T) {
	src := testsignal.Generate(testsignal.Options{
		DurationSecs: 0.25,
		ToneFreq:     997,
		ToneLevel:    -3,
		NoiseLevel:   -20,
	})
	data, err := EncodeWAV(src, 16)
	require.NoError(t, err)

	dec := wav.NewDecoder(bytes.NewReader(data))
	require.True(t, dec.IsValidFile())
	pcm, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, 44100, int(dec.SampleRate))
	assert.Equal(t, 2, int(dec.NumChans))
	require.Len(t, pcm.Data, src.Frames()*2)

	for i := 0; i < src.Frames(); i++ {
		for c := 0; c < 2; c++ {
			got := float64(pcm.Data[i*2+c]) / 32767
			assert.InDelta(t, src.Channel(c)[i], got, 1.0/32768)
		}
	}
}

func TestWAV16AndWAV24DifferOnlyInDepth(t *testing.T) {
	src := testsignal.Sine(440, -6, 0.5, 48000, 2)
	a, err := EncodeWAV(src, 16)
	require.NoError(t, err)
	b, err := EncodeWAV(src, 24)
	require.NoError(t, err)

	da := wav.NewDecoder(bytes.NewReader(a))
	pa, err := da.FullPCMBuffer()
	require.NoError(t, err)
	db := wav.NewDecoder(bytes.NewReader(b))
	pb, err := db.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, da.SampleRate, db.SampleRate)
	assert.Equal(t, da.NumChans, db.NumChans)
	assert.Equal(t, uint16(16), da.BitDepth)
	assert.Equal(t, uint16(24), db.BitDepth)
	assert.Equal(t, len(pa.Data), len(pb.Data))
	assert.Equal(t, 24000*2, len(pb.Data))
}

func TestEncodeWAVRejectsBadDepth(t *testing.T) {
	_, err := EncodeWAV(testsignal.Silence(0.1, 8000, 1), 8)
	assert.Equal(t, pkgerrors.ErrCodeInvalidParameter, pkgerrors.Code(err))

	_, err = EncodeWAV(nil, 16)
	assert.ErrorIs(t, err, pkgerrors.ErrNothingToProcess)
}

func TestMP3StreamsFixedFrames(t *testing.T) {
	backend := &mocks.MockMP3Backend{}
	enc := NewMP3Encoder(backend, fastRetry(1), nil)

	src := testsignal.Sine(440, -6, 0.1, 44100, 2) // 4410 frames
	data, err := enc.Encode(context.Background(), src)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	s := backend.LastStream()
	require.NotNil(t, s)
	assert.Equal(t, []int{1152, 1152, 1152, 954}, s.FrameSizes)
	assert.True(t, s.Flushed)
	assert.Equal(t, 2, s.Channels)
	assert.Equal(t, 320, s.Kbps)
	assert.Equal(t, 44100, s.SampleRate)
	assert.Equal(t, ToInt16(src.Channel(1)[100]), s.Right[100])
}

func TestMP3Mono(t *testing.T) {
	backend := &mocks.MockMP3Backend{}
	_, err := NewMP3Encoder(backend, fastRetry(1), nil).Encode(context.Background(), testsignal.Sine(440, -6, 0.01, 44100, 1))
	require.NoError(t, err)

	s := backend.LastStream()
	assert.Equal(t, 1, s.Channels)
	assert.Empty(t, s.Right)
}

func TestMP3WithoutBackend(t *testing.T) {
	_, err := New(NewMP3Encoder(nil, fastRetry(3), nil)).Encode(context.Background(), testsignal.Silence(0.1, 44100, 2), model.FormatMP3)
	require.Error(t, err)

	unavailable, ok := pkgerrors.As[*pkgerrors.EncodingUnavailableError](err)
	require.True(t, ok)
	assert.Equal(t, "mp3", unavailable.Format)

	_, err = New(nil).Encode(context.Background(), testsignal.Silence(0.1, 44100, 2), model.FormatMP3)
	assert.Equal(t, pkgerrors.ErrCodeEncodingUnavailable, pkgerrors.Code(err))
}

func TestMP3RetriesTransientFailures(t *testing.T) {
	calls := 0
	backend := &mocks.MockMP3Backend{}
	backend.NewStreamFunc = func(ctx context.Context, rate, ch, kbps int, out io.Writer) (ports.MP3Stream, error) {
		calls++
		s := &mocks.MockMP3Stream{Out: out}
		if calls == 1 {
			s.FlushFunc = func() error { return errors.New("encoder crashed") }
		}
		return s, nil
	}

	data, err := NewMP3Encoder(backend, fastRetry(3), nil).Encode(context.Background(), testsignal.Sine(440, -6, 0.05, 44100, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	// 2205 frames: one full frame and one partial, each with a 2-byte sync word.
	// The failed attempt's bytes are not carried into the result.
	assert.Len(t, data, (2+2*1152)+(2+2*1053))
}

func TestMP3DoesNotRetryUnavailableBackend(t *testing.T) {
	calls := 0
	backend := &mocks.MockMP3Backend{NewStreamFunc: func(context.Context, int, int, int, io.Writer) (ports.MP3Stream, error) {
		calls++
		return nil, pkgerrors.NewEncodingUnavailableError("mp3", errors.New("libmp3lame missing"))
	}}

	_, err := NewMP3Encoder(backend, fastRetry(5), nil).Encode(context.Background(), testsignal.Silence(0.1, 44100, 2))
	assert.Equal(t, pkgerrors.ErrCodeEncodingUnavailable, pkgerrors.Code(err))
	assert.Equal(t, 1, calls)
}

func TestEncoderDispatch(t *testing.T) {
	enc := New(NewMP3Encoder(&mocks.MockMP3Backend{}, fastRetry(1), nil))
	src := testsignal.Sine(440, -6, 0.01, 44100, 2)

	for _, f := range []model.ExportFormat{model.FormatWAV16, model.FormatWAV24, model.FormatWAV32F} {
		data, err := enc.Encode(context.Background(), src, f)
		require.NoError(t, err)
		assert.Len(t, data, WAVHeaderSize+src.Frames()*2*f.BitDepth()/8)
	}

	_, err := enc.Encode(context.Background(), src, model.ExportFormat("flac"))
	assert.Equal(t, pkgerrors.ErrCodeInvalidParameter, pkgerrors.Code(err))
}

func TestToInt16AndToInt24(t *testing.T) {
	assert.Equal(t, int16(32767), ToInt16(1.5))
	assert.Equal(t, int16(-32767), ToInt16(-1))
	assert.Equal(t, int16(0), ToInt16(math.NaN()))
	assert.Equal(t, int32(8388607), ToInt24(1))
	assert.Equal(t, int32(-8388607), ToInt24(-3))
}
