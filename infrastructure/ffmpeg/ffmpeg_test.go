package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os/exec"
	"testing"

	"github.com/hajimehoshi/go-mp3"
	"github.com/shahzroux/masterforge/infrastructure/encoder"
	"github.com/shahzroux/masterforge/internal/testsignal"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"github.com/shahzroux/masterforge/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMP3EncodeArgs(t *testing.T) {
	args := MP3EncodeArgs(48000, 2, 320)
	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "s16le", "-ar", "48000", "-ac", "2", "-i", "pipe:0",
		"-c:a", "libmp3lame", "-b:a", "320k",
		"-f", "mp3", "pipe:1",
	}, args)
}

func TestDecodeArgs(t *testing.T) {
	args := DecodeArgs("in.flac")
	assert.Contains(t, args, "in.flac")
	assert.Equal(t, []string{"-c:a", "pcm_f32le", "-f", "f32le", "pipe:1"}, args[len(args)-5:])
	assert.NotContains(t, args, "-b:a")
}

func TestArgsBuilderBuildCopies(t *testing.T) {
	b := NewArgsBuilder().Input("a.wav")
	first := b.Build()
	first[0] = "mutated"
	assert.Equal(t, "-hide_banner", b.Build()[0])
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "video"},
			{"codec_type": "audio", "sample_rate": "48000", "channels": 2, "bits_per_raw_sample": "24"}
		],
		"format": {"format_name": "flac", "duration": "12.500000"}
	}`)
	info, err := parseProbe(data)
	require.NoError(t, err)
	assert.Equal(t, &ProbeResult{FormatName: "flac", SampleRate: 48000, Channels: 2, BitDepth: 24, Duration: 12.5}, info)

	_, err = parseProbe([]byte(`{"streams": [{"codec_type": "video"}]}`))
	assert.Equal(t, pkgerrors.ErrCodeFFmpeg, pkgerrors.Code(err))

	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestDeinterleaveF32(t *testing.T) {
	var raw []byte
	for _, v := range []float32{0.5, -0.5, 0.25, -0.25, 1, -1} {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
	}
	// a trailing partial frame is dropped
	raw = append(raw, 0, 0)

	buf, err := deinterleaveF32(raw, 8000, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25, 1}, buf.Channel(0))
	assert.Equal(t, []float64{-0.5, -0.25, -1}, buf.Channel(1))
}

func TestNewExecutorMissingBinary(t *testing.T) {
	_, err := NewExecutor(ExecutorConfig{FFmpegPath: "/nonexistent/ffmpeg-masterforge"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ErrCodeFFmpeg, pkgerrors.Code(err))
}

func TestClassify(t *testing.T) {
	base := errors.New("exit status 1")
	err := classify(base, "Unknown encoder 'libmp3lame'")
	assert.Equal(t, pkgerrors.ErrCodeEncodingUnavailable, pkgerrors.Code(err))
	assert.ErrorIs(t, err, base)

	assert.Equal(t, base, classify(base, "Invalid data found"))
	assert.NoError(t, classify(nil, "Unknown encoder"))
}

func requireFFmpeg(t *testing.T) *Executor {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	e, err := NewExecutor(ExecutorConfig{Logger: logger.FromZap(zaptest.NewLogger(t))})
	require.NoError(t, err)
	return e
}

func TestMP3BackendEndToEnd(t *testing.T) {
	e := requireFFmpeg(t)

	enc := encoder.NewMP3Encoder(NewMP3Backend(e), retry.Config{MaxAttempts: 1}, nil)
	src := testsignal.Sine(1000, -6, 1, 44100, 2)

	data, err := enc.Encode(context.Background(), src)
	if pkgerrors.Code(err) == pkgerrors.ErrCodeEncodingUnavailable {
		t.Skip("ffmpeg built without libmp3lame")
	}
	require.NoError(t, err)
	require.NotEmpty(t, data)

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 44100, dec.SampleRate())
	// the decoder reports 4 bytes per stereo frame; encoder padding may add a frame or two
	assert.GreaterOrEqual(t, dec.Length()/4, int64(src.Frames()))
}
