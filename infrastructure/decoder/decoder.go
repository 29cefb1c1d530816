// Package decoder loads audio files into PCM buffers. WAV and MP3 are decoded
// natively; anything else goes to an optional fallback such as ffmpeg.
package decoder

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/domain/ports"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"go.uber.org/zap"
)

const wavFormatIEEEFloat = 3

// Decoder implements ports.Decoder
type Decoder struct {
	fallback ports.Decoder
	log      *logger.Logger
}

// New creates a decoder. fallback may be nil.
func New(fallback ports.Decoder, log *logger.Logger) *Decoder {
	if log == nil {
		log = logger.Nop()
	}
	return &Decoder{fallback: fallback, log: log}
}

// Decode picks a decoder by file extension
func (d *Decoder) Decode(ctx context.Context, path string) (*model.PCMBuffer, *model.AudioMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	var (
		buf  *model.PCMBuffer
		meta *model.AudioMetadata
		err  error
	)
	switch ext {
	case "wav", "wave":
		buf, meta, err = decodeFile(path, decodeWAV)
	case "mp3":
		buf, meta, err = decodeFile(path, decodeMP3)
	default:
		if d.fallback == nil {
			return nil, nil, pkgerrors.NewDecodeError(path, "unsupported format "+ext, nil)
		}
		return d.fallback.Decode(ctx, path)
	}
	if err != nil {
		return nil, nil, err
	}

	meta.Path = path
	meta.Format = ext
	meta.Frames = buf.Frames()
	meta.Duration = buf.Duration()

	d.log.Debug("decoded",
		zap.String("path", path),
		zap.Int("sample_rate", meta.SampleRate),
		zap.Int("channels", meta.Channels),
		zap.Int("frames", meta.Frames),
		zap.Duration("duration", time.Since(start)),
	)
	return buf, meta, nil
}

type decodeFunc func(r io.ReadSeeker) (*model.PCMBuffer, *model.AudioMetadata, error)

func decodeFile(path string, fn decodeFunc) (*model.PCMBuffer, *model.AudioMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, pkgerrors.NewDecodeError(path, "cannot open file", err)
	}
	defer f.Close()

	buf, meta, err := fn(f)
	if err != nil {
		if _, ok := pkgerrors.As[*pkgerrors.DecodeError](err); ok {
			return nil, nil, err
		}
		return nil, nil, pkgerrors.NewDecodeError(path, "decode failed", err)
	}
	if st, err := f.Stat(); err == nil {
		meta.Size = st.Size()
	}
	return buf, meta, nil
}

func decodeWAV(r io.ReadSeeker) (*model.PCMBuffer, *model.AudioMetadata, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, nil, pkgerrors.NewDecodeError("", "not a valid WAV file", dec.Err())
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, err
	}

	channels := int(dec.NumChans)
	bits := int(dec.BitDepth)
	buf, err := model.NewPCMBuffer(int(dec.SampleRate), deinterleave(pcm, channels, bits, dec.WavAudioFormat == wavFormatIEEEFloat))
	if err != nil {
		return nil, nil, err
	}
	return buf, &model.AudioMetadata{
		SampleRate: buf.SampleRate(),
		Channels:   channels,
		BitDepth:   bits,
	}, nil
}

// deinterleave converts go-audio's integer samples to planar floats in [-1, 1]
func deinterleave(pcm *audio.IntBuffer, channels, bits int, float bool) [][]float64 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm.Data) / channels
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, frames)
	}

	scale := math.Exp2(float64(bits-1)) - 1
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := pcm.Data[i*channels+c]
			var s float64
			switch {
			case float && bits == 32:
				s = float64(math.Float32frombits(uint32(v)))
			case bits == 8:
				// 8-bit WAV is unsigned
				s = float64(v-128) / 127
			case bits == 32:
				s = float64(int32(uint32(v))) / scale
			default:
				s = float64(v) / scale
			}
			out[c][i] = math.Max(-1, math.Min(1, s))
		}
	}
	return out
}

func decodeMP3(r io.ReadSeeker) (*model.PCMBuffer, *model.AudioMetadata, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, nil, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, nil, err
	}

	// go-mp3 always yields interleaved stereo s16le
	frames := len(raw) / 4
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left[i] = float64(int16(uint16(raw[4*i])|uint16(raw[4*i+1])<<8)) / math.MaxInt16
		right[i] = float64(int16(uint16(raw[4*i+2])|uint16(raw[4*i+3])<<8)) / math.MaxInt16
	}

	buf, err := model.NewPCMBuffer(dec.SampleRate(), [][]float64{left, right})
	if err != nil {
		return nil, nil, err
	}
	return buf, &model.AudioMetadata{
		SampleRate: buf.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}, nil
}

var _ ports.Decoder = (*Decoder)(nil)
