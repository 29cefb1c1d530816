// Package encoder builds WAV and MP3 file bodies from PCM buffers.
package encoder

import (
	"errors"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/shahzroux/masterforge/domain/model"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
)

// WAVE format tags
const (
	FormatPCM       uint16 = 1
	FormatIEEEFloat uint16 = 3
)

// WAVHeaderSize is the length of the canonical RIFF/WAVE header go-audio/wav writes
// when no metadata is attached
const WAVHeaderSize = 44

const (
	maxInt24 = 8388607
	minInt24 = -8388608
)

// EncodeWAV serialises buf as a RIFF/WAVE file: 16 or 24-bit integer PCM, or
// 32-bit IEEE float. Samples are clamped to [-1, 1] and interleaved frame by frame.
func EncodeWAV(buf *model.PCMBuffer, bitDepth int) ([]byte, error) {
	if buf == nil {
		return nil, pkgerrors.ErrNothingToProcess
	}

	format := FormatPCM
	switch bitDepth {
	case 16, 24:
	case 32:
		format = FormatIEEEFloat
	default:
		return nil, pkgerrors.NewInvalidParameterError("bit_depth", bitDepth, "WAV bit depth must be 16, 24 or 32")
	}

	channels := buf.NumChannels()
	pcm := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: buf.SampleRate()},
		Data:           make([]int, buf.Frames()*channels),
		SourceBitDepth: bitDepth,
	}
	for c := 0; c < channels; c++ {
		for i, s := range buf.Channel(c) {
			var v int
			switch bitDepth {
			case 16:
				v = int(ToInt16(s))
			case 24:
				v = int(ToInt24(s))
			case 32:
				// the encoder writes int32(v), which keeps the float's bit pattern
				v = int(int32(math.Float32bits(float32(clampUnit(s)))))
			}
			pcm.Data[i*channels+c] = v
		}
	}

	out := &seekBuffer{buf: make([]byte, 0, WAVHeaderSize+len(pcm.Data)*bitDepth/8)}
	enc := wav.NewEncoder(out, buf.SampleRate(), bitDepth, channels, int(format))
	if err := enc.Write(pcm); err != nil {
		return nil, pkgerrors.NewProcessingError("encode", "failed to write WAV samples", err)
	}
	if err := enc.Close(); err != nil {
		return nil, pkgerrors.NewProcessingError("encode", "failed to finish WAV header", err)
	}
	return out.buf, nil
}

// seekBuffer is an in-memory io.WriteSeeker for the WAV encoder, which seeks
// back to patch the chunk sizes on Close
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.pos)
	case io.SeekEnd:
		base = int64(len(b.buf))
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	pos := base + offset
	if pos < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(pos)
	return pos, nil
}

// ToInt16 clamps s to [-1, 1] and scales it by 32767
func ToInt16(s float64) int16 {
	return int16(math.Round(clampUnit(s) * math.MaxInt16))
}

// ToInt24 clamps s to [-1, 1], scales it by 8388607 and keeps it in the 24-bit range
func ToInt24(s float64) int32 {
	v := math.Round(clampUnit(s) * maxInt24)
	return int32(math.Max(minInt24, math.Min(maxInt24, v)))
}

func clampUnit(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(-1, math.Min(1, s))
}
