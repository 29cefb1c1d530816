package ffmpeg

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/domain/ports"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"go.uber.org/zap"
)

// Decoder loads any format ffmpeg understands. It is the fallback for
// containers the native decoders do not handle.
type Decoder struct {
	exec *Executor
}

// NewDecoder wraps an executor
func NewDecoder(exec *Executor) *Decoder {
	return &Decoder{exec: exec}
}

// Decode probes path for its layout, then decodes it to float PCM at the native rate
func (d *Decoder) Decode(ctx context.Context, path string) (*model.PCMBuffer, *model.AudioMetadata, error) {
	info, err := d.exec.Probe(ctx, path)
	if err != nil {
		return nil, nil, pkgerrors.NewDecodeError(path, "probe failed", err)
	}

	raw, err := d.exec.Execute(ctx, DecodeArgs(path))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, pkgerrors.NewDecodeError(path, "ffmpeg decode failed", err)
	}

	buf, err := deinterleaveF32(raw, info.SampleRate, info.Channels)
	if err != nil {
		return nil, nil, pkgerrors.NewDecodeError(path, "malformed PCM from ffmpeg", err)
	}

	meta := &model.AudioMetadata{
		Path:       path,
		Format:     strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		SampleRate: buf.SampleRate(),
		Channels:   buf.NumChannels(),
		BitDepth:   info.BitDepth,
		Frames:     buf.Frames(),
		Duration:   buf.Duration(),
	}
	if st, err := os.Stat(path); err == nil {
		meta.Size = st.Size()
	}

	d.exec.log.Debug("decoded with ffmpeg",
		zap.String("path", path),
		zap.String("container", info.FormatName),
		zap.Int("frames", meta.Frames),
		zap.Duration("duration", meta.Duration.Round(time.Millisecond)),
	)
	return buf, meta, nil
}

func deinterleaveF32(raw []byte, sampleRate, channels int) (*model.PCMBuffer, error) {
	frameBytes := 4 * channels
	frames := len(raw) / frameBytes
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			bits := binary.LittleEndian.Uint32(raw[i*frameBytes+4*c:])
			out[c][i] = float64(math.Float32frombits(bits))
		}
	}
	return model.NewPCMBuffer(sampleRate, out)
}

var _ ports.Decoder = (*Decoder)(nil)
