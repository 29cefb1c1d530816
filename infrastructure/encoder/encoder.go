package encoder

import (
	"context"

	"github.com/shahzroux/masterforge/domain/model"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
)

// Encoder implements ports.Encoder for every export format
type Encoder struct {
	mp3 *MP3Encoder
}

// New creates an encoder. mp3 may be nil when no MP3 backend exists.
func New(mp3 *MP3Encoder) *Encoder {
	return &Encoder{mp3: mp3}
}

// Encode renders buf in the given format
func (e *Encoder) Encode(ctx context.Context, buf *model.PCMBuffer, format model.ExportFormat) ([]byte, error) {
	if format.IsWAV() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return EncodeWAV(buf, format.BitDepth())
	}
	if format == model.FormatMP3 {
		if e.mp3 == nil {
			return nil, pkgerrors.NewEncodingUnavailableError(string(model.FormatMP3), nil)
		}
		return e.mp3.Encode(ctx, buf)
	}
	return nil, pkgerrors.NewInvalidParameterError("format", format, "unsupported export format")
}
