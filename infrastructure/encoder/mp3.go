package encoder

import (
	"bytes"
	"context"
	"time"

	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/domain/ports"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"github.com/shahzroux/masterforge/pkg/retry"
	"go.uber.org/zap"
)

// MP3FrameSamples is the number of samples per channel in one MPEG-1 Layer III frame
const MP3FrameSamples = 1152

// MP3Encoder streams buffers through an MP3 backend at a constant bitrate
type MP3Encoder struct {
	backend ports.MP3Backend
	retry   retry.Config
	log     *logger.Logger
}

// NewMP3Encoder wraps backend. A nil backend makes every call fail with
// EncodingUnavailable.
func NewMP3Encoder(backend ports.MP3Backend, retryCfg retry.Config, log *logger.Logger) *MP3Encoder {
	if log == nil {
		log = logger.Nop()
	}
	retryCfg.ShouldRetry = retryable
	return &MP3Encoder{backend: backend, retry: retryCfg, log: log}
}

// Available reports whether a backend is configured
func (e *MP3Encoder) Available() bool { return e.backend != nil }

// Encode returns the MP3 bitstream for buf at model.MP3Bitrate kbps. Only the
// first two channels are encoded. Backend failures are retried per the retry
// config; each attempt starts from an empty output.
func (e *MP3Encoder) Encode(ctx context.Context, buf *model.PCMBuffer) ([]byte, error) {
	if buf == nil {
		return nil, pkgerrors.ErrNothingToProcess
	}
	if e.backend == nil {
		return nil, pkgerrors.NewEncodingUnavailableError(string(model.FormatMP3), nil)
	}

	start := time.Now()
	left, right := interleaveSources(buf)

	var result []byte
	attempt := 0
	err := retry.Do(ctx, e.retry, func() error {
		attempt++
		if attempt > 1 {
			e.log.Warn("retrying mp3 encode", zap.Int("attempt", attempt))
		}
		data, err := e.encodeOnce(ctx, buf.SampleRate(), left, right)
		if err != nil {
			return err
		}
		result = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("mp3 encoded",
		zap.Int("frames", buf.Frames()),
		zap.Int("bytes", len(result)),
		zap.Int("attempts", attempt),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (e *MP3Encoder) encodeOnce(ctx context.Context, sampleRate int, left, right []int16) ([]byte, error) {
	channels := 1
	if right != nil {
		channels = 2
	}

	var out bytes.Buffer
	stream, err := e.backend.NewStream(ctx, sampleRate, channels, model.MP3Bitrate, &out)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(left); i += MP3FrameSamples {
		if err := ctx.Err(); err != nil {
			_ = stream.Flush()
			return nil, err
		}
		end := min(i+MP3FrameSamples, len(left))
		var r []int16
		if right != nil {
			r = right[i:end]
		}
		if err := stream.EncodeFrame(left[i:end], r); err != nil {
			_ = stream.Flush()
			return nil, err
		}
	}
	if err := stream.Flush(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// interleaveSources converts the first one or two channels to 16-bit PCM with
// the same scaling as the 16-bit WAV path
func interleaveSources(buf *model.PCMBuffer) (left, right []int16) {
	left = toInt16Slice(buf.Channel(0))
	if buf.NumChannels() >= 2 {
		right = toInt16Slice(buf.Channel(1))
	}
	return left, right
}

func toInt16Slice(in []float64) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		out[i] = ToInt16(s)
	}
	return out
}

// retryable keeps contract failures and cancellation from being retried
func retryable(err error) bool {
	switch pkgerrors.Code(err) {
	case pkgerrors.ErrCodeEncodingUnavailable, pkgerrors.ErrCodeInvalidParameter:
		return false
	}
	return !pkgerrors.Is(err, context.Canceled) && !pkgerrors.Is(err, context.DeadlineExceeded)
}
