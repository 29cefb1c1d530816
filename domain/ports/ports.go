package ports

import (
	"context"
	"io"

	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/pkg/progress"
)

// MasteringEngine defines the main engine interface
type MasteringEngine interface {
	// Analyze measures loudness, true peak and loudness range of a buffer
	Analyze(ctx context.Context, buf *model.PCMBuffer) (model.LoudnessMeasurement, error)

	// Master renders buf through the mastering chain
	Master(ctx context.Context, buf *model.PCMBuffer, opts ...Option) (*model.PCMBuffer, error)

	// Export resamples and encodes buf
	Export(ctx context.Context, buf *model.PCMBuffer, req model.ExportRequest) (*model.ExportResult, error)
}

// Analyzer is the loudness measurement abstraction
type Analyzer interface {
	Measure(ctx context.Context, buf *model.PCMBuffer) (model.LoudnessMeasurement, error)
}

// Renderer is the mastering chain abstraction. reporter may be nil.
type Renderer interface {
	Render(ctx context.Context, buf *model.PCMBuffer, params model.MasteringParams, reporter progress.Reporter) (*model.PCMBuffer, error)
}

// Resampler converts a buffer to another sample rate
type Resampler interface {
	Resample(ctx context.Context, buf *model.PCMBuffer, targetRate int) (*model.PCMBuffer, error)
}

// Encoder turns a buffer into a file body in the requested format
type Encoder interface {
	Encode(ctx context.Context, buf *model.PCMBuffer, format model.ExportFormat) ([]byte, error)
}

// MP3Backend opens constant-bitrate MP3 encoding streams
type MP3Backend interface {
	// NewStream starts an encoder writing MP3 frames to out
	NewStream(ctx context.Context, sampleRate, channels, kbps int, out io.Writer) (MP3Stream, error)
}

// MP3Stream accepts 16-bit PCM one block at a time. right is nil for mono.
type MP3Stream interface {
	EncodeFrame(left, right []int16) error

	// Flush encodes any buffered samples and finishes the stream
	Flush() error
}

// Decoder loads an audio file into a PCM buffer
type Decoder interface {
	Decode(ctx context.Context, path string) (*model.PCMBuffer, *model.AudioMetadata, error)
}

// StorageProvider abstracts filesystem or object storage operations
type StorageProvider interface {
	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)

	// Size returns file size in bytes
	Size(ctx context.Context, path string) (int64, error)

	// Remove deletes a file
	Remove(ctx context.Context, path string) error

	// WriteFile stores data at path, replacing any existing file atomically
	WriteFile(ctx context.Context, path string, data []byte) error
}

// ProgressReporter allows callers to receive progress updates
type ProgressReporter = progress.Reporter

// Option is the functional option type
type Option func(*model.MasteringParams)

// WithParams replaces the whole parameter record
func WithParams(p model.MasteringParams) Option {
	return func(o *model.MasteringParams) {
		*o = p
	}
}

// WithIntensity sets the overall intensity in percent
func WithIntensity(pct float64) Option {
	return func(o *model.MasteringParams) {
		o.Intensity = pct
	}
}

// WithEQ sets the low, mid and high EQ gains in dB
func WithEQ(low, mid, high float64) Option {
	return func(o *model.MasteringParams) {
		o.EQLow, o.EQMid, o.EQHigh = low, mid, high
	}
}

// WithCompressor sets the single-band compressor
func WithCompressor(d model.DynamicsParams) Option {
	return func(o *model.MasteringParams) {
		o.Compressor = d
	}
}

// WithLimiterCeiling sets the limiter ceiling in dBTP
func WithLimiterCeiling(db float64) Option {
	return func(o *model.MasteringParams) {
		o.LimiterCeiling = db
	}
}

// WithMultiband switches to 3-band dynamics with the given bands
func WithMultiband(low, mid, high model.BandParams) Option {
	return func(o *model.MasteringParams) {
		o.Multiband = true
		o.Low, o.Mid, o.High = low, mid, high
	}
}

// WithPlatform applies a platform's ceiling and intensity preset. Unknown ids are ignored.
func WithPlatform(id string) Option {
	return func(o *model.MasteringParams) {
		if p, err := model.ApplyPlatformTarget(*o, id); err == nil {
			*o = p
		}
	}
}
