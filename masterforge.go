package masterforge

import (
	"context"

	"github.com/shahzroux/masterforge/application/loudness"
	"github.com/shahzroux/masterforge/application/mastering"
	"github.com/shahzroux/masterforge/application/pipeline"
	"github.com/shahzroux/masterforge/application/spectrum"
	"github.com/shahzroux/masterforge/application/usecase"
	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/domain/ports"
	"github.com/shahzroux/masterforge/infrastructure/decoder"
	"github.com/shahzroux/masterforge/infrastructure/encoder"
	"github.com/shahzroux/masterforge/infrastructure/ffmpeg"
	"github.com/shahzroux/masterforge/infrastructure/resampler"
	"github.com/shahzroux/masterforge/infrastructure/storage"
	"github.com/shahzroux/masterforge/pkg/config"
	"github.com/shahzroux/masterforge/pkg/logger"
	"github.com/shahzroux/masterforge/pkg/progress"
	"go.uber.org/zap"
)

// Re-export types for convenient use by callers
type (
	PCMBuffer           = model.PCMBuffer
	AudioMetadata       = model.AudioMetadata
	LoudnessMeasurement = model.LoudnessMeasurement
	Meters              = model.Meters
	MasteringParams     = model.MasteringParams
	DynamicsParams      = model.DynamicsParams
	BandParams          = model.BandParams
	Platform            = model.Platform
	ExportFormat        = model.ExportFormat
	ExportRequest       = model.ExportRequest
	ExportResult        = model.ExportResult
	Spectrum            = spectrum.Spectrum
	SpectrumOptions     = spectrum.Options
	Option              = ports.Option
	ProgressUpdate      = progress.Update
	ProgressStage       = progress.Stage
	ProgressReporter    = progress.Reporter
)

// Re-export format and stage constants
const (
	FormatWAV16  = model.FormatWAV16
	FormatWAV24  = model.FormatWAV24
	FormatWAV32F = model.FormatWAV32F
	FormatMP3    = model.FormatMP3

	StageAnalyze  = progress.StageAnalyze
	StageEQ       = progress.StageEQ
	StageDynamics = progress.StageDynamics
	StageMakeup   = progress.StageMakeup
	StageLimit    = progress.StageLimit
	StageResample = progress.StageResample
	StageEncode   = progress.StageEncode
	StageExport   = progress.StageExport
	StageDone     = progress.StageDone
)

// Re-export option functions
var (
	WithParams         = ports.WithParams
	WithIntensity      = ports.WithIntensity
	WithEQ             = ports.WithEQ
	WithCompressor     = ports.WithCompressor
	WithLimiterCeiling = ports.WithLimiterCeiling
	WithMultiband      = ports.WithMultiband
	WithPlatform       = ports.WithPlatform

	NewPCMBuffer           = model.NewPCMBuffer
	DefaultMasteringParams = model.DefaultMasteringParams
	LookupPlatform         = model.LookupPlatform
	GapToTarget            = model.GapToTarget
	ParseExportFormat      = model.ParseExportFormat
	ApplyPlatformTarget    = model.ApplyPlatformTarget
	ComputeMeters          = loudness.ComputeMeters
	LoadSettings           = config.Load
	DefaultSettings        = config.Default
)

// Config holds top-level configuration for the engine
type Config struct {
	// Settings carries engine, export, retry and default mastering values.
	// Nil uses config.Default().
	Settings *config.Config

	// Logger is an optional custom logger. Built from Settings.Logging if nil.
	Logger *logger.Logger

	// ZapLogger allows passing a *zap.Logger directly
	ZapLogger *zap.Logger

	// ProgressCh is an optional channel for receiving progress updates
	ProgressCh chan<- ProgressUpdate

	// Reporter optionally receives every update as well, synchronously
	Reporter ProgressReporter

	// MP3Backend overrides the ffmpeg backend
	MP3Backend ports.MP3Backend
}

// Engine is the main entry point
type Engine struct {
	service  *usecase.MasteringService
	decoder  ports.Decoder
	mp3      *encoder.MP3Encoder
	settings *config.Config
	log      *logger.Logger
}

// New wires the engine. A missing ffmpeg is not fatal: MP3 export then fails
// with EncodingUnavailable and only WAV/MP3 inputs can be decoded.
func New(cfg Config) (*Engine, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	log := cfg.Logger
	if log == nil && cfg.ZapLogger != nil {
		log = logger.FromZap(cfg.ZapLogger)
	}
	if log == nil {
		var err error
		log, err = logger.NewWithLevel(settings.Logging.Level, settings.Logging.Development)
		if err != nil {
			return nil, err
		}
	}

	pool := pipeline.NewWorkerPool(settings.Engine.Workers, log)

	rs, err := resampler.New(settings.Engine.ResampleQuality, pool, log)
	if err != nil {
		return nil, err
	}

	backend := cfg.MP3Backend
	var fallback ports.Decoder
	exec, err := ffmpeg.NewExecutor(ffmpeg.ExecutorConfig{
		FFmpegPath:  settings.Engine.FFmpegPath,
		FFprobePath: settings.Engine.FFprobePath,
		Logger:      log,
	})
	if err != nil {
		log.Warn("ffmpeg unavailable, MP3 export and extra input formats disabled", zap.Error(err))
	} else {
		fallback = ffmpeg.NewDecoder(exec)
		if backend == nil {
			backend = ffmpeg.NewMP3Backend(exec)
		}
	}

	mp3 := encoder.NewMP3Encoder(backend, settings.Retry.ToRetry(), log)

	reporter := progress.NewMultiReporter()
	if cfg.ProgressCh != nil {
		reporter.Add(progress.NewChannelReporter(cfg.ProgressCh))
	}
	if cfg.Reporter != nil {
		reporter.Add(cfg.Reporter)
	}

	defaults := settings.Mastering
	svc, err := usecase.NewMasteringService(usecase.Config{
		Analyzer:  loudness.NewAnalyzer(pool, log),
		Renderer:  mastering.NewRenderer(pool, log),
		Resampler: rs,
		Encoder:   encoder.New(mp3),
		Storage:   storage.NewLocalStorage(),
		Reporter:  reporter,
		Logger:    log,
		Defaults:  &defaults,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		service:  svc,
		decoder:  decoder.New(fallback, log),
		mp3:      mp3,
		settings: settings,
		log:      log,
	}, nil
}

// Load decodes an audio file
func (e *Engine) Load(ctx context.Context, path string) (*PCMBuffer, *AudioMetadata, error) {
	return e.decoder.Decode(ctx, path)
}

// Analyze measures integrated loudness, true peak and loudness range
func (e *Engine) Analyze(ctx context.Context, buf *PCMBuffer) (LoudnessMeasurement, error) {
	return e.service.Analyze(ctx, buf)
}

// Master renders buf through the mastering chain
func (e *Engine) Master(ctx context.Context, buf *PCMBuffer, opts ...Option) (*PCMBuffer, error) {
	return e.service.Master(ctx, buf, opts...)
}

// Export resamples and encodes buf. Zero Format or SampleRate fall back to the
// configured export defaults.
func (e *Engine) Export(ctx context.Context, buf *PCMBuffer, req ExportRequest) (*ExportResult, error) {
	if req.Format == "" {
		req.Format = ExportFormat(e.settings.Export.Format)
	}
	if req.SampleRate == 0 {
		req.SampleRate = e.settings.Export.SampleRate
	}
	return e.service.Export(ctx, buf, req)
}

// Save writes an export into dir ("" uses the configured output directory)
func (e *Engine) Save(ctx context.Context, result *ExportResult, dir string) (string, error) {
	if dir == "" {
		dir = e.settings.Export.OutputDir
	}
	return e.service.Save(ctx, result, dir)
}

// Spectrum returns the band magnitude spectrum of buf
func (e *Engine) Spectrum(buf *PCMBuffer, opts SpectrumOptions) (Spectrum, error) {
	return spectrum.Analyze(buf, opts)
}

// Meters derives the percentage meters for a measurement of buf
func (e *Engine) Meters(buf *PCMBuffer, m LoudnessMeasurement) Meters {
	return loudness.ComputeMeters(buf, m)
}

// MP3Available reports whether an MP3 backend was found
func (e *Engine) MP3Available() bool { return e.mp3.Available() }

// Settings returns the configuration the engine was built with
func (e *Engine) Settings() *config.Config { return e.settings }

// Logger returns the engine's logger
func (e *Engine) Logger() *logger.Logger { return e.log }

// Close flushes the logger and releases resources
func (e *Engine) Close() {
	_ = e.log.Sync()
}

var _ ports.MasteringEngine = (*Engine)(nil)
