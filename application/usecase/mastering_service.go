package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shahzroux/masterforge/application/pipeline"
	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/domain/ports"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"github.com/shahzroux/masterforge/pkg/progress"
	"go.uber.org/zap"
)

// Export sample rates must fall in this range
const (
	MinExportSampleRate = 8000
	MaxExportSampleRate = 384000
)

// MasteringService orchestrates analyze, master and export. It implements
// ports.MasteringEngine.
type MasteringService struct {
	analyzer  ports.Analyzer
	renderer  ports.Renderer
	resampler ports.Resampler
	encoder   ports.Encoder
	storage   ports.StorageProvider
	pipeline  *pipeline.Pipeline
	reporter  progress.Reporter
	defaults  model.MasteringParams
	log       *logger.Logger

	mu       sync.Mutex
	inflight map[*model.PCMBuffer]struct{}
}

// Config holds MasteringService dependencies
type Config struct {
	Analyzer  ports.Analyzer
	Renderer  ports.Renderer
	Resampler ports.Resampler
	Encoder   ports.Encoder
	Storage   ports.StorageProvider // optional; only Save needs it
	Reporter  progress.Reporter
	Logger    *logger.Logger

	// Defaults is the parameter record Master starts from before options apply.
	// Nil means model.DefaultMasteringParams.
	Defaults *model.MasteringParams
}

// NewMasteringService creates a new MasteringService
func NewMasteringService(cfg Config) (*MasteringService, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("Analyzer is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("Renderer is required")
	}
	if cfg.Resampler == nil {
		return nil, fmt.Errorf("Resampler is required")
	}
	if cfg.Encoder == nil {
		return nil, fmt.Errorf("Encoder is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}

	defaults := model.DefaultMasteringParams()
	if cfg.Defaults != nil {
		defaults = *cfg.Defaults
	}

	return &MasteringService{
		analyzer:  cfg.Analyzer,
		renderer:  cfg.Renderer,
		resampler: cfg.Resampler,
		encoder:   cfg.Encoder,
		storage:   cfg.Storage,
		pipeline:  pipeline.NewPipeline(log),
		reporter:  reporter,
		defaults:  defaults,
		log:       log,
		inflight:  make(map[*model.PCMBuffer]struct{}),
	}, nil
}

// Analyze measures buf
func (s *MasteringService) Analyze(ctx context.Context, buf *model.PCMBuffer) (model.LoudnessMeasurement, error) {
	if buf == nil {
		return model.LoudnessMeasurement{}, pkgerrors.ErrNothingToProcess
	}

	log := s.logFor(ctx)
	start := time.Now()
	m, err := s.analyzer.Measure(ctx, buf)
	if err != nil {
		return model.LoudnessMeasurement{}, err
	}

	log.Info("analysis completed",
		zap.Float64("lufs", m.IntegratedLUFS),
		zap.Float64("true_peak", m.TruePeakDB),
		zap.Float64("lra", m.LRA),
		zap.Duration("duration", time.Since(start)),
	)
	s.reporter.Report(progress.Update{
		JobID:   generateJobID("analyze"),
		Stage:   progress.StageAnalyze,
		Percent: 100,
		Message: "analysis complete",
	})
	return m, nil
}

// Master renders buf with the default parameters adjusted by opts. A second
// Master on the same buffer while one is running fails with ErrBusy.
func (s *MasteringService) Master(ctx context.Context, buf *model.PCMBuffer, opts ...ports.Option) (*model.PCMBuffer, error) {
	if buf == nil {
		return nil, pkgerrors.ErrNothingToProcess
	}

	params := s.defaults
	for _, o := range opts {
		o(&params)
	}

	log := s.logFor(ctx)
	if !s.acquire(buf) {
		log.Warn("render rejected, buffer busy", zap.Int("frames", buf.Frames()))
		return nil, pkgerrors.ErrBusy
	}
	defer s.release(buf)

	log.Info("starting render",
		zap.Int("channels", buf.NumChannels()),
		zap.Int("frames", buf.Frames()),
		zap.Float64("intensity", params.Intensity),
		zap.Bool("multiband", params.Multiband),
		zap.Float64("ceiling", params.LimiterCeiling),
	)

	start := time.Now()
	out, err := s.renderer.Render(ctx, buf, params, s.reporter)
	if err != nil {
		log.Error("render failed", zap.Error(err))
		return nil, err
	}

	log.Info("render completed", zap.Duration("duration", time.Since(start)))
	return out, nil
}

// Export resamples buf to the requested rate and encodes it
func (s *MasteringService) Export(ctx context.Context, buf *model.PCMBuffer, req model.ExportRequest) (*model.ExportResult, error) {
	if buf == nil {
		return nil, pkgerrors.ErrNothingToProcess
	}

	log := s.logFor(ctx)
	job := &pipeline.Job{
		ID:       generateJobID("export"),
		Reporter: s.reporter,
		Log:      log.With(zap.String("format", string(req.Format))),
	}

	var (
		format  model.ExportFormat
		rate    int
		resampd *model.PCMBuffer
		data    []byte
		result  *model.ExportResult
	)

	start := time.Now()
	err := s.pipeline.Run(ctx, job,
		pipeline.Stage{Name: progress.StageExport, Percent: 10, Message: "preparing export", Run: func(context.Context) error {
			f, err := model.ParseExportFormat(string(req.Format))
			if err != nil {
				return pkgerrors.NewInvalidParameterError("format", req.Format, err.Error())
			}
			format = f
			rate = req.SampleRate
			if rate == 0 {
				rate = model.DefaultExportSampleRate
			}
			if rate < MinExportSampleRate || rate > MaxExportSampleRate {
				return pkgerrors.NewInvalidParameterError("sample_rate", req.SampleRate,
					fmt.Sprintf("must be within %d-%d Hz", MinExportSampleRate, MaxExportSampleRate))
			}
			if !format.SupportsSampleRate(rate) {
				return pkgerrors.NewInvalidParameterError("sample_rate", rate,
					fmt.Sprintf("%d kbps MP3 needs one of %v Hz", model.MP3Bitrate, model.MP3SampleRates))
			}
			return nil
		}},
		pipeline.Stage{Name: progress.StageResample, Percent: 30, Message: "resampled", Run: func(ctx context.Context) error {
			var err error
			resampd, err = s.resampler.Resample(ctx, buf, rate)
			return err
		}},
		pipeline.Stage{Name: progress.StageEncode, Percent: 60, Message: "encoded", Run: func(ctx context.Context) error {
			var err error
			data, err = s.encoder.Encode(ctx, resampd, format)
			return err
		}},
		pipeline.Stage{Name: progress.StageExport, Percent: 90, Message: "finalizing", Run: func(context.Context) error {
			named := req
			named.Format = format
			named.SampleRate = rate
			result = &model.ExportResult{
				Data:       data,
				Filename:   named.Filename(),
				Format:     format,
				SampleRate: resampd.SampleRate(),
				Channels:   resampd.NumChannels(),
				Frames:     resampd.Frames(),
				Duration:   resampd.Duration(),
			}
			return nil
		}},
		pipeline.Stage{Name: progress.StageDone, Percent: 100, Message: "export complete", Run: func(context.Context) error {
			return nil
		}},
	)
	if err != nil {
		log.Error("export failed", zap.String("format", string(req.Format)), zap.Error(err))
		return nil, err
	}

	log.Info("export completed",
		zap.String("filename", result.Filename),
		zap.Int("bytes", len(result.Data)),
		zap.Int("sample_rate", result.SampleRate),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// Save writes an export into dir and returns the full path. An existing file of
// the same name is replaced, and the stored size is checked against the export;
// a short write is removed again and reported as an IO error.
func (s *MasteringService) Save(ctx context.Context, result *model.ExportResult, dir string) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("no storage provider configured")
	}
	if result == nil {
		return "", pkgerrors.ErrNothingToProcess
	}
	log := s.logFor(ctx)
	path := filepath.Join(dir, result.Filename)

	exists, err := s.storage.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if exists {
		prev, err := s.storage.Size(ctx, path)
		if err != nil {
			return "", err
		}
		log.Warn("replacing existing export", zap.String("path", path), zap.Int64("previous_bytes", prev))
	}

	if err := s.storage.WriteFile(ctx, path, result.Data); err != nil {
		return "", err
	}

	size, err := s.storage.Size(ctx, path)
	if err == nil && size != int64(len(result.Data)) {
		err = fmt.Errorf("stored %d of %d bytes", size, len(result.Data))
	}
	if err != nil {
		if rmErr := s.storage.Remove(ctx, path); rmErr != nil {
			log.Warn("failed to remove incomplete export", zap.String("path", path), zap.Error(rmErr))
		}
		return "", pkgerrors.NewIOError("verify "+path, err)
	}

	log.Info("export written", zap.String("path", path), zap.Int("bytes", len(result.Data)))
	return path, nil
}

// logFor prefers the logger carried by ctx so callers can attach their own fields
func (s *MasteringService) logFor(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx, s.log)
}

func (s *MasteringService) acquire(buf *model.PCMBuffer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[buf]; busy {
		return false
	}
	s.inflight[buf] = struct{}{}
	return true
}

func (s *MasteringService) release(buf *model.PCMBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, buf)
}

var jobSeq atomic.Uint64

func generateJobID(kind string) string {
	return fmt.Sprintf("%s-%d-%d", kind, time.Now().UnixNano(), jobSeq.Add(1))
}

var _ ports.MasteringEngine = (*MasteringService)(nil)
