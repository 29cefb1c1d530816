package pipeline

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"github.com/shahzroux/masterforge/pkg/progress"
	"go.uber.org/zap"
)

// StageFunc performs the work of one stage
type StageFunc func(ctx context.Context) error

// Stage is a named step of a render or export job
type Stage struct {
	Name    progress.Stage
	Percent float64 // progress reported once the stage completes
	Message string
	Run     StageFunc
}

// Job identifies one user-initiated action and where its progress goes
type Job struct {
	ID       string
	Reporter progress.Reporter
	Log      *logger.Logger
}

// Pipeline runs stages in order, stopping at the first failure or cancellation
type Pipeline struct {
	log *logger.Logger
}

// NewPipeline creates a new stage runner
func NewPipeline(log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{log: log}
}

// Run executes the stages for a job. Errors that are not already coded are
// wrapped in a ProcessingError naming the failed stage; context errors are
// returned unchanged.
func (p *Pipeline) Run(ctx context.Context, job *Job, stages ...Stage) error {
	log := p.log
	if job.Log != nil {
		log = job.Log
	}
	start := time.Now()

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		stageStart := time.Now()
		log.Debug("stage started", zap.String("stage", string(s.Name)))

		if err := s.Run(ctx); err != nil {
			log.Warn("stage failed", zap.String("stage", string(s.Name)), zap.Error(err))
			return wrapStageError(s.Name, err)
		}

		log.Debug("stage finished",
			zap.String("stage", string(s.Name)),
			zap.Duration("duration", time.Since(stageStart)),
		)
		job.report(s.Name, s.Percent, s.Message)
	}

	log.Debug("pipeline finished", zap.Int("stages", len(stages)), zap.Duration("duration", time.Since(start)))
	return nil
}

func wrapStageError(stage progress.Stage, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if pkgerrors.Code(err) != "" {
		return err
	}
	return pkgerrors.NewProcessingError(string(stage), "stage failed", err)
}

// report is a helper to emit progress updates
func (j *Job) report(stage progress.Stage, percent float64, msg string) {
	if j.Reporter == nil {
		return
	}
	j.Reporter.Report(progress.Update{
		JobID:   j.ID,
		Stage:   stage,
		Percent: percent,
		Message: msg,
	})
}
