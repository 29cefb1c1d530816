package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/shahzroux/masterforge/pkg/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// WorkerPool bounds the per-channel fan-out of DSP work
type WorkerPool struct {
	workers int
	log     *logger.Logger
}

// NewWorkerPool creates a new worker pool. Non-positive sizes use GOMAXPROCS.
func NewWorkerPool(workers int, log *logger.Logger) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WorkerPool{
		workers: workers,
		log:     log,
	}
}

// Workers returns the concurrency limit
func (wp *WorkerPool) Workers() int { return wp.workers }

// ForEach calls fn for every index in [0, n) with at most Workers() calls in
// flight, and waits for all of them. Indices not started before ctx is done
// record ctx.Err(). All failures are combined into the returned error.
func (wp *WorkerPool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	semaphore := make(chan struct{}, wp.workers)

	record := func(err error) {
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			record(err)
			continue
		}
		select {
		case <-ctx.Done():
			record(ctx.Err())
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := fn(ctx, idx); err != nil {
				wp.log.Debug("channel task failed", zap.Int("channel", idx), zap.Error(err))
				record(fmt.Errorf("channel %d: %w", idx, err))
			}
		}(i)
	}

	wg.Wait()
	return errs
}

// MapChannels applies fn to every channel through the pool and returns the
// results in channel order.
func MapChannels(ctx context.Context, wp *WorkerPool, channels [][]float64, fn func(ch []float64) []float64) ([][]float64, error) {
	out := make([][]float64, len(channels))
	err := wp.ForEach(ctx, len(channels), func(_ context.Context, i int) error {
		out[i] = fn(channels[i])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
