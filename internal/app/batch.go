package app

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
	"exifai/internal/logging"
)

// ResultFunc is called once per image as soon as its result is final.
type ResultFunc func(done, total int, result domain.ProcessResult)

// ProcessBatch runs Process over paths with at most Options.Workers images in
// flight. Results keep the order of paths. Images not started before ctx is
// cancelled are recorded as failures.
func (p *Pipeline) ProcessBatch(ctx context.Context, paths []string, onResult ResultFunc) []domain.ProcessResult {
	defer logging.Measure(p.Logger, "batch")()

	workers := p.Options.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p.logger().Debug("starting batch", zap.Int("images", len(paths)), zap.Int("workers", workers))

	results := make([]domain.ProcessResult, len(paths))
	var (
		mu   sync.Mutex
		done int
	)
	report := func(i int, r domain.ProcessResult) {
		results[i] = r
		mu.Lock()
		defer mu.Unlock()
		done++
		if onResult != nil {
			onResult(done, len(paths), r)
		}
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			report(i, domain.ProcessResult{
				Path:   path,
				DryRun: p.Options.DryRun,
				Err:    appErrors.Wrap(appErrors.Internal, "process", path, err),
			})
			continue
		}
		g.Go(func() error {
			report(i, p.Process(ctx, path))
			return nil
		})
	}
	_ = g.Wait()
	return results
}
