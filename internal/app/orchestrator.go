package app

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
)

// Generation is a usable backend result tagged with its producer.
type Generation struct {
	Backend  string
	Metadata domain.GeneratedMetadata
	Attempts int
}

// Orchestrator tries backends in order until one returns usable metadata.
// A backend is never retried within one Generate call.
type Orchestrator struct {
	Backends []Backend
	Timeout  time.Duration
	Logger   *zap.Logger
}

func NewOrchestrator(backends []Backend, timeout time.Duration, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{Backends: backends, Timeout: timeout, Logger: logger}
}

func (o *Orchestrator) Generate(ctx context.Context, image []byte, mimeType string) (Generation, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var last error
	attempted := 0
	for _, b := range o.Backends {
		if err := ctx.Err(); err != nil {
			return Generation{}, err
		}
		attempted++

		if c, ok := b.(Checker); ok {
			if err := c.Available(); err != nil {
				logger.Warn("backend unavailable, skipping",
					zap.String("backend", b.Name()), zap.Error(err))
				last = appErrors.Wrap(appErrors.BackendUnusable, "generate", "", err)
				continue
			}
		}

		meta, err := o.call(ctx, b, image, mimeType)
		if err == nil && meta.IsEmpty() {
			err = eris.Errorf("%s: empty result", b.Name())
		}
		if err != nil {
			// A cancelled batch is not a backend failure.
			if ctx.Err() != nil {
				return Generation{}, ctx.Err()
			}
			logger.Warn("backend unusable",
				zap.String("backend", b.Name()), zap.Error(err))
			last = appErrors.Wrap(appErrors.BackendUnusable, "generate", "", err)
			continue
		}

		logger.Debug("backend succeeded",
			zap.String("backend", b.Name()), zap.Int("attempts", attempted))
		return Generation{Backend: b.Name(), Metadata: meta, Attempts: attempted}, nil
	}

	return Generation{}, appErrors.Wrap(appErrors.AllBackendsExhausted, "generate", "",
		&appErrors.ExhaustedError{Attempted: attempted, Last: last})
}

type analysis struct {
	meta domain.GeneratedMetadata
	err  error
}

// call bounds one backend call by the per-call timeout, also for backends
// that ignore their context.
func (o *Orchestrator) call(ctx context.Context, b Backend, image []byte, mimeType string) (domain.GeneratedMetadata, error) {
	callCtx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	done := make(chan analysis, 1)
	go func() {
		meta, err := b.Analyze(callCtx, image, mimeType)
		done <- analysis{meta: meta, err: err}
	}()

	select {
	case res := <-done:
		return res.meta, res.err
	case <-callCtx.Done():
		err := callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.GeneratedMetadata{}, eris.Wrapf(err, "%s: timed out after %s", b.Name(), o.Timeout)
		}
		return domain.GeneratedMetadata{}, err
	}
}
