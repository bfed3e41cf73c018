package ai

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"exifai/internal/domain"
)

// RateLimited spaces calls to a backend so a batch stays under the
// provider's requests-per-minute quota.
type RateLimited struct {
	Backend
	limiter *rate.Limiter
}

// NewRateLimited wraps b with a limiter of perMinute requests. Zero or a
// negative value returns b unchanged.
func NewRateLimited(b Backend, perMinute int) Backend {
	if perMinute <= 0 {
		return b
	}
	return &RateLimited{
		Backend: b,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *RateLimited) Analyze(ctx context.Context, image []byte, mimeType string) (domain.GeneratedMetadata, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.GeneratedMetadata{}, eris.Wrapf(err, "%s: rate limit wait", r.Name())
	}
	return r.Backend.Analyze(ctx, image, mimeType)
}

func (r *RateLimited) Available() error {
	return Available(r.Backend)
}
