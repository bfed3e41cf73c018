package ai

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"exifai/internal/config"
)

// Registry holds the configured backends by name.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Get returns a backend by name, or nil if not found.
func (r *Registry) Get(name string) Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[name]
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain returns the registered backends in the given order. Unknown names
// are skipped.
func (r *Registry) Chain(order []string) []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, 0, len(order))
	for _, name := range order {
		if b, ok := r.backends[name]; ok {
			out = append(out, b)
		}
	}
	return out
}

// FromConfig registers every enabled backend that has credentials, each
// behind its own rate limiter.
func FromConfig(cfg *config.Config, logger *zap.Logger) *Registry {
	r := NewRegistry()
	for _, name := range cfg.EnabledServices() {
		s, _ := cfg.AIServices.Service(name)
		opts := []Option{
			WithBaseURL(s.BaseURL),
			WithModel(s.Model),
			WithLogger(logger),
		}
		var b Backend
		switch name {
		case config.OpenAI:
			b = NewOpenAI(s.APIKey, opts...)
		case config.Gemini:
			b = NewGemini(s.APIKey, opts...)
		case config.Cloudflare:
			b = NewCloudflare(s.AccountID, s.APIToken, opts...)
		case config.Anthropic:
			b = NewAnthropic(s.APIKey, opts...)
		case config.Local:
			b = NewLocal(s.ModelDir, opts...)
		default:
			continue
		}
		r.Register(NewRateLimited(b, s.RequestsPerMinute))
	}
	return r
}
