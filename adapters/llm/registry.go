package llm

import (
	"context"
	"sync"

	"github.com/satriahrh/white-fusion/config"
	"github.com/satriahrh/white-fusion/domain"
)

// Factory builds a client for one model of a provider.
type Factory func(ctx context.Context, cfg config.LLM, model string) (domain.Llm, error)

// Registry is the provider dispatch table. Providers are added by
// registration; resolving an unregistered one is a configuration error.
type Registry struct {
	cfg       config.LLM
	mu        sync.RWMutex
	factories map[domain.Provider]Factory
	limiters  map[domain.Provider]*Limiter
}

// NewRegistry returns a registry with Groq, TogetherAI and Gemini registered.
func NewRegistry(cfg config.LLM) *Registry {
	r := NewEmptyRegistry(cfg)
	r.Register(domain.ProviderGroq, func(_ context.Context, cfg config.LLM, model string) (domain.Llm, error) {
		return NewOpenAICompatible(domain.ProviderGroq, model,
			WithAPIKey(cfg.GroqAPIKey),
			WithBaseURL(cfg.GroqBaseURL),
		), nil
	})
	r.Register(domain.ProviderTogetherAI, func(_ context.Context, cfg config.LLM, model string) (domain.Llm, error) {
		return NewOpenAICompatible(domain.ProviderTogetherAI, model,
			WithAPIKey(cfg.TogetherAPIKey),
			WithBaseURL(cfg.TogetherBaseURL),
		), nil
	})
	r.Register(domain.ProviderGemini, func(ctx context.Context, cfg config.LLM, model string) (domain.Llm, error) {
		return NewGeminiClient(ctx, cfg.GoogleAPIKey, model)
	})
	return r
}

func NewEmptyRegistry(cfg config.LLM) *Registry {
	return &Registry{
		cfg:       cfg,
		factories: make(map[domain.Provider]Factory),
		limiters:  make(map[domain.Provider]*Limiter),
	}
}

// Register adds or replaces the factory for a provider.
func (r *Registry) Register(p domain.Provider, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[p] = f
	if r.cfg.RequestsPerMin > 0 {
		r.limiters[p] = NewLimiter(r.cfg.RequestsPerMin)
	}
}

// Supports reports whether a provider is registered.
func (r *Registry) Supports(p domain.Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[p]
	return ok
}

// Normalize implements domain.ProviderAdapter.
func (r *Registry) Normalize(ctx context.Context, items []any) ([]domain.ChatMessage, error) {
	return NormalizeMessages(ctx, items)
}

// Resolve implements domain.ProviderAdapter.
func (r *Registry) Resolve(spec domain.ProviderSpec) (domain.Llm, error) {
	r.mu.RLock()
	factory, ok := r.factories[spec.Provider]
	limiter := r.limiters[spec.Provider]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.ConfigurationError{Provider: string(spec.Provider)}
	}

	client, err := factory(context.Background(), r.cfg, spec.Model)
	if err != nil {
		return nil, err
	}
	if limiter != nil {
		return limiter.Wrap(client), nil
	}
	return client, nil
}
