package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/satriahrh/white-fusion/domain"
)

// Limiter throttles requests to one provider with a token bucket shared by
// every client resolved for it.
type Limiter struct {
	limiter *rate.Limiter
}

func NewLimiter(requestsPerMin int) *Limiter {
	r := rate.Limit(float64(requestsPerMin) / 60.0)
	return &Limiter{limiter: rate.NewLimiter(r, requestsPerMin)}
}

// Wrap returns an Llm that waits for a token before every call.
func (l *Limiter) Wrap(next domain.Llm) domain.Llm {
	return &limitedLlm{limiter: l.limiter, next: next}
}

type limitedLlm struct {
	limiter *rate.Limiter
	next    domain.Llm
}

func (l *limitedLlm) Chat(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatMessage, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return domain.ChatMessage{}, err
	}
	return l.next.Chat(ctx, messages, tools)
}
