package usecase

import (
	"context"
	"sync"

	"github.com/satriahrh/white-fusion/adapters/llm"
	"github.com/satriahrh/white-fusion/config"
	"github.com/satriahrh/white-fusion/domain"
)

type chatFunc func(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatMessage, error)

// fakeLlm records every call it receives.
type fakeLlm struct {
	mu    sync.Mutex
	fn    chatFunc
	calls [][]domain.ChatMessage
	tools [][]domain.ToolDefinition
}

func (f *fakeLlm) Chat(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]domain.ChatMessage(nil), messages...))
	f.tools = append(f.tools, tools)
	f.mu.Unlock()
	return f.fn(ctx, messages, tools)
}

func (f *fakeLlm) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func answer(text string) chatFunc {
	return func(context.Context, []domain.ChatMessage, []domain.ToolDefinition) (domain.ChatMessage, error) {
		return domain.ChatMessage{Role: domain.AssistantRole, Content: text}, nil
	}
}

func failWith(err error) chatFunc {
	return func(context.Context, []domain.ChatMessage, []domain.ToolDefinition) (domain.ChatMessage, error) {
		return domain.ChatMessage{}, err
	}
}

// fakeProviders registers one fakeLlm per provider and counts how many
// clients were resolved.
type fakeProviders struct {
	*llm.Registry
	mu       sync.Mutex
	resolved int
	llms     map[domain.Provider]*fakeLlm
}

func newFakeProviders(fns map[domain.Provider]chatFunc) *fakeProviders {
	fp := &fakeProviders{
		Registry: llm.NewEmptyRegistry(config.LLM{}),
		llms:     make(map[domain.Provider]*fakeLlm),
	}
	for p, fn := range fns {
		fake := &fakeLlm{fn: fn}
		fp.llms[p] = fake
		fp.Register(p, func(context.Context, config.LLM, string) (domain.Llm, error) {
			fp.mu.Lock()
			fp.resolved++
			fp.mu.Unlock()
			return fake, nil
		})
	}
	return fp
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	limits  []int
	results []domain.SearchResult
	err     error
}

func (s *fakeSearcher) Search(_ context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	s.limits = append(s.limits, maxResults)
	return s.results, s.err
}

func userMsg(content string) map[string]any {
	return map[string]any{"role": "user", "content": content}
}

func assistantMsg(content string) map[string]any {
	return map[string]any{"role": "assistant", "content": content}
}
