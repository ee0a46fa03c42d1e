package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

const (
	// DefaultMaxToolCalls bounds search invocations per agent run.
	DefaultMaxToolCalls = 5
	// SearchResultsPerQuery caps the web search tool.
	SearchResultsPerQuery = 2
)

// RespondInput fully determines one routed completion.
type RespondInput struct {
	Model        string
	Provider     domain.Provider
	Messages     []any
	AllowSearch  bool
	SystemPrompt string
}

// Router picks the direct or agent path for a request and turns every
// runtime failure into sentinel text.
type Router struct {
	adapter      domain.ProviderAdapter
	searcher     domain.WebSearcher
	timeout      time.Duration
	maxToolCalls int
}

type RouterOption func(*Router)

// WithProviderTimeout bounds each provider invocation; zero disables it.
func WithProviderTimeout(d time.Duration) RouterOption {
	return func(r *Router) { r.timeout = d }
}

func WithMaxToolCalls(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.maxToolCalls = n
		}
	}
}

// NewRouter builds a Router. searcher may be nil, in which case search is
// requested but no tool is offered to the model.
func NewRouter(adapter domain.ProviderAdapter, searcher domain.WebSearcher, opts ...RouterOption) *Router {
	r := &Router{
		adapter:      adapter,
		searcher:     searcher,
		maxToolCalls: DefaultMaxToolCalls,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Respond is Complete collapsed to the response text. The only errors
// returned are *domain.ConfigurationError and *domain.TypeMismatchError.
func (r *Router) Respond(ctx context.Context, in RespondInput) (domain.Response, error) {
	res, err := r.Complete(ctx, in)
	if err != nil {
		return domain.Response{}, err
	}
	return domain.Response{Response: res.Reply()}, nil
}

// Normalize exposes the adapter's conversation normalization.
func (r *Router) Normalize(ctx context.Context, items []any) ([]domain.ChatMessage, error) {
	return r.adapter.Normalize(ctx, items)
}

// Complete resolves the provider, normalizes the conversation and runs the
// selected path.
func (r *Router) Complete(ctx context.Context, in RespondInput) (domain.Result, error) {
	client, err := r.adapter.Resolve(domain.ProviderSpec{Provider: in.Provider, Model: in.Model})
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return domain.Result{}, err
		}
		return r.failure(ctx, in, err), nil
	}

	messages, err := r.adapter.Normalize(ctx, in.Messages)
	if err != nil {
		return domain.Result{}, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.run(ctx, client, messages, in)
	if err != nil {
		return r.failure(ctx, in, err), nil
	}
	return domain.Result{Text: text}, nil
}

func (r *Router) failure(ctx context.Context, in RespondInput, err error) domain.Result {
	log.WithCtx(ctx).Error("Provider call failed",
		zap.String("provider", string(in.Provider)),
		zap.String("model", in.Model),
		zap.Error(err))
	return domain.Result{Failure: &domain.ProviderFailure{Provider: string(in.Provider), Err: err}}
}

func (r *Router) run(ctx context.Context, client domain.Llm, messages []domain.ChatMessage, in RespondInput) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	if isDirect(messages, in.AllowSearch) {
		log.WithCtx(ctx).Debug("Direct completion", zap.String("provider", string(in.Provider)))
		reply, err := client.Chat(ctx, withSystemPrompt(messages, in.SystemPrompt, false), nil)
		if err != nil {
			return "", err
		}
		return reply.Content, nil
	}

	var tools []domain.Tool
	if in.AllowSearch && r.searcher != nil {
		tools = append(tools, NewSearchTool(r.searcher, SearchResultsPerQuery))
	}
	log.WithCtx(ctx).Debug("Agent completion",
		zap.String("provider", string(in.Provider)),
		zap.Int("tools", len(tools)))
	return r.runAgent(ctx, client, withSystemPrompt(messages, in.SystemPrompt, true), tools)
}

// isDirect reports whether the exchange looks like a single-shot prompt.
func isDirect(messages []domain.ChatMessage, allowSearch bool) bool {
	if allowSearch || len(messages) > 2 {
		return false
	}
	for _, m := range messages {
		if m.Role != domain.SystemRole && m.Role != domain.UserRole {
			return false
		}
	}
	return true
}

// withSystemPrompt returns a new slice with the prompt prepended. Unless
// forced, nothing is added when the prompt is empty or a system message exists.
func withSystemPrompt(messages []domain.ChatMessage, prompt string, force bool) []domain.ChatMessage {
	if !force {
		if prompt == "" {
			return messages
		}
		for _, m := range messages {
			if m.Role == domain.SystemRole {
				return messages
			}
		}
	}
	out := make([]domain.ChatMessage, 0, len(messages)+1)
	out = append(out, domain.ChatMessage{Role: domain.SystemRole, Content: prompt})
	return append(out, messages...)
}

// runAgent loops until the model answers without tool calls. After
// maxToolCalls tool invocations the tools are withdrawn so the next reply
// is final.
func (r *Router) runAgent(ctx context.Context, client domain.Llm, transcript []domain.ChatMessage, tools []domain.Tool) (string, error) {
	byName := make(map[string]domain.Tool, len(tools))
	defs := make([]domain.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		def := t.Definition()
		byName[def.Name] = t
		defs = append(defs, def)
	}

	calls := 0
	for {
		reply, err := client.Chat(ctx, transcript, defs)
		if err != nil {
			return "", err
		}
		if len(reply.ToolCalls) == 0 || len(defs) == 0 {
			return reply.Content, nil
		}
		transcript = append(transcript, reply)

		for _, call := range reply.ToolCalls {
			calls++
			transcript = append(transcript, domain.ChatMessage{
				Role:       domain.ToolRole,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Content:    r.invoke(ctx, byName, call),
			})
		}
		if calls >= r.maxToolCalls {
			log.WithCtx(ctx).Info("Tool call budget reached", zap.Int("calls", calls))
			defs = nil
		}
	}
}

// invoke runs a tool call; failures are reported back to the model as text.
func (r *Router) invoke(ctx context.Context, tools map[string]domain.Tool, call domain.ToolCall) string {
	tool, ok := tools[call.Name]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}
	out, err := tool.Call(ctx, call.Args)
	if err != nil {
		log.WithCtx(ctx).Warn("Tool call failed", zap.String("tool", call.Name), zap.Error(err))
		return "error: " + err.Error()
	}
	return out
}
