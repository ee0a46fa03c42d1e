package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/satriahrh/white-fusion/domain"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// Groq and TogetherAI are both served through it.
type OpenAIClient struct {
	client   openai.Client
	provider domain.Provider
	model    string
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	apiKey     string
	baseURL    string
	maxRetries int
}

func WithAPIKey(key string) OpenAIOption {
	return func(c *openaiConfig) { c.apiKey = key }
}

func WithBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) { c.baseURL = url }
}

// WithMaxRetries overrides the SDK retry count (default 2).
func WithMaxRetries(n int) OpenAIOption {
	return func(c *openaiConfig) { c.maxRetries = n }
}

func NewOpenAICompatible(provider domain.Provider, model string, opts ...OpenAIOption) *OpenAIClient {
	cfg := openaiConfig{maxRetries: -1}
	for _, o := range opts {
		o(&cfg)
	}

	var clientOpts []option.RequestOption
	if cfg.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.maxRetries >= 0 {
		clientOpts = append(clientOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &OpenAIClient{
		client:   openai.NewClient(clientOpts...),
		provider: provider,
		model:    model,
	}
}

// Chat implements domain.Llm.
func (c *OpenAIClient) Chat(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatMessage, error) {
	msgs, err := toOpenAIMessages(messages)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: msgs,
	}
	if len(tools) > 0 {
		params.Tools = toOpenAITools(tools)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%s chat completion: %w", c.provider, err)
	}
	if len(completion.Choices) == 0 {
		return domain.ChatMessage{}, fmt.Errorf("%s returned no choices", c.provider)
	}

	msg := completion.Choices[0].Message
	reply := domain.ChatMessage{
		Role:    domain.AssistantRole,
		Content: msg.Content,
	}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return domain.ChatMessage{}, fmt.Errorf("decoding %s tool arguments: %w", tc.Function.Name, err)
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, domain.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return reply, nil
}

// toOpenAIMessages converts canonical messages to the SDK union type.
func toOpenAIMessages(msgs []domain.ChatMessage) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.SystemRole:
			if m.Content == "" {
				continue
			}
			out = append(out, openai.SystemMessage(m.Content))
		case domain.AssistantRole:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				args, err := json.Marshal(tc.Args)
				if err != nil {
					return nil, fmt.Errorf("encoding %s tool arguments: %w", tc.Name, err)
				}
				calls = append(calls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(args),
						},
					},
				})
			}
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case domain.ToolRole:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out, nil
}

func toOpenAITools(tools []domain.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}
	return out
}
