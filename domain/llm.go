package domain

import "context"

// Llm abstracts any chat/LLM provider.
type Llm interface {
	// Chat sends the conversation and returns the model's next assistant
	// message. With no tools it is a plain completion; with tools the reply
	// may carry ToolCalls instead of (or alongside) text.
	Chat(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (ChatMessage, error)
}

// ProviderAdapter maps a provider/model pair to a callable Llm and
// normalizes caller-supplied conversations into ChatMessages.
type ProviderAdapter interface {
	// Resolve fails with *ConfigurationError for unsupported providers.
	Resolve(spec ProviderSpec) (Llm, error)
	// Normalize fails with *TypeMismatchError for elements without role/content.
	Normalize(ctx context.Context, items []any) ([]ChatMessage, error)
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Agent loop bookkeeping, never persisted.
	ToolCalls  []ToolCall `json:"-"`
	ToolCallID string     `json:"-"`
	ToolName   string     `json:"-"`
}

func (m ChatMessage) GetRole() string    { return string(m.Role) }
func (m ChatMessage) GetContent() string { return m.Content }

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"

	// ToolRole only appears inside the agent loop transcript.
	ToolRole Role = "tool"
)

// Provider names an LLM backend.
type Provider string

const (
	ProviderGroq       Provider = "Groq"
	ProviderTogetherAI Provider = "TogetherAI"
	ProviderGemini     Provider = "Gemini"
)

// FusionProvider is the pseudo provider that selects fusion mode at the API boundary.
const FusionProvider = "White-Fusion"

type ProviderSpec struct {
	Provider Provider `json:"provider" yaml:"provider"`
	Model    string   `json:"model" yaml:"model"`
}

// ToolDefinition describes a callable tool to a model.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON schema object.
	Parameters map[string]any
}

type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Tool is a capability the agent loop can invoke on behalf of a model.
type Tool interface {
	Definition() ToolDefinition
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Result is the outcome of one routed completion before it is collapsed to text.
type Result struct {
	Text    string
	Failure *ProviderFailure
}

// Reply returns the text shown to the user, substituting the failure sentinel.
func (r Result) Reply() string {
	if r.Failure != nil {
		return r.Failure.Error()
	}
	return r.Text
}

func (r Result) Failed() bool { return r.Failure != nil }

// Response is what crosses the boundary to the web layer.
type Response struct {
	Response string `json:"response"`
}
