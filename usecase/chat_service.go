package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

const (
	defaultChatTitle = "New Chat"
	titleMaxWords    = 10

	titleInstruction = "You are a title generation assistant. Summarize the following user input into a concise, 5-10 word title. Do not include quotes or special characters. Respond only with the title."
	titleSystem      = "Generate a concise chat title."
)

// AskInput selects how a prompt is answered.
type AskInput struct {
	Model        string          `json:"model_name"`
	Provider     domain.Provider `json:"model_provider"`
	Message      string          `json:"message"`
	AllowSearch  bool            `json:"allow_search"`
	SystemPrompt string          `json:"system_prompt"`
}

type ChatOptions struct {
	// AllowsModel reports whether callers may select a model. Nil allows none.
	AllowsModel         func(model string) bool
	TitleModel          domain.ProviderSpec
	DefaultSystemPrompt string
}

// SaveResult describes the chat a message landed in.
type SaveResult struct {
	Msg    string `json:"msg"`
	ChatID int64  `json:"chat_id"`
	Title  string `json:"title"`
}

// ChatSummary is one entry of a user's history.
type ChatSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Messages  string    `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

type AskResult struct {
	ChatID   int64  `json:"chat_id"`
	EventID  string `json:"event_id"`
	Response string `json:"response"`
}

// ChatService owns stored conversations and answers prompts through the
// Router or Fusion.
type ChatService struct {
	chats  domain.ChatStore
	router *Router
	fusion *Fusion
	broker domain.MessageBroker
	opts   ChatOptions
	now    func() time.Time
}

func NewChatService(chats domain.ChatStore, router *Router, fusion *Fusion, broker domain.MessageBroker, opts ChatOptions) *ChatService {
	return &ChatService{
		chats:  chats,
		router: router,
		fusion: fusion,
		broker: broker,
		opts:   opts,
		now:    time.Now,
	}
}

// Answer runs one stateless exchange. Model validation happens here, at
// the boundary; the Router itself accepts any model name.
func (s *ChatService) Answer(ctx context.Context, in AskInput, messages []any) (domain.Response, error) {
	if in.Provider == domain.FusionProvider {
		return s.fusion.Fuse(ctx, FuseInput{
			Messages:     messages,
			AllowSearch:  in.AllowSearch,
			SystemPrompt: in.SystemPrompt,
		}), nil
	}
	if s.opts.AllowsModel == nil || !s.opts.AllowsModel(in.Model) {
		return domain.Response{}, domain.Invalid("Model not supported")
	}

	resp, err := s.router.Respond(ctx, RespondInput{
		Model:        in.Model,
		Provider:     in.Provider,
		Messages:     messages,
		AllowSearch:  in.AllowSearch,
		SystemPrompt: in.SystemPrompt,
	})
	var (
		cfgErr  *domain.ConfigurationError
		typeErr *domain.TypeMismatchError
	)
	if errors.As(err, &cfgErr) || errors.As(err, &typeErr) {
		return domain.Response{}, domain.Invalid(err.Error())
	}
	return resp, err
}

// SaveMessage appends a user message to chatID, or to a new chat with a
// generated title when chatID is nil.
func (s *ChatService) SaveMessage(ctx context.Context, user *domain.User, chatID *int64, message string) (SaveResult, error) {
	if chatID == nil {
		now := s.now().UTC()
		chat := &domain.Chat{UserID: user.ID, Title: s.GenerateTitle(ctx, message), Timestamp: now}
		first := &domain.StoredMessage{Role: domain.UserRole, Content: message, CreatedAt: now}
		if err := s.chats.StartChat(ctx, chat, first); err != nil {
			return SaveResult{}, err
		}
		return SaveResult{Msg: "New chat created and message saved", ChatID: chat.ID, Title: chat.Title}, nil
	}

	chat, err := s.ownedChat(ctx, user, *chatID)
	if err != nil {
		return SaveResult{}, err
	}
	if err := s.append(ctx, chat.ID, domain.UserRole, message); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Msg: "Message appended to chat", ChatID: chat.ID, Title: chat.Title}, nil
}

// GenerateTitle asks the title model for a short title. Any failure yields
// the default title.
func (s *ChatService) GenerateTitle(ctx context.Context, firstMessage string) string {
	clean := strings.TrimSpace(strings.ReplaceAll(firstMessage, "User:", ""))
	if clean == "" {
		return defaultChatTitle
	}

	res, err := s.router.Complete(ctx, RespondInput{
		Model:    s.opts.TitleModel.Model,
		Provider: s.opts.TitleModel.Provider,
		Messages: []any{
			domain.ChatMessage{Role: domain.SystemRole, Content: titleInstruction},
			domain.ChatMessage{Role: domain.UserRole, Content: clean},
		},
		SystemPrompt: titleSystem,
	})
	if err != nil || res.Failed() {
		log.WithCtx(ctx).Warn("Title generation failed", zap.Error(err))
		return defaultChatTitle
	}

	title := strings.TrimSpace(res.Text)
	if title == "" {
		return defaultChatTitle
	}
	if words := strings.Fields(title); len(words) > titleMaxWords {
		title = strings.Join(words[:titleMaxWords], " ") + "..."
	}
	return title
}

// History lists the user's chats with their text joined by newlines.
func (s *ChatService) History(ctx context.Context, user *domain.User) ([]ChatSummary, error) {
	chats, err := s.chats.ChatsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		msgs, err := s.chats.Messages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		contents := make([]string, len(msgs))
		for i, m := range msgs {
			contents[i] = m.Content
		}
		out = append(out, ChatSummary{
			ID:        c.ID,
			Title:     c.Title,
			Messages:  strings.Join(contents, "\n"),
			Timestamp: c.Timestamp,
		})
	}
	return out, nil
}

func (s *ChatService) Delete(ctx context.Context, user *domain.User, chatID int64) error {
	err := s.chats.DeleteChat(ctx, user.ID, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound("Chat not found")
	}
	return err
}

func (s *ChatService) Rename(ctx context.Context, user *domain.User, chatID int64, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", domain.Invalid("Title must not be empty.")
	}
	err := s.chats.RenameChat(ctx, user.ID, chatID, title)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.NotFound("Chat not found")
	}
	return title, err
}

// Ask answers in.Message in the context of a stored chat, stores both turns
// and publishes the answer on domain.AnswerTopic.
func (s *ChatService) Ask(ctx context.Context, user *domain.User, chatID int64, in AskInput) (AskResult, error) {
	ctx = log.ContextWith(ctx, log.ChatIDKey, chatID)
	if strings.TrimSpace(in.Message) == "" {
		return AskResult{}, domain.Invalid("Message must not be empty.")
	}
	if in.SystemPrompt == "" {
		in.SystemPrompt = s.opts.DefaultSystemPrompt
	}

	chat, err := s.ownedChat(ctx, user, chatID)
	if err != nil {
		return AskResult{}, err
	}
	stored, err := s.chats.Messages(ctx, chat.ID)
	if err != nil {
		return AskResult{}, err
	}

	conversation := make([]any, 0, len(stored)+1)
	for _, m := range stored {
		conversation = append(conversation, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	conversation = append(conversation, domain.ChatMessage{Role: domain.UserRole, Content: in.Message})

	resp, err := s.Answer(ctx, in, conversation)
	if err != nil {
		return AskResult{}, err
	}

	if err := s.append(ctx, chat.ID, domain.UserRole, in.Message); err != nil {
		return AskResult{}, err
	}
	if err := s.append(ctx, chat.ID, domain.AssistantRole, resp.Response); err != nil {
		return AskResult{}, err
	}

	result := AskResult{ChatID: chat.ID, EventID: uuid.NewString(), Response: resp.Response}
	s.publish(ctx, user, in, result)
	return result, nil
}

// LastAnswer returns the latest assistant message of a chat.
func (s *ChatService) LastAnswer(ctx context.Context, user *domain.User, chatID int64) (string, error) {
	chat, err := s.ownedChat(ctx, user, chatID)
	if err != nil {
		return "", err
	}
	msgs, err := s.chats.Messages(ctx, chat.ID)
	if err != nil {
		return "", err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.AssistantRole && msgs[i].Content != "" {
			return msgs[i].Content, nil
		}
	}
	return "", domain.NotFound("No answer to read out.")
}

func (s *ChatService) publish(ctx context.Context, user *domain.User, in AskInput, result AskResult) {
	payload, err := json.Marshal(domain.AnswerMessage{
		EventID:   result.EventID,
		UserID:    user.ID,
		ChatID:    result.ChatID,
		Provider:  string(in.Provider),
		Text:      result.Response,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		log.WithCtx(ctx).Error("Failed to marshal answer message", zap.Error(err))
		return
	}
	if err := s.broker.Publish(ctx, domain.AnswerTopic, "", payload); err != nil {
		log.WithCtx(ctx).Error("Failed to publish answer", zap.Error(err))
	}
}

func (s *ChatService) ownedChat(ctx context.Context, user *domain.User, chatID int64) (*domain.Chat, error) {
	chat, err := s.chats.ChatByID(ctx, user.ID, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("Chat not found")
	}
	return chat, err
}

func (s *ChatService) append(ctx context.Context, chatID int64, role domain.Role, content string) error {
	return s.chats.AppendMessage(ctx, &domain.StoredMessage{
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	})
}
