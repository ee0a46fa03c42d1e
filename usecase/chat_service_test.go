package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/white-fusion/adapters/message_broker"
	"github.com/satriahrh/white-fusion/config"
	"github.com/satriahrh/white-fusion/domain"
)

var testChatOptions = ChatOptions{
	AllowsModel:         config.Catalog{AllowedModels: []string{"llama-3.3-70b-versatile", "gemini-2.0-flash"}}.Allows,
	TitleModel:          domain.ProviderSpec{Provider: domain.ProviderGemini, Model: "gemini-2.0-flash"},
	DefaultSystemPrompt: "Act as AI chatbot who is smart and friendly",
}

type chatFixture struct {
	svc       *ChatService
	store     *memStore
	providers *fakeProviders
	broker    *message_broker.ChannelMessageBroker
	user      *domain.User
}

func newChatFixture(t *testing.T, fns map[domain.Provider]chatFunc) *chatFixture {
	t.Helper()
	store := newMemStore()
	providers := newFakeProviders(fns)
	router := NewRouter(providers, &fakeSearcher{})
	fusion := NewFusion(router, testMembers, testSynthesizer, true)
	broker := message_broker.NewChannelMessageBroker()
	t.Cleanup(func() { broker.Close() })

	user := &domain.User{Username: "a@example.com", Email: "a@example.com"}
	require.NoError(t, store.CreateUser(context.Background(), user))

	return &chatFixture{
		svc:       NewChatService(store, router, fusion, broker, testChatOptions),
		store:     store,
		providers: providers,
		broker:    broker,
		user:      user,
	}
}

func TestChat_AnswerRejectsUnknownModel(t *testing.T) {
	f := newChatFixture(t, map[domain.Provider]chatFunc{domain.ProviderGroq: answer("x")})

	_, err := f.svc.Answer(context.Background(), AskInput{Model: "gpt-4", Provider: domain.ProviderGroq}, []any{userMsg("Hi")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.EqualError(t, err, "Model not supported")
	assert.Equal(t, 0, f.providers.llms[domain.ProviderGroq].callCount())
}

func TestChat_AnswerWithoutAllowListRejectsEveryModel(t *testing.T) {
	providers := newFakeProviders(map[domain.Provider]chatFunc{domain.ProviderGroq: answer("x")})
	router := NewRouter(providers, nil)
	svc := NewChatService(newMemStore(), router, nil, nil, ChatOptions{})

	_, err := svc.Answer(context.Background(), AskInput{Model: "llama-3.3-70b-versatile", Provider: domain.ProviderGroq}, []any{userMsg("Hi")})
	assert.EqualError(t, err, "Model not supported")
	assert.Equal(t, 0, providers.llms[domain.ProviderGroq].callCount())
}

func TestChat_AnswerSingleProvider(t *testing.T) {
	f := newChatFixture(t, map[domain.Provider]chatFunc{domain.ProviderGroq: answer("hello")})

	resp, err := f.svc.Answer(context.Background(), AskInput{Model: "llama-3.3-70b-versatile", Provider: domain.ProviderGroq}, []any{userMsg("Hi")})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Response)
}

func TestChat_AnswerHardErrorsAreInvalidInput(t *testing.T) {
	f := newChatFixture(t, map[domain.Provider]chatFunc{domain.ProviderGroq: answer("x")})

	_, err := f.svc.Answer(context.Background(), AskInput{Model: "llama-3.3-70b-versatile", Provider: "OpenRouter"}, []any{userMsg("Hi")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.EqualError(t, err, "unsupported provider: OpenRouter")

	_, err = f.svc.Answer(context.Background(), AskInput{Model: "llama-3.3-70b-versatile", Provider: domain.ProviderGroq}, []any{"Hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChat_AnswerFusionSkipsAllowList(t *testing.T) {
	f := newChatFixture(t, map[domain.Provider]chatFunc{
		domain.ProviderGroq:       answer("A"),
		domain.ProviderTogetherAI: answer("B"),
		domain.ProviderGemini:     geminiMember(answer("C"), answer("fused")),
	})

	resp, err := f.svc.Answer(context.Background(), AskInput{Model: "anything", Provider: domain.FusionProvider}, []any{userMsg("Hi")})
	require.NoError(t, err)
	assert.Equal(t, "fused", resp.Response)
}

func TestChat_SaveMessageCreatesTitledChat(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, map[domain.Provider]chatFunc{domain.ProviderGemini: answer("  Planning a Trip to Bali  ")})

	res, err := f.svc.SaveMessage(ctx, f.user, nil, "User: I want to plan a trip to Bali")
	require.NoError(t, err)
	assert.Equal(t, "New chat created and message saved", res.Msg)
	assert.Equal(t, "Planning a Trip to Bali", res.Title)

	call := f.providers.llms[domain.ProviderGemini].calls[0]
	require.Len(t, call, 2)
	assert.Equal(t, domain.SystemRole, call[0].Role)
	assert.Contains(t, call[0].Content, "title generation assistant")
	assert.Equal(t, "I want to plan a trip to Bali", call[1].Content)

	res2, err := f.svc.SaveMessage(ctx, f.user, &res.ChatID, "second")
	require.NoError(t, err)
	assert.Equal(t, "Message appended to chat", res2.Msg)
	assert.Equal(t, res.ChatID, res2.ChatID)

	msgs, err := f.store.Messages(ctx, res.ChatID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestChat_GenerateTitle(t *testing.T) {
	ctx := context.Background()

	long := newChatFixture(t, map[domain.Provider]chatFunc{
		domain.ProviderGemini: answer("one two three four five six seven eight nine ten eleven twelve"),
	})
	assert.Equal(t, "one two three four five six seven eight nine ten...", long.svc.GenerateTitle(ctx, "hi"))

	failing := newChatFixture(t, map[domain.Provider]chatFunc{domain.ProviderGemini: failWith(errors.New("quota"))})
	assert.Equal(t, "New Chat", failing.svc.GenerateTitle(ctx, "hi"))

	empty := newChatFixture(t, map[domain.Provider]chatFunc{domain.ProviderGemini: answer("   ")})
	assert.Equal(t, "New Chat", empty.svc.GenerateTitle(ctx, "hi"))

	assert.Equal(t, "New Chat", empty.svc.GenerateTitle(ctx, "User:  "))
	assert.Equal(t, 1, empty.providers.llms[domain.ProviderGemini].callCount())
}

func TestChat_SaveMessageForeignChat(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, map[domain.Provider]chatFunc{domain.ProviderGemini: answer("t")})

	res, err := f.svc.SaveMessage(ctx, f.user, nil, "hi")
	require.NoError(t, err)

	intruder := &domain.User{ID: f.user.ID + 100}
	_, err = f.svc.SaveMessage(ctx, intruder, &res.ChatID, "hello")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualError(t, err, "Chat not found")
}

func TestChat_HistoryRenameDelete(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, map[domain.Provider]chatFunc{domain.ProviderGemini: answer("Title")})

	res, err := f.svc.SaveMessage(ctx, f.user, nil, "first")
	require.NoError(t, err)
	_, err = f.svc.SaveMessage(ctx, f.user, &res.ChatID, "second")
	require.NoError(t, err)

	history, err := f.svc.History(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Title", history[0].Title)
	assert.Equal(t, "first\nsecond", history[0].Messages)

	title, err := f.svc.Rename(ctx, f.user, res.ChatID, "  Renamed ")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", title)

	_, err = f.svc.Rename(ctx, f.user, res.ChatID, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.Rename(ctx, f.user, 999, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, f.user, res.ChatID))
	assert.ErrorIs(t, f.svc.Delete(ctx, f.user, res.ChatID), domain.ErrNotFound)

	history, err = f.svc.History(ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChat_AskStoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, map[domain.Provider]chatFunc{
		domain.ProviderGemini: answer("Title"),
		domain.ProviderGroq: func(_ context.Context, msgs []domain.ChatMessage, _ []domain.ToolDefinition) (domain.ChatMessage, error) {
			parts := make([]string, 0, len(msgs))
			for _, m := range msgs {
				parts = append(parts, string(m.Role)+"="+m.Content)
			}
			return domain.ChatMessage{Role: domain.AssistantRole, Content: strings.Join(parts, "|")}, nil
		},
	})

	answers, err := f.broker.Subscribe(ctx, domain.AnswerTopic, "")
	require.NoError(t, err)

	saved, err := f.svc.SaveMessage(ctx, f.user, nil, "Hi")
	require.NoError(t, err)

	res, err := f.svc.Ask(ctx, f.user, saved.ChatID, AskInput{
		Model:    "llama-3.3-70b-versatile",
		Provider: domain.ProviderGroq,
		Message:  "How are you?",
	})
	require.NoError(t, err)
	assert.Equal(t, "system=Act as AI chatbot who is smart and friendly|user=Hi|user=How are you?", res.Response)
	assert.NotEmpty(t, res.EventID)

	msgs, err := f.store.Messages(ctx, saved.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, domain.UserRole, msgs[1].Role)
	assert.Equal(t, domain.AssistantRole, msgs[2].Role)
	assert.Equal(t, res.Response, msgs[2].Content)

	select {
	case msg := <-answers:
		var published domain.AnswerMessage
		require.NoError(t, json.Unmarshal(msg.Payload, &published))
		assert.Equal(t, res.EventID, published.EventID)
		assert.Equal(t, f.user.ID, published.UserID)
		assert.Equal(t, saved.ChatID, published.ChatID)
		assert.Equal(t, "Groq", published.Provider)
		assert.Equal(t, res.Response, published.Text)
	case <-time.After(time.Second):
		t.Fatal("answer was not published")
	}

	last, err := f.svc.LastAnswer(ctx, f.user, saved.ChatID)
	require.NoError(t, err)
	assert.Equal(t, res.Response, last)
}

func TestChat_AskProviderFailureIsStoredAsText(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, map[domain.Provider]chatFunc{
		domain.ProviderGemini: answer("Title"),
		domain.ProviderGroq:   failWith(errors.New("rate limited")),
	})

	saved, err := f.svc.SaveMessage(ctx, f.user, nil, "Hi")
	require.NoError(t, err)

	res, err := f.svc.Ask(ctx, f.user, saved.ChatID, AskInput{
		Model:    "llama-3.3-70b-versatile",
		Provider: domain.ProviderGroq,
		Message:  "again",
	})
	require.NoError(t, err)
	assert.Equal(t, "Groq failed: rate limited", res.Response)
}

func TestChat_AskValidation(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, map[domain.Provider]chatFunc{domain.ProviderGemini: answer("Title")})

	saved, err := f.svc.SaveMessage(ctx, f.user, nil, "Hi")
	require.NoError(t, err)

	_, err = f.svc.Ask(ctx, f.user, saved.ChatID, AskInput{Model: "gemini-2.0-flash", Provider: domain.ProviderGemini, Message: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Ask(ctx, f.user, 999, AskInput{Model: "gemini-2.0-flash", Provider: domain.ProviderGemini, Message: "q"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Ask(ctx, f.user, saved.ChatID, AskInput{Model: "gpt-4", Provider: domain.ProviderGroq, Message: "q"})
	assert.EqualError(t, err, "Model not supported")

	msgs, err := f.store.Messages(ctx, saved.ChatID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = f.svc.LastAnswer(ctx, f.user, saved.ChatID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
