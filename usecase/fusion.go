package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

const (
	fusionHistoryWindow = 4
	memberAnswerLimit   = 1200
	transcriptLimit     = 1500
	fusionPromptLimit   = 4000

	NoFusionResponse = "⚠ No fusion response."
)

// Completer is the part of the Router fusion depends on.
type Completer interface {
	Complete(ctx context.Context, in RespondInput) (domain.Result, error)
	Normalize(ctx context.Context, items []any) ([]domain.ChatMessage, error)
}

// FusionMember is one provider consulted in fusion mode.
type FusionMember struct {
	Label string
	Spec  domain.ProviderSpec
}

type FuseInput struct {
	Messages     []any
	AllowSearch  bool
	SystemPrompt string
}

// Fusion asks every member independently and merges their answers with
// one more call to the synthesizer model.
type Fusion struct {
	router      Completer
	members     []FusionMember
	synthesizer domain.ProviderSpec
	parallel    bool
}

func NewFusion(router Completer, members []FusionMember, synthesizer domain.ProviderSpec, parallel bool) *Fusion {
	return &Fusion{
		router:      router,
		members:     members,
		synthesizer: synthesizer,
		parallel:    parallel,
	}
}

// Fuse never fails: every error ends up as displayable text.
func (f *Fusion) Fuse(ctx context.Context, in FuseInput) (resp domain.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = f.fusionError(ctx, fmt.Errorf("%v", rec))
		}
	}()

	text, err := f.fuse(ctx, in)
	if err != nil {
		return f.fusionError(ctx, err)
	}
	return domain.Response{Response: text}
}

func (f *Fusion) fusionError(ctx context.Context, err error) domain.Response {
	log.WithCtx(ctx).Error("Fusion failed", zap.Error(err))
	return domain.Response{Response: (&domain.FusionFailure{Err: err}).Error()}
}

func (f *Fusion) fuse(ctx context.Context, in FuseInput) (string, error) {
	trimmed := in.Messages
	if len(trimmed) > fusionHistoryWindow {
		trimmed = trimmed[len(trimmed)-fusionHistoryWindow:]
	}
	history, err := f.router.Normalize(ctx, trimmed)
	if err != nil {
		return "", err
	}

	answers := f.askMembers(ctx, asItems(history), in)
	prompt := BuildFusionPrompt(history, f.members, answers)
	log.WithCtx(ctx).Info("Fusion prompt assembled", zap.Int("length", len([]rune(prompt))))

	res, err := f.router.Complete(ctx, RespondInput{
		Model:        f.synthesizer.Model,
		Provider:     f.synthesizer.Provider,
		Messages:     []any{domain.ChatMessage{Role: domain.UserRole, Content: prompt}},
		AllowSearch:  false,
		SystemPrompt: in.SystemPrompt,
	})
	if err != nil {
		return "", err
	}
	if text := res.Reply(); text != "" {
		return text, nil
	}
	return NoFusionResponse, nil
}

// askMembers returns one answer per member in member order, whatever order
// the calls finish in.
func (f *Fusion) askMembers(ctx context.Context, items []any, in FuseInput) []string {
	answers := make([]string, len(f.members))
	if !f.parallel {
		for i, m := range f.members {
			answers[i] = f.ask(ctx, m, items, in)
		}
		return answers
	}

	var g errgroup.Group
	for i, m := range f.members {
		g.Go(func() error {
			answers[i] = f.ask(ctx, m, items, in)
			return nil
		})
	}
	_ = g.Wait()
	return answers
}

func (f *Fusion) ask(ctx context.Context, m FusionMember, items []any, in FuseInput) (answer string) {
	defer func() {
		if rec := recover(); rec != nil {
			answer = fmt.Sprintf("%s failed: %v", m.Label, rec)
		}
	}()

	res, err := f.router.Complete(ctx, RespondInput{
		Model:        m.Spec.Model,
		Provider:     m.Spec.Provider,
		Messages:     items,
		AllowSearch:  in.AllowSearch,
		SystemPrompt: in.SystemPrompt,
	})
	if err != nil {
		return fmt.Sprintf("%s failed: %v", m.Label, err)
	}
	text := res.Reply()
	if text == "" {
		return m.Label + " returned no answer."
	}
	return truncate(text, memberAnswerLimit)
}

// BuildFusionPrompt renders the synthesis prompt; answers are matched to
// members by index.
func BuildFusionPrompt(history []domain.ChatMessage, members []FusionMember, answers []string) string {
	var b strings.Builder
	b.WriteString("You are a smart AI that combines responses from multiple AI models into one accurate, helpful answer.\n\n")
	b.WriteString("Conversation so far:\n")
	b.WriteString(RenderTranscript(history))
	b.WriteString("\n\n")
	for i, m := range members {
		fmt.Fprintf(&b, "%s said:\n%s\n\n", m.Label, answers[i])
	}
	b.WriteString("Now, write the best combined response.")

	return truncate(strings.TrimSpace(b.String()), fusionPromptLimit)
}

// RenderTranscript flattens messages to "Role: content" lines, oldest first.
func RenderTranscript(history []domain.ChatMessage) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, capitalize(string(m.Role))+": "+m.Content)
	}
	return truncate(strings.Join(lines, "\n"), transcriptLimit)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// truncate cuts s to at most maxChars code points.
func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}

func asItems(messages []domain.ChatMessage) []any {
	items := make([]any, len(messages))
	for i, m := range messages {
		items[i] = m
	}
	return items
}
