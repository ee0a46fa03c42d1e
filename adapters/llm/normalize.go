package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

// roleContent is satisfied by any message-like value exposing a role and content.
type roleContent interface {
	GetRole() string
	GetContent() string
}

// NormalizeMessages converts a heterogeneous conversation into canonical
// chat messages. Elements may be domain.ChatMessage values, anything with
// GetRole/GetContent, or role/content maps as decoded from JSON. Unknown
// roles become user messages; elements with no role or content fail with
// *domain.TypeMismatchError.
func NormalizeMessages(ctx context.Context, items []any) ([]domain.ChatMessage, error) {
	out := make([]domain.ChatMessage, 0, len(items))
	for i, item := range items {
		role, content, ok := extract(item)
		if !ok {
			return nil, &domain.TypeMismatchError{Index: i, Got: fmt.Sprintf("%T", item)}
		}
		out = append(out, domain.ChatMessage{
			Role:    coerceRole(ctx, role),
			Content: content,
		})
	}
	return out, nil
}

func extract(item any) (role, content string, ok bool) {
	switch m := item.(type) {
	case *domain.ChatMessage:
		if m == nil {
			return "", "", false
		}
		return string(m.Role), m.Content, true
	case roleContent:
		return m.GetRole(), m.GetContent(), true
	case map[string]string:
		role, hasRole := m["role"]
		content, hasContent := m["content"]
		return role, content, hasRole && hasContent
	case map[string]any:
		role, hasRole := m["role"].(string)
		content, hasContent := m["content"].(string)
		return role, content, hasRole && hasContent
	default:
		return "", "", false
	}
}

func coerceRole(ctx context.Context, role string) domain.Role {
	switch r := domain.Role(role); r {
	case domain.SystemRole, domain.UserRole, domain.AssistantRole:
		return r
	default:
		log.WithCtx(ctx).Warn("Unknown message role, treating as user", zap.String("role", role))
		return domain.UserRole
	}
}
