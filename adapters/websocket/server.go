package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

const answerEventType = "answer"

// Server upgrades authenticated requests and pushes stored answers to the
// owning user's connections.
type Server struct {
	upgrader      websocket.Upgrader
	messageBroker domain.MessageBroker
	hub           *Hub
}

func NewServer(messageBroker domain.MessageBroker) *Server {
	return &Server{
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		messageBroker: messageBroker,
		hub:           NewHub(),
	}
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Listen relays AnswerTopic messages until ctx is done. It returns once the
// subscription is established.
func (s *Server) Listen(ctx context.Context) error {
	messages, err := s.messageBroker.Subscribe(ctx, domain.AnswerTopic, "")
	if err != nil {
		return err
	}
	log.WithCtx(ctx).Info("WebSocket server listening to answers")

	go func() {
		for msg := range messages {
			s.relay(ctx, msg)
		}
		log.WithCtx(ctx).Info("Answer listener stopped")
	}()
	return nil
}

func (s *Server) relay(ctx context.Context, msg domain.Message) {
	var answer domain.AnswerMessage
	if err := json.Unmarshal(msg.Payload, &answer); err != nil {
		log.WithCtx(ctx).Error("Failed to unmarshal answer message", zap.Error(err))
		return
	}

	data, err := json.Marshal(Event{
		Type:      answerEventType,
		EventID:   answer.EventID,
		ChatID:    answer.ChatID,
		Provider:  answer.Provider,
		Text:      answer.Text,
		Timestamp: answer.Timestamp,
	})
	if err != nil {
		log.WithCtx(ctx).Error("Failed to marshal websocket event", zap.Error(err))
		return
	}

	sent := s.hub.SendToUser(answer.UserID, data)
	log.WithCtx(ctx).Debug("Answer pushed",
		zap.String("event_id", answer.EventID),
		zap.Int64("user_id", answer.UserID),
		zap.Int("connections", sent))
}
