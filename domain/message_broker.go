package domain

import (
	"context"
	"time"
)

// MessageBroker defines the interface for message broker operations
type MessageBroker interface {
	// Publish sends a message to a specific topic/channel with a routing key
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens for messages on a specific topic/channel and routing key
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan Message, error)

	// Close closes the message broker connection
	Close() error
}

// Message represents a message received from the broker
type Message struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// AnswerTopic carries assistant answers produced for stored chats.
const AnswerTopic = "chat.answers"

// AnswerMessage is published on AnswerTopic once an answer has been stored.
type AnswerMessage struct {
	EventID   string    `json:"event_id"`
	UserID    int64     `json:"user_id"`
	ChatID    int64     `json:"chat_id"`
	Provider  string    `json:"provider"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
