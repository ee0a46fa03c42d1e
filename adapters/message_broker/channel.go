package message_broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

const subscriberBuffer = 100

// ChannelMessageBroker implements domain.MessageBroker in process. Every
// subscriber of a topic/routing key gets its own copy of each message.
type ChannelMessageBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan domain.Message]struct{}
	done   chan struct{}
	closed bool
}

func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		subs: make(map[string]map[chan domain.Message]struct{}),
		done: make(chan struct{}),
	}
}

func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

// Publish delivers message to current subscribers. Subscribers whose buffer
// is full miss the message.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("message broker is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := domain.Message{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	delivered := 0
	for ch := range b.subs[makeKey(topic, routingKey)] {
		select {
		case ch <- msg:
			delivered++
		default:
			log.WithCtx(ctx).Warn("Subscriber buffer full, dropping message",
				zap.String("topic", topic),
				zap.String("routingKey", routingKey))
		}
	}

	log.WithCtx(ctx).Debug("Message published",
		zap.String("topic", topic),
		zap.String("routingKey", routingKey),
		zap.Int("subscribers", delivered),
		zap.Int("payload_size", len(message)))
	return nil
}

// Subscribe returns a channel of messages for topic/routingKey. The channel
// is closed when ctx is done or the broker closes.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}

	key := makeKey(topic, routingKey)
	ch := make(chan domain.Message, subscriberBuffer)
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan domain.Message]struct{})
	}
	b.subs[key][ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(key, ch)
		case <-b.done:
		}
	}()

	log.WithCtx(ctx).Info("Subscribed to topic", zap.String("topic", topic), zap.String("routingKey", routingKey))
	return ch, nil
}

func (b *ChannelMessageBroker) unsubscribe(key string, ch chan domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[key][ch]; !ok {
		return
	}
	delete(b.subs[key], ch)
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
	close(ch)
}

// Close closes the broker and every subscriber channel.
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)

	for key, chans := range b.subs {
		for ch := range chans {
			close(ch)
		}
		delete(b.subs, key)
	}

	log.WithCtx(context.Background()).Info("Message broker closed")
	return nil
}

// SubscriberCount returns the number of live subscriptions.
func (b *ChannelMessageBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, chans := range b.subs {
		n += len(chans)
	}
	return n
}
