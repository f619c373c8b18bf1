// Package eventbus wraps watermill publishers and subscribers behind one small interface.
//
// Production uses NATS JetStream (watermill-nats). When no NATS URL is configured the bus falls
// back to an in-process gochannel pub/sub, which is also what tests use.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
)

// CorrelationIDKey is the metadata key carrying the originating request's correlation ID.
const CorrelationIDKey = "correlation_id"

// Publisher publishes JSON payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// EventBus is a Publisher that also exposes the underlying watermill pub/sub for routers.
type EventBus interface {
	Publisher
	WatermillPublisher() message.Publisher
	WatermillSubscriber() message.Subscriber
	Close() error
}

type eventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
	closers    []func() error
}

// NewNATSEventBus connects to NATS JetStream at natsURL.
func NewNATSEventBus(natsURL, durablePrefix string, logger *slog.Logger) (EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := &wmnats.NATSMarshaler{}
	natsOptions := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(2 * time.Second),
	}
	jsConfig := wmnats.JetStreamConfig{
		Disabled:      false,
		AutoProvision: true,
		DurablePrefix: durablePrefix,
	}

	publisher, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:               natsURL,
		NatsOptions:       natsOptions,
		Marshaler:         marshaler,
		JetStream:         jsConfig,
		SubjectCalculator: wmnats.DefaultSubjectCalculator,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:               natsURL,
		QueueGroupPrefix:  durablePrefix,
		SubscribersCount:  1,
		CloseTimeout:      10 * time.Second,
		AckWaitTimeout:    30 * time.Second,
		NatsOptions:       natsOptions,
		Unmarshaler:       marshaler,
		JetStream:         jsConfig,
		SubjectCalculator: wmnats.DefaultSubjectCalculator,
	}, wmLogger)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create NATS subscriber: %w", err)
	}

	logger.Info("Connected event bus to NATS", attr.String("url", natsURL))
	return &eventBus{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger,
		closers:    []func() error{subscriber.Close, publisher.Close},
	}, nil
}

// NewInMemoryEventBus returns a bus backed by a watermill gochannel.
func NewInMemoryEventBus(logger *slog.Logger) EventBus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger))
	return &eventBus{
		publisher:  pubSub,
		subscriber: pubSub,
		logger:     logger,
		closers:    []func() error{pubSub.Close},
	}
}

// Publish marshals payload as JSON and publishes it on topic.
func (b *eventBus) Publish(ctx context.Context, topic string, payload any) error {
	msg, err := NewMessage(ctx, payload)
	if err != nil {
		return err
	}
	b.logger.DebugContext(ctx, "Publishing message",
		attr.String("topic", topic),
		attr.String("message_id", msg.UUID),
	)
	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *eventBus) WatermillPublisher() message.Publisher { return b.publisher }

func (b *eventBus) WatermillSubscriber() message.Subscriber { return b.subscriber }

func (b *eventBus) Close() error {
	var firstErr error
	for _, c := range b.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewMessage builds a watermill message with a JSON payload and the context's correlation ID.
func NewMessage(ctx context.Context, payload any) (*message.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	if id := attr.CorrelationID(ctx); id != "" {
		msg.Metadata.Set(CorrelationIDKey, id)
	}
	msg.SetContext(ctx)
	return msg, nil
}

// Decode unmarshals a message payload into T.
func Decode[T any](msg *message.Message) (*T, error) {
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &v, nil
}
