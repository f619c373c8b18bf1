// Package handlerwrapper adapts typed command handlers to watermill.
//
// A wrapped handler decodes the JSON payload into T, runs the handler inside a span and
// publishes every Result it returns. Payloads that cannot be decoded are acknowledged and
// dropped so a poison message is not redelivered forever; handler errors nack the message.
package handlerwrapper

import (
	"context"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/eventbus"
	"github.com/Black-And-White-Club/arena-ranking/pkg/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result is a message a handler wants published once it returns.
type Result struct {
	Topic   string
	Payload any
}

type messageIDKey struct{}

// MessageID returns the id of the message a wrapped handler is processing, or "" outside one.
// Redeliveries of a message carry the same id.
func MessageID(ctx context.Context) string {
	id, _ := ctx.Value(messageIDKey{}).(string)
	return id
}

// Deps are the collaborators shared by every wrapped handler.
type Deps struct {
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Metrics   metrics.OperationMetrics
	Publisher eventbus.Publisher
	Service   string
}

// WrapTyped turns handler into a watermill handler for payloads of type T.
func WrapTyped[T any](name string, deps Deps, handler func(ctx context.Context, payload *T) ([]Result, error)) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ctx := msg.Context()
		if id := msg.Metadata.Get(eventbus.CorrelationIDKey); id != "" {
			ctx = attr.WithCorrelationID(ctx, id)
		}
		ctx = context.WithValue(ctx, messageIDKey{}, msg.UUID)

		ctx, span := deps.Tracer.Start(ctx, name, trace.WithAttributes(
			attribute.String("message.id", msg.UUID),
		))
		defer span.End()

		start := time.Now()
		deps.Metrics.RecordOperationAttempt(ctx, name, deps.Service)
		defer func() {
			deps.Metrics.RecordOperationDuration(ctx, name, deps.Service, time.Since(start))
		}()

		payload, err := eventbus.Decode[T](msg)
		if err != nil {
			deps.Logger.ErrorContext(ctx, "Dropping undecodable message",
				attr.String("handler", name),
				attr.String("message_id", msg.UUID),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			deps.Metrics.RecordOperationFailure(ctx, name, deps.Service)
			span.SetStatus(codes.Error, "decode failed")
			return nil
		}

		out, err := handler(ctx, payload)
		if err != nil {
			deps.Logger.ErrorContext(ctx, "Handler failed",
				attr.String("handler", name),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			deps.Metrics.RecordOperationFailure(ctx, name, deps.Service)
			span.RecordError(err)
			return err
		}

		for _, r := range out {
			if err := deps.Publisher.Publish(ctx, r.Topic, r.Payload); err != nil {
				deps.Metrics.RecordOperationFailure(ctx, name, deps.Service)
				span.RecordError(err)
				return err
			}
		}
		deps.Metrics.RecordOperationSuccess(ctx, name, deps.Service)
		return nil
	}
}
