package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/presencewatch/presencewatch/server/internal/presence"
)

const tracerName = "github.com/presencewatch/presencewatch/server/internal/notify"

// Func adapts an ordinary function to presence.Notifier.
type Func func(ctx context.Context, topic string, t presence.Transition) error

// Publish calls f.
func (f Func) Publish(ctx context.Context, topic string, t presence.Transition) error {
	return f(ctx, topic, t)
}

// Multi publishes to every notifier in order. All notifiers are attempted
// even when an earlier one fails; the failures are joined.
type Multi []presence.Notifier

// Publish implements presence.Notifier.
func (m Multi) Publish(ctx context.Context, topic string, t presence.Transition) error {
	var errs []error
	for i, n := range m {
		if err := n.Publish(ctx, topic, t); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

type timeoutNotifier struct {
	next    presence.Notifier
	timeout time.Duration
}

// WithTimeout returns a notifier that gives each publish on next at most d.
func WithTimeout(next presence.Notifier, d time.Duration) presence.Notifier {
	return &timeoutNotifier{next: next, timeout: d}
}

func (n *timeoutNotifier) Publish(ctx context.Context, topic string, t presence.Transition) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.next.Publish(ctx, topic, t)
}

type tracedNotifier struct {
	next   presence.Notifier
	tracer trace.Tracer
}

// Traced returns a notifier that records one span per publish using the
// global tracer provider. With no provider installed the spans are no-ops.
func Traced(next presence.Notifier) presence.Notifier {
	return &tracedNotifier{next: next, tracer: otel.Tracer(tracerName)}
}

func (n *tracedNotifier) Publish(ctx context.Context, topic string, t presence.Transition) error {
	ctx, span := n.tracer.Start(ctx, "notify.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", topic),
			attribute.String("presence.value", t.Value),
			attribute.String("presence.status", string(t.Status)),
		),
	)
	defer span.End()

	err := n.next.Publish(ctx, topic, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
