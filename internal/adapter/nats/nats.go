// Package nats carries tenant lifecycle events between tenantgate processes
// over NATS JetStream and exposes the JetStream context for the KV cache.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/port/broadcast"
)

// SubjectPrefix is the subject namespace for lifecycle events.
const SubjectPrefix = "tenantgate.tenants."

const headerRequestID = "X-Request-ID"

// Subject returns the subject an event of the given type is published on.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

// Bus implements broadcast.Broadcaster using NATS JetStream.
type Bus struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
	origin string
}

var _ broadcast.Broadcaster = (*Bus)(nil)

// Connect establishes a connection to NATS and ensures the events stream
// exists. origin identifies this process; events it publishes carry it so
// that its own subscriber can skip them.
func Connect(ctx context.Context, url, stream, origin string) (*Bus, error) {
	nc, err := nats.Connect(url, nats.Name("tenantgate-"+origin))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{SubjectPrefix + ">"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", stream, "origin", origin)
	return &Bus{nc: nc, js: js, stream: stream, origin: origin}, nil
}

// JetStream returns the JetStream context, used to open the KV cache bucket.
func (b *Bus) JetStream() jetstream.JetStream { return b.js }

// Origin returns the identifier stamped on events published by this process.
func (b *Bus) Origin() string { return b.origin }

// Broadcast publishes ev on its type's subject. The request ID in ctx, if
// any, travels in a message header.
func (b *Bus) Broadcast(ctx context.Context, ev broadcast.Event) error {
	if ev.Origin == "" {
		ev.Origin = b.origin
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(Subject(ev.Type))
	msg.Data = data
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if _, err := b.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Subscribe delivers every event published from now on to handler, skipping
// events that originated in this process. Each call gets its own ordered
// consumer, so every process sees every event.
func (b *Bus) Subscribe(ctx context.Context, handler broadcast.Handler) (func(), error) {
	consumer, err := b.js.OrderedConsumer(ctx, b.stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SubjectPrefix + ">"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var ev broadcast.Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			slog.Error("invalid lifecycle event", "subject", msg.Subject(), "error", err)
			return
		}
		if ev.Origin == b.origin {
			return
		}
		if ev.Type == "" {
			ev.Type = strings.TrimPrefix(msg.Subject(), SubjectPrefix)
		}
		hctx := context.Background()
		if id := msg.Headers().Get(headerRequestID); id != "" {
			hctx = logger.WithRequestID(hctx, id)
		}
		if err := handler(hctx, ev); err != nil {
			logger.From(hctx).Error("lifecycle event handler failed", "type", ev.Type, "tenant_id", ev.TenantID, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// Close drains the NATS connection.
func (b *Bus) Close() error {
	return b.nc.Drain()
}
