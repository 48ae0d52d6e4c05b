package msg

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// StreamName is the JetStream stream holding arena events
const StreamName = "ARENA_EVENTS"

// ConnectNATS opens a connection and its JetStream context
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}

// StreamConfig describes the arena stream: file storage, limits retention
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"arena.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	}
}

// EnsureStream creates or updates the arena stream
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	cfg := StreamConfig()
	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("create stream %s: %w", cfg.Name, err)
	}
	return nil
}

// NATSPublisher publishes outbox events to JetStream
type NATSPublisher struct {
	js jetstream.JetStream
}

// NewNATSPublisher wraps a JetStream context
func NewNATSPublisher(js jetstream.JetStream) *NATSPublisher {
	return &NATSPublisher{js: js}
}

// Subject maps a topic and key to a subject, e.g. arena.ticks.<match id>
func Subject(topic, key string) string {
	if key == "" {
		return topic
	}
	return topic + "." + key
}

// Publish satisfies Sink. The event id becomes the JetStream message id so
// outbox redelivery is deduplicated within the stream's window.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	var opts []jetstream.PublishOpt
	if ev.ID != "" {
		opts = append(opts, jetstream.WithMsgID(ev.ID))
	}
	if _, err := p.js.Publish(ctx, Subject(ev.Topic, ev.Key), ev.Payload, opts...); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Topic, err)
	}
	return nil
}
