package msg

import "context"

// Event is one outbox entry ready for the bus
type Event struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
}

// Sink receives outbox events. Kafka and NATS publishers both implement it.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}
