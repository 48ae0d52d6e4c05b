package msg

// Config holds Kafka client settings
type Config struct {
	Brokers  []string
	ClientID string
}

// Topic names. NATS subjects use the same names.
const (
	TopicMatches = "arena.matches"
	TopicTicks   = "arena.ticks"
	TopicJoins   = "arena.joins"
)

// Topics lists every topic the arena publishes to
var Topics = []string{TopicMatches, TopicTicks}
