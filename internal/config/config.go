package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the arena services
type Config struct {
	// Service name
	ServiceName string `yaml:"-"`

	// gRPC server port (health service)
	GRPCPort int `yaml:"grpc_port"`

	// HTTP server port (websocket gateway and metrics)
	HTTPPort int `yaml:"http_port"`

	// HTTP health server port
	HealthPort int `yaml:"health_port"`

	// Log level: debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	Arena      ArenaConfig      `yaml:"arena"`
	Storage    StorageConfig    `yaml:"storage"`
	Bus        BusConfig        `yaml:"bus"`
	Decider    DeciderConfig    `yaml:"decider"`
	Settlement SettlementConfig `yaml:"settlement"`
}

// ArenaConfig controls match formation and the tick loop
type ArenaConfig struct {
	BatchSize       int     `yaml:"batch_size"`
	TickIntervalMs  int     `yaml:"tick_interval_ms"`
	MaxTicks        int     `yaml:"max_ticks"`
	StartPrice      float64 `yaml:"start_price"`
	StartingCredits float64 `yaml:"starting_credits"`
	RetainFinished  int     `yaml:"retain_finished"`
}

// StorageConfig selects the persistence provider
type StorageConfig struct {
	// Driver: sqlite, postgres or none
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	DataDir string `yaml:"data_dir"`
}

// BusConfig selects where outbox events are published
type BusConfig struct {
	// Kind: none, kafka or nats
	Kind         string `yaml:"kind"`
	KafkaBrokers string `yaml:"kafka_brokers"`
	NATSURL      string `yaml:"nats_url"`
	// Consume join commands from Kafka
	JoinIngress bool `yaml:"join_ingress"`
}

// DeciderConfig configures the external decision provider
type DeciderConfig struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Agents is a comma-separated list of agent names, or "*" for every seat
	Agents string `yaml:"agents"`
}

// SettlementConfig configures end-of-match payouts
type SettlementConfig struct {
	EntryFee string `yaml:"entry_fee"`
	RakeBps  int    `yaml:"rake_bps"`
}

// LoadConfig loads configuration from defaults, an optional YAML file named by
// ARENA_CONFIG_FILE, and environment variables, in that order
func LoadConfig(serviceName string) (*Config, error) {
	cfg := Default(serviceName)

	if path := os.Getenv("ARENA_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration
func Default(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		GRPCPort:    50051,
		HTTPPort:    8080,
		HealthPort:  8081,
		LogLevel:    "info",
		Arena: ArenaConfig{
			BatchSize:       5,
			TickIntervalMs:  1000,
			MaxTicks:        60,
			StartPrice:      100000,
			StartingCredits: 1000,
			RetainFinished:  256,
		},
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: "./.data",
		},
		Bus: BusConfig{
			Kind:         "none",
			KafkaBrokers: "127.0.0.1:9092",
			NATSURL:      "nats://127.0.0.1:4222",
		},
		Decider: DeciderConfig{
			TimeoutMs: 750,
		},
		Settlement: SettlementConfig{
			EntryFee: "10",
			RakeBps:  500,
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) overrideWithEnv() {
	c.GRPCPort = getEnvAsInt("PORT_GRPC", c.GRPCPort)
	c.HTTPPort = getEnvAsInt("PORT_HTTP", c.HTTPPort)
	c.HealthPort = getEnvAsInt("PORT_HEALTH", c.HealthPort)
	c.LogLevel = getEnvAsString("LOG_LEVEL", c.LogLevel)

	c.Arena.BatchSize = getEnvAsInt("ARENA_BATCH_SIZE", c.Arena.BatchSize)
	c.Arena.TickIntervalMs = getEnvAsInt("ARENA_TICK_INTERVAL_MS", c.Arena.TickIntervalMs)
	c.Arena.MaxTicks = getEnvAsInt("ARENA_MAX_TICKS", c.Arena.MaxTicks)
	c.Arena.StartPrice = getEnvAsFloat("ARENA_START_PRICE", c.Arena.StartPrice)
	c.Arena.StartingCredits = getEnvAsFloat("ARENA_STARTING_CREDITS", c.Arena.StartingCredits)
	c.Arena.RetainFinished = getEnvAsInt("ARENA_RETAIN_FINISHED", c.Arena.RetainFinished)

	c.Storage.Driver = getEnvAsString("DB_DRIVER", c.Storage.Driver)
	c.Storage.DSN = getEnvAsString("DB_DSN", c.Storage.DSN)
	c.Storage.DataDir = getEnvAsString("DATA_DIR", c.Storage.DataDir)

	c.Bus.Kind = getEnvAsString("EVENT_BUS", c.Bus.Kind)
	c.Bus.KafkaBrokers = getEnvAsString("KAFKA_BROKERS", c.Bus.KafkaBrokers)
	c.Bus.NATSURL = getEnvAsString("NATS_URL", c.Bus.NATSURL)
	c.Bus.JoinIngress = getEnvAsBool("JOIN_INGRESS", c.Bus.JoinIngress)

	c.Decider.URL = getEnvAsString("DECIDER_URL", c.Decider.URL)
	c.Decider.TimeoutMs = getEnvAsInt("DECIDER_TIMEOUT_MS", c.Decider.TimeoutMs)
	c.Decider.Agents = getEnvAsString("DECIDER_AGENTS", c.Decider.Agents)

	c.Settlement.EntryFee = getEnvAsString("SETTLEMENT_ENTRY_FEE", c.Settlement.EntryFee)
	c.Settlement.RakeBps = getEnvAsInt("SETTLEMENT_RAKE_BPS", c.Settlement.RakeBps)
}

// Validate checks the values the engine relies on
func (c *Config) Validate() error {
	if c.Arena.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.Arena.BatchSize)
	}
	if c.Arena.TickIntervalMs < 250 {
		return fmt.Errorf("tick interval must be at least 250ms, got %d", c.Arena.TickIntervalMs)
	}
	if c.Arena.MaxTicks < 1 {
		return fmt.Errorf("max ticks must be at least 1, got %d", c.Arena.MaxTicks)
	}
	if c.Arena.StartPrice <= 0 {
		return fmt.Errorf("start price must be positive, got %v", c.Arena.StartPrice)
	}
	if c.Arena.StartingCredits <= 0 {
		return fmt.Errorf("starting credits must be positive, got %v", c.Arena.StartingCredits)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("DB_DSN is required for the postgres driver")
	}
	switch c.Bus.Kind {
	case "none", "kafka", "nats":
	default:
		return fmt.Errorf("unknown event bus %q", c.Bus.Kind)
	}
	if c.Decider.TimeoutMs <= 0 {
		return fmt.Errorf("decider timeout must be positive, got %d", c.Decider.TimeoutMs)
	}
	return nil
}

// GRPCAddr returns the gRPC server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// HealthAddr returns the HTTP health server address
func (c *Config) HealthAddr() string {
	return fmt.Sprintf(":%d", c.HealthPort)
}

// TickInterval returns the configured tick interval
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Arena.TickIntervalMs) * time.Millisecond
}

// DeciderTimeout returns the per-call decision provider timeout
func (c *Config) DeciderTimeout() time.Duration {
	return time.Duration(c.Decider.TimeoutMs) * time.Millisecond
}

// KafkaBrokerList splits the comma-separated broker list
func (c *Config) KafkaBrokerList() []string {
	return SplitList(c.Bus.KafkaBrokers)
}

// SplitList splits a comma-separated list, dropping empty items
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
