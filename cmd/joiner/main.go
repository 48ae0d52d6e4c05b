package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/config"
	"github.com/ismaiel54/match-arena/internal/logging"
	"github.com/ismaiel54/match-arena/internal/msg"
	"github.com/ismaiel54/match-arena/internal/protocol"
)

var strategies = []string{
	protocol.StrategyHold,
	protocol.StrategyRandom,
	protocol.StrategyTrend,
	protocol.StrategyMeanRevert,
}

func main() {
	var (
		count   = flag.Int("count", 25, "Number of join commands to produce")
		seed    = flag.Int64("seed", 42, "Random seed for deterministic generation")
		brokers = flag.String("brokers", "127.0.0.1:9092", "Kafka broker addresses")
		delay   = flag.Duration("delay", 0, "Pause between join commands")
	)
	flag.Parse()

	logger, err := logging.NewLogger("joiner", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	brokerList := config.SplitList(*brokers)
	logger.Info("starting joiner",
		zap.Int("count", *count),
		zap.Int64("seed", *seed),
		zap.Strings("brokers", brokerList),
		zap.String("topic", msg.TopicJoins),
	)

	producer, err := msg.NewProducer(msg.Config{Brokers: brokerList, ClientID: "joiner"}, logger)
	if err != nil {
		logger.Fatal("failed to create producer", zap.Error(err))
	}
	defer producer.Close()

	ctx := context.Background()
	produced := 0
	failed := 0
	perStrategy := make(map[string]int)

	for _, cmd := range generate(*seed, *count, time.Now()) {
		if err := producer.ProduceJSON(ctx, msg.TopicJoins, cmd.Identity, cmd); err != nil {
			logger.Error("failed to produce join",
				zap.String("event_id", cmd.EventID),
				zap.Error(err),
			)
			failed++
			continue
		}

		produced++
		perStrategy[cmd.Strategy]++
		logger.Debug("produced join",
			zap.String("event_id", cmd.EventID),
			zap.String("agent_name", cmd.AgentName),
			zap.String("strategy", cmd.Strategy),
		)
		if *delay > 0 {
			time.Sleep(*delay)
		}
	}

	logger.Info("joiner completed",
		zap.Int("total", *count),
		zap.Int("produced", produced),
		zap.Int("failed", failed),
	)

	fmt.Printf("\n=== Joiner Summary ===\n")
	fmt.Printf("Total joins: %d\n", *count)
	fmt.Printf("Produced: %d\n", produced)
	fmt.Printf("Failed: %d\n", failed)
	for _, s := range strategies {
		fmt.Printf("  %-12s %d\n", s, perStrategy[s])
	}
	fmt.Printf("Topic: %s\n\n", msg.TopicJoins)

	if failed > 0 {
		os.Exit(1)
	}
}

// generate builds count join commands; the same seed yields the same agents
func generate(seed int64, count int, now time.Time) []msg.JoinCmdMsg {
	rng := rand.New(rand.NewSource(seed))
	cmds := make([]msg.JoinCmdMsg, 0, count)
	for i := 0; i < count; i++ {
		cmds = append(cmds, msg.JoinCmdMsg{
			EventID:      fmt.Sprintf("join-%d-%d", seed, i),
			Identity:     fmt.Sprintf("joiner-%d-%d", seed, i),
			AgentName:    fmt.Sprintf("bot-%d-%03d", seed, i),
			Strategy:     strategies[rng.Intn(len(strategies))],
			TsUnixMillis: now.UnixMilli(),
		})
	}
	return cmds
}
