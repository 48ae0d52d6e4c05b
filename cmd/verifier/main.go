package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/config"
	"github.com/ismaiel54/match-arena/internal/logging"
	"github.com/ismaiel54/match-arena/internal/msg"
)

func main() {
	var (
		duration = flag.Duration("duration", 30*time.Second, "How long to consume tick events")
		brokers  = flag.String("brokers", "127.0.0.1:9092", "Kafka broker addresses")
		group    = flag.String("group", "verifier-v1", "Consumer group")
	)
	flag.Parse()

	logger, err := logging.NewLogger("verifier", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	brokerList := config.SplitList(*brokers)
	logger.Info("starting verifier",
		zap.Duration("duration", *duration),
		zap.Strings("brokers", brokerList),
		zap.String("topic", msg.TopicTicks),
	)

	consumer, err := msg.NewConsumer(msg.Config{Brokers: brokerList, ClientID: "verifier"}, *group, []string{msg.TopicTicks}, logger)
	if err != nil {
		logger.Fatal("failed to create consumer", zap.Error(err))
	}
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	seqs := newSequences()
	malformed := 0

	err = consumer.Run(ctx, func(ctx context.Context, rec msg.Record) error {
		ev, err := msg.DecodeTick(rec)
		if err != nil {
			logger.Warn("skipping malformed tick event", zap.Error(err))
			malformed++
			return nil
		}

		seqs.add(ev.MatchID, ev.Tick)
		logger.Debug("consumed tick",
			zap.String("match_id", ev.MatchID),
			zap.Int("tick", ev.Tick),
			zap.String("event_id", ev.EventID),
			zap.Int32("partition", rec.Partition),
			zap.Int64("offset", rec.Offset),
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		logger.Error("consumer error", zap.Error(err))
	}

	events, violations := seqs.check()

	fmt.Println("\n=== Verification Results ===")
	fmt.Printf("Tick events consumed: %d\n", events)
	fmt.Printf("Matches seen: %d\n", len(seqs.seen))
	fmt.Printf("Malformed events: %d\n", malformed)
	fmt.Printf("Matches with violations: %d\n", len(violations))

	if len(violations) > 0 {
		fmt.Println("\nViolations:")
		for _, v := range violations {
			fmt.Printf("  %s\n", v)
		}
		fmt.Println("\n❌ VERIFICATION FAILED: tick sequences are broken!")
		os.Exit(1)
	}

	fmt.Println("\n✅ VERIFICATION PASSED: every match ticked 1..n in full")
}
