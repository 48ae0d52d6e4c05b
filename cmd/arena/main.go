package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/ismaiel54/match-arena/internal/arena"
	"github.com/ismaiel54/match-arena/internal/chaos"
	"github.com/ismaiel54/match-arena/internal/config"
	"github.com/ismaiel54/match-arena/internal/decider"
	"github.com/ismaiel54/match-arena/internal/gateway"
	"github.com/ismaiel54/match-arena/internal/logging"
	"github.com/ismaiel54/match-arena/internal/msg"
	"github.com/ismaiel54/match-arena/internal/observability"
	"github.com/ismaiel54/match-arena/internal/settlement"
	"github.com/ismaiel54/match-arena/internal/store"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("arena")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting arena service",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("health_port", cfg.HealthPort),
		zap.String("db_driver", cfg.Storage.Driver),
		zap.String("event_bus", cfg.Bus.Kind),
		zap.Int("batch_size", cfg.Arena.BatchSize),
		zap.Int("tick_interval_ms", cfg.Arena.TickIntervalMs),
		zap.Int("max_ticks", cfg.Arena.MaxTicks),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker(logger)
	hub := gateway.NewHub(gateway.DefaultClientBuffer, logger, metrics)

	settler, err := settlement.NewCalculator(settlement.Config{
		EntryFee: cfg.Settlement.EntryFee,
		RakeBps:  cfg.Settlement.RakeBps,
	})
	if err != nil {
		logger.Fatal("invalid settlement configuration", zap.Error(err))
	}

	// Storage and outbox
	var (
		st       *store.Store
		recorder arena.Recorder
		worker   *store.Worker
	)
	switch cfg.Storage.Driver {
	case store.DriverSQLite:
		path := cfg.Storage.DSN
		if path == "" {
			path = filepath.Join(cfg.Storage.DataDir, "arena.db")
		}
		st, err = store.Open(path)
	case store.DriverPostgres:
		st, err = store.OpenDriver(store.DriverPostgres, cfg.Storage.DSN)
	}
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	if st != nil {
		defer st.Close()
		healthChecker.AddCheck("storage", st.Ping)
		worker = store.NewWorker(st, 0, logger, metrics)
		recorder = worker
		go worker.Run(ctx)
	}

	// Event bus
	var (
		sink     msg.Sink
		producer *msg.Producer
	)
	switch cfg.Bus.Kind {
	case "kafka":
		producer, err = msg.NewProducer(msg.Config{Brokers: cfg.KafkaBrokerList(), ClientID: cfg.ServiceName}, logger)
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		defer producer.Close()
		healthChecker.AddCheck("kafka", producer.Ping)
		sink = producer
	case "nats":
		nc, js, err := msg.ConnectNATS(cfg.Bus.NATSURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer nc.Close()
		if err := msg.EnsureStream(ctx, js); err != nil {
			logger.Fatal("failed to ensure nats stream", zap.Error(err))
		}
		healthChecker.AddCheck("nats", func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		})
		sink = msg.NewNATSPublisher(js)
	}

	publisherErrCh := make(chan error, 1)
	if sink != nil {
		if st == nil {
			logger.Warn("event bus configured without storage, outbox disabled")
		} else {
			outbox := store.NewPublisher(st, sink, logger, metrics)
			go func() {
				if err := outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					publisherErrCh <- err
				}
			}()
		}
	}

	// Decision provider
	var evaluator *arena.Evaluator
	if cfg.Decider.URL != "" {
		breaker := decider.NewBreaker(decider.DefaultBreakerConfig(), logger)
		var provider arena.DecisionProvider = decider.NewHTTPProvider(cfg.Decider.URL, cfg.DeciderTimeout(), breaker, logger)

		chaosCfg := chaos.LoadConfig()
		if chaosCfg.Enabled {
			provider = chaos.Wrap(provider, chaos.New(chaosCfg, logger))
			logger.Warn("chaos injection enabled for decision provider",
				zap.String("profile", chaosCfg.Profile),
				zap.String("target_agent", chaosCfg.TargetAgent),
			)
		}

		agents := config.SplitList(cfg.Decider.Agents)
		evaluator = arena.NewEvaluator(provider, cfg.DeciderTimeout(), arena.AgentSet(agents), logger, metrics)
		logger.Info("decision provider enabled",
			zap.String("url", cfg.Decider.URL),
			zap.Strings("agents", agents),
		)
	}

	engine := arena.NewEngine(arena.Options{
		BatchSize:       cfg.Arena.BatchSize,
		TickInterval:    cfg.TickInterval(),
		MaxTicks:        cfg.Arena.MaxTicks,
		StartPrice:      cfg.Arena.StartPrice,
		StartingCredits: cfg.Arena.StartingCredits,
		RetainFinished:  cfg.Arena.RetainFinished,
		Clock:           arena.RealClock{},
		Publisher:       hub,
		Recorder:        recorder,
		Settler:         settler,
		Evaluator:       evaluator,
		Logger:          logger,
		Metrics:         metrics,
		NewMatchID:      func() string { return uuid.New().String() },
	})

	// Join ingress over Kafka
	var consumer *msg.Consumer
	consumerErrCh := make(chan error, 1)
	if cfg.Bus.JoinIngress {
		consumer, err = msg.NewConsumer(
			msg.Config{Brokers: cfg.KafkaBrokerList(), ClientID: cfg.ServiceName},
			"arena-joins-v1", []string{msg.TopicJoins}, logger,
		)
		if err != nil {
			logger.Fatal("failed to create kafka consumer", zap.Error(err))
		}
		go func() {
			if err := consumer.Run(ctx, joinHandler(engine, logger)); err != nil && !errors.Is(err, context.Canceled) {
				consumerErrCh <- err
			}
		}()
	}

	// gRPC health
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(observability.UnaryLoggingInterceptor(logger)))
	healthChecker.RegisterGRPC(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	grpcErrCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			grpcErrCh <- err
		}
	}()

	healthErrCh := make(chan error, 1)
	go func() {
		if err := healthChecker.StartHTTPServer(cfg.HealthAddr()); err != nil && err != http.ErrServerClosed {
			healthErrCh <- err
		}
	}()
	go healthChecker.Watch(ctx, 5*time.Second)

	// Websocket gateway and metrics
	server := gateway.NewServer(engine, hub, logger, metrics)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", zap.String("addr", cfg.HTTPAddr()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-grpcErrCh:
		logger.Error("gRPC server error", zap.Error(err))
	case err := <-healthErrCh:
		logger.Error("health server error", zap.Error(err))
	case err := <-httpErrCh:
		logger.Error("gateway server error", zap.Error(err))
	case err := <-consumerErrCh:
		logger.Error("join consumer error", zap.Error(err))
	case err := <-publisherErrCh:
		logger.Error("outbox publisher error", zap.Error(err))
	}

	logger.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthChecker.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health checker", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down gateway", zap.Error(err))
	}

	// Stop matches before the recorder so no writes race the drain
	engine.Close()
	engine.Wait()

	cancel()
	if consumer != nil {
		consumer.Close()
	}
	if worker != nil {
		worker.Wait()
	}
	grpcServer.GracefulStop()

	logger.Info("arena service stopped")
}

// joinHandler queues agents from join commands. Commands without an
// identity are keyed by their event id.
func joinHandler(engine *arena.Engine, logger *zap.Logger) msg.Handler {
	return func(ctx context.Context, rec msg.Record) error {
		cmd, err := msg.DecodeJoin(rec)
		if err != nil {
			return err
		}

		identity := cmd.Identity
		if identity == "" {
			identity = "bus-" + cmd.EventID
		}

		size, err := engine.Join(identity, cmd.AgentName, cmd.Strategy)
		switch {
		case errors.Is(err, arena.ErrUnknownStrategy):
			return fmt.Errorf("%w: %v", msg.ErrPermanent, err)
		case err != nil:
			return err
		}

		logger.Debug("join command queued",
			zap.String("event_id", cmd.EventID),
			zap.String("agent_name", cmd.AgentName),
			zap.Int("queue_size", size),
		)
		return nil
	}
}
