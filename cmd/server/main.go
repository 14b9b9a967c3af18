// Command server runs the travelguard HTTP API and, when brokers are
// configured, the Kafka ingestion loop.
//
// Per-entity serialization is per process. Kafka ingestion keeps it across
// nodes by partitioning on entity id; several HTTP nodes sharing one Redis
// need a load balancer that routes each entity to one node.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"travelguard/internal/audit"
	auditkafka "travelguard/internal/audit/kafka"
	auditmetrics "travelguard/internal/audit/metrics"
	"travelguard/internal/ingest"
	"travelguard/internal/platform/config"
	"travelguard/internal/platform/httpserver"
	"travelguard/internal/platform/kafka"
	"travelguard/internal/platform/kafka/consumer"
	"travelguard/internal/platform/kafka/producer"
	"travelguard/internal/platform/logger"
	"travelguard/internal/platform/metrics"
	"travelguard/internal/platform/redis"
	"travelguard/internal/state"
	"travelguard/internal/state/store/memory"
	redisstore "travelguard/internal/state/store/redis"
	"travelguard/internal/topology"
	httptransport "travelguard/internal/transport/http"
	"travelguard/internal/validator"
	"travelguard/internal/validator/handler"
	validatormetrics "travelguard/internal/validator/metrics"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Decision logic lives in internal/validator.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("travelguard stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg, gatherer := metrics.NewRegistry()

	topo, err := loadTopology(cfg.TopologyFile, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	store, health, closeStore, err := buildStore(ctx, g, gctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var prod *producer.Producer
	if cfg.Kafka.Enabled() {
		prod, err = producer.New(cfg.Kafka.Brokers, producer.WithLogger(log))
		if err != nil {
			return err
		}
		defer prod.Close(context.Background())

		setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = kafka.EnsureTopics(setupCtx, prod.Client(), 12, -1,
			cfg.Kafka.EventsTopic, cfg.Kafka.DecisionsTopic, cfg.Kafka.AlertsTopic)
		cancel()
		if err != nil {
			return err
		}
	}

	pub := buildPublisher(cfg, prod, reg, log)
	// Closed after the group stops so queued decisions drain before the
	// producer is flushed.
	defer pub.Close()

	v, err := validator.New(store, topo,
		validator.WithLogger(log),
		validator.WithConfig(validatorConfig(cfg.Validation)),
		validator.WithMetrics(validatormetrics.New(reg)),
		validator.WithPublisher(pub),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		Gatherer:       gatherer,
		Health:         health,
	}, handler.New(v, log))
	srv := httpserver.New(cfg.Server.Addr, router)
	g.Go(func() error { return httpserver.Run(gctx, srv, log) })

	if cfg.Kafka.Enabled() {
		cons, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.Group, []string{cfg.Kafka.EventsTopic},
			consumer.WithLogger(log))
		if err != nil {
			return err
		}
		h := ingest.NewHandler(v,
			ingest.WithLogger(log),
			ingest.WithMetrics(ingest.NewMetrics(reg)),
			ingest.WithPublisher(pub),
		)
		g.Go(func() error { return cons.Run(gctx, h) })
	}

	log.Info("travelguard started",
		"addr", cfg.Server.Addr,
		"store", health.Backend,
		"kafka", cfg.Kafka.Enabled(),
		"debounce_threshold", cfg.Validation.DebounceThreshold.String(),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("travelguard stopped cleanly")
	return nil
}

func loadTopology(path string, log *slog.Logger) (*topology.Topology, error) {
	if path == "" {
		return topology.Default(topology.WithLogger(log)), nil
	}
	return topology.Load(path, topology.WithLogger(log))
}

// buildStore selects the state backend. The memory store, including the
// Redis store's local fallback, gets a sweeper in the group.
func buildStore(ctx context.Context, g *errgroup.Group, gctx context.Context, cfg config.Config, log *slog.Logger) (state.Store, httptransport.Health, func(), error) {
	switch cfg.State.Backend {
	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, httptransport.Health{}, nil, err
		}
		rs := redisstore.New(client.Client,
			redisstore.WithLogger(log),
			redisstore.WithOpTimeout(cfg.Redis.OpTimeout),
		)
		g.Go(func() error { return rs.Local().RunSweeper(gctx, cfg.State.SweepInterval) })
		health := httptransport.Health{Backend: config.BackendRedis, Degraded: rs.Degraded}
		return rs, health, func() { _ = client.Close() }, nil
	default:
		ms := memory.New()
		g.Go(func() error { return ms.RunSweeper(gctx, cfg.State.SweepInterval) })
		return ms, httptransport.Health{Backend: config.BackendMemory}, func() {}, nil
	}
}

func buildPublisher(cfg config.Config, prod *producer.Producer, reg prometheus.Registerer, log *slog.Logger) *audit.Publisher {
	opts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New(reg)),
		audit.WithAsyncBuffer(cfg.Audit.Buffer),
	}
	var ledger audit.Sink
	if prod != nil {
		ledger = auditkafka.NewSink(prod, cfg.Kafka.DecisionsTopic)
		opts = append(opts, audit.WithAlertSink(auditkafka.NewSink(prod, cfg.Kafka.AlertsTopic)))
	}
	return audit.NewPublisher(ledger, opts...)
}

func validatorConfig(v config.Validation) validator.Config {
	return validator.Config{
		ConflictWindow:    v.ConflictWindow,
		MaxVelocity:       v.MaxVelocity,
		DebounceThreshold: v.DebounceThreshold,
		StateTTL:          v.StateTTL,
		ViolationTTL:      v.ViolationTTL,
	}
}
