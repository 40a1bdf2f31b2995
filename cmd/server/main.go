package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"aaob/api/grpcserver"
	"aaob/domain/orderbook"
	"aaob/infra/config"
	"aaob/infra/kafka"
	"aaob/infra/logging"
	"aaob/infra/store"
	entrywal "aaob/infra/wal/entry"
	exitwal "aaob/infra/wal/exit"
	"aaob/jobs/broadcaster"
	"aaob/service"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Storage ----------------

	st, err := store.OpenPebble(cfg.Storage.StateDir)
	if err != nil {
		return err
	}
	defer st.Close()

	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:             cfg.Storage.EntryWALDir,
		SegmentSize:     cfg.Storage.SegmentSize,
		SegmentDuration: time.Minute,
	})
	if err != nil {
		return err
	}
	defer entryWAL.Close()

	exitWAL, err := exitwal.Open(cfg.Storage.ExitWALDir)
	if err != nil {
		return err
	}
	defer exitWAL.Close()

	// ---------------- Exchange ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ex := service.New(service.Config{
		SlabCapacity:       cfg.Engine.SlabCapacity,
		EventQueueCapacity: cfg.Engine.EventQueueCapacity,
		EntryWALDir:        cfg.Storage.EntryWALDir,
	}, log, service.NewMetrics(reg), st, entryWAL, exitWAL)

	if err := ex.Recover(); err != nil {
		return err
	}
	for _, m := range cfg.Markets {
		if _, err := ex.Market(orderbook.MarketIDFromName(m.Name)); err == nil {
			continue
		}
		if _, err := ex.CreateMarket(ctx, m.Name, m.TickSize, m.MinBaseSize, m.FeeBudget); err != nil {
			return err
		}
		log.Info("market opened from config", zap.String("name", m.Name))
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	// ---------------- Background Jobs ----------------

	var pub kafka.Publisher
	if cfg.Kafka.Enabled {
		if pub, err = newPublisher(cfg); err != nil {
			return err
		}
	}

	checkpointDone := ex.StartCheckpointJob(ctx, cfg.Storage.CheckpointInterval)

	if pub != nil {
		bc := broadcaster.New(broadcaster.Config{
			Interval:  cfg.Kafka.PublishInterval,
			BatchSize: cfg.Kafka.BatchSize,
		}, exitWAL, pub, log)
		defer bc.Close()
		defer func(done <-chan struct{}) { <-done }(bc.Start(ctx))
	} else {
		log.Warn("kafka disabled, events stay in the outbox")
	}

	// ---------------- Metrics ----------------

	metricsSrv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer metricsSrv.Close()

	// ---------------- gRPC ----------------

	grpcSrv := grpc.NewServer()
	grpcserver.Register(grpcSrv, grpcserver.NewServer(ex, log))

	go func() {
		<-ctx.Done()
		grpcSrv.GracefulStop()
	}()

	log.Info("aaob engine running",
		zap.String("grpc", cfg.Server.GRPCAddr),
		zap.String("metrics", cfg.Server.MetricsAddr),
		zap.Int("markets", len(ex.Markets())),
	)
	serveErr := grpcSrv.Serve(lis)

	stop()
	<-checkpointDone
	log.Info("shut down", zap.Uint64("applied", ex.Applied()))
	return serveErr
}

func newPublisher(cfg *config.Config) (kafka.Publisher, error) {
	if cfg.Kafka.Client == "kafka-go" {
		return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	}
	return kafka.NewSaramaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}
