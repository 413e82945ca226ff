package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/muhammadchandra19/kwanza-exchange/internal/bootstrap"
	"github.com/muhammadchandra19/kwanza-exchange/internal/config"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/errors"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/grpclib/health"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/httplib/healthcheck"
	"github.com/muhammadchandra19/kwanza-exchange/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfg config.Config
	config.MustLoad(&cfg)

	log, err := logger.NewLogger(
		logger.WithLoggingLevel(logger.Level(cfg.LogLevel)),
		logger.WithInitialFields(logger.NewField("service", "kwanza-engine")),
	)
	if err != nil {
		stdlog.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(err)
		stop()
		_ = log.Sync()
		stdlog.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	b, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close(context.WithoutCancel(ctx))

	if err := b.Engine.Start(ctx); err != nil {
		return errors.Tracef(err, "start engine")
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthServer.Register(grpcServer)
	healthServer.SetServing("", true)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return errors.Tracef(err, "listen on grpc port %d", cfg.GRPCPort)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Error(errors.Tracef(err, "serve grpc"))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.Registry, promhttp.HandlerOpts{}))
	httpServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           healthcheck.HealthCheck{Checks: b.Checks, Timeout: 2 * time.Second}.Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(errors.Tracef(err, "serve metrics"))
		}
	}()

	go bootstrap.NewPairHealth(b.Engine, healthServer, cfg.Engine.SweepInterval, log).Run(ctx)

	log.Info("engine listening",
		logger.NewField("grpc_port", cfg.GRPCPort),
		logger.NewField("metrics_addr", cfg.MetricsAddr),
		logger.NewField("pairs", len(b.Engine.TradingPairs())),
	)

	<-ctx.Done()
	log.Info("shutting down")

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(errors.Tracef(err, "shutdown metrics server"))
	}
	grpcServer.GracefulStop()

	log.Info("engine stopped")
	return nil
}
