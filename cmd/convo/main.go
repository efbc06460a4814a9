package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"convo/internal/infra/config"
	ginserver "convo/internal/infra/http/gin"
	"convo/internal/infra/obs"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("convo stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("convo stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, app.health, app.handlers)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	mux := cmux.New(listener)
	grpcListener := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpListener := mux.Match(cmux.Any())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) && gctx.Err() == nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := server.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := mux.Serve(); err != nil && gctx.Err() == nil {
			return fmt.Errorf("listener mux: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := app.worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox worker: %w", err)
		}
		return nil
	})
	if app.consumer != nil {
		g.Go(func() error {
			return app.consumer.Run(gctx, []string{cfg.KafkaUserTopic})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		healthSrv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		grpcServer.GracefulStop()
		mux.Close()
		if app.consumer != nil {
			if err := app.consumer.Close(); err != nil {
				logger.Warn("kafka consumer close failed", "error", err)
			}
		}
		return nil
	})

	logger.Info("convo starting", "addr", cfg.HTTPAddr, "env", cfg.Env,
		"storage", cfg.StorageDriver, "broker", cfg.Broker)
	return g.Wait()
}
