package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/miradorstack/flightchat/internal/api"
	"github.com/miradorstack/flightchat/internal/classify"
	"github.com/miradorstack/flightchat/internal/metrics"
	"github.com/miradorstack/flightchat/internal/services"
	"github.com/miradorstack/flightchat/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC, REST and metrics listeners",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger.Info("starting flightchat",
		slog.String("grpc_address", cfg.Server.Address),
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.String("version", version))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure, cfg.Tracing.SamplingRate)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// A missing credential is fatal at startup rather than on the first question.
	if _, err := a.gateway.Client(); err != nil {
		return fmt.Errorf("llm client: %w", err)
	}
	logger.Info("llm client ready", slog.String("provider", a.gateway.Provider()), slog.String("model", a.gateway.Model()))

	service := services.NewChatService(logger, a.orchestrator, a.sessions)

	var grpcServer *api.Server
	if cfg.Server.Address != "" {
		grpcServer, err = api.NewServer(cfg.Server, service, logger)
		if err != nil {
			return fmt.Errorf("create gRPC server: %w", err)
		}
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddress != "" {
		handler := api.NewHTTPHandler(service, api.HTTPOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			Logger:         logger,
			Health: func() map[string]any {
				return map[string]any{
					"provider":       a.gateway.Provider(),
					"model":          a.gateway.Model(),
					"sessions":       a.sessions.Len(),
					"latency_p95_ms": service.LatencyP95().Milliseconds(),
				}
			},
		})
		httpServer = api.NewHTTPServer(cfg.Server, handler)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
	}

	var wg conc.WaitGroup
	if grpcServer != nil {
		wg.Go(func() {
			logger.Info("gRPC server listening", slog.String("address", grpcServer.Address()))
			if serveErr := grpcServer.Start(); serveErr != nil {
				logger.Error("gRPC server exited", slog.Any("error", serveErr))
				stop()
			}
		})
	}
	if httpServer != nil {
		wg.Go(func() { listen(httpServer, "REST", stop) })
	}
	if metricsServer != nil {
		wg.Go(func() { listen(metricsServer, "metrics", stop) })
	}
	wg.Go(func() {
		a.sessions.Run(ctx, cfg.Chat.SweepInterval, func(removed, remaining int) {
			metrics.SetActiveSessions(remaining)
			if removed > 0 {
				logger.Debug("idle sessions swept", slog.Int("removed", removed), slog.Int("remaining", remaining))
			}
		})
	})
	if cfg.Classifier.Watch {
		wg.Go(func() {
			if err := classify.Watch(ctx, cfg.Classifier.VocabularyPath, a.classifier, logger); err != nil {
				logger.Warn("vocabulary watcher stopped", slog.Any("error", err))
			}
		})
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	for _, srv := range []*http.Server{httpServer, metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server shutdown", slog.String("address", srv.Addr), slog.Any("error", err))
		}
	}

	wg.Wait()
	logger.Info("flightchat stopped")
	return nil
}

func listen(srv *http.Server, name string, stop context.CancelFunc) {
	logger.Info(name+" server listening", slog.String("address", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(name+" server exited", slog.Any("error", err))
		stop()
	}
}
