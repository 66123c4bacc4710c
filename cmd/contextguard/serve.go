package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tributary-ai-services/ContextGuard/middleware"
	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
	"github.com/Tributary-ai-services/ContextGuard/pkg/pipeline"
	"github.com/Tributary-ai-services/ContextGuard/pkg/server"
	"github.com/Tributary-ai-services/ContextGuard/pkg/stream"
)

const (
	pruneInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP scanning endpoint and the gRPC Guard service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Logging, nil)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var (
		opts     []pipeline.ProcessorOption
		streamer stream.Streamer
	)
	if cfg.Streaming.Enabled {
		ks, err := stream.NewKafkaStreamer(stream.ConfigFromSettings(cfg.Streaming))
		if err != nil {
			return fmt.Errorf("starting kafka streamer: %w", err)
		}
		go func() {
			for err := range ks.Errors() {
				logger.Warn("streaming audit event", "error", err)
			}
		}()
		streamer = ks
		opts = append(opts, pipeline.WithStreamer(ks))
	}

	proc, err := pipeline.NewFromConfig(cfg, logger, opts...)
	if err != nil {
		if streamer != nil {
			streamer.Close()
		}
		return err
	}
	defer proc.Close()

	proc.Recorder().StartPruner(ctx, pruneInterval, cfg.Audit.Retention)

	hc := middleware.HTTPConfigFromSettings(cfg.Server.HTTP)
	hc.Logger = logger
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTP.Port),
		Handler:      newHTTPHandler(proc, hc),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	grpcServer := server.New(proc, cfg.Server.GRPC, logger)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPC.Port))
	if err != nil {
		return fmt.Errorf("listening on grpc port %d: %w", cfg.Server.GRPC.Port, err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr, "mode", hc.Mode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc server listening", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	logger.Info("contextguard started",
		"version", Version,
		"service", cfg.Service.ID,
		"environment", cfg.Service.Environment,
		"streaming", cfg.Streaming.Enabled,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown", "error", serr)
	}
	grpcServer.GracefulStop()
	logger.Info("contextguard stopped")
	return err
}

// newHTTPHandler serves health, audit stats and the scanning endpoint. POST
// /v1/scan runs behind the middleware, so a blocked body never reaches the
// handler; anything that does is echoed back with its scan outcome.
func newHTTPHandler(proc pipeline.Processor, hc *middleware.HTTPConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /v1/stats", func(w http.ResponseWriter, r *http.Request) {
		log := proc.Recorder().Log()
		writeJSON(w, http.StatusOK, map[string]any{
			"stats":   log.Stats(time.Now()),
			"metrics": log.AllMetrics(),
		})
	})

	scanHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr := middleware.GetMiddlewareResult(r)
		if mr == nil {
			writeJSON(w, http.StatusOK, map[string]any{"findings": []any{}})
			return
		}
		resp := map[string]any{
			"request_id": mr.RequestID,
			"redacted":   mr.Redacted,
			"findings":   mr.Result.Findings,
			"report":     mr.Result.Report,
			"decision":   mr.Result.Decision,
		}
		if mr.Redacted {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading request body"})
				return
			}
			resp["text"] = string(body)
		}
		writeJSON(w, http.StatusOK, resp)
	})
	mux.Handle("POST /v1/scan", middleware.ScanMiddleware(proc, hc)(scanHandler))

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
