package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drewrad8/strategos/pkg/api"
	"github.com/drewrad8/strategos/pkg/breaker"
	"github.com/drewrad8/strategos/pkg/events"
	"github.com/drewrad8/strategos/pkg/log"
	"github.com/drewrad8/strategos/pkg/metrics"
	"github.com/drewrad8/strategos/pkg/registry"
	"github.com/drewrad8/strategos/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestrator daemon",
	Long: `Start strategosd: the worker registry, health poller, sweeper,
metrics collector, and the HTTP/JSON + SSE API server.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "API server listen address")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus /metrics and /health,/ready,/live listen address")
	serveCmd.Flags().String("data-dir", "./strategos-data", "Data directory for the bbolt store")
	serveCmd.Flags().String("projects-base", ".", "Base directory new worker project paths are resolved against")
	serveCmd.Flags().String("api-key", "", "Shared HMAC secret for Bearer-JWT auth (auth disabled if empty)")
	serveCmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origins for the API (none allowed if empty)")
	serveCmd.Flags().String("agent-command", "", "Agent CLI binary every spawned worker runs")
	serveCmd.Flags().StringSlice("agent-args", nil, "Arguments passed to --agent-command")
	serveCmd.Flags().Int("concurrency-cap", 0, "Maximum concurrently-running workers (0 = registry default)")
	serveCmd.Flags().Duration("shutdown-deadline", 0, "Grace period for in-flight worker shutdown (0 = registry default)")
	serveCmd.MarkFlagRequired("agent-command")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	projectsBase, _ := cmd.Flags().GetString("projects-base")
	apiKey, _ := cmd.Flags().GetString("api-key")
	corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origin")
	agentCommand, _ := cmd.Flags().GetString("agent-command")
	agentArgs, _ := cmd.Flags().GetStringSlice("agent-args")
	concurrencyCap, _ := cmd.Flags().GetInt("concurrency-cap")
	shutdownDeadline, _ := cmd.Flags().GetDuration("shutdown-deadline")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	logger := log.Logger.With().Str("component", "strategosd").Logger()

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	cfg := registry.DefaultConfig()
	cfg.ProjectsBase = projectsBase
	cfg.DataDir = dataDir
	cfg.AgentCommand = agentCommand
	cfg.AgentArgs = agentArgs
	if concurrencyCap > 0 {
		cfg.ConcurrencyCap = concurrencyCap
	}
	if shutdownDeadline > 0 {
		cfg.ShutdownDeadline = shutdownDeadline
	}

	reg := registry.New(cfg, store, broker, logger)
	if err := reg.Rehydrate(); err != nil {
		return fmt.Errorf("rehydrating registry: %w", err)
	}
	reg.StartHealthPoller()
	reg.StartSweeper()
	defer reg.Shutdown()

	breakers := breaker.NewRegistry(logger)

	collector := metrics.NewCollector(reg, breakers)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("registry", true, "ready")
	metrics.RegisterComponent("storage", true, "ready")
	metrics.RegisterComponent("api", false, "initializing")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsMux.Handle("/health", metrics.HealthHandler())
	metricsMux.Handle("/ready", metrics.ReadyHandler())
	metricsMux.Handle("/live", metrics.LivenessHandler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	defer metricsSrv.Shutdown(context.Background())
	logger.Info().Str("addr", metricsAddr).Msg("metrics server listening")

	router := api.NewDefaultRouter(reg, breakers, api.Config{
		CORSOrigins: corsOrigins,
		APIKey:      apiKey,
	})
	srv := api.NewServer(addr, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.Start(); err != nil {
			errCh <- fmt.Errorf("API server: %w", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	metrics.RegisterComponent("api", true, "ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDeadline)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
