package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentcoord/agent/coordination"
	"github.com/BaSui01/agentcoord/api/handlers"
	"github.com/BaSui01/agentcoord/config"
	"github.com/BaSui01/agentcoord/internal/migration"
	"github.com/BaSui01/agentcoord/internal/server"
	"github.com/BaSui01/agentcoord/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr        string
		autoMigrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coordinator with /health and /metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, addr, autoMigrate)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.http_port)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply database migrations before start when sync.store is sql")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, addr string, autoMigrate bool) error {
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting AgentCoord",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	if autoMigrate && strings.EqualFold(cfg.Sync.Store, "sql") {
		if err := migrateUp(ctx, cfg, logger); err != nil {
			return err
		}
	}

	coord, err := coordination.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build coordinator: %w", err)
	}
	defer func() {
		if err := coord.Close(); err != nil {
			logger.Error("coordinator close failed", zap.Error(err))
		}
	}()

	srvCfg := server.ConfigFrom(cfg.Server)
	if addr != "" {
		srvCfg.Addr = addr
	}
	mgr := server.NewManager(newHTTPHandler(coord, logger), srvCfg, logger)
	if err := mgr.Start(); err != nil {
		return err
	}
	logger.Info("HTTP server started", zap.String("addr", mgr.Addr()))

	if err := mgr.Wait(ctx); err != nil {
		return err
	}
	logger.Info("AgentCoord stopped")
	return nil
}

func migrateUp(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	return nil
}

// =============================================================================
// 🌐 HTTP 路由
// =============================================================================

// newHTTPHandler 健康检查、指标与 Agent 目录接口；Agent 运行时通过目录接口上报能力与状态
func newHTTPHandler(coord *coordination.Coordinator, logger *zap.Logger) http.Handler {
	health := handlers.NewHealthHandler(logger)
	for _, p := range coord.HealthChecks() {
		health.RegisterCheck(handlers.NewPingCheck(p.Name, p.Ping))
	}
	agents := handlers.NewAgentHandler(coord, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady(func() map[string]any {
		return map[string]any{"agents": coord.Directory().Len()}
	}))
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/agents", agents.HandleListAgents)
	mux.HandleFunc("POST /api/v1/agents", agents.HandleRegisterAgent)
	mux.HandleFunc("GET /api/v1/agents/{id}", agents.HandleGetAgent)
	mux.HandleFunc("PUT /api/v1/agents/{id}/status", agents.HandleUpdateStatus)
	mux.HandleFunc("GET /api/v1/agents/{id}/mailbox", agents.HandleMailbox)

	return Chain(mux,
		Recovery(logger),
		RequestID(),
		OTelTracing(),
		RequestLogger(logger),
		MetricsMiddleware(coord.Metrics()),
	)
}
