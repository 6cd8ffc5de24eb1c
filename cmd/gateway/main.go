// In file: cmd/gateway/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dileep-u-k/tool-router/internal/dispatch"
	"github.com/dileep-u-k/tool-router/internal/llm"
	"github.com/dileep-u-k/tool-router/internal/logger"
	"github.com/dileep-u-k/tool-router/internal/sandbox"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

// main is the entry point for the application.
// Its primary role is the "Composition Root": it loads configuration,
// initializes all services, injects dependencies, and starts the server.
func main() {
	buildInfo := GetBuildInfo()

	// 1. LOAD CONFIGURATION
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ FATAL: Configuration Error")
	}
	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ FATAL: Could not initialize logger")
	}
	defer appLogger.Close()
	log.Info().Str("version", buildInfo.Version).Str("commit", buildInfo.GitCommit).Msg("🚀 Starting Tool Router")
	log.Info().Msg("✅ Configuration loaded.")

	// 2. INITIALIZE SERVICES
	clients, closers, err := initializeLLMClients(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ FATAL: Could not create provider clients")
	}
	defer closeAll(closers)

	gateway, err := llm.NewGateway(cfg.SelectionProvider, clients)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ FATAL: Could not create provider gateway")
	}

	catalog := tools.DefaultCatalog()
	executor, err := initializeExecutor(cfg, catalog, gateway)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ FATAL: Could not create tool executor")
	}

	binding, err := dispatch.NewBinding(cfg.Bindings.Tools, cfg.Bindings.Categories, catalog, gateway)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ FATAL: Invalid provider binding")
	}
	router, err := dispatch.NewRouter(catalog, binding, gateway, executor, dispatch.Config{
		SystemPrompt:   cfg.Router.SystemPrompt,
		SelectTimeout:  cfg.Router.SelectTimeout,
		ConfirmTimeout: cfg.Router.ConfirmTimeout,
		RequireTool:    cfg.Router.RequireTool,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ FATAL: Could not create dispatch router")
	}

	// The profiler is optional; without Redis the gateway still routes.
	var (
		recorder      usageRecorder
		probeRecorder healthRecorder
	)
	if profiler := initializeProfiler(cfg.Redis); profiler != nil {
		recorder, probeRecorder = profiler, profiler
	}

	handler := NewGatewayHandler(router, gateway.SelectionProvider(), gateway.Providers(), recorder)
	log.Info().Str("catalog_version", catalog.Version()).Msg("✅ All services initialized.")

	// 3. START BACKGROUND PROCESSES
	var checker *HealthChecker
	if cfg.HealthCheck.Enabled {
		checker, err = NewHealthChecker(cfg.HealthCheck, gateway, probeRecorder)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ FATAL: Could not create health checker")
		}
		checker.Start()
	}

	// 4. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	engine := gin.Default()
	handler.RegisterRoutes(engine)

	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: engine}
	runServerWithGracefulShutdown(srv, checker)
}

// initializeLLMClients creates one client per configured provider that has an API key.
func initializeLLMClients(cfg *AppConfig) ([]llm.LLMClient, []io.Closer, error) {
	var (
		clients []llm.LLMClient
		closers []io.Closer
	)
	for _, p := range cfg.Providers {
		if p.APIKey == "" {
			log.Warn().Str("provider", p.Name).Str("env", p.APIKeyEnv).Msg("No API key set, skipping provider.")
			continue
		}
		client, err := llm.NewClient(p)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create client for %s: %w", p.Name, err)
		}
		clients = append(clients, client)
		if c, ok := client.(io.Closer); ok {
			closers = append(closers, c)
		}
	}
	if len(clients) == 0 {
		return nil, nil, errors.New("no provider has credentials configured")
	}
	log.Info().Int("providers", len(clients)).Msg("✅ LLM clients initialized.")
	return clients, closers, nil
}

// initializeExecutor builds every catalog action and registers them.
func initializeExecutor(cfg *AppConfig, catalog *tools.Catalog, gateway *llm.Gateway) (*tools.Executor, error) {
	sb, err := sandbox.NewHostSandbox(cfg.Sandbox)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}
	files, err := tools.NewFileManagementTool(cfg.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to create file tool: %w", err)
	}
	database, err := tools.NewDatabaseQueryTool(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database tool: %w", err)
	}

	textProvider := cfg.textGenerationProvider()
	if !gateway.Has(textProvider) {
		log.Warn().Str("provider", textProvider).Msg("Text generation provider is not available; the tool will fail when called.")
	}

	actions := []tools.Action{
		tools.NewAPICallTool(cfg.APICall),
		tools.NewDataExtractionTool(),
		tools.NewCodeExecutionTool(sb, nil),
		database,
		tools.NewTextGenerationTool(gateway.TextGenerator(textProvider)),
		tools.NewDataValidationTool(),
		files,
	}
	return tools.NewExecutor(catalog, actions, tools.WithActionTimeout(cfg.ActionTimeout))
}

// initializeProfiler connects to Redis. It returns nil when Redis is not configured or unreachable.
func initializeProfiler(cfg RedisConfig) *llm.Profiler {
	if cfg.Addr == "" {
		log.Info().Msg("Redis not configured; provider profiling disabled.")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("Could not connect to Redis; provider profiling disabled.")
		_ = rdb.Close()
		return nil
	}
	log.Info().Str("addr", cfg.Addr).Msg("✅ Connected to Redis.")
	return llm.NewProfiler(rdb, cfg.Prefix)
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close provider client")
		}
	}
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server, checker *HealthChecker) {
	go func() {
		log.Info().Msgf("👂 Tool Router is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Listen error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if checker != nil {
		checker.Stop(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("❌ Server shutdown failed")
		return
	}

	log.Info().Msg("👋 Server exited gracefully.")
}
