// Shrike - Rule-based content checking for page feeds.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pagewatch/shrike/internal/api"
	"github.com/pagewatch/shrike/internal/audit"
	"github.com/pagewatch/shrike/internal/bus"
	"github.com/pagewatch/shrike/internal/cache"
	"github.com/pagewatch/shrike/internal/domain"
	"github.com/pagewatch/shrike/internal/notify"
	"github.com/pagewatch/shrike/internal/pipeline"
	"github.com/pagewatch/shrike/internal/repository"
	"github.com/pagewatch/shrike/internal/risk"
	"github.com/pagewatch/shrike/internal/rules"
	"github.com/pagewatch/shrike/internal/source"
	"github.com/pagewatch/shrike/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("SHRIKE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting shrike",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Distributed mode via environment
	if os.Getenv("SHRIKE_MODE") == "distributed" {
		cfg = domain.DistributedConfig()
		slog.Info("running in distributed mode")
	}

	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"notifier", cfg.Notifier.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Rule Store
	store, err := rules.NewStore()
	if err != nil {
		slog.Error("failed to initialize rule store", "error", err)
		os.Exit(1)
	}

	if err := loadRules(ctx, cfg, repo, store); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule store initialized", "rules_count", store.Active().Len())

	// Risk aggregation and alert policy
	agg := risk.NewAggregator(cfg.Detection.MediumThreshold, cfg.Detection.HighThreshold)
	policy := risk.NewPolicy(cfg.Detection.AlertThreshold)

	// Notifier
	notifier, err := notify.New(cfg.Notifier)
	if err != nil {
		slog.Error("failed to initialize notifier", "error", err)
		os.Exit(1)
	}
	slog.Info("notifier initialized", "type", cfg.Notifier.Type)

	// Content source
	feed := source.NewFacebookClient(cfg.Source)

	// Audit trail: durable by default, logger-only when requested
	var auditLog domain.AuditLog = audit.NewRepoLog(repo)
	if os.Getenv("SHRIKE_AUDIT") == "log" {
		auditLog = audit.NewSlogLog()
		slog.Info("audit trail writing to logger only")
	}

	// Check pipeline
	checker := pipeline.New(
		feed,
		store,
		agg,
		policy,
		notifier,
		auditLog,
		cfg.Source.PageID,
		cfg.Detection,
		pipeline.Options{
			Repository: repo,
			Cache:      cacheImpl,
			Bus:        busImpl,
		},
	)

	// Async worker for posts submitted over the bus
	var asyncWorker *worker.Worker
	if os.Getenv("SHRIKE_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, checker)

		var pageIDs []string
		if envPages := os.Getenv("SHRIKE_PAGES"); envPages != "" {
			for _, p := range strings.Split(envPages, ",") {
				if p = strings.TrimSpace(p); p != "" {
					pageIDs = append(pageIDs, p)
				}
			}
		} else if cfg.Source.PageID != "" {
			pageIDs = []string{cfg.Source.PageID}
		}

		if err := asyncWorker.Start(worker.Config{PageIDs: pageIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "page_count", len(pageIDs))
		}
	}

	// Periodic scheduler
	if cfg.Detection.RunInterval > 0 && cfg.Source.PageID != "" {
		go runScheduler(ctx, checker, cfg.Detection)
		slog.Info("scheduler started",
			"page_id", cfg.Source.PageID,
			"interval", cfg.Detection.RunInterval.String(),
		)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, store, checker, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("shrike is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("shrike shutdown complete")
}

// loadRules builds the active rule set. A configured rules file is
// authoritative and a malformed document is fatal; without a file the
// set comes from the database and may start empty.
func loadRules(ctx context.Context, cfg *domain.Config, repo domain.Repository, store *rules.Store) error {
	if path := cfg.Detection.RulesPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read rules file %s: %w", path, err)
		}
		rs, err := store.LoadDocument(data)
		if err != nil {
			return fmt.Errorf("rules file %s: %w", path, err)
		}
		store.Activate(rs)
		slog.Info("rules loaded from file", "path", path, "count", rs.Len())
		return nil
	}

	dbRules, err := repo.ListRules(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		rs := store.Compile(dbRules)
		store.Activate(rs)
		slog.Info("rules loaded from database", "count", rs.Len())
		return nil
	}

	slog.Info("no rules in database - configure via POST /rules API")
	return nil
}

// runScheduler triggers a batch run every RunInterval until shutdown.
func runScheduler(ctx context.Context, checker *pipeline.Checker, cfg domain.DetectionConfig) {
	ticker := time.NewTicker(cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := checker.Run(ctx, cfg.BatchLimit)
			if err != nil {
				slog.Error("scheduled run failed", "error", err)
				continue
			}
			slog.Info("scheduled run finished",
				"fetched", report.Fetched,
				"checked", report.Checked,
				"alerts", report.Alerts,
			)
		}
	}
}

// applyEnvOverrides layers environment settings over the base config.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("SHRIKE_PAGE_ID"); v != "" {
		cfg.Source.PageID = v
	}
	if v := os.Getenv("SHRIKE_ACCESS_TOKEN"); v != "" {
		cfg.Source.AccessToken = v
	}
	if v := os.Getenv("SHRIKE_RULES_PATH"); v != "" {
		cfg.Detection.RulesPath = v
	}
	if v := os.Getenv("SHRIKE_NOTIFIER"); v != "" {
		cfg.Notifier.Type = v
	}
	if v := os.Getenv("SHRIKE_LINE_TOKEN"); v != "" {
		cfg.Notifier.LineToken = v
	}
	if v := os.Getenv("SHRIKE_TELEGRAM_TOKEN"); v != "" {
		cfg.Notifier.TelegramToken = v
	}
	if v := os.Getenv("SHRIKE_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Notifier.TelegramChatID = id
		}
	}
	if v := os.Getenv("SHRIKE_RUN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Detection.RunInterval = d
		} else {
			slog.Warn("invalid SHRIKE_RUN_INTERVAL, scheduler disabled", "value", v)
		}
	}
	if v := os.Getenv("SHRIKE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("SHRIKE_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  SHRIKE - page feed content checking")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /check          - Check ad-hoc text")
	fmt.Println("    POST /run            - Run one batch over the page feed")
	fmt.Println("    GET  /checks         - List check records")
	fmt.Println("    GET  /checks/{id}    - Get check record by ID")
	fmt.Println("    GET  /posts/{id}     - Get stored post by ID")
	fmt.Println("    GET  /rules          - List active rules")
	fmt.Println("    POST /rules          - Create a new rule")
	fmt.Println("    DELETE /rules/{id}   - Delete a rule")
	fmt.Println("    POST /rules/reload   - Hot-reload rules from database")
	fmt.Println("    GET  /health         - Health check")
	fmt.Println()
}
