package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/stocktransfer/internal/config"
	"github.com/JonMunkholm/stocktransfer/internal/core"
	"github.com/JonMunkholm/stocktransfer/internal/erp"
	"github.com/JonMunkholm/stocktransfer/internal/logging"
	"github.com/JonMunkholm/stocktransfer/internal/metrics"
	"github.com/JonMunkholm/stocktransfer/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"erp_url", cfg.ERP.URL,
		"erp_db", cfg.ERP.Database,
		"encoding", cfg.Transfer.Encoding,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	locations, err := config.LoadLocations(cfg.Transfer.LocationsFile, cfg.Transfer.SourceLocation)
	if err != nil {
		slog.Error("failed to load locations", "error", err)
		os.Exit(1)
	}
	slog.Info("locations loaded",
		"file", cfg.Transfer.LocationsFile,
		"source", locations.Source,
		"locations", len(locations.Locations),
		"aliases", len(locations.Aliases),
	)

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	client, err := erp.NewClient(erp.Config{
		URL:      cfg.ERP.URL,
		Database: cfg.ERP.Database,
		Username: cfg.ERP.Username,
		Password: cfg.ERP.Password,
		Timeout:  cfg.ERP.Timeout,
	})
	if err != nil {
		slog.Error("failed to create ERP client", "error", err)
		os.Exit(1)
	}

	// Fail fast on bad credentials rather than on the first upload.
	ctx := context.Background()
	uid, err := client.Login(ctx)
	if err != nil {
		slog.Error("failed to log in to Odoo", "error", err, "hint", core.FormatUserError(err))
		os.Exit(1)
	}
	slog.Info("connected to Odoo", "db", cfg.ERP.Database, "uid", uid)

	history, closeHistory, err := openHistory(ctx, cfg)
	if err != nil {
		slog.Error("failed to open run history", "error", err)
		os.Exit(1)
	}
	defer closeHistory()

	service, err := core.NewService(client, locations, history, core.OptionsFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, client, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartHistoryPruner(jobCtx, core.RetentionConfig{
		Days:     cfg.Database.HistoryRetentionDays,
		Interval: cfg.Database.PruneInterval,
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Runs are not transactional; let them finish rather than leave
		// half-built transfers behind.
		if st := service.LimiterStatus(); st.Active > 0 {
			slog.Info("waiting for runs to complete", "active", st.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openHistory returns the Postgres run history when DATABASE_URL is set and
// an in-memory one otherwise.
func openHistory(ctx context.Context, cfg *config.Config) (core.HistoryStore, func(), error) {
	if cfg.Database.URL == "" {
		slog.Info("run history kept in memory", "size", cfg.Upload.HistorySize)
		return core.NewMemoryHistory(cfg.Upload.HistorySize), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	history := core.NewPostgresHistory(pool)
	if err := history.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return history, pool.Close, nil
}
