package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/internal/archive"
	"github.com/diewo77/go-backoffice/internal/authgate"
	"github.com/diewo77/go-backoffice/internal/config"
	"github.com/diewo77/go-backoffice/internal/db"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/policy"
	"github.com/diewo77/go-backoffice/internal/tablestore"
	"github.com/diewo77/go-backoffice/internal/tasks"
	"github.com/diewo77/go-backoffice/internal/viewstate"
	"github.com/diewo77/go-backoffice/view"
)

var (
	configFlag      = flag.String("config", "", "Optional config file (yaml, json or toml)")
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
)

const (
	userCacheTTL  = 5 * time.Minute
	memoTTL       = time.Minute
	redisKeyspace = "backoffice:viewstate:"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.App.Dev)
	slog.SetDefault(logger)
	view.SetDev(cfg.App.Dev)

	if *migrateOnlyFlag {
		gdb, err := db.Open(cfg.Database, db.Options{SQLMigrations: true})
		if err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		_ = db.Close(gdb)
		slog.Info("migrations completed successfully")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	deps, cleanup, err := buildDeps(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to initialise dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	go sweepMemo(ctx, deps.Memo)

	appHandler := NewApp(policy.NewRouterConfig(deps), m, cfg.Server, logger)

	// Create server with config timeouts
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      appHandler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "dev", cfg.App.Dev)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	slog.Info("server stopped gracefully")
}

func newLogger(dev bool) *slog.Logger {
	if dev {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// buildDeps picks each collaborator's variant from configuration: no database
// gives the null table client and gate, no Redis the in-memory view state, no
// bucket the null archive.
func buildDeps(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (policy.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := policy.Deps{
		Sessions: auth.NewSessions(cfg.Session.Secret, cfg.Session.SessionTTL()),
		Memo:     tasks.NewMemo(memoTTL),
	}

	var gdb *gorm.DB
	if cfg.Database.Configured() {
		var err error
		gdb, err = db.Open(cfg.Database, db.Options{SQLMigrations: cfg.App.Migrations})
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close(gdb) })
		deps.DB = gdb
		deps.Store = tablestore.WithObserver(tablestore.NewGormClient(gdb), m)
		deps.Gate = authgate.NewSessionGate(deps.Store, userCacheTTL)
	} else {
		slog.Warn("no database configured, reads are empty and writes are refused")
		deps.Store = tablestore.WithObserver(tablestore.NullClient{}, m)
		deps.Gate = authgate.NullGate{}
	}

	redisTTL := time.Duration(cfg.Redis.TTLHours) * time.Hour
	deps.States = viewstate.NewMemoryStore(redisTTL)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := viewstate.NewRedisStore(client, redisKeyspace, redisTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			slog.Warn("redis unreachable, keeping view state in memory", "addr", cfg.Redis.Addr, "error", err)
			_ = store.Close()
		} else {
			deps.States = store
			closers = append(closers, func() { _ = store.Close() })
		}
	}

	deps.Archive = archive.NullArchive{}
	if cfg.Archive.Bucket != "" {
		arc, err := archive.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			return deps, cleanup, err
		}
		deps.Archive = arc
		slog.Info("document archive enabled", "bucket", cfg.Archive.Bucket, "endpoint", cfg.Archive.Endpoint)
	}
	return deps, cleanup, nil
}

func sweepMemo(ctx context.Context, memo *tasks.Memo) {
	t := time.NewTicker(memoTTL)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			memo.Sweep()
			hits, misses := memo.Counters()
			slog.Debug("task memo swept", "hits", hits, "misses", misses)
		}
	}
}
