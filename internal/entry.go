// Package internal wires the backup engine's components into runnable modes.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/isaz/internal/api"
	"github.com/starford/isaz/internal/archive"
	"github.com/starford/isaz/internal/inventory"
	"github.com/starford/isaz/internal/scheduler"
	"github.com/starford/isaz/internal/status"
	"github.com/starford/isaz/internal/vault"
	"github.com/starford/isaz/internal/watch"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// newScheduler builds the packaging/upload pipeline behind a Scheduler.
// In dry-run mode no vault client or catalog is constructed: the decision
// path must work without credentials or local state.
func newScheduler(ctx context.Context, app *application, logger *slog.Logger) (*scheduler.Scheduler, func(), error) {
	cfg := app.config

	if app.dryRun {
		sched := scheduler.New(cfg.Backup.Root, cfg.Backup.Recipients, nil, nil, nil, logger)
		sched.DryRun = true
		sched.Single = app.single
		return sched, func() {}, nil
	}

	catalog, err := inventory.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init catalog: %w", err)
	}

	uploader, err := vault.NewClient(ctx,
		cfg.Vault.Region, cfg.Vault.Name, cfg.Vault.AccountID,
		cfg.Vault.PollInterval(), cfg.Vault.PollMaxAttempts, logger)
	if err != nil {
		catalog.Close()
		return nil, nil, fmt.Errorf("init vault client: %w", err)
	}

	builder := archive.NewBuilder(cfg.Backup.ScratchDir, cfg.Backup.EncryptCmd)

	sched := scheduler.New(cfg.Backup.Root, cfg.Backup.Recipients, builder, uploader, catalog, logger)
	sched.Single = app.single
	return sched, func() { catalog.Close() }, nil
}

// RunBackup executes one backup pass over the configured root.
func RunBackup(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	logger.Info("Configuration loaded",
		slog.String("backup_root", app.config.Backup.Root),
		slog.String("vault", app.config.Vault.Name),
		slog.Bool("dry_run", app.dryRun),
		slog.Bool("single", app.single),
		slog.String("log_level", app.config.App.LogLevel.String()))

	sched, cleanup, err := newScheduler(ctx, app, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return sched.Run(ctx)
}

// RunWatch watches the backup root and runs a backup pass whenever its
// content settles after a change.
func RunWatch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	sched, cleanup, err := newScheduler(ctx, app, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watch.Watch(ctx, app.config.Backup.Root, app.config.Backup.WatchDebounce(), logger, sched.Run)
}

// RunServe starts the read-only reporting HTTP server.
func RunServe(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg)

	catalog, err := inventory.Open(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}
	defer catalog.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(api.NewHandler(cfg.Backup.Root, catalog, logger)))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// Inventory returns the archive catalog, refreshed from the vault first
// when remote is true.
func Inventory(ctx context.Context, remote bool, opts ...Option) ([]inventory.Row, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	cfg := app.config
	logger := newLogger(cfg)

	catalog, err := inventory.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	defer catalog.Close()

	if remote {
		client, err := vault.NewClient(ctx,
			cfg.Vault.Region, cfg.Vault.Name, cfg.Vault.AccountID,
			cfg.Vault.PollInterval(), cfg.Vault.PollMaxAttempts, logger)
		if err != nil {
			return nil, fmt.Errorf("init vault client: %w", err)
		}
		archives, err := client.Inventory(ctx)
		if err != nil {
			return nil, err
		}

		rows := make([]inventory.Row, 0, len(archives))
		for _, a := range archives {
			uploadedAt, err := time.Parse(time.RFC3339, a.CreationDate)
			if err != nil {
				logger.Warn("inventory: unparseable creation date",
					slog.String("archive_id", a.ArchiveID),
					slog.String("creation_date", a.CreationDate))
			}
			rows = append(rows, inventory.Row{
				ArchiveID:   a.ArchiveID,
				Description: a.Description,
				Size:        a.Size,
				UploadedAt:  uploadedAt,
			})
		}
		if err := catalog.Replace(rows); err != nil {
			return nil, err
		}
		logger.Info("inventory: catalog refreshed", slog.Int("archives", len(rows)))
	}

	return catalog.List()
}

// Ignore marks one directory as excluded from backup. A relative name is
// resolved against the configured backup root.
func Ignore(dir string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	if !filepath.IsAbs(dir) {
		dir = filepath.Join(app.config.Backup.Root, dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("ignore: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("ignore: %s is not a directory", dir)
	}
	if err := status.MarkIgnored(dir); err != nil {
		return err
	}
	logger.Info("directory marked as ignored", slog.String("dir", dir))
	return nil
}
