// Package server assembles the service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"bookloan/internal/availability"
	"bookloan/internal/catalog"
	"bookloan/internal/circulation"
	"bookloan/internal/config"
	"bookloan/internal/membership"
	"bookloan/internal/postgres"
	"bookloan/internal/scheduler"
)

// App is the assembled service.
type App struct {
	Bus         *availability.Bus
	Catalog     catalog.Service
	Circulation circulation.Service
	Membership  membership.Service
	Sweep       *scheduler.OverdueSweep

	cfg     *config.Config
	logger  *slog.Logger
	db      *sqlx.DB
	handler http.Handler
}

// AppOption adjusts how the App is assembled.
type AppOption func(*appOptions)

type appOptions struct {
	now func() time.Time
}

// WithClock replaces the wall clock used for borrowing dates and seed data.
func WithClock(now func() time.Time) AppOption {
	return func(o *appOptions) {
		o.now = now
	}
}

// NewApp wires stores, ports, the event bus and the HTTP handlers according
// to cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	o := appOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	mode, err := catalog.ParseTransitionMode(cfg.Availability.TransitionMode)
	if err != nil {
		return nil, err
	}
	policy, err := availability.ParsePolicy(cfg.Availability.StreamPolicy)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}

	var (
		bookStore   catalog.Store
		memberStore membership.Store
		repo        circulation.Repository
	)
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		bookStore = catalog.NewPostgresStore(db)
		memberStore = membership.NewPostgresStore(db)
		repo = circulation.NewPostgresRepository(db)
	default:
		bookStore = catalog.NewMemoryStore()
		memberStore = membership.NewMemoryStore()
		repo = circulation.NewMemoryRepository()
	}

	a.Bus = availability.NewBus(
		availability.WithMaxBacklog(cfg.Availability.MaxBacklog),
		availability.WithLogger(logger),
	)
	publisher := catalog.NewStatusPublisher(bookStore, a.Bus, logger)

	a.Catalog = catalog.NewService(bookStore, publisher)
	a.Membership = membership.NewService(memberStore, logger)
	a.Circulation = circulation.NewService(
		repo,
		catalog.NewAvailabilityAdapter(bookStore, publisher, catalog.WithTransitionMode(mode)),
		membership.NewStatusAdapter(memberStore),
		circulation.WithLogger(logger),
		circulation.WithClock(o.now),
	)
	a.Sweep = scheduler.NewOverdueSweep(a.Circulation, cfg.Overdue.SweepSchedule, logger)

	if cfg.Storage.Driver == config.StorageMemory && cfg.Storage.Seed {
		if err := seed(ctx, bookStore, a.Membership, repo, o.now()); err != nil {
			return nil, err
		}
		logger.Info("seeded demo data", "books", len(seedBooks))
	}

	assembler := availability.NewAssembler(a.Catalog, a.Bus, policy, logger)
	a.handler = NewRouter(Handlers{
		Catalog: catalog.NewHandler(a.Catalog, assembler, logger,
			catalog.WithStreamLimiter(rate.NewLimiter(rate.Limit(cfg.Availability.StreamRate), cfg.Availability.StreamBurst)),
			catalog.WithHeartbeat(cfg.Availability.Heartbeat),
		),
		Circulation: circulation.NewHandler(a.Circulation, logger),
		Membership:  membership.NewHandler(a.Membership, logger),
	}, a.health, logger)

	logger.Info("service assembled",
		"storage", cfg.Storage.Driver,
		"transition_mode", mode.String(),
		"stream_policy", policy.String(),
	)
	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) health(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.db.PingContext(ctx)
}

// Run serves HTTP on the configured address until ctx is done, then shuts
// down gracefully. Open availability streams end when the bus closes.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if a.cfg.Overdue.SweepEnabled {
		if err := a.Sweep.Start(ctx); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(a.Bus.Close)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", "timeout", a.cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close stops background work and releases the database.
func (a *App) Close() {
	a.Sweep.Stop()
	a.Bus.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}
