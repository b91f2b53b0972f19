package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/language"

	"github.com/matthewbaird/adops/internal/activity"
	"github.com/matthewbaird/adops/internal/catalog"
	"github.com/matthewbaird/adops/internal/config"
	"github.com/matthewbaird/adops/internal/database"
	"github.com/matthewbaird/adops/internal/editor"
	"github.com/matthewbaird/adops/internal/event"
	"github.com/matthewbaird/adops/internal/eventbus"
	"github.com/matthewbaird/adops/internal/metrics"
)

// janitorInterval is how often expired sessions are swept.
const janitorInterval = time.Minute

// App is the assembled editor service over one SQLite database.
type App struct {
	Handler  http.Handler
	Sessions *editor.Manager

	drv       *entsql.Driver
	catalog   *catalog.SQLCatalog
	cached    *catalog.CachedCatalog
	bus       *eventbus.Bus
	logger    *slog.Logger
	startOnce sync.Once
	started   bool
}

// NewApp opens the database, creates missing tables and wires the editor.
// Collectors are registered on reg.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	locale, err := language.Parse(cfg.CollationLocale)
	if err != nil {
		return nil, fmt.Errorf("collation locale %q: %w", cfg.CollationLocale, err)
	}

	drv, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	sqlCatalog := catalog.NewSQLCatalog(drv)
	repo := editor.NewRepository(drv)
	history := activity.NewSQLStore(drv)
	for _, create := range []func(context.Context) error{
		sqlCatalog.CreateTables,
		repo.CreateTables,
		history.CreateTable,
	} {
		if err := create(ctx); err != nil {
			drv.Close()
			return nil, err
		}
	}

	m := metrics.New(reg)
	cached := catalog.NewCachedCatalog(sqlCatalog, cfg.CatalogCacheTTL)
	cached.SetObserver(m.CacheObserver)

	bus := eventbus.New(256, eventbus.WithLogger(logger))
	bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	bus.Subscribe("metrics", m)

	recorder := event.NewActivityRecorder(history)
	recorder.SetPublisher(bus)

	sessions := editor.NewManager(editor.Config{
		Catalog:      cached,
		Persister:    repo,
		Loader:       repo,
		Recorder:     recorder,
		Locale:       locale,
		MaxAge:       cfg.SessionMaxAge,
		IdleTimeout:  cfg.SessionIdleTimeout,
		LookupHook:   m.LookupHook(),
		NodeObserver: m.NodeObserver(),
	})

	return &App{
		Handler: NewRouter(Deps{
			Sessions: sessions,
			Catalog:  cached,
			Activity: history,
			Metrics:  m,
			Logger:   logger,
		}),
		Sessions: sessions,
		drv:      drv,
		catalog:  sqlCatalog,
		cached:   cached,
		bus:      bus,
		logger:   logger,
	}, nil
}

// Seed loads a catalog fixture and drops cached lookups.
func (a *App) Seed(ctx context.Context, f *catalog.Fixture) error {
	if err := a.catalog.Seed(ctx, f); err != nil {
		return err
	}
	a.cached.Flush()
	return nil
}

// Start runs the event bus and the session janitor until ctx is done.
func (a *App) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.started = true
		a.bus.Start(ctx)
		go a.Sessions.Run(ctx, janitorInterval)
	})
}

// Close drains the event bus and closes the database.
func (a *App) Close() error {
	if a.started {
		a.bus.Stop()
	}
	return a.drv.Close()
}
