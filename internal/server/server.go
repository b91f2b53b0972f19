// Package server assembles the editor API and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/adops/internal/activity"
	"github.com/matthewbaird/adops/internal/catalog"
	"github.com/matthewbaird/adops/internal/editor"
	"github.com/matthewbaird/adops/internal/handler"
	"github.com/matthewbaird/adops/internal/metrics"
	"github.com/matthewbaird/adops/internal/wire"
)

// Deps are the collaborators served by the router. Metrics is optional.
type Deps struct {
	Sessions *editor.Manager
	Catalog  catalog.Catalog
	Activity activity.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// NewRouter registers every route.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, handler.Logging(logger), middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	var observer wire.ConnObserver
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
		observer = d.Metrics
	}

	eh := handler.NewEditorHandler(d.Sessions)
	ch := handler.NewCatalogHandler(d.Catalog)
	ah := handler.NewActivityHandler(d.Activity)
	ws := wire.NewHandler(d.Sessions, observer)

	r.Route("/api", func(r chi.Router) {
		// --- Editor sessions ---
		r.Post("/editor/sessions", eh.HandleCreate)
		r.Get("/editor/sessions/{id}", eh.HandleGet)
		r.Delete("/editor/sessions/{id}", eh.HandleDiscard)
		r.Post("/editor/sessions/{id}/submit", eh.HandleSubmit)
		r.Method(http.MethodGet, "/editor/sessions/{id}/ws", ws)

		// --- Catalog ---
		r.Get("/catalog/brands", ch.HandleBrands)
		r.Get("/catalog/brands/{id}/accounts", ch.HandleAccounts)
		r.Get("/catalog/platforms", ch.HandlePlatforms)

		// --- Campaign history ---
		r.Get("/campaigns/{id}/activity", ah.HandleCampaignActivity)
		r.Post("/activity/search", ah.HandleSearchActivity)
	})
	return r
}

// Run serves h on port until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, port int, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
