package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webtracker/internal/handlers"
	"webtracker/internal/ingest"
	"webtracker/internal/query"
	"webtracker/internal/storage"
	"webtracker/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DB       *sql.DB
	Pipeline *ingest.Pipeline
	Engine   query.Engine
	Vectors  vectorstore.Store
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(CORS)

	websites := storage.NewWebsiteRepo(deps.DB)
	visitHandler := handlers.NewVisitHandler(deps.Pipeline)
	queryHandler := handlers.NewQueryHandler(deps.Engine, websites)
	websiteHandler := handlers.NewWebsiteHandler(storage.NewMirror(deps.DB))
	renderHandler := handlers.NewRenderHandler(storage.NewVisitRepo(deps.DB))
	reindexHandler := handlers.NewReindexHandler(deps.Pipeline)
	healthHandler := handlers.NewHealthHandler(deps.Vectors, deps.DB)

	r.Method(http.MethodPost, "/visit", visitHandler)
	r.Get("/latest_version", queryHandler.LatestVersion)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/visit", visitHandler)
		r.Get("/latest_version", queryHandler.LatestVersion)
		r.Get("/versions", queryHandler.Versions)
		r.Get("/search", queryHandler.Search)
		r.Get("/snapshots", queryHandler.Snapshots)
		r.Get("/websites", queryHandler.Websites)
		r.Method(http.MethodGet, "/website", websiteHandler)
		r.Method(http.MethodGet, "/render", renderHandler)
		r.Post("/reindex", reindexHandler.Start)
		r.Get("/reindex", reindexHandler.Status)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
