// Package server exposes batch processing, exports and provider admin over
// HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/store"
)

// BatchRunner processes an ordered list of image paths.
type BatchRunner interface {
	Run(ctx context.Context, refs []string) *model.Batch
}

// RunnerFactory builds a runner from the current OCR settings. It is called
// once per upload so admin changes apply to the next batch.
type RunnerFactory func() (BatchRunner, error)

// Server holds the HTTP handlers' dependencies.
type Server struct {
	cfg       config.ServerConfig
	store     store.Store
	settings  *config.SettingsStore
	newRunner RunnerFactory
	now       func() time.Time
}

// New creates a Server.
func New(cfg config.ServerConfig, st store.Store, settings *config.SettingsStore, newRunner RunnerFactory) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		settings:  settings,
		newRunner: newRunner,
		now:       time.Now,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Put("/admin/providers/{provider}", s.handleUpdateProvider)

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", s.handleCreateBatch)
			r.Get("/", s.handleListBatches)
			r.Get("/latest", s.handleLatestBatch)
			r.Get("/{id}", s.handleGetBatch)
			r.Get("/{id}/export.xlsx", s.handleExportExcel)
			r.Get("/{id}/export.html", s.handleExportHTML)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
