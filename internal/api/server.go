// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vrsandeep/seo-batch/internal/assets"
	"github.com/vrsandeep/seo-batch/internal/core"
	"github.com/vrsandeep/seo-batch/internal/store"
	"go.uber.org/zap"
)

// maxUploadSize bounds multipart bodies (CSV uploads).
const maxUploadSize = 10 << 20

// Server holds the dependencies for our API.
type Server struct {
	app    *core.App
	store  *store.Store
	logger *zap.Logger
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:    app,
		store:  app.Store(),
		logger: app.Logger().Named("api"),
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer) // Recovers from panics

	r.Handle("/metrics", promhttp.Handler())

	// WebSocket route
	r.Get("/ws/progress", func(w http.ResponseWriter, r *http.Request) {
		s.app.WsHub().ServeWs(w, r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleGetVersion)
		r.Post("/detect-language", s.handleDetectLanguage)

		r.Post("/batch", s.handleStartBatch)
		r.Get("/batch/status", s.handleBatchStatus)
		r.Post("/batch/cancel", s.handleCancelBatch)

		r.Get("/runs", s.handleListRuns)
		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/", s.handleGetRun)
			r.Delete("/", s.handleDeleteRun)
			r.Get("/export.csv", s.handleExportOutcomes)
			r.Get("/links.csv", s.handleExportLinks)
			r.Get("/domains/{kind}", s.handleExportDomains)
		})

		// Synchronous backend proxies.
		r.Post("/process", s.handleProcess)
		r.Post("/generate", s.handleGenerate)
		r.Post("/generate-batch", s.handleGenerateBatch)
	})

	// Frontend Routes
	webSubFS, err := fs.Sub(assets.WebFS, "web")
	if err != nil {
		s.logger.Fatal("failed to create web sub-filesystem", zap.Error(err))
	}

	// This handler serves a specific HTML file from the embedded FS.
	serveHTML := func(fileName string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			file, err := webSubFS.Open(fileName)
			if err != nil {
				http.NotFound(w, r)
				s.logger.Error("error serving embedded file", zap.String("file", fileName), zap.Error(err))
				return
			}
			defer file.Close()
			http.ServeContent(w, r, fileName, time.Time{}, file.(io.ReadSeeker))
		}
	}

	r.Get("/", serveHTML("index.html"))

	return r
}
