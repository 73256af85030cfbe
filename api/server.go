package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/silobot/silo"
	"github.com/silobot/silo/models"
)

// LinkSaver runs the full save flow for a shared URL.
type LinkSaver interface {
	SaveLink(ctx context.Context, userID int64, username, pageURL, note string) (*silo.SaveReport, error)
}

// LinkFinder answers natural language queries over a user's links.
type LinkFinder interface {
	FindLinks(ctx context.Context, userID int64, query string, limit int) ([]models.Link, error)
}

// Archiver preserves a saved link against link rot.
type Archiver interface {
	Archive(ctx context.Context, linkID int64, pageURL string) (string, error)
}

// Library is the read and collection surface of the link store.
type Library interface {
	GetRecentLinks(ctx context.Context, userID int64, limit int) ([]models.Link, error)
	GetLinkByID(ctx context.Context, userID, linkID int64) (*models.Link, error)
	GetLinkStats(ctx context.Context, userID int64) (*models.Stats, error)
	GetLinksForExport(ctx context.Context, userID int64) ([]models.ExportRow, error)
	CreateCollection(ctx context.Context, userID int64, name string, isPublic bool) (int64, error)
	AddLinkToCollection(ctx context.Context, collectionID, linkID int64) error
	ListCollections(ctx context.Context, userID int64) ([]models.Collection, error)
}

// Deps are the injected collaborators of the API server.
type Deps struct {
	Saver    LinkSaver
	Finder   LinkFinder
	Archiver Archiver
	Library  Library
}

// Config contains server configuration
type Config struct {
	Addr        string
	CORSEnabled bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		CORSEnabled: true,
	}
}

// Server represents the API server
type Server struct {
	deps        Deps
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
}

// NewServer creates a new API server with its collaborators injected
func NewServer(config Config, deps Deps) *Server {
	s := &Server{
		deps:        deps,
		addr:        config.Addr,
		mux:         http.NewServeMux(),
		corsEnabled: config.CORSEnabled,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.middleware(s.mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Allow time for slow fetches and model calls
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/links", s.handleSaveLink)
	s.mux.HandleFunc("/api/links/search", s.handleSearch)
	s.mux.HandleFunc("/api/links/recent", s.handleRecent)
	s.mux.HandleFunc("/api/links/", s.handleLink) // Handles /api/links/{id}
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/export", s.handleExport)
	s.mux.HandleFunc("/api/archive", s.handleArchive)
	s.mux.HandleFunc("/api/collections", s.handleCollections)
	s.mux.HandleFunc("/api/collections/links", s.handleCollectionLinks)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// Start starts the API server
func (s *Server) Start() error {
	slog.Info("starting API server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// middleware applies CORS, request logging and metrics to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		// Skip health checks to reduce noise
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			observeRequest(r.Method, r.URL.Path, time.Since(start))
			slog.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	})
}
