// Package api serves the control, health and HLS routes of the noise stream
// service.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/noisestream/internal/api/models"
	"github.com/smazurov/noisestream/internal/events"
	"github.com/smazurov/noisestream/internal/logging"
	"github.com/smazurov/noisestream/internal/streams"
	"github.com/smazurov/noisestream/internal/version"
)

// Registry is the stream supervisor the API drives.
type Registry interface {
	Noises() []string
	HLSDir() string
	StartAll() streams.BatchStartResult
	StopAll() streams.BatchStopResult
	Start(id string) streams.Result
	Stop(id string) streams.Result
	Get(id string) (streams.StreamInfo, bool)
	List() []streams.StreamInfo
	Status() streams.StatusSummary
	Health() streams.HealthReport
	StreamHealth(id string) (streams.StreamHealth, bool)
}

// Options configures the API server.
type Options struct {
	AuthUsername   string
	AuthPassword   string
	Registry       Registry
	EventBus       *events.Bus
	MetricsHandler http.Handler // optional, mounted at /metrics
}

// Server is the HTTP front end of the service.
type Server struct {
	api      huma.API
	mux      *http.ServeMux
	registry Registry
	eventBus *events.Bus
	options  *Options
	cors     CORSConfig
	logger   *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates the API server and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig(models.ServiceName, version.Version)
	config.Info.Description = models.ServiceDescription
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		registry: opts.Registry,
		eventBus: opts.EventBus,
		options:  opts,
		cors:     corsConfig,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Start listens on addr and serves until Stop is called. It returns nil
// after a clean shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Starting API server", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down. Long-lived SSE connections are closed once ctx
// expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("Stopping API server")
	if err := srv.Shutdown(ctx); err != nil {
		return srv.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /{$}", s.plain(s.handleIndex))
	// without this the OPTIONS catch-all turns unknown paths into 405
	s.mux.Handle("/", s.plain(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "Not found")
	}))

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	s.registerStreamRoutes()
	s.registerHLSRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}

// plain wraps a handler served outside Huma with CORS and request logging.
func (s *Server) plain(h http.HandlerFunc) http.Handler {
	return WithCORS(s.cors, withRequestLogging(h))
}

// withAuth returns security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
