package output

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Peuqui/endlessh-exporter/internal/app"
)

// ServerConfig configures the scrape transport.
type ServerConfig struct {
	Addr string
	Path string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr: ":9314",
		Path: "/metrics",
	}
}

// Server is the scrape transport: a single GET route that triggers a
// reconciliation pass and returns the rendered exposition. Every other
// path is a 404 by contract.
type Server struct {
	engine    *app.Engine
	telemetry *Telemetry
	config    ServerConfig
	srv       *http.Server
}

func NewServer(engine *app.Engine, telemetry *Telemetry, config ServerConfig) *Server {
	if config.Addr == "" {
		config.Addr = DefaultServerConfig().Addr
	}
	if config.Path == "" {
		config.Path = DefaultServerConfig().Path
	}

	s := &Server{
		engine:    engine,
		telemetry: telemetry,
		config:    config,
	}

	router := mux.NewRouter()
	router.HandleFunc(config.Path, s.handleMetrics).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	s.srv = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start binds the listener synchronously (a bind failure is the only fatal
// error in the exporter), then serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("bind scrape listener: %w", err)
	}

	go func() {
		log.Info().Str("addr", s.config.Addr).Str("path", s.config.Path).Msg("Scrape server listening")
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Scrape server error")
		}
	}()
	return nil
}

// Stop shuts the server down, waiting for in-flight scrapes up to the
// context deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	body := s.engine.Scrape(r.Context())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(body)); err != nil {
		log.Warn().Err(err).Msg("Failed to write scrape response")
		return
	}
	if s.telemetry != nil {
		if err := s.telemetry.WriteTo(w); err != nil {
			log.Warn().Err(err).Msg("Failed to append exporter telemetry")
		}
	}
}
