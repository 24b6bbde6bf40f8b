package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/match"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxLinkBody caps POST /v1/link payloads; perimeters can be large.
const maxLinkBody = 4 << 20

// Linker is the engine surface the HTTP server exposes.
type Linker interface {
	Link(src domain.SourceEntity) (domain.Linked, error)
	Status() match.Status
}

// Server exposes health, readiness, metrics, engine status and on-demand
// linking HTTP endpoints.
type Server struct {
	httpServer *http.Server
	linker     Linker
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics
// routes. When linker is non-nil it also serves GET /statusz and
// POST /v1/link.
func NewServer(addr string, ready sharedobs.ReadinessChecker, linker Linker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		linker: linker,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if linker != nil {
		mux.HandleFunc("GET /statusz", s.handleStatus)
		mux.HandleFunc("POST /v1/link", s.handleLink)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.linker.Status())
}

// handleLink links a single incident posted as a source record. Rejected
// candidates are always included in the response.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLinkBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	src, err := domain.ParseRawEvent(domain.RawEvent{Value: body})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if src.DataErr != nil {
		s.logger.Warn("source data ignored", "source_id", src.ID, "error", src.DataErr)
	}

	linked, err := s.linker.Link(src)
	switch {
	case errors.Is(err, domain.ErrIndexUnbuilt):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.logger.Error("link request failed", "source_id", src.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, domain.NewLinkedRecord(linked, true))
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
