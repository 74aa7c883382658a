package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/config"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/queue"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/samples"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/transport"
)

// Deps are the components the API serves. Stream and Offer may be nil when
// the corresponding listen-along sink is disabled.
type Deps struct {
	Controller *transport.Controller
	Queue      *queue.Queue
	Store      *samples.Store
	Stream     http.Handler
	Offer      http.Handler
}

// Server handles HTTP API requests.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	server   *http.Server
	ctrl     *transport.Controller
	queue    *queue.Queue
	store    *samples.Store
	upgrader websocket.Upgrader
	handler  http.Handler

	// uploadMu makes selecting an asset and enqueueing its decode one step,
	// so the last selection is always the last job queued.
	uploadMu sync.Mutex
}

// New creates a new API server.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		ctrl:   deps.Controller,
		queue:  deps.Queue,
		store:  deps.Store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)

	mux.HandleFunc("POST /v1/assets", s.withAuth(s.handleUpload))
	mux.HandleFunc("GET /v1/assets/current", s.handleCurrentAsset)
	mux.HandleFunc("GET /v1/jobs/{id}", s.handleJobStatus)

	mux.HandleFunc("GET /v1/state", s.handleState)
	mux.HandleFunc("POST /v1/transport/{action}", s.withAuth(s.handleTransport))

	mux.HandleFunc("GET /v1/waveform", s.handleWaveform)
	mux.HandleFunc("GET /v1/markers", s.handleListMarkers)
	mux.HandleFunc("PUT /v1/markers", s.withAuth(s.handleSetMarkers))
	mux.HandleFunc("POST /v1/markers/{index}/seek", s.withAuth(s.handleSeekMarker))

	mux.HandleFunc("GET /v1/ws", s.withAuth(s.handleWebSocket))

	if deps.Stream != nil {
		mux.Handle("GET /v1/stream", deps.Stream)
	}
	if deps.Offer != nil {
		mux.HandleFunc("POST /v1/offer", s.withAuth(deps.Offer.ServeHTTP))
	}

	s.handler = mux
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: /v1/stream and /v1/ws stay open.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
