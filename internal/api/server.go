// Package api serves the reader over HTTP: a JSON API under /api and a
// WebSocket at /ws that pushes every state change.
package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/JuniperReader/core/nav"
	"github.com/FocuswithJustin/JuniperReader/internal/illustration"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/narration"
	"github.com/FocuswithJustin/JuniperReader/internal/reader"
	"github.com/FocuswithJustin/JuniperReader/internal/server"
)

// Config holds API server options.
type Config struct {
	AllowedOrigins []string
	APIKey         string

	// RateLimitPerMinute limits jump and illustration requests per client
	// IP. Zero disables limiting.
	RateLimitPerMinute int
	RateLimitBurst     int

	// Web serves everything outside /api, /ws and /health.
	Web http.Handler
}

// Server is the reader's HTTP front end.
type Server struct {
	app      *reader.App
	cfg      Config
	hub      *Hub
	limiter  *RateLimiter
	upgrader *websocket.Upgrader
	handler  http.Handler
}

// New wires app to a hub and builds the handler chain. Call Close when done.
func New(cfg Config, app *reader.App) (*Server, error) {
	auth := AuthConfig{Enabled: cfg.APIKey != "", APIKey: cfg.APIKey}
	if err := ValidateAuthConfig(auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	s := &Server{
		app: app,
		cfg: cfg,
		hub: NewHub(),
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
	}
	if cfg.RateLimitPerMinute > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 5
		}
		s.limiter = NewRateLimiter(RateLimiterConfig{RequestsPerMinute: cfg.RateLimitPerMinute, BurstSize: burst})
		app.Log.Info("rate limiting enabled",
			"requests_per_minute", cfg.RateLimitPerMinute,
			"burst_size", burst)
	}
	go s.hub.Run()

	app.Navigator.Subscribe(func(snap nav.Snapshot) {
		s.hub.Broadcast(Event{Type: EventSpread, Data: NewSpreadView(snap, app.Notes)})
	})
	app.Narration.Subscribe(func(st narration.State) {
		s.hub.Broadcast(Event{Type: EventNarration, Data: st})
	})
	app.Display.Subscribe(func(key string, img *illustration.Image) {
		s.hub.Broadcast(Event{Type: EventIllustration, Data: NewIllustrationView(key, img)})
	})

	logging.SecurityEvent("authentication_configured", "api",
		"enabled", auth.Enabled)

	var api http.Handler = s.routes()
	api = server.SecurityHeadersWithCSP(server.APICSPConfig(), api)
	api = AuthMiddleware(auth, api)

	root := http.NewServeMux()
	root.Handle("/api/", api)
	root.Handle("/ws", api)
	root.Handle("/health", api)
	if cfg.Web != nil {
		root.Handle("/", server.SecurityHeadersWithCSP(server.ReaderCSPConfig(), cfg.Web))
	}

	var h http.Handler = root
	h = server.TimingMiddleware(app.Log, h)
	h = server.CORSMiddlewareWithConfig(server.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}, h)
	s.handler = logging.CombinedMiddleware(h)
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close disconnects WebSocket clients and stops background work. The
// App is not closed.
func (s *Server) Close() error {
	s.hub.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return nil
}

func (s *Server) limit(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(h)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWS)

	mux.HandleFunc("GET /api/spread", s.handleSpread)
	mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	mux.Handle("POST /api/jump", s.limit(s.handleJump))
	mux.HandleFunc("POST /api/notice/dismiss", s.handleDismiss)
	mux.HandleFunc("GET /api/books", s.handleBooks)

	mux.HandleFunc("GET /api/notes", s.handleListNotes)
	mux.HandleFunc("GET /api/notes/{key}", s.handleGetNote)
	mux.HandleFunc("PUT /api/notes/{key}", s.handlePutNote)
	mux.HandleFunc("DELETE /api/notes/{key}", s.handleDeleteNote)

	mux.Handle("POST /api/illustration", s.limit(s.handleIllustrate))
	mux.HandleFunc("GET /api/illustration/{key}", s.handleIllustrationImage)

	mux.HandleFunc("GET /api/narration", s.handleNarrationState)
	mux.HandleFunc("POST /api/narration/{action}", s.handleNarration)

	mux.HandleFunc("GET /api/testimony", s.handleGetTestimony)
	mux.HandleFunc("PUT /api/testimony", s.handlePutTestimony)
	return mux
}
