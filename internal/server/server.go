package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/sbar/internal/store"
	"github.com/jpalmerr/sbar/internal/trigger"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "sbar"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// TriggerFunc forwards an external trigger to the scheduler and reports
// whether any item matched.
type TriggerFunc func(ctx context.Context, id int) bool

// Server handles HTTP requests for the bar status page and API.
//
// Server provides these endpoints:
//   - GET /: Serves the embedded status page
//   - GET /api/status: Returns the latest snapshot as JSON
//   - GET /api/sse: Server-Sent Events stream of snapshots
//   - POST /api/trigger/{id}: Forwards an external trigger
//   - GET /metrics: Prometheus metrics, when a handler is configured
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	addr       string
	httpServer *http.Server
	listener   net.Listener
	assets     fs.FS
	title      string
	logger     *slog.Logger

	trigger TriggerFunc
	metrics http.Handler
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding the latest snapshot
//   - addr: TCP address to listen on, e.g. "127.0.0.1:7777"
//   - assets: Embedded filesystem containing the status page (may be nil)
//   - title: Page title (defaults to "sbar" if empty)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, addr string, assets fs.FS, title string, logger *slog.Logger) *Server {
	return &Server{
		store:  st,
		addr:   addr,
		assets: assets,
		title:  title,
		logger: logger,
	}
}

// SetTrigger enables POST /api/trigger/{id}. Call before Start.
func (s *Server) SetTrigger(fn TriggerFunc) {
	s.trigger = fn
}

// SetMetricsHandler enables GET /metrics. Call before Start.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metrics = h
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/sse", s.handleSSE)
	if s.trigger != nil {
		mux.HandleFunc("POST /api/trigger/{id}", s.handleTrigger)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	if s.assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}

	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown.
//
// Returns an error if the server fails to bind to the configured address.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify address availability synchronously
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", s.addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address after Start, or the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// handleDashboard serves the status page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Status page not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Status page not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write status page response", "error", err)
	}
}

// handleStatus returns the latest snapshot as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, ok := s.store.Latest()
	if !ok {
		http.Error(w, "Nothing published yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("failed to encode status response", "error", err)
	}
}

// triggerResponse is the body of a successful trigger request.
type triggerResponse struct {
	ID      int    `json:"id"`
	Signal  string `json:"signal"`
	Matched bool   `json:"matched"`
}

// handleTrigger forwards an external trigger to the scheduler.
//
// Lifecycle ids are rejected: terminating or reloading the bar is not
// something a local HTTP client may do.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "trigger id must be an integer", http.StatusBadRequest)
		return
	}
	if id == 0 {
		http.Error(w, "trigger id 0 means no trigger", http.StatusBadRequest)
		return
	}
	if err := trigger.Validate(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// the pass must not be skipped just because the client hung up
	matched := s.trigger(context.WithoutCancel(r.Context()), id)
	s.logger.Debug("http trigger", "signal", trigger.Name(id), "matched", matched)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(triggerResponse{ID: id, Signal: trigger.Name(id), Matched: matched}); err != nil {
		s.logger.Error("failed to encode trigger response", "error", err)
	}
}

// handleSSE streams snapshots via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer func() {
		s.store.Unsubscribe(ch)
		s.logger.Debug("sse client disconnected", "clients", s.store.Subscribers())
	}()
	s.logger.Debug("sse client connected", "clients", s.store.Subscribers())

	// send the current bar first so the client does not wait for the next pass
	if snap, ok := s.store.Latest(); ok {
		if data, err := json.Marshal(snap); err == nil {
			if err := writeAndFlush(data); err != nil {
				return
			}
		}
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
