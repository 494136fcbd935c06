// Package web implements the HTTP server of an oasis node: the JSON API,
// a small status dashboard, Prometheus metrics and live event streams.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/api"
	"oasis.ledger/oasis/internal/docs"
	"oasis.ledger/oasis/internal/events"
	"oasis.ledger/oasis/internal/logger"
	"oasis.ledger/oasis/internal/types"
)

// Server is the web server for the dashboard and API.
type Server struct {
	node      api.Node
	api       *api.Service
	bus       *events.Bus
	ring      *logger.Ring
	gatherer  prometheus.Gatherer
	docs      *docs.Service
	port      int
	templates *template.Template
	broker    *broker
	stop      func()
	log       *zap.Logger
}

// Option configures optional parts of the server.
type Option func(*Server)

// WithEvents enables the event stream endpoints.
func WithEvents(bus *events.Bus) Option {
	return func(s *Server) { s.bus = bus }
}

// WithMetrics serves gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogRing enables the log stream endpoint.
func WithLogRing(r *logger.Ring) Option {
	return func(s *Server) { s.ring = r }
}

// WithDocs serves the rendered manual under /docs/.
func WithDocs(d *docs.Service) Option {
	return func(s *Server) { s.docs = d }
}

// NewServer creates a new web server.
func NewServer(node api.Node, apiService *api.Service, port int, log *zap.Logger, opts ...Option) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s := &Server{
		node:      node,
		api:       apiService,
		port:      port,
		templates: templates,
		log:       log.Named("web"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus != nil {
		s.broker = newBroker()
		unsubscribe, err := s.bus.Subscribe(s.broker.publish)
		if err != nil {
			return nil, fmt.Errorf("subscribe to ledger events: %w", err)
		}
		s.stop = unsubscribe
	}
	return s, nil
}

// Close detaches the server from the event bus and ends every stream.
func (s *Server) Close() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.broker != nil {
		s.broker.closeAll()
	}
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handlePageLoad)
	s.api.Routes(mux)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.bus != nil {
		mux.HandleFunc("/ws/events", s.handleEventsWS)
		mux.HandleFunc("/api/events/stream", s.handleEventsStream)
	}
	if s.ring != nil {
		mux.HandleFunc("/ws/status", s.handleStatusWS)
	}
	if s.docs != nil {
		mux.HandleFunc("/docs/", s.handleDocs)
	}
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving dashboard and API", zap.String("addr", fmt.Sprintf("http://localhost:%d", s.port)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown web server: %w", err)
		}
		return nil
	}
}

// dashboardData is rendered by the index template.
type dashboardData struct {
	Status      types.NodeStatus
	Health      types.HealthStatus
	Description string
	Events      []events.Event
	Logs        []logger.Message
}

func (s *Server) handlePageLoad(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	st := s.node.Status()
	health := types.DetermineHealth(st, time.Now(), types.DefaultHealthThresholds())
	data := dashboardData{
		Status:      st,
		Health:      health,
		Description: types.HealthDescription(health),
	}
	if s.bus != nil {
		data.Events = s.bus.Recent(20)
	}
	if s.ring != nil {
		data.Logs = s.ring.GetRecent(20)
	}

	s.setCacheHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index", data); err != nil {
		s.log.Error("render dashboard", zap.Error(err))
	}
}

// docPage is rendered by the doc template.
type docPage struct {
	Names []string
	Name  string
	Body  template.HTML
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	names, err := s.docs.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	page := docPage{Names: names, Name: strings.TrimPrefix(r.URL.Path, "/docs/")}
	if page.Name == "" && len(names) > 0 {
		page.Name = names[0]
	}
	if page.Name != "" {
		body, err := s.docs.Render(page.Name)
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.log.Error("render document", zap.String("name", page.Name), zap.Error(err))
			http.Error(w, "failed to render document", http.StatusInternalServerError)
			return
		}
		// libasciidoc escapes document text
		page.Body = template.HTML(body)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "doc", page); err != nil {
		s.log.Error("render doc page", zap.Error(err))
	}
}

// setCacheHeaders sets cache-busting headers to prevent browser caching.
func (s *Server) setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
