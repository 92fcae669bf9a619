// Package web serves the calendar API: filtered events, filter controls,
// record state and a websocket stream of change notifications.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/justinas/alice"

	"gamecal/internal/config"
	"gamecal/internal/feed"
	"gamecal/internal/filter"
	"gamecal/internal/log"
	"gamecal/internal/model"
	"gamecal/internal/notify"
	"gamecal/internal/report"
	"gamecal/internal/source"
)

// RecordSource is the reconciler as seen by the HTTP layer.
type RecordSource interface {
	Get(ctx context.Context, force bool) []model.Record
	Records() []model.Record
	Loading() bool
	Status() source.Status
}

type Options struct {
	Config    *config.Config
	Records   RecordSource
	Feed      feed.Feed
	Engine    *filter.Engine
	Selection *filter.Selection
	Hub       *notify.Hub
	Reporter  report.Reporter
	Log       *log.Logger

	// Sentry wraps the API in the Sentry HTTP middleware.
	Sentry bool

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Server provides the HTTP API.
type Server struct {
	cfg       *config.Config
	records   RecordSource
	feed      feed.Feed
	engine    *filter.Engine
	selection *filter.Selection
	hub       *notify.Hub
	reporter  report.Reporter
	log       *log.Logger
	sentry    bool
	now       func() time.Time
	loc       *time.Location

	mux *http.ServeMux

	// Raw feed events are kept briefly so filter toggles and page reloads
	// do not refetch the calendar.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Hub == nil {
		opts.Hub = notify.NewHub()
	}
	if opts.Feed == nil {
		opts.Feed = feed.Static(nil)
	}
	if opts.Reporter == nil {
		opts.Reporter = report.Func(func(context.Context, error, map[string]string) {})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		cfg:       opts.Config,
		records:   opts.Records,
		feed:      opts.Feed,
		engine:    opts.Engine,
		selection: opts.Selection,
		hub:       opts.Hub,
		reporter:  opts.Reporter,
		log:       opts.Log,
		sentry:    opts.Sentry,
		now:       opts.Now,
		mux:       http.NewServeMux(),
	}
	s.loc = resolveLocationOrLocal(s.cfg.Timezone, s.log)
	s.registerRoutes()
	return s
}

// Handler returns the API with its middleware chain applied. The websocket
// endpoint skips the response-wrapping middleware so it can hijack the
// connection.
func (s *Server) Handler() http.Handler {
	handlers := []alice.Constructor{s.logRequests}
	if s.sentry {
		handlers = append(handlers, sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	if s.basicAuthEnabled() {
		s.log.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		handlers = append(handlers, s.basicAuthMiddleware)
	}

	root := http.NewServeMux()
	root.Handle("GET /api/updates", alice.New(s.basicAuthMiddleware).ThenFunc(s.handleUpdates))
	root.Handle("/", alice.New(handlers...).Then(s.mux))
	return root
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events/{rest...}", s.handleEvent)

	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/legend", s.handleLegend)
	s.mux.HandleFunc("POST /api/filters/all", s.handleSelectAll)
	s.mux.HandleFunc("POST /api/filters/none", s.handleDeselectAll)
	s.mux.HandleFunc("POST /api/filters/{tag}/toggle", s.handleToggle)

	s.mux.HandleFunc("GET /api/records", s.handleRecords)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty user or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	if !s.basicAuthEnabled() {
		return next
	}
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gamecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/health" {
			return
		}
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string, logger *log.Logger) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
