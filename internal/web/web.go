package web

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"notionics/internal/config"
	"notionics/internal/feed"
	appLog "notionics/internal/log"
	"notionics/internal/metrics"
)

// Feeds returns an assembled feed body for a mode. *feed.Cache satisfies it.
type Feeds interface {
	Get(ctx context.Context, mode feed.Mode) (string, error)
}

// Route paths.
const (
	PathHealth   = "/health"
	PathMetrics  = "/metrics"
	PathFullFeed = "/calendar.ics"
	PathLiteFeed = "/calendar-lite.ics"
)

const calendarContentType = "text/calendar; charset=utf-8"

// Server is the HTTP delivery surface for the feeds.
type Server struct {
	cfg      *config.Config
	feeds    Feeds
	metrics  metrics.Recorder
	gatherer prometheus.Gatherer
	router   chi.Router
}

// NewServer wires the routes. rec and gatherer may be nil; /metrics is
// only mounted when gatherer is set.
func NewServer(cfg *config.Config, feeds Feeds, rec metrics.Recorder, gatherer prometheus.Gatherer) *Server {
	if rec == nil {
		rec = metrics.Nop{}
	}
	s := &Server{
		cfg:      cfg,
		feeds:    feeds,
		metrics:  rec,
		gatherer: gatherer,
		router:   chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(requestID)
	r.Use(newLogging(appLog.Logger, s.metrics))
	r.Use(newRecovery(appLog.Logger))
	if basicAuthEnabled(s.cfg) {
		appLog.Info("HTTP basic auth enabled")
		r.Use(newBasicAuth(s.cfg.BasicAuth.Username, s.cfg.BasicAuth.Password))
	}

	r.Get(PathHealth, s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, PathMetrics, metrics.Handler(s.gatherer))
	}
	r.Get(PathLiteFeed, s.handleLiteFeed)
	r.Get(PathFullFeed, s.handleFullFeed)
	r.Head(PathFullFeed, s.handleFullFeed)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleLiteFeed serves the windowed feed, never compressed.
func (s *Server) handleLiteFeed(w http.ResponseWriter, r *http.Request) {
	body, ok := s.feed(w, r, feed.ModeWindowed)
	if !ok {
		return
	}
	setFeedHeaders(w.Header(), s.cfg.Feed.LiteFilename)
	writeBody(w, []byte(body))
}

// handleFullFeed serves the full feed. HEAD answers with headers only and
// does not assemble; large bodies are gzip-encoded when the client accepts
// it.
func (s *Server) handleFullFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		setFeedHeaders(w.Header(), s.cfg.Feed.FullFilename)
		w.WriteHeader(http.StatusOK)
		return
	}

	body, ok := s.feed(w, r, feed.ModeFull)
	if !ok {
		return
	}

	h := w.Header()
	setFeedHeaders(h, s.cfg.Feed.FullFilename)
	h.Add("Vary", "Accept-Encoding")

	raw := []byte(body)
	if acceptsGzip(r) && len(raw) >= s.gzipMinBytes() {
		gz, err := gzipBytes(raw)
		if err != nil {
			appLog.Warn("gzip failed, sending identity", "err", err)
		} else {
			h.Set("Content-Encoding", "gzip")
			raw = gz
		}
	}
	writeBody(w, raw)
}

// feed fetches a body through the cache, answering 502 when the record
// source cannot be assembled.
func (s *Server) feed(w http.ResponseWriter, r *http.Request, mode feed.Mode) (string, bool) {
	body, err := s.feeds.Get(r.Context(), mode)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", false
		}
		appLog.Error("feed unavailable", err, "mode", mode, "request_id", RequestIDFromContext(r.Context()))
		http.Error(w, "calendar source unavailable", http.StatusBadGateway)
		return "", false
	}
	return body, true
}

func (s *Server) gzipMinBytes() int {
	if s.cfg.Feed.GzipMinBytes > 0 {
		return s.cfg.Feed.GzipMinBytes
	}
	return 8192
}

// setFeedHeaders writes the media type, suggested filename and the
// no-store directives. Freshness belongs to the feed cache only.
func setFeedHeaders(h http.Header, filename string) {
	h.Set("Content-Type", calendarContentType)
	if filename != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	}
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

func writeBody(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func acceptsGzip(r *http.Request) bool {
	for _, v := range r.Header.Values("Accept-Encoding") {
		if strings.Contains(strings.ToLower(v), "gzip") {
			return true
		}
	}
	return false
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run serves s on listen until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func Run(ctx context.Context, s *Server, listen string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
