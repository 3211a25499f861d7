package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rook-computer/bgenerator/internal/assets"
)

// ServerConfig contains settings for running the HTTP server.
type ServerConfig struct {
	ListenAddr string
	// DevMode enables permissive CORS for a separately served UI.
	DevMode bool
	// StaticDir, when set to an existing directory, is served at "/"
	// instead of the embedded UI. The API remains available under /api/v1/.
	StaticDir string
}

type HTTPServer struct {
	Config ServerConfig
	Deps   APIV1Deps

	mu     sync.Mutex
	srv    *http.Server
	ln     net.Listener
	closed bool
}

func NewHTTPServer(cfg ServerConfig, deps APIV1Deps) *HTTPServer {
	return &HTTPServer{Config: cfg, Deps: deps}
}

// Addr returns the bound address once started.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *HTTPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("web server already stopped")
	}
	if s.srv != nil {
		return nil
	}

	addr := s.Config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           NewHandler(s.Config, s.Deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.srv = nil
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	srv := s.srv
	logger := s.Deps.withDefaults().Logger
	go func() {
		err := srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		logger.Errorf("web", "serve: %v", err)
	}()

	return nil
}

func (s *HTTPServer) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// NewHandler builds the standard handler:
// - /api/v1/* for the API
// - /metrics for Prometheus
// - / for the web UI
func NewHandler(cfg ServerConfig, deps APIV1Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(recordMetrics)
	r.Mount("/api/v1", APIV1Router(deps))
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/*", StaticUIHandler(cfg.StaticDir))

	if cfg.DevMode {
		return WithDevCORS(r)
	}
	return r
}

// StaticUIHandler serves either embedded UI assets or a directory.
func StaticUIHandler(dir string) http.Handler {
	if dir == "" {
		return cleanPath(http.FileServer(http.FS(assets.WebUI)))
	}

	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	}
	return cleanPath(http.FileServer(http.Dir(dir)))
}

// cleanPath normalizes the request path so directory traversal cannot
// escape the served root.
func cleanPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = filepath.ToSlash(filepath.Clean("/" + r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
