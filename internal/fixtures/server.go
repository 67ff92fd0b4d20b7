// Package fixtures serves the embedded demo pages that checks drive. The
// pages are deliberately small, self-contained HTML files; a couple of them
// preserve known bugs (see heap.html) because exercising buggy pages is part
// of the point.
package fixtures

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/WangZhewei1027/demoprobe/internal/config"
)

//go:embed pages/*.html
var pagesFS embed.FS

// Pages returns the embedded demo pages as a filesystem rooted at the page
// files themselves.
func Pages() fs.FS {
	sub, err := fs.Sub(pagesFS, "pages")
	if err != nil {
		// The embed directive guarantees the subdirectory exists.
		panic(err)
	}
	return sub
}

// Server serves the demo pages over loopback HTTP for the lifetime of a run.
type Server struct {
	logger   *zap.Logger
	httpSrv  *http.Server
	listener net.Listener
	baseURL  string
}

// NewServer binds the configured address and prepares the router. The server
// does not accept connections until Start is called.
func NewServer(logger *zap.Logger, cfg config.Interface) (*Server, error) {
	addr := cfg.Fixtures().Addr
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind fixture server on %s: %w", addr, err)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Fixtures().RateLimit), cfg.Fixtures().RateBurst)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(throttle(limiter))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/pages/*", http.StripPrefix("/pages/", http.FileServer(http.FS(Pages()))))

	return &Server{
		logger:   logger,
		listener: listener,
		baseURL:  fmt.Sprintf("http://%s", listener.Addr()),
		httpSrv: &http.Server{
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// throttle applies a shared token bucket across all fixture requests so a
// runaway polling loop cannot starve the host.
func throttle(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := limiter.Wait(r.Context()); err != nil {
				http.Error(w, "rate limit wait canceled", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.logger.Info("Fixture server listening", zap.String("url", s.baseURL))
	go func() {
		if err := s.httpSrv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Fixture server exited unexpectedly", zap.Error(err))
		}
	}()
}

// BaseURL returns the server's root URL, e.g. "http://127.0.0.1:39113".
func (s *Server) BaseURL() string {
	return s.baseURL
}

// PageURL returns the URL of an embedded page by file name, e.g. "bars.html".
func (s *Server) PageURL(name string) string {
	return s.baseURL + "/pages/" + name
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("fixture server shutdown failed: %w", err)
	}
	return nil
}
