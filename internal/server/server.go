// Package server exposes the ContentDirectory over HTTP: the SOAP control
// endpoint, the device and service descriptions, the rescan API, health and
// metrics.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/upnpcds/internal/cds"
	"github.com/mantonx/upnpcds/internal/config"
)

// Server serves one ContentDirectory service.
type Server struct {
	cfg    config.ServerConfig
	svc    *cds.Service
	logger hclog.Logger
	engine *gin.Engine

	description []byte
	scpd        []byte
	startedAt   time.Time
}

// New builds the router for svc. The description documents are rendered once.
func New(cfg config.ServerConfig, svc *cds.Service, logger hclog.Logger) (*Server, error) {
	description, err := buildDeviceDescription(cfg.FriendlyName, cfg.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to render device description: %w", err)
	}
	scpd, err := buildSCPD()
	if err != nil {
		return nil, fmt.Errorf("failed to render service description: %w", err)
	}

	s := &Server{
		cfg:         cfg,
		svc:         svc,
		logger:      logger.Named("server"),
		description: description,
		scpd:        scpd,
		startedAt:   time.Now(),
	}
	s.engine = s.setupRouter()
	return s, nil
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// HTTPServer returns an http.Server listening on the configured address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := s.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", srv.Addr, "description", descriptionPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// contentURL is the prefix of resource URLs for a request: the address the
// request arrived on plus the configured content path.
func (s *Server) contentURL(r *http.Request) string {
	host := r.Host
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		if h, p, err := net.SplitHostPort(addr.String()); err == nil {
			host = net.JoinHostPort(h, p)
		}
	}
	return "http://" + host + s.cfg.ContentPath
}
