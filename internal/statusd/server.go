package statusd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/store"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
)

// Options selects which listeners to start; empty addresses are skipped
type Options struct {
	HTTPAddr string
	GRPCAddr string
	Registry *prometheus.Registry
}

// Server runs the HTTP status and gRPC health listeners for one run
type Server struct {
	httpSrv *http.Server
	httpLis net.Listener
	grpcSrv *grpc.Server
	grpcLis net.Listener
}

// Start binds the configured listeners and serves them in the background.
// Bind errors are returned before anything is served.
func Start(status *store.LiveStatus, opts Options) (*Server, error) {
	s := &Server{}

	if opts.GRPCAddr != "" {
		lis, err := net.Listen("tcp", opts.GRPCAddr)
		if err != nil {
			return nil, fmt.Errorf("listen for gRPC on %s: %w", opts.GRPCAddr, err)
		}
		s.grpcLis = lis
		s.grpcSrv = grpc.NewServer()
		NewHealthServer(status).Register(s.grpcSrv)
	}

	if opts.HTTPAddr != "" {
		lis, err := net.Listen("tcp", opts.HTTPAddr)
		if err != nil {
			if s.grpcLis != nil {
				_ = s.grpcLis.Close()
			}
			return nil, fmt.Errorf("listen for HTTP on %s: %w", opts.HTTPAddr, err)
		}
		s.httpLis = lis
		s.httpSrv = &http.Server{
			Handler:           NewHTTPServer(status, opts.Registry).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
	}

	if s.grpcSrv != nil {
		go func() {
			logger.Info("gRPC health server listening", "addr", s.grpcLis.Addr().String())
			if err := s.grpcSrv.Serve(s.grpcLis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()
	}
	if s.httpSrv != nil {
		go func() {
			logger.Info("HTTP status server listening", "addr", s.httpLis.Addr().String())
			if err := s.httpSrv.Serve(s.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()
	}
	return s, nil
}

// HTTPAddr returns the bound HTTP address, or "" when HTTP is disabled
func (s *Server) HTTPAddr() string {
	if s.httpLis == nil {
		return ""
	}
	return s.httpLis.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is disabled
func (s *Server) GRPCAddr() string {
	if s.grpcLis == nil {
		return ""
	}
	return s.grpcLis.Addr().String()
}

// Shutdown stops both listeners
func (s *Server) Shutdown(ctx context.Context) error {
	if s.grpcSrv != nil {
		s.grpcSrv.GracefulStop()
	}
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("HTTP shutdown: %w", err)
		}
	}
	return nil
}
