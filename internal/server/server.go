// Package server wires the deltasync runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/louisbranch/deltasync/internal/platform/config"
	"github.com/louisbranch/deltasync/internal/platform/secrets"
	"github.com/louisbranch/deltasync/internal/storage/sqlite"
	"github.com/louisbranch/deltasync/internal/sync/dispatch"
	"github.com/louisbranch/deltasync/internal/sync/engine"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownGrace = 10 * time.Second

type serverEnv struct {
	ChangeLogTTLMinutes int `env:"DELTASYNC_CHANGELOG_TTL_MINUTES" envDefault:"30"`
	BaseTableTTLMinutes int `env:"DELTASYNC_BASE_TABLE_TTL_MINUTES" envDefault:"43200"`
}

func loadServerEnv() (serverEnv, error) {
	var cfg serverEnv
	if err := config.ParseEnv(&cfg); err != nil {
		return serverEnv{}, err
	}
	if cfg.ChangeLogTTLMinutes <= 0 || cfg.BaseTableTTLMinutes <= 0 {
		return serverEnv{}, fmt.Errorf("retention windows must be positive")
	}
	return cfg, nil
}

// Server hosts the sync HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
}

// New creates a configured sync server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured sync server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env, err := loadServerEnv()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	verifier, err := LoadVerifierFromEnv()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	provider := secrets.NewCached(secrets.Env{})
	params, err := provider.ConnectionParams(context.Background())
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	store, err := sqlite.Open(params.DSN)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	eng := engine.New(store, engine.Config{
		ChangeLogWindow: time.Duration(env.ChangeLogTTLMinutes) * time.Minute,
		BaseTableTTL:    time.Duration(env.BaseTableTTLMinutes) * time.Minute,
	})
	handler := otelhttp.NewHandler(Routes(dispatch.New(eng), verifier), "deltasync")

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: handler},
		store:      store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a sync server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("sync server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close sync store: %v", err)
		}
	}
}
