// Package secrets resolves backing-store connection parameters.
//
// The store credentials live outside this process (environment, secret
// manager, mounted file); callers depend on the Provider interface and get
// rotation support through the Cached wrapper instead of a mutable global.
package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// Params holds resolved connection parameters for the backing store.
type Params struct {
	// DSN locates the database.
	DSN string
	// ExpiresAt bounds how long the parameters stay valid. Zero means no expiry.
	ExpiresAt time.Time
}

// Provider resolves connection parameters on demand.
type Provider interface {
	ConnectionParams(ctx context.Context) (Params, error)
}

type envParams struct {
	DBPath string `env:"DELTASYNC_DB_PATH"`
}

// Env resolves connection parameters from environment variables.
type Env struct{}

// ConnectionParams reads DELTASYNC_DB_PATH.
func (Env) ConnectionParams(context.Context) (Params, error) {
	var raw envParams
	if err := env.Parse(&raw); err != nil {
		return Params{}, fmt.Errorf("parse secrets env: %w", err)
	}
	dsn := strings.TrimSpace(raw.DBPath)
	if dsn == "" {
		return Params{}, fmt.Errorf("DELTASYNC_DB_PATH is required")
	}
	return Params{DSN: dsn}, nil
}

// Static returns fixed connection parameters, mainly for tests.
type Static struct {
	Params Params
}

// ConnectionParams returns the configured parameters.
func (s Static) ConnectionParams(context.Context) (Params, error) {
	return s.Params, nil
}

// Cached wraps a Provider and reuses resolved parameters until they expire.
type Cached struct {
	provider Provider
	now      func() time.Time

	mu     sync.Mutex
	params Params
	loaded bool
}

// NewCached creates an expiry-aware caching wrapper around provider.
func NewCached(provider Provider) *Cached {
	return &Cached{provider: provider, now: time.Now}
}

// ConnectionParams returns cached parameters, refreshing on first use or expiry.
func (c *Cached) ConnectionParams(ctx context.Context) (Params, error) {
	if c == nil || c.provider == nil {
		return Params{}, fmt.Errorf("secrets provider is not configured")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && (c.params.ExpiresAt.IsZero() || c.now().Before(c.params.ExpiresAt)) {
		return c.params, nil
	}
	params, err := c.provider.ConnectionParams(ctx)
	if err != nil {
		return Params{}, err
	}
	c.params = params
	c.loaded = true
	return params, nil
}
