package secrets

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingProvider struct {
	calls  int
	params Params
	err    error
}

func (p *countingProvider) ConnectionParams(context.Context) (Params, error) {
	p.calls++
	if p.err != nil {
		return Params{}, p.err
	}
	return p.params, nil
}

func TestEnvRequiresDBPath(t *testing.T) {
	t.Setenv("DELTASYNC_DB_PATH", "")

	if _, err := (Env{}).ConnectionParams(context.Background()); err == nil {
		t.Fatal("expected missing db path error")
	}
}

func TestEnvReadsDBPath(t *testing.T) {
	t.Setenv("DELTASYNC_DB_PATH", "/tmp/sync.db")

	params, err := (Env{}).ConnectionParams(context.Background())
	if err != nil {
		t.Fatalf("connection params: %v", err)
	}
	if params.DSN != "/tmp/sync.db" {
		t.Fatalf("dsn = %q, want /tmp/sync.db", params.DSN)
	}
}

func TestCachedReusesUnexpiredParams(t *testing.T) {
	t.Parallel()

	provider := &countingProvider{params: Params{DSN: "a"}}
	cached := NewCached(provider)

	for i := 0; i < 3; i++ {
		if _, err := cached.ConnectionParams(context.Background()); err != nil {
			t.Fatalf("connection params: %v", err)
		}
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}
}

func TestCachedRefreshesOnExpiry(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	provider := &countingProvider{params: Params{DSN: "a", ExpiresAt: start.Add(time.Minute)}}
	cached := NewCached(provider)
	current := start
	cached.now = func() time.Time { return current }

	if _, err := cached.ConnectionParams(context.Background()); err != nil {
		t.Fatalf("connection params: %v", err)
	}
	current = start.Add(2 * time.Minute)
	provider.params = Params{DSN: "b", ExpiresAt: current.Add(time.Minute)}
	params, err := cached.ConnectionParams(context.Background())
	if err != nil {
		t.Fatalf("connection params after expiry: %v", err)
	}
	if params.DSN != "b" {
		t.Fatalf("dsn = %q, want refreshed b", params.DSN)
	}
	if provider.calls != 2 {
		t.Fatalf("provider calls = %d, want 2", provider.calls)
	}
}

func TestCachedPropagatesProviderError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("secret fetch failed")
	cached := NewCached(&countingProvider{err: wantErr})
	if _, err := cached.ConnectionParams(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
}
