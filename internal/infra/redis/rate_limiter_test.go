//go:build !integration

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memClient is a map-backed RedisClient for unit tests.
type memClient struct {
	mu      sync.Mutex
	data    map[string]string
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newMemClient() *memClient {
	return &memClient{data: map[string]string{}, counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (m *memClient) Ping(context.Context) error { return nil }

func (m *memClient) Set(_ context.Context, key string, value interface{}, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.expires[key] = exp
	return nil
}

func (m *memClient) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", Nil
	}
	return v, nil
}

func (m *memClient) Incr(_ context.Context, key string) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memClient) Expire(_ context.Context, key string, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = exp
	return nil
}

func (m *memClient) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memClient) Close() error { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	rl := NewRateLimiter(cli)
	now := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	rl.now = func() time.Time { return now }
	key := ClientKey("10.0.0.1", "share")

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("hit %d: expected allowed, got %v (%v)", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, key, 3, time.Minute); ok {
		t.Fatal("expected fourth hit in the window to be rejected")
	}
	bucket := bucketKey(key, now, time.Minute)
	if cli.expires[bucket] != time.Minute {
		t.Errorf("expected window expiry on first hit, got %v", cli.expires[bucket])
	}

	t.Run("next window starts fresh", func(t *testing.T) {
		now = now.Add(time.Minute)
		if ok, err := rl.Allow(ctx, key, 3, time.Minute); err != nil || !ok {
			t.Fatalf("expected allowed in the next window, got %v (%v)", ok, err)
		}
	})

	t.Run("groups do not share counters", func(t *testing.T) {
		if ok, _ := rl.Allow(ctx, ClientKey("10.0.0.1", "verify"), 1, time.Minute); !ok {
			t.Fatal("expected a separate counter per group")
		}
	})
}

func TestGroupOf(t *testing.T) {
	cases := map[string]string{
		ClientKey("10.0.0.1:5000", "verify"): "verify",
		ClientKey("", "share"):               "share",
		"something-else":                     "other",
	}
	for in, want := range cases {
		if got := groupOf(in); got != want {
			t.Errorf("groupOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRateLimiter_PropagatesErrors(t *testing.T) {
	cli := newMemClient()
	cli.incrErr = errors.New("connection refused")
	if _, err := NewRateLimiter(cli).Allow(context.Background(), "k", 1, time.Second); err == nil {
		t.Fatal("expected redis error to surface")
	}
}
