package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{
		Timeout:        time.Second,
		MaxAttempts:    3,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		UserAgents:     []string{"agent-a", "agent-b"},
		AgentPicker:    func(int) int { return 1 },
	}
}

func TestClient_Fetch_Success(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := New(testConfig(), testLogger())
	body, err := c.Fetch(context.Background(), srv.URL, Options{})

	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
	assert.Equal(t, "agent-b", gotUA)
	assert.Contains(t, gotAccept, "text/html")
}

func TestClient_Fetch_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("third time"))
	}))
	defer srv.Close()

	c := New(testConfig(), testLogger())
	body, err := c.Fetch(context.Background(), srv.URL, Options{})

	require.NoError(t, err)
	assert.Equal(t, "third time", body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Fetch_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("blocked"))
	}))
	defer srv.Close()

	c := New(testConfig(), testLogger())
	body, err := c.Fetch(context.Background(), srv.URL, Options{MaxRetries: 2})

	assert.Empty(t, body)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Attempts)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.Equal(t, srv.URL, fe.URL)
	assert.Contains(t, fe.Error(), "blocked")
	assert.Equal(t, int32(2), calls.Load())

	var se *statusError
	assert.True(t, errors.As(err, &se))
}

func TestClient_Fetch_AttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(testConfig(), testLogger())
	start := time.Now()
	_, err := c.Fetch(context.Background(), srv.URL, Options{Timeout: 30 * time.Millisecond, MaxRetries: 2})

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Attempts)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_Fetch_CancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	c := New(cfg, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, srv.URL, Options{})

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Attempts)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_CalculateBackoff(t *testing.T) {
	c := New(Config{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}, testLogger())

	assert.Equal(t, time.Second, c.calculateBackoff(0))
	assert.Equal(t, 2*time.Second, c.calculateBackoff(1))
	assert.Equal(t, 4*time.Second, c.calculateBackoff(2))
	assert.Equal(t, 5*time.Second, c.calculateBackoff(3))
}

func TestClient_RotatesAgentsPerAttempt(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	next := 0
	cfg := testConfig()
	cfg.AgentPicker = func(n int) int {
		i := next % n
		next++
		return i
	}
	c := New(cfg, testLogger())

	_, err := c.Fetch(context.Background(), srv.URL, Options{MaxRetries: 3})
	require.Error(t, err)

	assert.Equal(t, []string{"agent-a", "agent-b", "agent-a"}, agents)
}

func TestNewProxy_MissingKey(t *testing.T) {
	p, err := NewProxy(ProxyConfig{BaseURL: "https://proxy.example/"}, testLogger())

	assert.Nil(t, p)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "SCRAPER_API_KEY", ce.Setting)
}

func TestProxyClient_Fetch(t *testing.T) {
	var gotKey, gotURL, gotRender string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotKey, gotURL, gotRender = q.Get("api_key"), q.Get("url"), q.Get("render")
		_, _ = w.Write([]byte("rendered"))
	}))
	defer srv.Close()

	p, err := NewProxy(ProxyConfig{BaseURL: srv.URL + "/", APIKey: "secret", Render: true, Timeout: time.Second}, testLogger())
	require.NoError(t, err)

	target := "https://www.spareroom.co.uk/flatshare?search=London&sort_by=date"
	body, err := p.Fetch(context.Background(), target, Options{})

	require.NoError(t, err)
	assert.Equal(t, "rendered", body)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, target, gotURL)
	assert.Equal(t, "true", gotRender)
}

func TestProxyClient_Fetch_NoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("quota exceeded"))
	}))
	defer srv.Close()

	p, err := NewProxy(ProxyConfig{BaseURL: srv.URL + "/", APIKey: "secret"}, testLogger())
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), "https://example.com/x", Options{})

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
	assert.Equal(t, 1, fe.Attempts)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, int32(1), calls.Load())
}

func TestProxyClient_RedactsKey(t *testing.T) {
	p, err := NewProxy(ProxyConfig{BaseURL: "http://127.0.0.1:1/", APIKey: "topsecret"}, testLogger())
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), "https://example.com/x", Options{Timeout: time.Second})

	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "topsecret"))
}

func TestHostLimiters_Throttle(t *testing.T) {
	h := newHostLimiters(20, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, h.wait(ctx, "https://a.example/x"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	start = time.Now()
	require.NoError(t, h.wait(ctx, "https://b.example/x"))
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestUnavailable_ReturnsConfigError(t *testing.T) {
	cfgErr := &ConfigError{Setting: "SCRAPER_API_KEY", Reason: "proxy api key is not set"}
	var f Fetcher = Unavailable{Err: cfgErr}

	body, err := f.Fetch(context.Background(), "https://example.com", Options{})

	assert.Empty(t, body)
	var got *ConfigError
	require.ErrorAs(t, err, &got)
	assert.Same(t, cfgErr, got)
}

func TestProxyClient_ZeroValueReturnsConfigError(t *testing.T) {
	var p ProxyClient

	_, err := p.Fetch(context.Background(), "https://example.com", Options{})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "SCRAPER_API_KEY", cfgErr.Setting)
}
