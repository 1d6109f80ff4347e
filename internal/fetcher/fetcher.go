package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxBodyBytes = 10 << 20

// Fetcher retrieves one page as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (string, error)
}

// Options overrides the client defaults for one call. Zero fields keep the defaults.
type Options struct {
	Timeout time.Duration
	// MaxRetries is the total number of attempts.
	MaxRetries int
}

// Config holds direct fetch configuration.
type Config struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	UserAgents     []string
	// AgentPicker pins user-agent selection; nil picks at random.
	AgentPicker func(n int) int
	RPS         float64
	Burst       int
}

// Client fetches pages directly with per-attempt timeouts, retries and header rotation.
type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	agents         *AgentPool
	limiters       *hostLimiters
	logger         *slog.Logger
}

// New creates a direct fetch client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Client{
		httpClient:     &http.Client{},
		timeout:        cfg.Timeout,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		agents:         NewAgentPool(cfg.UserAgents, cfg.AgentPicker),
		limiters:       newHostLimiters(cfg.RPS, cfg.Burst),
		logger:         logger.With("component", "fetcher"),
	}
}

// Fetch performs a GET with retries. Every failed attempt (network error, timeout,
// non-2xx status) is retried with exponential backoff until attempts run out.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts Options) (string, error) {
	timeout := c.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	attempts := c.maxAttempts
	if opts.MaxRetries > 0 {
		attempts = opts.MaxRetries
	}

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt < attempts; attempt++ {
		body, status, err := c.doRequest(ctx, rawURL, timeout)
		if err == nil {
			c.logger.Debug("fetched page", "url", rawURL, "attempt", attempt+1, "bytes", len(body))
			return body, nil
		}
		lastErr = err
		lastStatus = status

		if ctx.Err() != nil {
			return "", &FetchError{URL: rawURL, Attempts: attempt + 1, StatusCode: lastStatus, Err: ctx.Err()}
		}

		if attempt == attempts-1 {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"url", rawURL,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", &FetchError{URL: rawURL, Attempts: attempt + 1, StatusCode: lastStatus, Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}

	return "", &FetchError{URL: rawURL, Attempts: attempts, StatusCode: lastStatus, Err: lastErr}
}

func (c *Client) doRequest(ctx context.Context, rawURL string, timeout time.Duration) (string, int, error) {
	if err := c.limiters.wait(ctx, rawURL); err != nil {
		return "", 0, fmt.Errorf("rate limit: %w", err)
	}

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	applyHeaders(req, c.agents.Next())

	return execute(c.httpClient, req)
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

// execute runs req and returns the body only for 2xx responses.
func execute(client *http.Client, req *http.Request) (string, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", 0, fmt.Errorf("request timeout: %w", err)
		}
		return "", 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, &statusError{code: resp.StatusCode, snippet: snippet(body)}
	}

	return string(body), resp.StatusCode, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

type hostLimiters struct {
	mu    sync.Mutex
	rps   float64
	burst int
	byKey map[string]*rate.Limiter
}

func newHostLimiters(rps float64, burst int) *hostLimiters {
	if burst < 1 {
		burst = 1
	}
	return &hostLimiters{rps: rps, burst: burst, byKey: make(map[string]*rate.Limiter)}
}

func (h *hostLimiters) wait(ctx context.Context, rawURL string) error {
	if h.rps <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	h.mu.Lock()
	lim, ok := h.byKey[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(h.rps), h.burst)
		h.byKey[host] = lim
	}
	h.mu.Unlock()

	return lim.Wait(ctx)
}
