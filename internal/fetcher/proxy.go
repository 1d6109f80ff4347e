package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProxyConfig configures the third-party rendering proxy.
type ProxyConfig struct {
	BaseURL    string
	APIKey     string
	Render     bool
	Timeout    time.Duration
	UserAgents []string
}

// ProxyClient routes every request through a fetch proxy. The proxy renders and
// retries on its side, so there is no local retry loop.
type ProxyClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	render     bool
	timeout    time.Duration
	agents     *AgentPool
	logger     *slog.Logger
}

// NewProxy fails with a *ConfigError when no API key is configured.
func NewProxy(cfg ProxyConfig, logger *slog.Logger) (*ProxyClient, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Setting: "SCRAPER_API_KEY", Reason: "proxy api key is not set"}
	}
	if cfg.BaseURL == "" {
		return nil, &ConfigError{Setting: "fetch.proxy.base_url", Reason: "proxy base url is not set"}
	}
	return &ProxyClient{
		httpClient: &http.Client{},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		render:     cfg.Render,
		timeout:    cfg.Timeout,
		agents:     NewAgentPool(cfg.UserAgents, nil),
		logger:     logger.With("component", "fetch_proxy"),
	}, nil
}

func (p *ProxyClient) Fetch(ctx context.Context, target string, opts Options) (string, error) {
	// A zero ProxyClient{} has no key.
	if p.apiKey == "" {
		return "", &ConfigError{Setting: "SCRAPER_API_KEY", Reason: "proxy api key is not set"}
	}

	timeout := p.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.requestURL(target), nil)
	if err != nil {
		return "", &FetchError{URL: target, Attempts: 1, Err: fmt.Errorf("create request: %w", err)}
	}
	if agent := p.agents.Next(); agent != "" {
		req.Header.Set("User-Agent", agent)
	}

	p.logger.Debug("fetching via proxy", "target", target)

	body, status, err := execute(p.httpClient, req)
	if err != nil {
		return "", &FetchError{URL: target, Attempts: 1, StatusCode: status, Err: &redactedError{err: err, secret: p.apiKey}}
	}

	p.logger.Debug("proxy fetch succeeded", "target", target, "bytes", len(body))
	return body, nil
}

func (p *ProxyClient) requestURL(target string) string {
	params := url.Values{}
	params.Set("api_key", p.apiKey)
	params.Set("url", target)
	if p.render {
		params.Set("render", "true")
	}
	return p.baseURL + "?" + params.Encode()
}

// redactedError hides the api key that net/http embeds in url errors.
type redactedError struct {
	err    error
	secret string
}

func (e *redactedError) Error() string {
	return "proxy: " + strings.ReplaceAll(e.err.Error(), e.secret, "REDACTED")
}

func (e *redactedError) Unwrap() error {
	return e.err
}
