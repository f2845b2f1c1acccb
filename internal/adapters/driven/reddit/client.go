package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://www.reddit.com"
	defaultUserAgent = "lowkey-harvester/1.0 (place recommendations research)"
	defaultTimeout   = 30 * time.Second

	// maxRateLimitWait bounds how long a 429 response may stall a request.
	maxRateLimitWait = time.Minute
)

// Config configures the Reddit source.
type Config struct {
	BaseURL    string        // Default: https://www.reddit.com
	UserAgent  string        // Reddit rejects the Go default user agent
	Timeout    time.Duration // Per request, default 30s
	MaxRetries int           // Retries on 429 and 5xx, default 0
	HTTPClient *http.Client  // Optional: overrides Timeout
}

type client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	maxRetries int
}

func newClient(cfg Config) *client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		maxRetries: maxRetries,
	}
}

// get performs a GET against the base URL. The caller closes the body.
func (c *client) get(ctx context.Context, path, accept string) (*http.Response, error) {
	var resp *http.Response
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", accept)

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}

		if attempt == c.maxRetries {
			break
		}

		var wait time.Duration
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait = rateLimitWait(resp.Header)
		case resp.StatusCode >= 500:
			wait = time.Duration(attempt+1) * time.Second
		}
		if wait == 0 {
			break
		}

		resp.Body.Close()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("reddit error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp, nil
}

// rateLimitWait reads Retry-After or Reddit's X-Ratelimit-Reset, both in
// seconds. Waits longer than maxRateLimitWait are not honoured.
func rateLimitWait(h http.Header) time.Duration {
	for _, key := range []string{"Retry-After", "X-Ratelimit-Reset"} {
		v := h.Get(key)
		if v == "" {
			continue
		}
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs < 0 {
			continue
		}
		wait := time.Duration(secs * float64(time.Second))
		if wait > maxRateLimitWait {
			return 0
		}
		if wait == 0 {
			wait = time.Second
		}
		return wait
	}
	return time.Second
}
