// Package httpclient owns the tuned shared HTTP client used for all
// upstream fetches (playlists, EPG feeds, Xtream API calls).
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// UserAgent identifies the addon to upstream providers. Some
	// panels reject requests without a recognizable agent string.
	UserAgent = "Stremio M3U/EPG Addon"

	DefaultTimeout         = 45 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16

	// MaxBodyBytes caps any single upstream response. Playlists and
	// EPG feeds from hostile or broken providers can be arbitrarily
	// large; parsing runs on whatever arrived before the cap.
	MaxBodyBytes = 256 << 20 // 256 MiB
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		},
	}
}

// Default returns the shared tuned client.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout sharing the
// default transport configuration.
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// GetBody fetches url and returns the response body, capped at
// MaxBodyBytes. The request holds a per-host slot for its duration
// and transient upstream failures get the single policy retry.
// Non-2xx responses are returned as errors carrying the status line.
// client may be nil to use Default.
func GetBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	release := AcquireHost(url)
	defer release()
	resp, err := DoWithRetry(ctx, client, req, DefaultRetryPolicy)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}
