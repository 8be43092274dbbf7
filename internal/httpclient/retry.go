package httpclient

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy says which transient answers earn the single retry and
// how long to pause first. The zero value never retries.
type RetryPolicy struct {
	// RateLimited honors Retry-After on 429, capped at RateLimitCap.
	RateLimited  bool
	RateLimitCap time.Duration
	// ServerErrors retries any 5xx after ServerErrorWait.
	ServerErrors    bool
	ServerErrorWait time.Duration
}

// DefaultRetryPolicy covers the failure modes busy panels actually
// produce: 429 with Retry-After under load, brief 5xx bursts while a
// provider restarts.
var DefaultRetryPolicy = RetryPolicy{
	RateLimited:     true,
	RateLimitCap:    60 * time.Second,
	ServerErrors:    true,
	ServerErrorWait: time.Second,
}

// delay reports whether resp warrants the retry and the pause before it.
func (p RetryPolicy) delay(resp *http.Response) (time.Duration, bool) {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests && p.RateLimited:
		return retryAfterHeader(resp.Header.Get("Retry-After"), p.RateLimitCap), true
	case resp.StatusCode >= 500 && p.ServerErrors:
		return p.ServerErrorWait, true
	}
	return 0, false
}

// DoWithRetry performs req, reissuing it at most once when policy
// allows. The retry rebuilds the request from method, url and headers,
// so only bodyless requests belong here; every upstream fetch in this
// process is a GET. Caller closes resp.Body when err is nil.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = defaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	wait, retry := policy.delay(resp)
	if !retry {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}
	again, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), nil)
	if err != nil {
		return nil, err
	}
	again.Header = req.Header.Clone()
	return client.Do(again)
}

// retryAfterHeader reads a Retry-After value, either delta seconds or
// an HTTP date, clamped to [0, limit]. Unparseable input means a one
// second pause rather than none: the server asked us to wait, it just
// said so badly.
func retryAfterHeader(v string, limit time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Second
	}
	if sec, err := strconv.Atoi(v); err == nil && sec >= 0 {
		return min(time.Duration(sec)*time.Second, limit)
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Second
	}
	d := time.Until(t)
	if d < 0 {
		return 0
	}
	return min(d, limit)
}
