// Package probe prechecks upstream sources for the configure page:
// is a playlist URL reachable, do Xtream credentials authenticate.
// Results are advisory; a failing probe never blocks installing a
// configuration.
package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snapetech/stremtv/internal/httpclient"
)

// Result is the outcome of probing one upstream URL.
type Result struct {
	URL         string `json:"url"`
	Status      Status `json:"status"`
	StatusCode  int    `json:"statusCode,omitempty"`
	LatencyMs   int64  `json:"latencyMs"`
	BodyPreview string `json:"-"` // first 512 bytes, kept for CF detection
}

type Status string

const (
	StatusOK         Status = "ok"
	StatusCloudflare Status = "cloudflare"
	StatusBadStatus  Status = "bad_status"
	StatusTimeout    Status = "timeout"
	StatusError      Status = "error"
)

// Playlist fetches an M3U URL with a short timeout and classifies the
// result. Cloudflare challenges get their own status so the configure
// page can tell "blocked" apart from "down".
func Playlist(ctx context.Context, m3uURL string, client *http.Client) Result {
	if client == nil {
		client = httpclient.WithTimeout(15 * time.Second)
	}
	release := httpclient.AcquireHost(m3uURL)
	defer release()
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m3uURL, nil)
	if err != nil {
		return Result{URL: m3uURL, Status: StatusError, LatencyMs: time.Since(start).Milliseconds()}
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	// No retry here: a 429 or 5xx is the probe's answer, not a
	// transient to paper over.
	resp, err := client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		if strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline") {
			return Result{URL: m3uURL, Status: StatusTimeout, LatencyMs: latency}
		}
		return Result{URL: m3uURL, Status: StatusError, LatencyMs: latency}
	}
	defer resp.Body.Close()
	preview := make([]byte, 512)
	n, _ := resp.Body.Read(preview)
	previewStr := strings.ToLower(string(preview[:n]))
	code := resp.StatusCode

	// Cloudflare detection only on definitive signals. Error pages
	// from unrelated panels mention "cloudflare" often enough that
	// substring matching alone misclassifies.
	server := strings.ToLower(strings.TrimSpace(resp.Header.Get("Server")))
	isCFServer := server == "cloudflare"
	bodyHasCFChallenge := strings.Contains(previewStr, "checking your browser") ||
		strings.Contains(previewStr, "cf-bypass") ||
		strings.Contains(previewStr, "ray id")
	if code == 403 || code == 503 || code == 520 || code == 521 || code == 524 {
		if bodyHasCFChallenge || isCFServer {
			return Result{URL: m3uURL, Status: StatusCloudflare, StatusCode: code, LatencyMs: latency, BodyPreview: previewStr}
		}
	}
	if isCFServer && code != http.StatusOK {
		return Result{URL: m3uURL, Status: StatusCloudflare, StatusCode: code, LatencyMs: latency}
	}
	if code != http.StatusOK {
		return Result{URL: m3uURL, Status: StatusBadStatus, StatusCode: code, LatencyMs: latency}
	}
	return Result{URL: m3uURL, Status: StatusOK, StatusCode: code, LatencyMs: latency}
}

// XtreamAPI hits player_api.php with the given credentials and
// reports whether the panel authenticates them. The M3U endpoint
// (get.php) is often Cloudflare-gated while the API answers, so this
// is the more reliable credential check.
func XtreamAPI(ctx context.Context, baseURL, user, pass string, client *http.Client) Result {
	baseURL = strings.TrimSuffix(baseURL, "/")
	apiURL := baseURL + "/player_api.php?username=" + url.QueryEscape(user) + "&password=" + url.QueryEscape(pass)
	if client == nil {
		client = httpclient.WithTimeout(15 * time.Second)
	}
	release := httpclient.AcquireHost(apiURL)
	defer release()
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Result{URL: apiURL, Status: StatusError, LatencyMs: time.Since(start).Milliseconds()}
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		if strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline") {
			return Result{URL: apiURL, Status: StatusTimeout, LatencyMs: latency}
		}
		return Result{URL: apiURL, Status: StatusError, LatencyMs: latency}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{URL: apiURL, Status: StatusBadStatus, StatusCode: resp.StatusCode, LatencyMs: latency}
	}
	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Result{URL: apiURL, Status: StatusBadStatus, StatusCode: resp.StatusCode, LatencyMs: latency}
	}
	if raw["user_info"] != nil || raw["auth"] != nil {
		return Result{URL: baseURL, Status: StatusOK, StatusCode: 200, LatencyMs: latency}
	}
	return Result{URL: apiURL, Status: StatusBadStatus, StatusCode: 200, LatencyMs: latency}
}
