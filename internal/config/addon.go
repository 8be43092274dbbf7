package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/snapetech/stremtv/internal/catalog"
)

// Provider kinds. The closed set of upstream source variants.
const (
	ProviderDirect = "direct"
	ProviderXtream = "xtream"
)

// Addon is one normalized addon configuration. Immutable after
// Normalize; stores and caches key off the semantic fields only.
type Addon struct {
	Provider string `json:"provider,omitempty"`

	// Direct mode
	M3UURL string `json:"m3uUrl,omitempty"`
	EPGURL string `json:"epgUrl,omitempty"`

	// Xtream mode
	UseXtream      bool   `json:"useXtream,omitempty"`
	XtreamURL      string `json:"xtreamUrl,omitempty"`
	XtreamUsername string `json:"xtreamUsername,omitempty"`
	XtreamPassword string `json:"xtreamPassword,omitempty"`
	XtreamOutput   string `json:"xtreamOutput,omitempty"`
	XtreamUseM3U   bool   `json:"xtreamUseM3U,omitempty"`

	EnableEPG      bool    `json:"enableEpg,omitempty"`
	EPGOffsetHours float64 `json:"epgOffsetHours,omitempty"`

	// IncludeSeries defaults to true; only an explicit false in the
	// source document disables it.
	IncludeSeries bool `json:"includeSeries"`

	// InstanceID is a request-scoped identifier generated by the
	// configure page. Non-semantic: excluded from the cache key.
	InstanceID string `json:"instanceId,omitempty"`

	// Debug is a per-install logging toggle, also non-semantic.
	Debug bool `json:"debug,omitempty"`
}

// rawAddon mirrors the wire document before defaulting. epgOffsetHours
// arrives as number or string depending on the configure page
// version, and includeSeries is absent-means-true.
type rawAddon struct {
	Provider       string          `json:"provider"`
	M3UURL         string          `json:"m3uUrl"`
	EPGURL         string          `json:"epgUrl"`
	UseXtream      bool            `json:"useXtream"`
	XtreamURL      string          `json:"xtreamUrl"`
	XtreamUsername string          `json:"xtreamUsername"`
	XtreamPassword string          `json:"xtreamPassword"`
	XtreamOutput   string          `json:"xtreamOutput"`
	XtreamUseM3U   bool            `json:"xtreamUseM3U"`
	EnableEPG      bool            `json:"enableEpg"`
	EPGOffsetHours json.RawMessage `json:"epgOffsetHours"`
	IncludeSeries  *bool           `json:"includeSeries"`
	InstanceID     string          `json:"instanceId"`
	Debug          bool            `json:"debug"`
}

// ParseJSON decodes a configuration document and normalizes it.
func ParseJSON(data []byte) (Addon, error) {
	var raw rawAddon
	if err := json.Unmarshal(data, &raw); err != nil {
		return Addon{}, fmt.Errorf("config: decode: %w", err)
	}
	a := Addon{
		Provider:       raw.Provider,
		M3UURL:         raw.M3UURL,
		EPGURL:         raw.EPGURL,
		UseXtream:      raw.UseXtream,
		XtreamURL:      raw.XtreamURL,
		XtreamUsername: raw.XtreamUsername,
		XtreamPassword: raw.XtreamPassword,
		XtreamOutput:   raw.XtreamOutput,
		XtreamUseM3U:   raw.XtreamUseM3U,
		EnableEPG:      raw.EnableEPG,
		EPGOffsetHours: parseOffsetHours(raw.EPGOffsetHours),
		IncludeSeries:  raw.IncludeSeries == nil || *raw.IncludeSeries,
		InstanceID:     raw.InstanceID,
		Debug:          raw.Debug,
	}
	a.Normalize()
	return a, nil
}

// tokenEncodings are tried in order. Installers in the wild emit
// every base64 variant: URL-safe with and without padding, and the
// standard alphabet both ways.
var tokenEncodings = []*base64.Encoding{
	base64.RawURLEncoding,
	base64.URLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

// ParseToken decodes a base64 JSON token, accepting any common
// alphabet/padding variant. Token encryption is a collaborator
// concern; by the time a token reaches this layer it is plain base64.
func ParseToken(token string) (Addon, error) {
	for _, enc := range tokenEncodings {
		data, err := enc.DecodeString(token)
		if err != nil {
			continue
		}
		return ParseJSON(data)
	}
	return Addon{}, fmt.Errorf("config: token is not valid base64")
}

func parseOffsetHours(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

// Normalize clamps fields to their documented domains. Offsets
// outside [-48, 48] hours (or non-finite) reset to zero; a missing
// provider kind is inferred from the xtream toggle.
func (a *Addon) Normalize() {
	if math.IsNaN(a.EPGOffsetHours) || math.IsInf(a.EPGOffsetHours, 0) || math.Abs(a.EPGOffsetHours) > 48 {
		a.EPGOffsetHours = 0
	}
	if a.Provider == "" {
		if a.UseXtream || a.XtreamURL != "" {
			a.Provider = ProviderXtream
		} else {
			a.Provider = ProviderDirect
		}
	}
	if a.Provider == ProviderXtream {
		a.UseXtream = true
	}
}

// cacheKeyFields is the canonical semantic subset. Field order is
// fixed by the struct; volatile fields (instance id, debug, prescan
// hints) never appear here, so two semantically identical configs
// always produce the same key.
type cacheKeyFields struct {
	Provider       string  `json:"provider"`
	M3UURL         string  `json:"m3uUrl"`
	EPGURL         string  `json:"epgUrl"`
	XtreamURL      string  `json:"xtreamUrl"`
	XtreamUsername string  `json:"xtreamUsername"`
	XtreamPassword string  `json:"xtreamPassword"`
	XtreamOutput   string  `json:"xtreamOutput"`
	XtreamUseM3U   bool    `json:"xtreamUseM3U"`
	EnableEPG      bool    `json:"enableEpg"`
	EPGOffsetHours float64 `json:"epgOffsetHours"`
	IncludeSeries  bool    `json:"includeSeries"`
}

// Key returns the deterministic cache key for this configuration.
func (a *Addon) Key() string {
	canonical := cacheKeyFields{
		Provider:       a.Provider,
		M3UURL:         a.M3UURL,
		EPGURL:         a.EPGURL,
		XtreamURL:      a.XtreamURL,
		XtreamUsername: a.XtreamUsername,
		XtreamPassword: a.XtreamPassword,
		XtreamOutput:   a.XtreamOutput,
		XtreamUseM3U:   a.XtreamUseM3U,
		EnableEPG:      a.EnableEPG,
		EPGOffsetHours: a.EPGOffsetHours,
		IncludeSeries:  a.IncludeSeries,
	}
	data, _ := json.Marshal(canonical)
	return catalog.Digest(string(data), 0)
}
