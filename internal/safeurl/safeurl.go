// Package safeurl vets user-supplied upstream URLs. Configurations
// arrive in install tokens, so playlist, EPG and panel URLs are
// untrusted input until checked.
package safeurl

import (
	"fmt"
	"net/url"
)

// IsHTTPOrHTTPS reports whether u parses as a URL with scheme http or
// https. Everything else (file, ftp, javascript) is rejected to keep
// fetches off the local filesystem and odd protocols.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// Check returns an error describing why u is not an acceptable
// upstream URL, or nil.
func Check(u string) error {
	if u == "" {
		return fmt.Errorf("url is empty")
	}
	if !IsHTTPOrHTTPS(u) {
		return fmt.Errorf("url %q: scheme must be http or https", u)
	}
	return nil
}
