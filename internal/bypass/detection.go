// Package bypass recognizes upstream responses that are bot challenges or
// block pages rather than search results. Parsing a challenge page yields an
// empty or garbage result set, so adapters check responses here before
// extraction and surface a typed error instead.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the minimal view of an upstream fetch the detectors need.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector examines an upstream response and reports whether a bot protection
// mechanism blocked or challenged the request.
type Detector func(r *Response) (detected bool, source string)

// DefaultDetectors returns the standard list of challenge detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectDuckDuckGoAnomaly,
		detectGenericCaptcha,
	}
}

// Detect runs the response through all default detectors, returning the first
// match.
func Detect(r *Response) (bool, string) {
	if r == nil {
		return false, ""
	}
	for _, d := range DefaultDetectors() {
		if detected, source := d(r); detected {
			return true, source
		}
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(r *Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden && r.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(r.Header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(r.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(r.Body, []byte("cf-turnstile")) ||
		bytes.Contains(r.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectDuckDuckGoAnomaly looks for the DuckDuckGo anomaly page served when
// the html endpoint decides traffic is automated.
func detectDuckDuckGoAnomaly(r *Response) (bool, string) {
	if bytes.Contains(r.Body, []byte("anomaly-modal")) ||
		bytes.Contains(r.Body, []byte("anomaly.js")) {
		return true, "DuckDuckGo"
	}
	return false, ""
}

// detectGenericCaptcha catches the broad captcha-interstitial class that
// several providers share.
func detectGenericCaptcha(r *Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden && r.StatusCode != http.StatusTooManyRequests {
		return false, ""
	}
	if bytes.Contains(r.Body, []byte("g-recaptcha")) ||
		bytes.Contains(r.Body, []byte("h-captcha")) {
		return true, "Captcha"
	}
	return false, ""
}
