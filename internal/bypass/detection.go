// Package bypass recognizes anti-automation challenge pages. A search
// endpoint that decides a client looks scripted often answers 200 with a
// challenge body instead of results, so detection cannot rely on status
// codes alone.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Detector examines one response to decide whether a bot protection
// mechanism challenged or blocked the request, and names its source.
type Detector func(statusCode int, header http.Header, body []byte) (detected bool, source string)

// DefaultDetectors returns the standard detector list.
func DefaultDetectors() []Detector {
	return []Detector{
		detectAnomalyPage,
		detectCaptcha,
		detectCloudflare,
	}
}

// Analyze runs the response through all detectors and returns the first hit.
func Analyze(statusCode int, header http.Header, body []byte, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(statusCode, header, body); detected {
			return true, source
		}
	}
	return false, ""
}

// detectAnomalyPage looks for the search engine's own "unusual traffic"
// interstitial, which is served with status 200.
func detectAnomalyPage(statusCode int, _ http.Header, body []byte) (bool, string) {
	if statusCode != http.StatusOK && statusCode != http.StatusForbidden {
		return false, ""
	}
	if bytes.Contains(body, []byte("anomaly-modal.js")) ||
		bytes.Contains(body, []byte("Unfortunately, bots use DuckDuckGo too")) {
		return true, "anomaly"
	}
	return false, ""
}

// detectCaptcha looks for embedded captcha widgets.
func detectCaptcha(_ int, _ http.Header, body []byte) (bool, string) {
	if bytes.Contains(body, []byte("g-recaptcha")) ||
		bytes.Contains(body, []byte("h-captcha")) ||
		bytes.Contains(body, []byte("challenge-form")) {
		return true, "captcha"
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(statusCode int, header http.Header, body []byte) (bool, string) {
	if statusCode != http.StatusForbidden && statusCode != http.StatusServiceUnavailable {
		return false, ""
	}

	if strings.Contains(strings.ToLower(header.Get("Server")), "cloudflare") {
		return true, "cloudflare"
	}
	if bytes.Contains(body, []byte("cf-browser-verification")) ||
		bytes.Contains(body, []byte("cf-turnstile")) ||
		bytes.Contains(body, []byte("Attention Required! | Cloudflare")) {
		return true, "cloudflare"
	}
	return false, ""
}
