package server

import (
	"fmt"
	"net/http"
)

// setPageHeaders locks down an HTML page that handles credentials. Only the
// inline script carrying scriptNonce may run, and nothing about the page
// leaks through caches or referrers.
func setPageHeaders(h http.Header, scriptNonce string) {
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Content-Security-Policy", fmt.Sprintf(
		"default-src 'none'; script-src 'nonce-%s'; connect-src 'self'; style-src 'unsafe-inline'; base-uri 'none'; form-action 'none'; frame-ancestors 'none'",
		scriptNonce,
	))
}
