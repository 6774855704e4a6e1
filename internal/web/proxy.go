package web

import (
	"net/http"
	"strings"
)

// cspUpgrade asks browsers to fetch every sub-resource over https, so a page
// served behind a TLS-terminating proxy never loads mixed content.
const cspUpgrade = "upgrade-insecure-requests"

// ForwardedProto marks a request as https when a reverse proxy says so via
// X-Forwarded-Proto. It must wrap the mux from the outside.
func ForwardedProto(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if forwardedHTTPS(r.Header.Get("X-Forwarded-Proto")) {
			r.URL.Scheme = "https"
		}
		next.ServeHTTP(w, r)
	})
}

// forwardedHTTPS inspects the first hop of a possibly comma-separated
// X-Forwarded-Proto value.
func forwardedHTTPS(v string) bool {
	first, _, _ := strings.Cut(v, ",")
	return strings.EqualFold(strings.TrimSpace(first), "https")
}

// Scheme returns "https" for TLS requests and requests marked by
// [ForwardedProto], "http" otherwise.
func Scheme(r *http.Request) string {
	if r.TLS != nil || r.URL.Scheme == "https" {
		return "https"
	}
	return "http"
}
