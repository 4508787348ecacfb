package server

import (
	"net/http"
	"net/url"
	"strings"
)

// joinURL is the link a QR code points at. It honours the proxy headers
// set by a TLS terminating load balancer.
func joinURL(r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = strings.ToLower(strings.Split(proto, ",")[0])
	}
	host := r.Host
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); forwarded != "" {
		host = strings.Split(forwarded, ",")[0]
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     strings.TrimSpace(host),
		Path:     "/",
		RawQuery: url.Values{"room": {code}}.Encode(),
	}
	return u.String()
}
