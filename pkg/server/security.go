package server

import (
	"net/http"
)

// securityHeaders are sent with every response. The API only returns JSON and
// the websocket stream, so no response is ever rendered as a page.
var securityHeaders = []struct {
	name, value string
}{
	// 2 years
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
	{"X-Content-Type-Options", "nosniff"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; sandbox"},
	{"X-Frame-Options", "DENY"},
	// building and tenant IDs are part of API paths
	{"Referrer-Policy", "no-referrer"},
	// tenant bills may only be read by the dashboard's own site
	{"Cross-Origin-Resource-Policy", "same-site"},
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, sh := range securityHeaders {
			h.Set(sh.name, sh.value)
		}
		next.ServeHTTP(w, r)
	})
}
