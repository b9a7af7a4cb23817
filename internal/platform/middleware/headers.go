package middleware

import (
	"net/http"
	"strings"
)

// HeaderPolicy lists the third-party origins the embedding page must reach.
type HeaderPolicy struct {
	WidgetOrigin string
	APIOrigin    string
}

// ContentSecurityPolicy renders the CSP header value for the policy.
func (p HeaderPolicy) ContentSecurityPolicy() string {
	directives := []string{
		"default-src 'self' https:",
		"script-src 'self' 'unsafe-inline' 'unsafe-eval' https:",
		"style-src 'self' 'unsafe-inline' https:",
		"img-src 'self' data: blob: https:",
		"media-src 'self' blob: https:",
		"frame-src 'self' " + p.WidgetOrigin,
		strings.TrimSpace("connect-src 'self' " + p.WidgetOrigin + " " + p.APIOrigin),
	}
	return strings.Join(directives, "; ") + ";"
}

// SecurityHeaders grants the embedded widget camera, microphone and
// geolocation, and allows this page to be framed.
func SecurityHeaders(p HeaderPolicy) func(http.Handler) http.Handler {
	csp := p.ContentSecurityPolicy()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Permissions-Policy", "camera=(*), microphone=(*), geolocation=(*)")
			h.Set("Feature-Policy", "camera '*'; microphone '*'; geolocation '*'")
			h.Set("X-Frame-Options", "ALLOWALL")
			h.Set("Content-Security-Policy", csp)
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows any origin, answering preflights directly.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,PATCH,POST,DELETE")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
				h.Add("Vary", "Access-Control-Request-Headers")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
