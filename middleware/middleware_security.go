package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// SecurityConfig holds the response headers applied to rendered fragments
type SecurityConfig struct {
	CSPDirectives map[string]string

	HSTSMaxAge            int
	HSTSIncludeSubDomains bool

	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
}

// DefaultSecurityConfig forbids every active resource. Rendered comments are
// fragments of inert markup, so nothing they contain may load or run.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSPDirectives: map[string]string{
			"default-src":     "'none'",
			"img-src":         "https: data:",
			"style-src":       "'unsafe-inline'",
			"frame-ancestors": "'none'",
			"base-uri":        "'none'",
			"form-action":     "'none'",
		},
		HSTSMaxAge:            63072000, // 2 years
		HSTSIncludeSubDomains: true,
		FrameOptions:          "DENY",
		ContentTypeOptions:    "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// SecurityHeadersMiddleware adds the headers of config to every response.
func SecurityHeadersMiddleware(config *SecurityConfig) Middleware {
	if config == nil {
		config = DefaultSecurityConfig()
	}

	csp := buildCSP(config.CSPDirectives)
	hsts := buildHSTS(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", config.ContentTypeOptions)
			h.Set("X-Frame-Options", config.FrameOptions)
			h.Set("Referrer-Policy", config.ReferrerPolicy)
			h.Set("Content-Security-Policy", csp)

			if isHTTPS(r) {
				h.Set("Strict-Transport-Security", hsts)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// buildCSP sorts directives so the header is stable
func buildCSP(directives map[string]string) string {
	names := make([]string, 0, len(directives))
	for name := range directives {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if value := directives[name]; value != "" {
			parts = append(parts, fmt.Sprintf("%s %s", name, value))
		} else {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "; ")
}

func buildHSTS(config *SecurityConfig) string {
	hsts := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
	if config.HSTSIncludeSubDomains {
		hsts += "; includeSubDomains"
	}
	return hsts
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil ||
		strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") ||
		strings.EqualFold(r.URL.Scheme, "https")
}
