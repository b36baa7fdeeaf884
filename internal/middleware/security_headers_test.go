package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveWithHeaders(env string, req *http.Request) *httptest.ResponseRecorder {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: env})
	w := httptest.NewRecorder()
	handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := serveWithHeaders("development", httptest.NewRequest("POST", "/auth/login", nil))

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "no-referrer"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Cache-Control", "no-store"},
		{"Pragma", "no-cache"},
	}

	for _, tt := range tests {
		if got := w.Header().Get(tt.header); got != tt.expected {
			t.Errorf("Header %s: got %q, want %q", tt.header, got, tt.expected)
		}
	}

	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("HSTS should not be sent outside production: %q", hsts)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tests := []struct {
		name string
		env  string
		req  func() *http.Request
		want bool
	}{
		{
			name: "production behind TLS proxy",
			env:  "production",
			req: func() *http.Request {
				r := httptest.NewRequest("GET", "/health", nil)
				r.Header.Set("X-Forwarded-Proto", "https")
				return r
			},
			want: true,
		},
		{
			name: "production direct TLS",
			env:  "production",
			req: func() *http.Request {
				r := httptest.NewRequest("GET", "/health", nil)
				r.TLS = &tls.ConnectionState{}
				return r
			},
			want: true,
		},
		{
			name: "production plain http",
			env:  "production",
			req:  func() *http.Request { return httptest.NewRequest("GET", "/health", nil) },
			want: false,
		},
		{
			name: "development behind TLS proxy",
			env:  "development",
			req: func() *http.Request {
				r := httptest.NewRequest("GET", "/health", nil)
				r.Header.Set("X-Forwarded-Proto", "https")
				return r
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveWithHeaders(tt.env, tt.req())
			got := w.Header().Get("Strict-Transport-Security") != ""
			if got != tt.want {
				t.Errorf("HSTS present = %v, want %v", got, tt.want)
			}
		})
	}
}
