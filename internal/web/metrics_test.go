package web

import "testing"

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		302: "3xx",
		404: "4xx",
		429: "4xx",
		500: "5xx",
		100: "unknown",
		600: "unknown",
	}
	for code, want := range tests {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/":                 "/",
		"/receive":          "/receive",
		"/metrics":          "/metrics",
		"/static/style.css": "/static",
		"/wp-login.php":     "other",
	}
	for path, want := range tests {
		if got := routeLabel(path); got != want {
			t.Errorf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
