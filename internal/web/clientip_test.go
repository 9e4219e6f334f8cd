package web

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		xff        string
		trustProxy bool
		want       string
	}{
		{"remote addr", "10.0.0.1:5555", "", false, "10.0.0.1"},
		{"ipv6 remote", "[2001:db8::1]:443", "", false, "2001:db8::1"},
		{"xff ignored when untrusted", "10.0.0.1:5555", "1.2.3.4", false, "10.0.0.1"},
		{"xff single", "10.0.0.1:5555", "1.2.3.4", true, "1.2.3.4"},
		{"xff last entry wins", "10.0.0.1:5555", "6.6.6.6, 1.2.3.4", true, "1.2.3.4"},
		{"xff trailing blank", "10.0.0.1:5555", "1.2.3.4, ", true, "10.0.0.1"},
		{"no port", "10.0.0.1", "", false, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
