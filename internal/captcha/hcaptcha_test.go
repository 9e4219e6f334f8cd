package captcha

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"success", 200, `{"success":true}`, true},
		{"rejected", 200, `{"success":false,"error-codes":["invalid-input-response"]}`, false},
		{"missing field", 200, `{}`, false},
		{"not json", 500, `oops`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatal(err)
				}
				if r.PostForm.Get("secret") != "s3cret" || r.PostForm.Get("response") != "tok" {
					t.Errorf("form = %v", r.PostForm)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			h := NewHCaptcha(srv.URL, "s3cret", time.Second, discard)
			if got := h.Verify(context.Background(), "tok", ""); got != tt.want {
				t.Errorf("Verify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	h := NewHCaptcha(url, "s", time.Second, discard)
	if h.Verify(context.Background(), "tok", "1.2.3.4") {
		t.Error("unreachable provider must count as failure")
	}
}
