package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const poweredBy = "The Bunkercoin Team"

type ctxKey int

const requestIDKey ctxKey = iota

// withRequestID tags every request with an id, echoing a caller-supplied one
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		w.Header().Set("X-Powered-By", poweredBy)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// cacheStatic marks embedded assets cacheable for a week
func cacheStatic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=604800, must-revalidate")
		next.ServeHTTP(w, r)
	})
}
