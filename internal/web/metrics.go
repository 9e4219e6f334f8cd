package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "path", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	claimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "faucet_claims_total", Help: "Claim requests by terminal outcome"},
		[]string{"outcome"},
	)
	payoutAmountTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "faucet_payout_amount_total", Help: "Coins sent by the faucet"},
	)
	walletErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "faucet_wallet_errors_total", Help: "Failed wallet calls by kind"},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, claimsTotal, payoutAmountTotal, walletErrorsTotal)
}

// instrument counts every request by route, method and status class and
// observes its latency.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		sw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := routeLabel(r.URL.Path)
		requestsTotal.WithLabelValues(r.Method, route, statusLabel(sw.code)).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(began).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// statusLabel folds a status code into its class
func statusLabel(code int) string {
	if code < 200 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// routeLabel keeps the path label bounded: every static file shares one label.
func routeLabel(path string) string {
	switch {
	case path == "/", path == "/receive", path == "/healthz", path == "/metrics", path == "/stats":
		return path
	case strings.HasPrefix(path, "/static/"):
		return "/static"
	default:
		return "other"
	}
}
