package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suspectuso/bkc-faucet/internal/config"
	"github.com/suspectuso/bkc-faucet/internal/limiter"
	"github.com/suspectuso/bkc-faucet/internal/notifier"
	"github.com/suspectuso/bkc-faucet/internal/payout"
	"github.com/suspectuso/bkc-faucet/internal/stats"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const defaultStatsTimeout = 300 * time.Millisecond

// Captcha verifies a client-submitted token
type Captcha interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

// Deps are the collaborators of the HTTP surface
type Deps struct {
	Config   *config.Config
	Limiter  *limiter.Limiter
	Issuer   *payout.Issuer
	Captcha  Captcha
	Notifier *notifier.Notifier
	Stats    stats.Recorder
	// Memory, when set, is served as JSON on /stats.
	Memory *stats.Memory
	Log    *slog.Logger
}

// Server serves the faucet pages and the claim endpoint
type Server struct {
	cfg      *config.Config
	limiter  *limiter.Limiter
	issuer   *payout.Issuer
	captcha  Captcha
	notifier *notifier.Notifier
	stats    stats.Recorder
	memory   *stats.Memory
	log      *slog.Logger

	addressRe *regexp.Regexp
	throttle  *throttle
	pages     map[string]*template.Template
	now       func() time.Time

	statsTimeout time.Duration

	server *http.Server
}

// NewServer parses the page templates and wires the handlers
func NewServer(d Deps) (*Server, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"index.html", "success.html", "error.html"} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	rec := d.Stats
	if rec == nil {
		rec = stats.NewMemory()
	}

	return &Server{
		cfg:       d.Config,
		limiter:   d.Limiter,
		issuer:    d.Issuer,
		captcha:   d.Captcha,
		notifier:  d.Notifier,
		stats:     rec,
		memory:    d.Memory,
		log:       d.Log,
		addressRe: AddressPattern(d.Config.AddressPrefix, d.Config.AddressLength),
		throttle:  newThrottle(d.Config.ReceiveRPS, d.Config.ReceiveBurst),
		pages:     pages,
		now:       time.Now,

		statsTimeout: defaultStatsTimeout,
	}, nil
}

// AddressPattern matches prefix followed by alphanumerics up to length characters total
func AddressPattern(prefix string, length int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^%s[a-zA-Z0-9]{%d}$`, regexp.QuoteMeta(prefix), length-len(prefix)))
}

// Handler returns the full middleware-wrapped router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/receive", s.handleReceive)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/static/", cacheStatic(http.FileServer(http.FS(staticFS))))

	return withRequestID(instrument(mux))
}

// Start serves on port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	s.throttle.startJanitor(ctx, 2*time.Minute)

	s.log.Info("starting http server", "port", port)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http shutdown", "error", err)
		}
	}()

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		// in-flight claims finish before the store is closed
		<-done
	}
	return err
}

type siteInfo struct {
	CoinName  string
	Ticker    string
	Copyright string
	Donate    string
	AADSID    string
	SiteKey   string
}

type pageData struct {
	Site        siteInfo
	Balance     string
	Error       string
	TxID        string
	Amount      string
	Address     string
	ExplorerURL string
}

func (s *Server) site() siteInfo {
	return siteInfo{
		CoinName:  s.cfg.CoinName,
		Ticker:    s.cfg.Ticker,
		Copyright: s.cfg.Copyright,
		Donate:    s.cfg.Donate,
		AADSID:    s.cfg.AADSID,
		SiteKey:   s.cfg.HCaptchaSiteKey,
	}
}

// render executes into a buffer first so a template error never leaves a
// half-written response behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	data.Site = s.site()

	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.reqLog(r).Error("render page", "page", page, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, "error.html", pageData{Error: msg})
}

func (s *Server) reqLog(r *http.Request) *slog.Logger {
	return s.log.With("request_id", requestID(r.Context()))
}
