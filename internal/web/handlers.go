package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/suspectuso/bkc-faucet/internal/limiter"
	"github.com/suspectuso/bkc-faucet/internal/payout"
	"github.com/suspectuso/bkc-faucet/internal/stats"
	"github.com/suspectuso/bkc-faucet/internal/wallet"
)

const maxFormBytes = 16 * 1024

const captchaField = "h-captcha-response"

var txidRegex = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.memory == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.memory.Snapshot())
}

// handleReceive runs one claim: validate, verify captcha, check limits,
// pay, record, redirect with the outcome code.
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log := s.reqLog(r)
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		log.Warn("invalid form", "error", err)
		s.record(ctx, labelBadRequest)
		s.renderError(w, r, http.StatusBadRequest, "Invalid form.")
		return
	}

	address := strings.TrimSpace(r.PostForm.Get("address"))
	if address == "" {
		s.redirect(w, r, OutcomeNoAddress, nil)
		return
	}

	token := r.PostForm.Get(captchaField)
	if token == "" {
		s.redirect(w, r, OutcomeCaptcha, nil)
		return
	}

	ip := ClientIP(r, s.cfg.TrustProxy)
	ipHash := limiter.HashIP(ip)
	log = log.With("ip_hash", ipHash)

	if !s.throttle.allow(ipHash) {
		log.Warn("receive throttled")
		s.record(ctx, labelThrottled)
		w.Header().Set("Retry-After", "5")
		s.renderError(w, r, http.StatusTooManyRequests, msgThrottled)
		return
	}

	if !s.captcha.Verify(ctx, token, ip) {
		s.redirect(w, r, OutcomeCaptcha, nil)
		return
	}

	if !s.addressRe.MatchString(address) {
		s.redirect(w, r, OutcomeInvalidAddress, nil)
		return
	}
	log = log.With("address", address)

	// Check, send and commit run under one lock per IP hash and per address
	// so concurrent claims for either key cannot both pass the check.
	unlock := s.limiter.Lock(ipHash, address)
	defer unlock()

	decision, err := s.limiter.Check(ctx, ipHash, address)
	if err != nil {
		log.Error("check limits", "error", err)
		s.record(ctx, labelStoreFailure)
		s.renderError(w, r, http.StatusInternalServerError, msgStoreFailed)
		return
	}
	if !decision.Allowed {
		log.Info("already claimed", "axis", decision.Axis, "until", decision.Until)
		s.redirect(w, r, OutcomeAlreadyClaimed, url.Values{"address": {address}})
		return
	}

	// Once the send is dispatched it must complete and be accounted for even
	// if the client goes away. The wallet client timeout still bounds it.
	sendCtx := context.WithoutCancel(ctx)

	amount := s.issuer.AmountToSend(sendCtx)

	txid, err := s.issuer.Issue(sendCtx, address, amount)
	if err != nil {
		kind := "unknown"
		if re, ok := wallet.AsRemoteError(err); ok {
			kind = re.Kind.String()
		}
		walletErrorsTotal.WithLabelValues(kind).Inc()
		log.Error("send payment", "error", err, "amount", amount, "kind", kind)
		s.notifier.SendFailed(address, amount, err)
		s.record(sendCtx, labelRemoteFailure)
		s.renderError(w, r, http.StatusInternalServerError, msgSendFailed)
		return
	}

	if _, err := s.limiter.Commit(sendCtx, ipHash, address); err != nil {
		log.Error("commit limits", "error", err, "txid", txid)
	}
	payment, err := s.issuer.Record(sendCtx, address, amount, txid)
	if err != nil {
		log.Error("record payment", "error", err, "txid", txid, "amount", amount)
		s.record(sendCtx, labelStoreFailure)
		s.renderError(w, r, http.StatusInternalServerError, msgStoreFailed)
		return
	}

	payoutAmountTotal.Add(amount.InexactFloat64())
	s.notifier.PaymentSent(payment)
	log.Info("claim issued", "txid", txid, "amount", amount)

	s.redirect(w, r, OutcomeIssued, url.Values{"txid": {txid}})
}

// handleIndex serves the landing page and the outcome views
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if q.Has("status") {
		s.showOutcome(w, r, q)
		return
	}

	ctx := r.Context()
	log := s.reqLog(r)
	ipHash := limiter.HashIP(ClientIP(r, s.cfg.TrustProxy))

	decision, err := s.limiter.CheckIP(ctx, ipHash)
	if err != nil {
		log.Error("check ip limit", "error", err, "ip_hash", ipHash)
		s.renderError(w, r, http.StatusInternalServerError, msgStoreFailed)
		return
	}
	if !decision.Allowed {
		s.renderError(w, r, http.StatusOK, comeBackMessage(s.cfg.CoinName, decision))
		return
	}

	balance, err := s.issuer.Balance(ctx)
	if err != nil {
		log.Error("get balance", "error", err)
		msg := msgSendFailed
		if re, ok := wallet.AsRemoteError(err); ok {
			walletErrorsTotal.WithLabelValues(re.Kind.String()).Inc()
			msg = re.Message
		}
		s.renderError(w, r, http.StatusInternalServerError, msg)
		return
	}

	s.render(w, r, http.StatusOK, "index.html", pageData{Balance: balance.String()})
}

func (s *Server) showOutcome(w http.ResponseWriter, r *http.Request, q url.Values) {
	switch q.Get("status") {
	case strconv.Itoa(int(OutcomeIssued)):
		s.showIssued(w, r, q.Get("txid"))
	case strconv.Itoa(int(OutcomeNoAddress)):
		s.renderError(w, r, http.StatusOK, msgNoAddress)
	case strconv.Itoa(int(OutcomeInvalidAddress)):
		s.renderError(w, r, http.StatusOK, msgInvalidAddress)
	case strconv.Itoa(int(OutcomeAlreadyClaimed)):
		s.showAlreadyClaimed(w, r, q.Get("address"))
	case strconv.Itoa(int(OutcomeCaptcha)):
		s.renderError(w, r, http.StatusOK, msgCaptcha)
	default:
		s.renderError(w, r, http.StatusBadRequest, msgUnknownStatus)
	}
}

func (s *Server) showIssued(w http.ResponseWriter, r *http.Request, txid string) {
	if txid == "" {
		s.renderError(w, r, http.StatusOK, msgNoTxID)
		return
	}
	if !txidRegex.MatchString(txid) {
		s.renderError(w, r, http.StatusOK, msgInvalidTxID)
		return
	}

	p, err := s.issuer.Lookup(r.Context(), txid)
	if errors.Is(err, payout.ErrTxNotFound) {
		s.renderError(w, r, http.StatusOK, msgTxNotFound)
		return
	}
	if err != nil {
		s.reqLog(r).Error("lookup payment", "error", err, "txid", txid)
		s.renderError(w, r, http.StatusInternalServerError, msgStoreFailed)
		return
	}

	data := pageData{
		TxID:    txid,
		Amount:  p.Amount.String(),
		Address: p.Address,
	}
	if s.cfg.ExplorerLink != "" {
		data.ExplorerURL = s.cfg.ExplorerLink + url.QueryEscape(txid)
	}
	s.render(w, r, http.StatusOK, "success.html", data)
}

func (s *Server) showAlreadyClaimed(w http.ResponseWriter, r *http.Request, address string) {
	if address == "" {
		s.renderError(w, r, http.StatusOK, msgNoAddress)
		return
	}

	ipHash := limiter.HashIP(ClientIP(r, s.cfg.TrustProxy))
	decision, err := s.limiter.Peek(r.Context(), ipHash, address)
	if err != nil {
		s.reqLog(r).Error("peek limits", "error", err, "ip_hash", ipHash)
		s.renderError(w, r, http.StatusInternalServerError, msgStoreFailed)
		return
	}
	if decision.Allowed {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if secs := retryAfterSeconds(decision.Until, s.now()); secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	s.renderError(w, r, http.StatusOK, comeBackMessage(s.cfg.CoinName, decision))
}

// redirect ends a claim with its outcome code
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, o Outcome, extra url.Values) {
	q := url.Values{}
	q.Set("status", strconv.Itoa(int(o)))
	for k, v := range extra {
		q[k] = v
	}
	s.record(r.Context(), o.Label())
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusFound)
}

// record counts a terminal outcome. The stats backend gets at most
// statsTimeout so a slow Redis never holds a response.
func (s *Server) record(ctx context.Context, outcome string) {
	claimsTotal.WithLabelValues(outcome).Inc()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.statsTimeout)
	defer cancel()
	if err := s.stats.Record(ctx, stats.Event{Outcome: outcome, At: s.now()}); err != nil {
		s.log.Warn("record stats", "error", err, "outcome", outcome)
	}
}
