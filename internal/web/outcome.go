package web

import (
	"fmt"
	"time"

	"github.com/suspectuso/bkc-faucet/internal/limiter"
)

// Outcome is the status code a claim redirects with
type Outcome int

const (
	OutcomeIssued         Outcome = 0
	OutcomeNoAddress      Outcome = 1
	OutcomeInvalidAddress Outcome = 2
	OutcomeAlreadyClaimed Outcome = 3
	OutcomeCaptcha        Outcome = 4
)

// Labels for claims that end without a redirect
const (
	labelRemoteFailure = "remote_failure"
	labelStoreFailure  = "store_failure"
	labelThrottled     = "throttled"
	labelBadRequest    = "bad_request"
)

func (o Outcome) Label() string {
	switch o {
	case OutcomeIssued:
		return "issued"
	case OutcomeNoAddress:
		return "no_address"
	case OutcomeInvalidAddress:
		return "invalid_address"
	case OutcomeAlreadyClaimed:
		return "already_claimed"
	case OutcomeCaptcha:
		return "captcha_failed"
	default:
		return "unknown"
	}
}

const (
	msgNoAddress      = "Please specify an address."
	msgInvalidAddress = "Please specify a valid address."
	msgCaptcha        = "Please complete the hCaptcha."
	msgNoTxID         = "Please specify a TXID."
	msgInvalidTxID    = "Please specify a valid TXID."
	msgTxNotFound     = "Transaction not found."
	msgUnknownStatus  = "Unknown status."
	msgSendFailed     = "The faucet could not send your coins right now. Please try again later."
	msgStoreFailed    = "Something went wrong on our side. Please try again later."
	msgThrottled      = "Too many requests. Please slow down."
)

const timeLayout = "2006-01-02 15:04:05 MST"

// comeBackMessage renders the already-claimed notice for a denial
func comeBackMessage(coin string, d limiter.Decision) string {
	var by string
	switch d.Axis {
	case limiter.AxisIP:
		by = " from this connection"
	case limiter.AxisAddress:
		by = " to this address"
	case limiter.AxisBoth:
		by = " from this connection and to this address"
	}
	return fmt.Sprintf("Hi! It looks like you've already claimed your %ss%s for today! Please come back at %s!",
		coin, by, d.Until.UTC().Format(timeLayout))
}

// retryAfterSeconds rounds the remaining wait up to whole seconds
func retryAfterSeconds(until, now time.Time) int {
	d := until.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
