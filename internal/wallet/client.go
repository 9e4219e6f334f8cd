package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ClientID is the correlation id sent with every call and expected back in every reply
const ClientID = "bkc-faucet"

const maxResponseBytes = 1 << 20

// Client is a wallet daemon JSON-RPC client
type Client struct {
	url      string
	user     string
	password string
	account  string

	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new wallet client. account selects the daemon account
// the faucet pays from; empty means the default wallet.
func NewClient(url, user, password, account string, timeout time.Duration, rps float64) *Client {
	if rps <= 0 {
		rps = 4
	}
	return &Client{
		url:      strings.TrimSuffix(url, "/"),
		user:     user,
		password: password,
		account:  account,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	fail := func(kind ErrorKind, msg string, err error) error {
		return &RemoteError{Kind: kind, Method: method, Message: msg, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fail(KindUnavailable, "throttle", err)
	}

	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: ClientID, Method: method, Params: params})
	if err != nil {
		return nil, fail(KindProtocol, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fail(KindUnavailable, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fail(KindUnavailable, "do request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fail(KindUnavailable, "read body", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fail(KindAuth, "Authorization failed.", nil)
	}

	// bitcoind answers application errors with HTTP 500 and a JSON body,
	// so the body is parsed before the status code is judged.
	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fail(KindUnavailable, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
		}
		return nil, fail(KindProtocol, "malformed response", err)
	}

	var id string
	if isNull(rpcResp.ID) {
		return nil, fail(KindProtocol, "response has no id", nil)
	}
	if err := json.Unmarshal(rpcResp.ID, &id); err != nil || id != ClientID {
		return nil, fail(KindProtocol, "Incorrect ID.", nil)
	}

	if !isNull(rpcResp.Error) {
		var rerr rpcError
		if err := json.Unmarshal(rpcResp.Error, &rerr); err != nil || rerr.Message == "" {
			return nil, fail(KindApplication, string(rpcResp.Error), nil)
		}
		return nil, fail(KindApplication, rerr.Message, nil)
	}

	if isEmpty(rpcResp.Result) {
		return nil, fail(KindApplication, "empty result", nil)
	}

	return rpcResp.Result, nil
}

// Balance returns the spendable balance of the faucet account
func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	var params []any
	if c.account != "" {
		params = []any{c.account}
	}

	raw, err := c.call(ctx, "getbalance", params)
	if err != nil {
		return decimal.Zero, err
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return decimal.Zero, &RemoteError{Kind: KindProtocol, Method: "getbalance", Message: "result is not a number", Err: err}
	}
	balance, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Zero, &RemoteError{Kind: KindProtocol, Method: "getbalance", Message: "result is not a number", Err: err}
	}

	return balance, nil
}

// Send pays amount to address from the faucet account and returns the txid
func (c *Client) Send(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	method := "sendfrom"
	params := []any{c.account, address, json.Number(amount.String())}
	if c.account == "" {
		method = "sendtoaddress"
		params = params[1:]
	}

	raw, err := c.call(ctx, method, params)
	if err != nil {
		return "", err
	}

	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return "", &RemoteError{Kind: KindProtocol, Method: method, Message: "result is not a txid", Err: err}
	}

	return txid, nil
}

// AsRemoteError extracts a *RemoteError from err
func AsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// isEmpty mirrors the daemon contract where a missing, null, blank, zero or
// false result carries no usable value.
func isEmpty(raw json.RawMessage) bool {
	if isNull(raw) {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case float64:
		return val == 0
	case bool:
		return !val
	}
	return false
}
