package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type rpcCall struct {
	Method string `json:"method"`
	ID     string `json:"id"`
	Params []any  `json:"params"`
}

func newWalletServer(t *testing.T, handler func(w http.ResponseWriter, call rpcCall)) (*Client, *[]rpcCall) {
	t.Helper()
	var calls []rpcCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode request: %v", err)
		}
		calls = append(calls, call)
		handler(w, call)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "user", "secret", "faucet", 5*time.Second, 1000), &calls
}

func TestBalance(t *testing.T) {
	c, calls := newWalletServer(t, func(w http.ResponseWriter, call rpcCall) {
		w.Write([]byte(`{"result":12345.5,"error":null,"id":"bkc-faucet"}`))
	})

	got, err := c.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("12345.5")) {
		t.Errorf("Balance = %s, want 12345.5", got)
	}
	if len(*calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(*calls))
	}
	call := (*calls)[0]
	if call.Method != "getbalance" || call.ID != ClientID {
		t.Errorf("call = %+v", call)
	}
	if len(call.Params) != 1 || call.Params[0] != "faucet" {
		t.Errorf("params = %v, want [faucet]", call.Params)
	}
}

func TestSend(t *testing.T) {
	c, calls := newWalletServer(t, func(w http.ResponseWriter, call rpcCall) {
		w.Write([]byte(`{"result":"abc123","error":null,"id":"bkc-faucet"}`))
	})

	txid, err := c.Send(context.Background(), "Baddr", decimal.RequireFromString("12.345"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if txid != "abc123" {
		t.Errorf("txid = %q", txid)
	}
	call := (*calls)[0]
	if call.Method != "sendfrom" {
		t.Errorf("method = %q, want sendfrom", call.Method)
	}
	if len(call.Params) != 3 || call.Params[0] != "faucet" || call.Params[1] != "Baddr" || call.Params[2] != 12.345 {
		t.Errorf("params = %v", call.Params)
	}
}

func TestSendWithoutAccount(t *testing.T) {
	var got rpcCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"result":"tx","error":null,"id":"bkc-faucet"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", "", time.Second, 1000)
	if _, err := c.Send(context.Background(), "Baddr", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Method != "sendtoaddress" || len(got.Params) != 2 {
		t.Errorf("call = %+v, want sendtoaddress [addr amount]", got)
	}
}

func TestCallFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"missing id", 200, `{"result":"x","error":null}`, KindProtocol},
		{"wrong id", 200, `{"result":"x","error":null,"id":"other"}`, KindProtocol},
		{"rpc error", 500, `{"result":null,"error":{"code":-6,"message":"Insufficient funds"},"id":"bkc-faucet"}`, KindApplication},
		{"empty result", 200, `{"result":"","error":null,"id":"bkc-faucet"}`, KindApplication},
		{"null result", 200, `{"result":null,"error":null,"id":"bkc-faucet"}`, KindApplication},
		{"garbage", 200, `not json`, KindProtocol},
		{"gateway error", 502, `<html>bad gateway</html>`, KindUnavailable},
		{"forbidden", 403, ``, KindAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "user", "secret", "faucet", time.Second, 1000)
			_, err := c.Send(context.Background(), "Baddr", decimal.NewFromInt(1))
			re, ok := AsRemoteError(err)
			if !ok {
				t.Fatalf("err = %v, want *RemoteError", err)
			}
			if re.Kind != tt.want {
				t.Errorf("kind = %s, want %s (%v)", re.Kind, tt.want, err)
			}
		})
	}
}

func TestRPCErrorMessage(t *testing.T) {
	c, _ := newWalletServer(t, func(w http.ResponseWriter, call rpcCall) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"result":null,"error":{"code":-6,"message":"Insufficient funds"},"id":"bkc-faucet"}`))
	})
	_, err := c.Send(context.Background(), "Baddr", decimal.NewFromInt(1))
	re, ok := AsRemoteError(err)
	if !ok || re.Message != "Insufficient funds" {
		t.Errorf("err = %v, want message Insufficient funds", err)
	}
}

func TestBadCredentials(t *testing.T) {
	c, _ := newWalletServer(t, func(w http.ResponseWriter, call rpcCall) {
		t.Error("handler must not be reached with bad credentials")
	})
	c.password = "wrong"
	_, err := c.Balance(context.Background())
	re, ok := AsRemoteError(err)
	if !ok || re.Kind != KindAuth {
		t.Errorf("err = %v, want auth RemoteError", err)
	}
}

func TestBalanceZeroIsEmpty(t *testing.T) {
	c, _ := newWalletServer(t, func(w http.ResponseWriter, call rpcCall) {
		w.Write([]byte(`{"result":0,"error":null,"id":"bkc-faucet"}`))
	})
	if _, err := c.Balance(context.Background()); err == nil {
		t.Error("zero balance should be reported as an empty result")
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", "", "faucet", time.Second, 1000)
	_, err := c.Balance(context.Background())
	re, ok := AsRemoteError(err)
	if !ok || re.Kind != KindUnavailable {
		t.Errorf("err = %v, want unavailable RemoteError", err)
	}
}
