package wallet

import (
	"encoding/json"
	"fmt"
)

// ErrorKind classifies wallet RPC failures
type ErrorKind int

const (
	// KindUnavailable: the daemon could not be reached or timed out
	KindUnavailable ErrorKind = iota
	// KindAuth: the daemon rejected the credentials
	KindAuth
	// KindProtocol: the response was not a well-formed reply to our request
	KindProtocol
	// KindApplication: the daemon reported an error or returned nothing
	KindApplication
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// RemoteError is returned for every failed wallet call
type RemoteError struct {
	Kind    ErrorKind
	Method  string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wallet %s (%s): %s: %v", e.Method, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("wallet %s (%s): %s", e.Method, e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// rpcRequest is a JSON-RPC 1.0 call as understood by bitcoind-derived daemons
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse keeps every field raw so presence can be checked explicitly
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
	ID     json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
