package chain

import (
	"errors"
	"fmt"
	"strings"
)

// RPCError is a JSON-RPC level rejection carrying the provider's code.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TransportError is an HTTP or network level failure.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport error: status %d", e.Status)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// rateLimitCodes are provider codes that signal throttling. -32005 is the
// conventional "limit exceeded" code.
var rateLimitCodes = map[int]struct{}{
	429:    {},
	-32005: {},
}

// IsRateLimit reports whether err looks like provider throttling: known
// limit codes or the usual message fragments.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		if _, ok := rateLimitCodes[rpcErr.Code]; ok {
			return true
		}
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) && transportErr.Status == 429 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"rate limit", "429", "too many requests"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
