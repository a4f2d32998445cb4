package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// RPCError is a JSON-RPC error object returned by a node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPError is a non-200 response from a node.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// ErrMalformedResponse is returned when a response cannot be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// ErrRateLimited is returned without a request while an endpoint's
// rate-limit backoff is running.
var ErrRateLimited = errors.New("rate limited")

// ErrorKind is a coarse classification of a failed call.
type ErrorKind string

const (
	KindNone        ErrorKind = "none"
	KindTimeout     ErrorKind = "timeout"
	KindTransport   ErrorKind = "transport"
	KindRateLimited ErrorKind = "rate_limited"
	KindHTTP        ErrorKind = "http"
	KindRPC         ErrorKind = "rpc"
	KindMalformed   ErrorKind = "malformed"
	KindCanceled    ErrorKind = "canceled"
)

// ClassifyError determines the kind of a call failure.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, ErrMalformedResponse) {
		return KindMalformed
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimited
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 || httpErr.StatusCode == 403 {
			return KindRateLimited
		}
		return KindHTTP
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		if isThrottleMessage(rpcErr.Message) {
			return KindRateLimited
		}
		return KindRPC
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "timeout") || strings.Contains(s, "deadline") {
		return KindTimeout
	}
	if isThrottleMessage(s) {
		return KindRateLimited
	}

	return KindTransport
}

var throttlePatterns = []string{
	"rate limit exceeded",
	"too many requests",
	"daily request count exceeded",
	"quota exceeded",
}

func isThrottleMessage(message string) bool {
	lowerMsg := strings.ToLower(message)
	for _, pattern := range throttlePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}
	return false
}
