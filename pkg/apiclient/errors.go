package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind classifies a failed request.
type Kind int

const (
	KindUnknown Kind = iota
	// KindThrottled means an identical request was dispatched inside the
	// throttle window. No network attempt was made.
	KindThrottled
	KindTimeout
	// KindUnreachable means the request was sent but no response came back.
	KindUnreachable
	// KindServer means a response was received with a non-success status or
	// a success:false body.
	KindServer
	// KindClientLogic covers failures before anything reached the wire, such
	// as unencodable parameters or malformed configuration.
	KindClientLogic
)

func (k Kind) String() string {
	switch k {
	case KindThrottled:
		return "throttled"
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindServer:
		return "server_error"
	case KindClientLogic:
		return "client_logic_error"
	default:
		return "unknown"
	}
}

const (
	msgThrottled  = "request throttled"
	msgNoResponse = "no response received from server"
	msgConnection = "could not connect to server"
)

// ErrThrottled is wrapped by every KindThrottled error.
var ErrThrottled = errors.New(msgThrottled)

// Error is the single failure shape surfaced by Client. Err holds the
// original error and HTTPStatus is 0 when no response was received.
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

func throttledError(verb Verb, endpoint string) *Error {
	return &Error{
		Kind:    KindThrottled,
		Message: fmt.Sprintf("%s: %s %s", msgThrottled, verb, endpoint),
		Err:     ErrThrottled,
	}
}

func clientLogicError(err error) *Error {
	return &Error{
		Kind:    KindClientLogic,
		Message: fmt.Sprintf("%s: %v", msgConnection, err),
		Err:     err,
	}
}

// transportError classifies an error returned by the transport, i.e. the
// request left the client but no response was read.
func transportError(err error) *Error {
	kind := KindUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: msgNoResponse, Err: err}
}

// responseError builds a KindServer error from a received response. The
// message prefers the body's "error" field over the status text.
func responseError(status int, body []byte) *Error {
	detail := serverDetail(body)
	if detail == "" {
		detail = http.StatusText(status)
	}
	if detail == "" {
		detail = fmt.Sprintf("status %d", status)
	}
	return &Error{
		Kind:       KindServer,
		Message:    "server error: " + detail,
		HTTPStatus: status,
		Err:        fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(body))),
	}
}

func serverDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	if e := gjson.GetBytes(body, "error"); e.Exists() && e.String() != "" {
		return e.String()
	}
	return ""
}
