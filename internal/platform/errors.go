package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// TransportKind classifies a request that never produced an HTTP response.
type TransportKind int

const (
	KindUnknown TransportKind = iota
	// KindDNS means the host name could not be resolved
	KindDNS
	// KindUnreachable means no route to the host or network
	KindUnreachable
	// KindRefused means the host answered but nothing accepted the connection
	KindRefused
	// KindTimeout covers dial, TLS, header and overall client timeouts
	KindTimeout
	// KindCanceled means the caller's context was cancelled
	KindCanceled
)

func (k TransportKind) String() string {
	switch k {
	case KindDNS:
		return "dns"
	case KindUnreachable:
		return "unreachable"
	case KindRefused:
		return "refused"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// TransportError wraps a failure below HTTP.
type TransportError struct {
	Kind     TransportKind
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Endpoint, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// LogValue keeps the wrapped error text out of structured logs; it can
// carry full URLs.
func (e *TransportError) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", e.Kind.String()),
		slog.String("endpoint", e.Endpoint),
	)
}

// APIError is a response from the SafeKart API that did not carry a
// successful result: a non-2xx status, or a 2xx body with success=false.
type APIError struct {
	// Status is the HTTP status code
	Status int
	// Code is the server's machine-readable error code, if any
	Code string
	// Message is the server-provided human readable message, if any
	Message  string
	Endpoint string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d (%s): %s", e.Endpoint, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, msg)
}

func (e *APIError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("status", e.Status),
		slog.String("endpoint", e.Endpoint),
	}
	if e.Code != "" {
		attrs = append(attrs, slog.String("code", e.Code))
	}
	return slog.GroupValue(attrs...)
}

// Rejected reports whether the server answered 2xx but refused the request.
func (e *APIError) Rejected() bool {
	return e.Status >= 200 && e.Status < 300
}

// classifyTransport inspects the error chain of a failed http.Client.Do.
func classifyTransport(err error) TransportKind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return KindRefused
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return KindUnreachable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindRefused
	}

	return classifyText(err.Error())
}

// classifyText is the fallback for errors that lost their type, e.g. when
// a custom RoundTripper flattens them into strings. A timeout phrase wins
// over everything else.
func classifyText(msg string) TransportKind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	case strings.Contains(msg, "no such host"), strings.Contains(msg, "unable to resolve host"):
		return KindDNS
	case strings.Contains(msg, "network is unreachable"), strings.Contains(msg, "no route to host"):
		return KindUnreachable
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "failed to connect"):
		return KindRefused
	default:
		return KindUnknown
	}
}
