package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusInternalServerError, expected: "navigation"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorTypeLabel(Classify(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("Classify(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "timeout", err: ErrTimeout{Err: context.DeadlineExceeded}, transient: true},
		{name: "connection", err: ErrConnection{Err: errors.New("refused")}, transient: true},
		{name: "rate limited", err: ErrRateLimited{Err: errors.New("429")}, transient: true},
		{name: "navigation", err: ErrNavigation{Err: errors.New("net::ERR_ABORTED")}, transient: true},
		{name: "not found", err: ErrNotFound{Err: errors.New("404")}, transient: false},
		{name: "forbidden", err: ErrForbidden{Err: errors.New("403")}, transient: false},
		{name: "plain", err: errors.New("whatever"), transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.transient {
				t.Fatalf("Transient(%v) = %v, want %v", tt.err, got, tt.transient)
			}
		})
	}
}

func TestClassifiedErrorsUnwrap(t *testing.T) {
	base := errors.New("root cause")
	wrapped := []error{
		ErrTimeout{Err: base},
		ErrConnection{Err: base},
		ErrForbidden{Err: base},
		ErrNotFound{Err: base},
		ErrRateLimited{Err: base},
		ErrNavigation{Err: base},
	}
	for _, err := range wrapped {
		if !errors.Is(err, base) {
			t.Errorf("%T does not unwrap to the root cause", err)
		}
	}
}
