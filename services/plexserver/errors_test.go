package plexserver

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"net"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection refused", &NetworkError{Op: "https /", Err: syscall.ECONNREFUSED}, true},
		{"connection reset", &NetworkError{Op: "https /", Err: syscall.ECONNRESET}, true},
		{"host unreachable", &NetworkError{Op: "https /", Err: syscall.EHOSTUNREACH}, true},
		{"network down", &NetworkError{Op: "https /", Err: syscall.ENETDOWN}, true},
		{"timed out errno", &NetworkError{Op: "https /", Err: syscall.ETIMEDOUT}, true},
		{"net timeout", &NetworkError{Op: "https /", Err: timeoutError{}}, true},
		{"deadline exceeded", &NetworkError{Op: "https /", Err: context.DeadlineExceeded}, true},
		{
			"dial failure without errno",
			&NetworkError{Op: "https /", Err: &net.OpError{Op: "dial", Err: errors.New("no such host")}},
			true,
		},
		{"explicit cancellation", &NetworkError{Op: "https /", Err: context.Canceled}, false},
		{"invalid token", ErrInvalidToken, false},
		{"not authenticated", ErrNotAuthenticated, false},
		{"not found", ErrNotFound, false},
		{"decode failure", &DecodeError{Err: errors.New("bad xml")}, false},
		{"service error", &ServiceError{Status: 500}, false},
		{"bare errno without wrapper", syscall.ECONNREFUSED, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNetworkErrorUnwrap(t *testing.T) {
	err := &NetworkError{Op: "https /status/sessions", Err: syscall.ECONNRESET}
	if !errors.Is(err, syscall.ECONNRESET) {
		t.Error("NetworkError must unwrap to its cause")
	}
}

func TestIsRelayCertificate(t *testing.T) {
	tests := []struct {
		name string
		cert *x509.Certificate
		want bool
	}{
		{
			"relay common name",
			&x509.Certificate{Subject: pkix.Name{CommonName: "*.abc123.plex.direct"}},
			true,
		},
		{
			"relay common name mixed case",
			&x509.Certificate{Subject: pkix.Name{CommonName: "*.ABC123.Plex.Direct"}},
			true,
		},
		{
			"relay SAN only",
			&x509.Certificate{
				Subject:  pkix.Name{CommonName: "something-else"},
				DNSNames: []string{"*.abc123.plex.direct"},
			},
			true,
		},
		{
			"ordinary self-signed",
			&x509.Certificate{Subject: pkix.Name{CommonName: "my-nas.local"}},
			false,
		},
		{
			"suffix must match whole label chain",
			&x509.Certificate{Subject: pkix.Name{CommonName: "evil-plex.direct.example.com"}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRelayCertificate(tt.cert); got != tt.want {
				t.Errorf("isRelayCertificate(%q) = %v, want %v", tt.cert.Subject.CommonName, got, tt.want)
			}
		})
	}
}
