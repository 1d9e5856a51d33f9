// Package classify maps a failed call to a domain.Classification.
//
// Classify is pure: the same failure shape always yields the same
// classification, and nothing is recorded.
package classify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/bft-labs/reqguard/internal/domain"
)

var (
	network = domain.Classification{
		Type: domain.NetworkError, Category: domain.CategoryNetwork,
		Recoverable: true, Retryable: true, Severity: domain.SeverityHigh,
	}
	server = domain.Classification{
		Type: domain.ServerError, Category: domain.CategoryServer,
		Recoverable: true, Retryable: true, Severity: domain.SeverityHigh,
	}
	rateLimit = domain.Classification{
		Type: domain.RateLimitError, Category: domain.CategoryClient,
		Recoverable: true, Retryable: true, Severity: domain.SeverityMedium,
	}
	authentication = domain.Classification{
		Type: domain.AuthenticationError, Category: domain.CategoryAuth,
		Recoverable: true, Retryable: false, Severity: domain.SeverityHigh,
	}
	authorization = domain.Classification{
		Type: domain.AuthorizationError, Category: domain.CategoryAuth,
		Recoverable: false, Retryable: false, Severity: domain.SeverityHigh,
	}
	client = domain.Classification{
		Type: domain.ClientError, Category: domain.CategoryClient,
		Recoverable: false, Retryable: false, Severity: domain.SeverityMedium,
	}
	timeout = domain.Classification{
		Type: domain.TimeoutError, Category: domain.CategoryNetwork,
		Recoverable: true, Retryable: true, Severity: domain.SeverityMedium,
	}
	cors = domain.Classification{
		Type: domain.CORSError, Category: domain.CategoryNetwork,
		Recoverable: false, Retryable: false, Severity: domain.SeverityHigh,
	}
	unknown = domain.Classification{
		Type: domain.UnknownError, Category: domain.CategoryUnknown,
		Recoverable: false, Retryable: false, Severity: domain.SeverityMedium,
	}
)

// Classify returns the classification of err. Rules are checked in order and the
// first match wins.
func Classify(err error) domain.Classification {
	var f *domain.Failure
	if !errors.As(err, &f) {
		f = &domain.Failure{Err: err}
	}
	status := f.Status()

	switch {
	case f.Response == nil && f.RequestSent:
		return network
	case status >= 500:
		return server
	case status == http.StatusTooManyRequests:
		return rateLimit
	case status == http.StatusUnauthorized:
		return authentication
	case status == http.StatusForbidden:
		return authorization
	case status >= 400 && status < 500:
		return client
	case isAbort(f):
		return timeout
	case isCORS(f):
		return cors
	default:
		return unknown
	}
}

// IsRetryable is shorthand for Classify(err).Retryable.
func IsRetryable(err error) bool {
	return Classify(err).Retryable
}

func isAbort(f *domain.Failure) bool {
	if f.Aborted {
		return true
	}
	if f.Err != nil {
		if errors.Is(f.Err, context.DeadlineExceeded) || errors.Is(f.Err, context.Canceled) {
			return true
		}
		var ne net.Error
		if errors.As(f.Err, &ne) && ne.Timeout() {
			return true
		}
	}
	return strings.Contains(strings.ToLower(message(f)), "timeout")
}

func isCORS(f *domain.Failure) bool {
	msg := strings.ToLower(message(f))
	return strings.Contains(msg, "cors") || strings.Contains(msg, "cross-origin")
}

func message(f *domain.Failure) string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}
