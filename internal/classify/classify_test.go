package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bft-labs/reqguard/internal/domain"
)

func statusFailure(code int) error {
	return &domain.Failure{Response: &domain.Response{StatusCode: code}, RequestSent: true}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantType    domain.ErrorType
		category    domain.ErrorCategory
		recoverable bool
		retryable   bool
		severity    domain.Severity
	}{
		{"no response after dispatch", &domain.Failure{RequestSent: true, Err: errors.New("connection refused")},
			domain.NetworkError, domain.CategoryNetwork, true, true, domain.SeverityHigh},
		{"500", statusFailure(500), domain.ServerError, domain.CategoryServer, true, true, domain.SeverityHigh},
		{"503", statusFailure(503), domain.ServerError, domain.CategoryServer, true, true, domain.SeverityHigh},
		{"429", statusFailure(429), domain.RateLimitError, domain.CategoryClient, true, true, domain.SeverityMedium},
		{"401", statusFailure(401), domain.AuthenticationError, domain.CategoryAuth, true, false, domain.SeverityHigh},
		{"403", statusFailure(403), domain.AuthorizationError, domain.CategoryAuth, false, false, domain.SeverityHigh},
		{"404", statusFailure(404), domain.ClientError, domain.CategoryClient, false, false, domain.SeverityMedium},
		{"422", statusFailure(422), domain.ClientError, domain.CategoryClient, false, false, domain.SeverityMedium},
		{"aborted flag", &domain.Failure{Aborted: true},
			domain.TimeoutError, domain.CategoryNetwork, true, true, domain.SeverityMedium},
		{"deadline exceeded", &domain.Failure{Err: fmt.Errorf("do: %w", context.DeadlineExceeded)},
			domain.TimeoutError, domain.CategoryNetwork, true, true, domain.SeverityMedium},
		{"net timeout", &domain.Failure{Err: timeoutErr{}},
			domain.TimeoutError, domain.CategoryNetwork, true, true, domain.SeverityMedium},
		{"timeout text on bare error", errors.New("timeout of 15000ms exceeded"),
			domain.TimeoutError, domain.CategoryNetwork, true, true, domain.SeverityMedium},
		{"cors text", errors.New("blocked by CORS policy"),
			domain.CORSError, domain.CategoryNetwork, false, false, domain.SeverityHigh},
		{"cross-origin text", &domain.Failure{Err: errors.New("Cross-Origin request blocked")},
			domain.CORSError, domain.CategoryNetwork, false, false, domain.SeverityHigh},
		{"unknown", errors.New("something odd"),
			domain.UnknownError, domain.CategoryUnknown, false, false, domain.SeverityMedium},
		{"nil", nil, domain.UnknownError, domain.CategoryUnknown, false, false, domain.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			want := domain.Classification{
				Type: tt.wantType, Category: tt.category,
				Recoverable: tt.recoverable, Retryable: tt.retryable, Severity: tt.severity,
			}
			if got != want {
				t.Errorf("Classify() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	errs := []error{
		&domain.Failure{RequestSent: true},
		statusFailure(500), statusFailure(429), statusFailure(401), statusFailure(403),
		statusFailure(400), &domain.Failure{Aborted: true}, errors.New("cors"), errors.New("x"),
	}
	for _, err := range errs {
		first := Classify(err)
		for i := 0; i < 5; i++ {
			if got := Classify(err); got != first {
				t.Fatalf("Classify(%v) changed from %+v to %+v", err, first, got)
			}
		}
	}
}

func TestClassify_StatusBeatsMessage(t *testing.T) {
	// A 500 whose transport error mentions a timeout is still a server error.
	err := &domain.Failure{
		Response: &domain.Response{StatusCode: 502},
		Err:      errors.New("upstream timeout"),
	}
	if got := Classify(err).Type; got != domain.ServerError {
		t.Errorf("Classify().Type = %s, want %s", got, domain.ServerError)
	}
}

func TestClassify_WrappedFailure(t *testing.T) {
	err := fmt.Errorf("widgets: %w", statusFailure(429))
	if got := Classify(err).Type; got != domain.RateLimitError {
		t.Errorf("Classify().Type = %s, want %s", got, domain.RateLimitError)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}
}
