package domain

// ErrorType names a failure class.
type ErrorType string

const (
	NetworkError        ErrorType = "NETWORK_ERROR"
	ServerError         ErrorType = "SERVER_ERROR"
	RateLimitError      ErrorType = "RATE_LIMIT_ERROR"
	AuthenticationError ErrorType = "AUTHENTICATION_ERROR"
	AuthorizationError  ErrorType = "AUTHORIZATION_ERROR"
	ClientError         ErrorType = "CLIENT_ERROR"
	TimeoutError        ErrorType = "TIMEOUT_ERROR"
	CORSError           ErrorType = "CORS_ERROR"
	UnknownError        ErrorType = "UNKNOWN_ERROR"
)

// ErrorCategory groups error types by where the failure originated.
type ErrorCategory string

const (
	CategoryNetwork ErrorCategory = "NETWORK"
	CategoryServer  ErrorCategory = "SERVER"
	CategoryClient  ErrorCategory = "CLIENT"
	CategoryAuth    ErrorCategory = "AUTH"
	CategoryUnknown ErrorCategory = "UNKNOWN"
)

// Severity ranks how loudly a failure should be reported.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Classification is a stateless projection of a failure.
type Classification struct {
	Type        ErrorType     `json:"type"`
	Category    ErrorCategory `json:"category"`
	Recoverable bool          `json:"recoverable"`
	Retryable   bool          `json:"retryable"`
	Severity    Severity      `json:"severity"`
}
