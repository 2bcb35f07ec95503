package models

// Engine failure kinds. Nothing in the engine retries; retry, if any, is a
// caller concern.
const (
	ErrKindNotFound         = "not_found"
	ErrKindRuleViolation    = "rule_violation"
	ErrKindUpstreamDegraded = "upstream_degraded"
	ErrKindDataIntegrity    = "data_integrity_gap"
)

// AppError is a typed engine failure surfaced to handlers, which map it onto
// an HTTP response.
type AppError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

func ErrNotFound(message string) *AppError {
	return &AppError{Kind: ErrKindNotFound, Message: message}
}

func ErrRuleViolation(message string) *AppError {
	return &AppError{Kind: ErrKindRuleViolation, Message: message}
}

func ErrUpstreamDegraded(message string) *AppError {
	return &AppError{Kind: ErrKindUpstreamDegraded, Message: message}
}

// IsNotFound reports whether err is a not-found engine failure.
func IsNotFound(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Kind == ErrKindNotFound
}

// IsRuleViolation reports whether err is a business precondition failure.
func IsRuleViolation(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Kind == ErrKindRuleViolation
}

// IsUpstreamDegraded reports whether err came from a best-effort upstream
// dependency rather than the engine itself.
func IsUpstreamDegraded(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Kind == ErrKindUpstreamDegraded
}
