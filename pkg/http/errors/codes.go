package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeMissingField   = "missing_field"
	ErrCodeInvalidOption  = "invalid_option"
	ErrCodeOptionHidden   = "option_hidden"

	// Resource errors
	ErrCodeNotFound        = "not_found"
	ErrCodeUnknownLifeline = "unknown_lifeline"

	// Quiz flow errors
	ErrCodeNotPresenting   = "not_presenting"
	ErrCodeAlreadyAnswered = "already_answered"
	ErrCodeLifelineUsed    = "lifeline_used"
	ErrCodeNoNextBatch     = "no_next_batch"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
