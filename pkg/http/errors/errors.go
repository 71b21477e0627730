package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// codeStatus maps each quiz error code to the status it is always served with.
var codeStatus = map[string]int{
	ErrCodeInvalidRequest:     http.StatusBadRequest,
	ErrCodeMissingField:       http.StatusBadRequest,
	ErrCodeInvalidOption:      http.StatusBadRequest,
	ErrCodeOptionHidden:       http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeUnknownLifeline:    http.StatusNotFound,
	ErrCodeNotPresenting:      http.StatusConflict,
	ErrCodeAlreadyAnswered:    http.StatusConflict,
	ErrCodeLifelineUsed:       http.StatusConflict,
	ErrCodeNoNextBatch:        http.StatusConflict,
	ErrCodeInternalError:      http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeUpstreamError:      http.StatusServiceUnavailable,
}

// StatusForCode returns the HTTP status for code. Unknown codes are internal errors.
func StatusForCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func write(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// RespondError writes a standardized error response to the HTTP response writer
func RespondError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondCode writes an error response with the status registered for code.
func RespondCode(w http.ResponseWriter, code, message string) {
	RespondError(w, StatusForCode(code), code, message)
}

// RespondCodeWithDetails is RespondCode with extra context for the client,
// e.g. which lifeline was already spent.
func RespondCodeWithDetails(w http.ResponseWriter, code, message string, details map[string]interface{}) {
	RespondErrorWithDetails(w, StatusForCode(code), code, message, details)
}

// RespondValidationError writes a validation error response with field information
func RespondValidationError(w http.ResponseWriter, code, message, field string) {
	write(w, http.StatusBadRequest, ErrorResponse{Error: code, Message: message, Field: field})
}

// RespondErrorWithDetails writes an error response with additional details
func RespondErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	write(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

// RespondInternalError writes an internal server error response
func RespondInternalError(w http.ResponseWriter, message string) {
	RespondCode(w, ErrCodeInternalError, message)
}

// RespondServiceUnavailable writes a service unavailable error response
func RespondServiceUnavailable(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusServiceUnavailable, code, message)
}
