package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these rather
// than on the message text.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// ErrCodeBusy: the caller's previous submission is still running.
	ErrCodeBusy = "busy"
	// ErrCodeUpstreamFailed: the shopping provider or model failed.
	ErrCodeUpstreamFailed = "upstream_failed"
	// ErrCodeNotConfigured: the feature needs a provider key the server lacks.
	ErrCodeNotConfigured = "not_configured"
)
