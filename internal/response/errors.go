package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"
	ErrExamAccessRequired  ErrCode = "EXAM_ACCESS_REQUIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrAttemptNotFound ErrCode = "ATTEMPT_NOT_FOUND"
	ErrExamNotFound    ErrCode = "EXAM_NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAttemptClosed ErrCode = "ATTEMPT_CLOSED"
	ErrTimeOver      ErrCode = "TIME_OVER"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// Retryable reports whether the same request may succeed if sent again.
func (c ErrCode) Retryable() bool {
	return c == ErrConflict || c == ErrRateLimitExceeded
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrExamAccessRequired:
		return "Purchase or select this exam first."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Request validation failed."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Request payload is malformed."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrExamNotFound:
		return "Exam not found."
	case ErrConflict:
		return "The resource was modified concurrently. Retry the request."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrAttemptClosed:
		return "Attempt already closed."
	case ErrTimeOver:
		return "Time is over, attempt auto-submitted."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."

	default:
		return "An unknown error occurred."
	}
}
