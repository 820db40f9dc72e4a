package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Chat ──────────────────────────────────────────────────────────
	ErrEmptyMessage     ErrCode = "EMPTY_MESSAGE"
	ErrSendInFlight     ErrCode = "SEND_IN_FLIGHT"
	ErrServiceUnhealthy ErrCode = "SERVICE_UNHEALTHY"
	ErrNotBootstrapped  ErrCode = "NOT_BOOTSTRAPPED"

	// ─── Practice ──────────────────────────────────────────────────────
	ErrSessionNotFound   ErrCode = "SESSION_NOT_FOUND"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"
	ErrIncompleteAnswers ErrCode = "INCOMPLETE_ANSWERS"
	ErrAlreadyGraded     ErrCode = "ALREADY_GRADED"
	ErrNotSubmittable    ErrCode = "NOT_SUBMITTABLE"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstream ErrCode = "UPSTREAM_ERROR"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid. Please log in again."
	case ErrTokenExpired:
		return "The authentication token has expired. Please log in again."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The identifier format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Chat ──────────────────────────────────────────────────────────
	case ErrEmptyMessage:
		return "A message cannot be empty."
	case ErrSendInFlight:
		return "A previous message is still being processed."
	case ErrServiceUnhealthy:
		return "The tutoring service is currently unavailable."
	case ErrNotBootstrapped:
		return "The chat session has not been initialized."

	// ─── Practice ──────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "No practice session with this identifier exists."
	case ErrUnknownQuestion:
		return "This question does not belong to the practice session."
	case ErrIncompleteAnswers:
		return "Every question must be answered before submitting."
	case ErrAlreadyGraded:
		return "This practice session has already been graded."
	case ErrNotSubmittable:
		return "The practice session is not ready for submission."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstream:
		return "The tutoring service could not process the request."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
