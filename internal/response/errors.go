package response

// ErrCode is a typed error code for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotPublished  ErrCode = "EXAM_NOT_PUBLISHED"
	ErrExamUpcoming      ErrCode = "EXAM_UPCOMING"
	ErrExamExpired       ErrCode = "EXAM_EXPIRED"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrAttemptNotStarted ErrCode = "ATTEMPT_NOT_STARTED"
	ErrAttemptFinished   ErrCode = "ATTEMPT_FINISHED"
	ErrAttemptTimeUp     ErrCode = "ATTEMPT_TIME_UP"
	ErrCorrectOption     ErrCode = "INVALID_CORRECT_OPTION"
	ErrQuestionOrder     ErrCode = "INVALID_QUESTION_ORDER"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionInvalidated:
		return "Your session has ended because you signed in elsewhere. Please log in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateAccessOnly:
		return "This resource is limited to candidates."
	case ErrAdminAccessOnly:
		return "This resource is limited to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrExamNotPublished:
		return "This exam has not been published."
	case ErrExamUpcoming:
		return "This exam has not started yet."
	case ErrExamExpired:
		return "This exam has ended."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrAttemptNotStarted:
		return "You have not started this exam. Go back to the exam page and press start."
	case ErrAttemptFinished:
		return "You have already finished this exam."
	case ErrAttemptTimeUp:
		return "Time is up for this exam. Submit your answers."
	case ErrCorrectOption:
		return "The correct option must be one of the question's options."
	case ErrQuestionOrder:
		return "The new order must list every question of the exam exactly once."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
