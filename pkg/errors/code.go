package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Learner errors
// 12000-12999: Problem errors
// 13000-13999: Execution errors
// 14000-14999: Reward & Commit errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10203

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Learner Errors (11000-11999) ==========

	TokenExpired      ErrorCode = 11003
	TokenInvalid      ErrorCode = 11004
	UserNotFound      ErrorCode = 11100
	HintQuotaExceeded ErrorCode = 11200

	// ========== Problem Errors (12000-12999) ==========

	ProblemNotFound      ErrorCode = 12000
	ProblemConfigInvalid ErrorCode = 12100
	SignatureInvalid     ErrorCode = 12101

	// ========== Execution Errors (13000-13999) ==========

	// Request level (13000-13099)
	SubmissionNotFound   ErrorCode = 13000
	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003

	// Backend level (13100-13199)
	ExecutionFailed             ErrorCode = 13100
	CompilationError            ErrorCode = 13101
	RuntimeError                ErrorCode = 13102
	ExecutionTimeout            ErrorCode = 13103
	MalformedExecutionOutput    ErrorCode = 13104
	ExecutionServiceUnavailable ErrorCode = 13105
	WorkerPoolFull              ErrorCode = 13106

	// ========== Reward & Commit Errors (14000-14999) ==========

	CompletionCommitFailed ErrorCode = 14000
	RewardCommitFailed     ErrorCode = 14001
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Learner
	TokenExpired:      "Token has expired",
	TokenInvalid:      "Invalid token",
	UserNotFound:      "User not found",
	HintQuotaExceeded: "Daily hint limit reached",

	// Problem
	ProblemNotFound:      "Problem not found",
	ProblemConfigInvalid: "Invalid test case configuration",
	SignatureInvalid:     "Invalid entry point signature",

	// Execution
	SubmissionNotFound:          "Submission not found",
	CodeTooLarge:                "Code is too large",
	LanguageNotSupported:        "Programming language not supported",
	ExecutionFailed:             "Couldn't run your code",
	CompilationError:            "Compilation error",
	RuntimeError:                "Runtime error",
	ExecutionTimeout:            "Execution timed out",
	MalformedExecutionOutput:    "Execution produced no readable results",
	ExecutionServiceUnavailable: "Execution service is unavailable",
	WorkerPoolFull:              "Verification workers are busy, please try again later",

	// Reward & Commit
	CompletionCommitFailed: "Failed to record completion, please try again",
	RewardCommitFailed:     "Failed to grant reward, please try again",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// IsExecution reports whether the code belongs to the execution-level range,
// i.e. the learner's code could not be run to produce per-test results.
func (c ErrorCode) IsExecution() bool {
	return c == LanguageNotSupported || (c >= ExecutionFailed && c < 13200)
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == UserNotFound, c == ProblemNotFound, c == SubmissionNotFound:
		return 404
	case c == TooManyRequests, c == HintQuotaExceeded, c == WorkerPoolFull:
		return 429
	case c == ServiceUnavailable, c == ExecutionServiceUnavailable:
		return 503
	case c == LanguageNotSupported, c == CodeTooLarge:
		return 400
	case c.IsExecution():
		return 422
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams:
		return 400
	default:
		return 500
	}
}
