package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Account module errors
// 12000-12999: Problem & Pool module errors
// 13000-13999: Upstream feed errors
// 14000-14999: Score & Reconciliation errors

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
	StoreWriteFailed    ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	RequiredFieldEmpty ErrorCode = 10302

	// ========== Account Module Errors (11000-11999) ==========

	// Binding (11000-11099)
	AccountNotBound     ErrorCode = 11000
	HandleAlreadyBound  ErrorCode = 11001
	AccountAlreadyBound ErrorCode = 11002
	HandleNotFound      ErrorCode = 11003

	// ========== Problem & Pool Module Errors (12000-12999) ==========

	// Problem basic (12000-12099)
	ProblemNotFound      ErrorCode = 12000
	ProblemNotRated      ErrorCode = 12001
	ProblemAlreadyQueued ErrorCode = 12002
	InvalidProblemRef    ErrorCode = 12003

	// Pool & distribution (12100-12199)
	PoolExhausted      ErrorCode = 12100
	DistributionFailed ErrorCode = 12101
	NoProblemsToday    ErrorCode = 12102

	// ========== Upstream Feed Errors (13000-13999) ==========

	FeedUnavailable ErrorCode = 13000
	FeedMalformed   ErrorCode = 13001

	// ========== Score & Reconciliation Errors (14000-14999) ==========

	ReconcileInProgress ErrorCode = 14000
	ScoreApplyFailed    ErrorCode = 14001
)

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
	RecordNotFound:      "Record not found",
	RecordAlreadyExists: "Record already exists",
	StoreWriteFailed:    "Record store write failed",

	// Cache
	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	// Account
	AccountNotBound:     "No Codeforces handle bound to this account",
	HandleAlreadyBound:  "This Codeforces handle is already bound",
	AccountAlreadyBound: "This account already has a bound handle",
	HandleNotFound:      "Codeforces handle not found",

	// Problem & Pool
	ProblemNotFound:      "Problem not found",
	ProblemNotRated:      "Problem has no difficulty rating",
	ProblemAlreadyQueued: "Problem is already queued",
	InvalidProblemRef:    "Invalid problem reference",
	PoolExhausted:        "No candidate problem available for this tier",
	DistributionFailed:   "Daily distribution failed",
	NoProblemsToday:      "No problems distributed today",

	// Upstream feed
	FeedUnavailable: "Upstream feed unavailable",
	FeedMalformed:   "Upstream feed returned malformed data",

	// Score & Reconciliation
	ReconcileInProgress: "A reconciliation pass is already running",
	ScoreApplyFailed:    "Applying score increments failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == RecordNotFound, c == ProblemNotFound,
		c == HandleNotFound, c == AccountNotBound, c == NoProblemsToday:
		return 404
	case c == RecordAlreadyExists, c == HandleAlreadyBound,
		c == AccountAlreadyBound, c == ProblemAlreadyQueued,
		c == ReconcileInProgress:
		return 409
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == FeedUnavailable:
		return 503
	case c >= 10300 && c < 10400:
		return 400
	case c == InvalidParams, c == InvalidProblemRef, c == ProblemNotRated:
		return 400
	default:
		return 500
	}
}
