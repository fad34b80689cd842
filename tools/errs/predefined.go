package errs

// Error codes for the realtime gateway. The first digit groups the
// class: 1xx not-found, 2xx validation, 3xx authentication, 5xx
// internal.
const (
	CodeConnNotFound = 101
	CodeUserOffline  = 102

	CodeFrameInvalid = 201
	CodeDuplicateID  = 202

	CodeTokenInvalid = 301
	CodeTokenExpired = 302

	CodeInternal   = 500
	CodeQueueFull  = 501
	CodeWriteError = 502
)

var (
	ErrConnNotFound = NewCodeError(CodeConnNotFound, "connection not found")
	ErrUserOffline  = NewCodeError(CodeUserOffline, "user has no live connection")

	ErrFrameInvalid = NewCodeError(CodeFrameInvalid, "malformed frame")
	ErrDuplicateID  = NewCodeError(CodeDuplicateID, "connection id already registered")

	ErrTokenInvalid = NewCodeError(CodeTokenInvalid, "token invalid")
	ErrTokenExpired = NewCodeError(CodeTokenExpired, "token expired")

	ErrInternal  = NewCodeError(CodeInternal, "internal error")
	ErrQueueFull = NewCodeError(CodeQueueFull, "outbound queue full")
)
