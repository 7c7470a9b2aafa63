package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode numeric error code
type ErrorCode int

// Error codes grouped by area.
const (
	// generic (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrUnavailable      ErrorCode = 1007
	ErrInternal         ErrorCode = 1008

	// initiative state (2000-2999)
	ErrNoActiveSession      ErrorCode = 2000
	ErrSessionAlreadyActive ErrorCode = 2001
	ErrNoEntries            ErrorCode = 2002
	ErrSessionNotActive     ErrorCode = 2003
	ErrCampaignFull         ErrorCode = 2004
	ErrCampaignArchived     ErrorCode = 2005

	// database (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseUpdate  ErrorCode = 5003
	ErrDatabaseDelete  ErrorCode = 5004
	ErrTransaction     ErrorCode = 5005

	// configuration (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigValidate ErrorCode = 6002

	// security (7000-7999)
	ErrAuthentication     ErrorCode = 7000
	ErrTokenExpired       ErrorCode = 7002
	ErrTokenInvalid       ErrorCode = 7003
	ErrRateLimitExceeded  ErrorCode = 7004
	ErrRequestNotVerified ErrorCode = 7007
)

var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "Unknown error",
	ErrInvalidParam:     "Invalid parameter",
	ErrNotFound:         "Resource not found",
	ErrAlreadyExists:    "Resource already exists",
	ErrPermissionDenied: "Permission denied",
	ErrTimeout:          "Operation timed out",
	ErrCanceled:         "Operation canceled",
	ErrUnavailable:      "Service unavailable",
	ErrInternal:         "Internal error",

	ErrNoActiveSession:      "No active initiative session",
	ErrSessionAlreadyActive: "Initiative session is already active",
	ErrNoEntries:            "No entries in initiative",
	ErrSessionNotActive:     "Initiative session not found or not active",
	ErrCampaignFull:         "Campaign is full",
	ErrCampaignArchived:     "Campaign is archived",

	ErrDatabaseConnect: "Database connection failed",
	ErrDatabaseQuery:   "Database query failed",
	ErrDatabaseInsert:  "Database insert failed",
	ErrDatabaseUpdate:  "Database update failed",
	ErrDatabaseDelete:  "Database delete failed",
	ErrTransaction:     "Transaction failed",

	ErrConfigLoad:     "Failed to load configuration",
	ErrConfigValidate: "Invalid configuration",

	ErrAuthentication:     "Authentication failed",
	ErrTokenExpired:       "Token expired",
	ErrTokenInvalid:       "Invalid token",
	ErrRateLimitExceeded:  "Too many requests",
	ErrRequestNotVerified: "Request could not be verified",
}

// AppError application error
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Cause   error        `json:"-"`
	Stack   []StackFrame `json:"-"`
}

// StackFrame one captured caller frame
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails sets the details text.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the underlying error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New creates an AppError for code. Multiple details are joined with "; ".
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf creates an AppError with formatted details.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap converts err into an AppError. An existing AppError keeps its code.
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	wrapped := New(code, details...)
	wrapped.Cause = err
	if wrapped.Details == "" {
		wrapped.Details = err.Error()
	}

	return wrapped
}

// Wrapf is Wrap with formatted details.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is reports whether err is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// GetCode returns the code of err, ErrUnknown for foreign errors and 0 for nil.
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrUnknown
}

// IsStateError reports whether err describes session state rather than
// authorization, so clients can offer to start combat instead of showing a
// permission error.
func IsStateError(err error) bool {
	switch GetCode(err) {
	case ErrNoActiveSession, ErrSessionAlreadyActive, ErrNoEntries, ErrSessionNotActive:
		return true
	default:
		return false
	}
}

func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()

		if strings.Contains(frame.Function, "runtime.") ||
			strings.Contains(frame.Function, "github.com/wfunc/initiative-tracker/internal/errors.") {
			if !more {
				break
			}
			continue
		}

		e.Stack = append(e.Stack, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})

		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// GetStack formats the captured frames.
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}
	return builder.String()
}

// HTTPStatus maps the code onto an HTTP status.
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrInvalidParam:
		return 400
	case e.Code == ErrNotFound:
		return 404
	case e.Code == ErrAlreadyExists:
		return 409
	case e.Code == ErrPermissionDenied, e.Code == ErrRequestNotVerified:
		return 403
	case e.Code == ErrTimeout:
		return 408
	case e.Code >= 2000 && e.Code <= 2999:
		return 409
	case e.Code == ErrRateLimitExceeded:
		return 429
	case e.Code >= 7000 && e.Code <= 7003:
		return 401
	case e.Code == ErrDatabaseConnect, e.Code == ErrUnavailable:
		return 503
	default:
		return 500
	}
}

// Public returns the form of e that may leave the process. Storage and
// internal failures collapse into a bare ErrInternal.
func (e *AppError) Public() *AppError {
	if e.HTTPStatus() >= 500 {
		return &AppError{Code: ErrInternal, Message: errorMessages[ErrInternal]}
	}
	return e
}

// IsRetryable reports whether a retry may succeed.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrTimeout, ErrDatabaseConnect, ErrTransaction:
		return true
	default:
		return false
	}
}

// ErrorResponse API error body
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse builds the error body for err.
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err.Public(),
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
