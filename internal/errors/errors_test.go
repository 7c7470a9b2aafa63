package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorsTestSuite struct {
	suite.Suite
}

func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("Invalid parameter", err.Message)
	suite.Empty(err.Details)

	err = New(ErrNotFound, "character 7")
	suite.Equal(ErrNotFound, err.Code)
	suite.Equal("Resource not found", err.Message)
	suite.Equal("character 7", err.Details)

	err = New(ErrDatabaseConnect, "dial failed", "host: localhost", "port: 3306")
	suite.Equal("dial failed; host: localhost; port: 3306", err.Details)
}

func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidParam, "roll %d out of range", 21)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("roll 21 out of range", err.Details)
}

func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("disk I/O error")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("disk I/O error", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	suite.Nil(Wrap(nil, ErrUnknown))

	// an AppError keeps its own code
	appErr := New(ErrNotFound, "entry missing")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "extra")
	suite.Equal(ErrNotFound, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "extra")
}

func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("timeout")
	wrappedErr := Wrapf(originalErr, ErrDatabaseConnect, "database %s unreachable", "MySQL")
	suite.Equal(ErrDatabaseConnect, wrappedErr.Code)
	suite.Equal("database MySQL unreachable", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrPermissionDenied)
	suite.True(Is(err, ErrPermissionDenied))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrPermissionDenied))
	suite.False(Is(errors.New("plain"), ErrUnknown))

	// wrapped with fmt.Errorf
	suite.True(Is(fmt.Errorf("outer: %w", err), ErrPermissionDenied))
}

func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrTokenExpired, GetCode(New(ErrTokenExpired)))
	suite.Equal(ErrUnknown, GetCode(errors.New("plain")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{Code: ErrNotFound, Message: "Resource not found"}
	suite.Equal("[1002] Resource not found", err.Error())

	err.Details = "entry 12"
	suite.Equal("[1002] Resource not found: entry 12", err.Error())
}

func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("root")
	suite.Equal(originalErr, Wrap(originalErr, ErrUnknown).Unwrap())
	suite.Nil(New(ErrUnknown).Unwrap())
}

func (suite *ErrorsTestSuite) TestWithCause() {
	cause := errors.New("syntax error")

	err := New(ErrDatabaseQuery)
	err.WithCause(cause)
	suite.Equal(cause, err.Cause)
	suite.Equal("syntax error", err.Details)

	err2 := New(ErrDatabaseQuery, "select failed")
	err2.WithCause(cause)
	suite.Equal("select failed", err2.Details)
}

func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrNotFound, 404},
		{ErrPermissionDenied, 403},
		{ErrRequestNotVerified, 403},
		{ErrNoActiveSession, 409},
		{ErrSessionAlreadyActive, 409},
		{ErrNoEntries, 409},
		{ErrSessionNotActive, 409},
		{ErrTimeout, 408},
		{ErrAuthentication, 401},
		{ErrRateLimitExceeded, 429},
		{ErrDatabaseConnect, 503},
		{ErrDatabaseQuery, 500},
		{ErrInternal, 500},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		suite.Equal(tc.expected, New(tc.code).HTTPStatus(), "code %d", tc.code)
	}
}

func (suite *ErrorsTestSuite) TestIsStateError() {
	for _, code := range []ErrorCode{ErrNoActiveSession, ErrSessionAlreadyActive, ErrNoEntries, ErrSessionNotActive} {
		suite.True(IsStateError(New(code)), "code %d", code)
	}
	suite.False(IsStateError(New(ErrPermissionDenied)))
	suite.False(IsStateError(New(ErrNotFound)))
	suite.False(IsStateError(nil))
}

func (suite *ErrorsTestSuite) TestPublicHidesStorageErrors() {
	err := Wrap(errors.New("UNIQUE constraint failed: users.email"), ErrDatabaseInsert)
	public := err.Public()
	suite.Equal(ErrInternal, public.Code)
	suite.Empty(public.Details)

	forbidden := New(ErrPermissionDenied, "Only the Game Master can start initiative.")
	suite.Same(forbidden, forbidden.Public())
}

func (suite *ErrorsTestSuite) TestIsRetryable() {
	suite.True(IsRetryable(New(ErrTimeout)))
	suite.True(IsRetryable(New(ErrDatabaseConnect)))
	suite.False(IsRetryable(New(ErrPermissionDenied)))
	suite.False(IsRetryable(nil))
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
	for _, frame := range err.Stack {
		suite.NotContains(frame.Function, "internal/errors.New")
	}
}

func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrNotFound, "campaign 3")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("Unknown error", err.Message)
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
