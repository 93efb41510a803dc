package common

import "errors"

// AppError carries the error code and HTTP status a handler should render.
// Services return it when they already know how a failure maps onto the API
// surface; handlers fall back to a generic 500 for anything else.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError builds an AppError wrapping err.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError reports whether err has an AppError in its chain.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
