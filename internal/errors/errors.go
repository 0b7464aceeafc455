// Package errors defines the typed errors returned across the console API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code is a stable machine readable error identifier.
type Code string

const (
	CodeValidation        Code = "validation_error"
	CodeUnauthorized      Code = "unauthorized"
	CodeInvalidToken      Code = "invalid_token"
	CodeForbidden         Code = "forbidden"
	CodeNotInitialized    Code = "account_not_initialized"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeAlreadySetup      Code = "already_setup"
	CodeNotInitValidated  Code = "not_init_validated"
	CodeInitValidateFail  Code = "init_validate_failed"
	CodeAccountExists     Code = "account_exists"
	CodeNoWorkspace       Code = "no_workspace"
	CodeRateLimitExceeded Code = "rate_limit_exceeded"
	CodeInternal          Code = "internal_error"
)

// ServiceError is an error that knows how it should be rendered over HTTP.
type ServiceError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of e with an extra detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	out := *e
	out.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// New builds a ServiceError.
func New(code Code, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

func Validation(message string) *ServiceError {
	return New(CodeValidation, http.StatusBadRequest, message, nil)
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Unauthorized"
	}
	return New(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

func InvalidToken(err error) *ServiceError {
	return New(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token", err)
}

func Forbidden(message string) *ServiceError {
	return New(CodeForbidden, http.StatusForbidden, message, nil)
}

func NotInitialized() *ServiceError {
	return New(CodeNotInitialized, http.StatusForbidden, "Account not initialized", nil)
}

func NotFound(message string) *ServiceError {
	return New(CodeNotFound, http.StatusNotFound, message, nil)
}

func Conflict(message string) *ServiceError {
	return New(CodeConflict, http.StatusConflict, message, nil)
}

// AlreadySetup is returned once the deployment has been bootstrapped.
func AlreadySetup() *ServiceError {
	return New(CodeAlreadySetup, http.StatusForbidden, "Setup has been successfully installed. Please refresh the page or return to the dashboard homepage.", nil)
}

// NotInitValidated is returned when the init password step was skipped.
func NotInitValidated() *ServiceError {
	return New(CodeNotInitValidated, http.StatusUnauthorized, "Init validation has not been completed yet. Please proceed with the init validation process first.", nil)
}

// InitValidateFailed is returned for a wrong init password.
func InitValidateFailed() *ServiceError {
	return New(CodeInitValidateFail, http.StatusUnauthorized, "Init validation failed. Please check the password and try again.", nil)
}

// AccountExists is the insert conflict; it answers 400 rather than 409.
func AccountExists() *ServiceError {
	return New(CodeAccountExists, http.StatusBadRequest, "Account already exists.", nil)
}

func NoWorkspace() *ServiceError {
	return New(CodeNoWorkspace, http.StatusBadRequest, "No workspace available. Please contact administrator.", nil)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimitExceeded, http.StatusTooManyRequests, "Rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func Internal(message string, err error) *ServiceError {
	if message == "" {
		message = "Internal server error"
	}
	return New(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError returns the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// Is reports whether err carries a ServiceError with the given code.
func Is(err error, code Code) bool {
	svcErr := GetServiceError(err)
	return svcErr != nil && svcErr.Code == code
}
