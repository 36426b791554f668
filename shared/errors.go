package shared

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryAuthorization  ErrorCategory = "authorization"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryRateLimit      ErrorCategory = "rate_limit"
	ErrorCategoryDatabase       ErrorCategory = "database"
	ErrorCategoryConfiguration  ErrorCategory = "configuration"
	ErrorCategoryNetwork        ErrorCategory = "network"
	ErrorCategoryInternal       ErrorCategory = "internal"
)

const internalErrorMessage = "Internal server error"

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     interface{}   `json:"details,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

// WithOperation records where the error surfaced.
func (e *ServiceError) WithOperation(serviceName, operation string) *ServiceError {
	e.ServiceName = serviceName
	e.Operation = operation
	return e
}

// LogError logs the error with structured fields
func (e *ServiceError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"retryable":        e.Retryable,
		"details":          e.Details,
		"underlying_error": e.Cause,
	}).Error("Service error occurred")
}

func NewValidationError(message string) *ServiceError {
	return NewServiceError(ErrorCategoryValidation, "VALIDATION_FAILED", message, "", "", false, nil)
}

func NewConflictError(message string) *ServiceError {
	return NewServiceError(ErrorCategoryConflict, "CONFLICT", message, "", "", false, nil)
}

func NewAuthError(message string) *ServiceError {
	return NewServiceError(ErrorCategoryAuthentication, "UNAUTHENTICATED", message, "", "", false, nil)
}

func NewForbiddenError(message string) *ServiceError {
	return NewServiceError(ErrorCategoryAuthorization, "FORBIDDEN", message, "", "", false, nil)
}

func NewNotFoundError(message string) *ServiceError {
	return NewServiceError(ErrorCategoryNotFound, "NOT_FOUND", message, "", "", false, nil)
}

func NewRateLimitError(message string) *ServiceError {
	return NewServiceError(ErrorCategoryRateLimit, "RATE_LIMITED", message, "", "", true, nil)
}

// NewInternalError hides cause behind a generic message; cause is kept for logs only.
func NewInternalError(serviceName, operation string, cause error) *ServiceError {
	return NewServiceError(ErrorCategoryInternal, "INTERNAL", internalErrorMessage, serviceName, operation, false, cause)
}

// WrapError wraps an existing error with service error context
func WrapError(err error, category ErrorCategory, code, serviceName, operation string, retryable bool) *ServiceError {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	return NewServiceError(category, code, err.Error(), serviceName, operation, retryable, err)
}

// AsServiceError returns the ServiceError in err's chain, or nil.
func AsServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	serviceErr := AsServiceError(err)
	return serviceErr != nil && serviceErr.Category == category
}

// HTTPStatus maps an error to the status code the API reports for it.
func HTTPStatus(err error) int {
	serviceErr := AsServiceError(err)
	if serviceErr == nil {
		return http.StatusInternalServerError
	}

	switch serviceErr.Category {
	case ErrorCategoryValidation, ErrorCategoryConflict:
		return http.StatusBadRequest
	case ErrorCategoryAuthentication:
		return http.StatusUnauthorized
	case ErrorCategoryAuthorization:
		return http.StatusForbidden
	case ErrorCategoryNotFound:
		return http.StatusNotFound
	case ErrorCategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return internalErrorMessage
	}
	return AsServiceError(err).Message
}
