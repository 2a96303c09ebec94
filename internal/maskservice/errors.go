package maskservice

import (
	"errors"
	"fmt"
)

// ValidationError reports a request rejected before it was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// UnavailableError wraps a transport failure talking to the service.
type UnavailableError struct {
	Op  string
	err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: mask service unavailable: %v", e.Op, e.err)
}

func (e *UnavailableError) Unwrap() error {
	return e.err
}

// ServiceError is a non-success HTTP response from the service.
type ServiceError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: mask service returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: mask service returned %d: %s", e.Op, e.Status, e.Message)
}

// TimeoutError reports that polling gave up after Attempts tries.
type TimeoutError struct {
	Op       string
	TaskID   string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: task %s not finished after %d attempts", e.Op, e.TaskID, e.Attempts)
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsUnavailable reports whether err is a transport failure.
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}

// IsServiceError reports whether err is a non-success response.
func IsServiceError(err error) bool {
	var s *ServiceError
	return errors.As(err, &s)
}

// IsTimeout reports whether err is a polling timeout.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}

// StatusCode returns the HTTP status carried by a ServiceError, or 0.
func StatusCode(err error) int {
	var s *ServiceError
	if errors.As(err, &s) {
		return s.Status
	}
	return 0
}
