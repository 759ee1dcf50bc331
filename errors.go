package shelterboard

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for the shelterboard package.
var (
	// ErrOrgNotFound is returned when no organization matches the requested
	// identifier or name.
	ErrOrgNotFound = errors.New("organization not found")

	// ErrColumnNotFound is returned when a requested metric column is absent
	// from the dataset.
	ErrColumnNotFound = errors.New("metric column not found")

	// ErrEmptyDataset is returned when an operation requires at least one row.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrInvalidRequest is returned for malformed series or chart requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthorized is returned when a request lacks a valid session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadPassword is returned when a login attempt carries the wrong password.
	ErrBadPassword = errors.New("incorrect password")

	// ErrSourceUnavailable is returned when a dataset source cannot be reached.
	ErrSourceUnavailable = errors.New("dataset source unavailable")

	// ErrSnapshotNotFound is returned when no snapshot exists in the store.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// LoadErrorType categorizes dataset load errors.
type LoadErrorType int

const (
	// LoadErrorTypeUnknown is an unclassified load error.
	LoadErrorTypeUnknown LoadErrorType = iota
	// LoadErrorTypeFetch indicates the source could not be retrieved.
	LoadErrorTypeFetch
	// LoadErrorTypeParse indicates the payload could not be parsed as CSV.
	LoadErrorTypeParse
	// LoadErrorTypeSchema indicates required columns are missing.
	LoadErrorTypeSchema
)

// LoadError provides detailed information about dataset load failures.
type LoadError struct {
	Type    LoadErrorType
	Message string
	Source  string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Source != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s [%s]: %v", e.Message, e.Source, e.Cause)
		}
		return fmt.Sprintf("%s [%s]", e.Message, e.Source)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for LoadError.
func (e *LoadError) Is(target error) bool {
	switch e.Type {
	case LoadErrorTypeFetch:
		return target == ErrSourceUnavailable
	}
	return false
}

// newLoadError creates a new LoadError.
func newLoadError(errType LoadErrorType, message, source string, cause error) *LoadError {
	return &LoadError{
		Type:    errType,
		Message: message,
		Source:  source,
		Cause:   cause,
	}
}

// MissingColumnsError reports metric columns a derivation needed but the
// dataset does not carry. Columns preserves request order.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Columns, ", "))
}

// Is implements error matching for MissingColumnsError.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrColumnNotFound
}

// RequestError marks a client-side request problem with the offending field.
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Is implements error matching for RequestError.
func (e *RequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// newRequestError creates a new RequestError.
func newRequestError(field, message string) *RequestError {
	return &RequestError{Field: field, Message: message}
}
