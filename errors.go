package recordset

import (
	"errors"
	"fmt"
)

// Standard sentinel errors.
var (
	// ErrEmptyPayload is wrapped by the ValidationError returned when a save
	// payload is empty.
	ErrEmptyPayload = errors.New("recordset: empty payload")

	// ErrNotPersisted is returned when the executor reports that an insert
	// affected no rows.
	ErrNotPersisted = errors.New("recordset: no rows affected")

	// ErrUnsupportedOperation is matched by every UnsupportedOperationError.
	ErrUnsupportedOperation = errors.New("recordset: unsupported operation")

	// ErrInvalidArgument is matched by every InvalidArgumentError.
	ErrInvalidArgument = errors.New("recordset: invalid argument")
)

// ConfigurationError reports a programming mistake: an unresolvable primary
// key, an unknown relation target or an invalid option passed to a query.
// It is not meant to be handled or retried.
type ConfigurationError struct {
	Entity string // Entity type the error belongs to
	Op     string // Operation that detected it, if any
	Option string // Offending option name, if any
	Msg    string
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	switch {
	case e.Option != "":
		return fmt.Sprintf("recordset: invalid option %q for %s.%s(): %s", e.Option, e.Entity, e.Op, e.Msg)
	case e.Op != "":
		return fmt.Sprintf("recordset: %s.%s(): %s", e.Entity, e.Op, e.Msg)
	default:
		return fmt.Sprintf("recordset: %s: %s", e.Entity, e.Msg)
	}
}

// NewConfigurationError returns a new ConfigurationError for the entity.
func NewConfigurationError(entity, msg string) *ConfigurationError {
	return &ConfigurationError{Entity: entity, Msg: msg}
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e)
}

// ValidationError reports a payload that cannot be persisted.
type ValidationError struct {
	Entity string // Entity type
	Err    error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("recordset: validation failed for %s: %s", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given entity.
func NewValidationError(entity string, err error) *ValidationError {
	return &ValidationError{Entity: entity, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// UnsupportedOperationError is returned when a dynamic finder name matches
// none of the recognized prefixes.
type UnsupportedOperationError struct {
	Method string
}

// Error returns the error string.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("recordset: undefined method %q: the method name must start with one of %v", e.Method, finderPrefixes())
}

// Is reports whether the target error matches ErrUnsupportedOperation.
func (e *UnsupportedOperationError) Is(err error) bool {
	return err == ErrUnsupportedOperation
}

// InvalidArgumentError is returned when a dynamic finder is called with
// missing or mistyped arguments.
type InvalidArgumentError struct {
	Method string
	Msg    string
}

// Error returns the error string.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("recordset: %s: %s", e.Method, e.Msg)
}

// Is reports whether the target error matches ErrInvalidArgument.
func (e *InvalidArgumentError) Is(err error) bool {
	return err == ErrInvalidArgument
}

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "FindBy", "CountAll")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("recordset: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("recordset: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a mutation error with additional context.
type MutationError struct {
	Entity string // Entity type being mutated
	Op     string // Operation (e.g., "Create", "UpdateBy", "DeleteBy")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("recordset: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}
