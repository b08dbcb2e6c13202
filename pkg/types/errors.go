package types

import "errors"

// Entity operation errors.
var (
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidID          = errors.New("invalid entity ID")
	ErrInvalidData        = errors.New("invalid entity data")
	ErrEntityTypeNotFound = errors.New("entity type not found")
)

// Registration errors.
var (
	ErrDuplicateEntityType = errors.New("entity type already registered")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidFieldKind    = errors.New("invalid field kind")
	ErrDuplicateField      = errors.New("duplicate field")
)

// Specification errors, raised by the query compiler before any query runs.
var (
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownOperator = errors.New("unknown operator")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidSort     = errors.New("invalid sort")
	ErrInvalidPage     = errors.New("invalid pagination")
)

// IsSpecError reports whether err is a filter, sort or pagination error.
func IsSpecError(err error) bool {
	return errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrUnknownOperator) ||
		errors.Is(err, ErrInvalidFilter) ||
		errors.Is(err, ErrInvalidSort) ||
		errors.Is(err, ErrInvalidPage)
}
