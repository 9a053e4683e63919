package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrAuthorization         = errors.New("forbidden: access denied")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyReversed       = errors.New("change log entry already reversed")
	ErrUnsupportedEntityType = errors.New("unsupported entity type")
	ErrEntityExists          = errors.New("entity already exists")
	ErrNoFieldsToUpdate      = errors.New("no fields to update")
	ErrSerialization         = errors.New("snapshot serialization failed")
)

// InvalidTransitionError is returned when a task status change is not in the
// transition table. It matches ErrValidation.
type InvalidTransitionError struct {
	From    TaskStatus
	To      TaskStatus
	Allowed []TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}
	return fmt.Sprintf("invalid status transition %s -> %s (allowed: %s)", e.From, e.To, strings.Join(allowed, ", "))
}

func (e *InvalidTransitionError) Unwrap() error { return ErrValidation }

// SerializationError reports a snapshot that cannot be encoded or decoded.
type SerializationError struct {
	EntityType EntityType
	Err        error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s snapshot: %v", e.EntityType, e.Err)
}

func (e *SerializationError) Unwrap() []error { return []error{ErrSerialization, e.Err} }

// ChildFailure describes one descendant that could not be recreated during a
// hierarchical restore.
type ChildFailure struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Error      string     `json:"error"`
}

// PartialCascadeFailure is reported (never returned as a hard error) when a
// restore recreated the top-level entity but some descendants failed.
type PartialCascadeFailure struct {
	Failures []ChildFailure
}

func (e *PartialCascadeFailure) Error() string {
	return fmt.Sprintf("%d descendant(s) could not be restored", len(e.Failures))
}

// Validationf builds an error matching ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an error matching ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
