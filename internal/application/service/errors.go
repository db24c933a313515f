package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an application or child record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrPersistence is matched by every store failure.
	ErrPersistence = errors.New("save failed, please retry")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotEditable is returned when the applicant edits an application that is under review or closed.
	ErrNotEditable = errors.New("application can no longer be edited")
	// ErrForbidden is returned when a user touches an application they do not own.
	ErrForbidden = errors.New("application belongs to another user")
)

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
