package reservation

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("reservation: not found")
	ErrInvalidArgument     = errors.New("reservation: invalid argument")
	ErrInvalidTransition   = errors.New("reservation: invalid status transition")
	ErrConcurrencyConflict = errors.New("reservation: concurrency conflict")
)

// ArgumentError names the rejected constructor input.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("reservation: invalid %s: %s", e.Field, e.Reason)
}

func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// TransitionError reports an operation attempted from an incompatible status.
type TransitionError struct {
	ReservationID ID
	Status        Status
	Operation     string
	Reason        string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("reservation %s: cannot %s from status %s", e.ReservationID, e.Operation, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ConflictError is returned by stores when the persisted version moved on.
type ConflictError struct {
	ReservationID ID
	Version       int64
}

func (e *ConflictError) Error() string {
	if e.ReservationID == "" {
		return "reservation: concurrent update detected"
	}
	return fmt.Sprintf("reservation %s: concurrent update detected at version %d", e.ReservationID, e.Version)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }
