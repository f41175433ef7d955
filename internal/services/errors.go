package services

import (
	"errors"
	"fmt"
)

// ErrRemoteUnavailable marks failures of the remote document store. For
// aggregation and mirror writes it is absorbed as a warning; for edits routed
// to a source case or task it surfaces to the caller, since no local copy can
// stand in for the authoritative record.
var ErrRemoteUnavailable = errors.New("remote store unavailable")

// ErrEventNotFound is returned when an event id matches nothing in the current
// agenda.
var ErrEventNotFound = errors.New("event not found")

// ValidationError rejects a write before any persistence happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LocalPersistenceError wraps a failed local-store write. Local durability is
// the one hard guarantee of the write path, so this is fatal to the operation.
type LocalPersistenceError struct {
	Err error
}

func (e *LocalPersistenceError) Error() string {
	return "local store write failed: " + e.Err.Error()
}

func (e *LocalPersistenceError) Unwrap() error { return e.Err }
