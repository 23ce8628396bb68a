package database

import (
	"errors"
	"fmt"
)

// ErrRelationNotFound is returned (wrapped) by a Backend when the requested
// table does not exist. The Store treats it as "try the next candidate".
var ErrRelationNotFound = errors.New("relation does not exist")

// ErrorKind distinguishes resolution failures from backend failures.
type ErrorKind int

const (
	// KindUnresolved means no candidate table exists for the entity.
	KindUnresolved ErrorKind = iota + 1
	// KindBackend means the storage backend rejected the operation.
	KindBackend
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnresolved:
		return "unresolved"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// StoreError is the single error type returned by Store operations.
type StoreError struct {
	Kind   ErrorKind
	Op     string
	Entity string
	Table  string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Kind == KindUnresolved {
		return fmt.Sprintf("%s: no table resolved for entity %q", e.Op, e.Entity)
	}
	return fmt.Sprintf("%s %s (table %s): %v", e.Op, e.Entity, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsUnresolved reports whether err is a StoreError of kind KindUnresolved.
func IsUnresolved(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindUnresolved
}
