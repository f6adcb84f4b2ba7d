package calls

import (
	"errors"
	"iter"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("calls: not found")

	// ErrDuplicateID signals an insert with an id already in the store.
	// Provider ids are unique, so hitting this is a programming defect.
	ErrDuplicateID = errors.New("calls: duplicate id")
)

// Store is the call-record collection shared by all request handlers.
//
// Implementations must preserve insertion order for All and must apply
// Update atomically with respect to concurrent readers. Update is the
// only mutation path for existing records; it does not serialize the
// caller's surrounding read-modify-write, so callers whose decision
// spans a suspension point (the reconciler's scorer call) need their
// own per-record locking on top.
type Store interface {
	Insert(c Call) error
	FindByID(id string) (Call, error)

	// All yields a snapshot of the records in insertion order.
	// The sequence is finite and restartable.
	All() iter.Seq[Call]

	// Update applies fn to the record under the store lock.
	// fn returning an error aborts the commit.
	Update(id string, fn func(*Call) error) error
}
