package repository

import "errors"

// ErrNotFound is returned when a record does not exist for the given scope.
var ErrNotFound = errors.New("record not found")

// ErrConcurrentUpdate is returned when a write could not be applied because
// another writer held or changed the record.
var ErrConcurrentUpdate = errors.New("concurrent update")
