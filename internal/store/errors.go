package store

import "errors"

// ErrNotFound indicates the requested entity id/name does not exist. The
// operation becomes a no-op; callers see the failure, not a mutation.
var ErrNotFound = errors.New("store: not found")

// ErrValidation indicates a precondition failed (duplicate name/ip,
// self-loop, unknown state value). No mutation occurs.
var ErrValidation = errors.New("store: validation failed")

// ErrPersistence indicates the backing store failed the operation for a
// reason unrelated to input validity (disk I/O, unreachable database, ...).
var ErrPersistence = errors.New("store: persistence failure")
