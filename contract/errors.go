package contract

import "errors"

// Errors returned by the flag store entry points. Each one aborts the call.
var (
	// ErrSerialization is part of the error set callers match on; the
	// one-byte bool encoding itself cannot fail, so the native entry points
	// never return it.
	ErrSerialization     = errors.New("serialization error")
	ErrDeserialization   = errors.New("deserialization error")
	ErrCorruptRetrieval  = errors.New("Corrupt retrieval from storage")
	ErrMissingAfterWrite = errors.New("Could not retrieve from storage")
	ErrNotRemoved        = errors.New("This key should have been removed!")
	ErrKeyRemoved        = errors.New("This key has been removed")
)
