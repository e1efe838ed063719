// Package storage holds the key-value capabilities a contract is handed for
// one call, plus the backends the host keeps them in.
package storage

import "errors"

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrReadOnly is returned by write operations on a read-only view.
	ErrReadOnly = errors.New("store is read-only")
	// ErrScopeReleased is returned by a call scope used after its call returned.
	ErrScopeReleased = errors.New("store scope released")
	// ErrClosed is returned by a backend used after Close.
	ErrClosed = errors.New("store closed")
)

// ReadonlyStore is the view a query gets.
type ReadonlyStore interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
}

// Store is the mutable view instantiate and execute get.
type Store interface {
	ReadonlyStore
	Set(key, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key []byte) error
}

// Backend is a Store that owns a resource.
type Backend interface {
	Store
	Close() error
}

// Has reports whether key is present in s.
func Has(s ReadonlyStore, key []byte) (bool, error) {
	_, err := s.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ReadOnly wraps s so that Set and Remove fail with ErrReadOnly.
func ReadOnly(s ReadonlyStore) Store {
	return readOnly{s}
}

type readOnly struct {
	ReadonlyStore
}

func (readOnly) Set(_, _ []byte) error { return ErrReadOnly }
func (readOnly) Remove(_ []byte) error { return ErrReadOnly }
