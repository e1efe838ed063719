package storage

import "sync/atomic"

// CallScope grants a Store to a single call. After Release every operation
// fails with ErrScopeReleased, so a contract cannot keep using a handle once
// its call has returned.
type CallScope struct {
	parent   Store
	released atomic.Bool
}

// NewCallScope wraps parent for the duration of one call.
func NewCallScope(parent Store) *CallScope {
	return &CallScope{parent: parent}
}

func (c *CallScope) Get(key []byte) ([]byte, error) {
	if c.released.Load() {
		return nil, ErrScopeReleased
	}
	return c.parent.Get(key)
}

func (c *CallScope) Set(key, value []byte) error {
	if c.released.Load() {
		return ErrScopeReleased
	}
	return c.parent.Set(key, value)
}

func (c *CallScope) Remove(key []byte) error {
	if c.released.Load() {
		return ErrScopeReleased
	}
	return c.parent.Remove(key)
}

// Release ends the scope. It is safe to call more than once.
func (c *CallScope) Release() {
	c.released.Store(true)
}
