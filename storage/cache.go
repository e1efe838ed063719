package storage

import (
	"fmt"
	"sort"
)

// CacheStore buffers writes over a parent Store. Reads see the buffered
// writes first. Nothing reaches the parent until Write.
type CacheStore struct {
	parent  Store
	pending map[string]*[]byte // nil entry marks a removal
}

// NewCacheStore returns an empty write buffer over parent.
func NewCacheStore(parent Store) *CacheStore {
	return &CacheStore{parent: parent, pending: map[string]*[]byte{}}
}

func (c *CacheStore) Get(key []byte) ([]byte, error) {
	if v, ok := c.pending[string(key)]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return append([]byte(nil), (*v)...), nil
	}
	return c.parent.Get(key)
}

func (c *CacheStore) Set(key, value []byte) error {
	v := append([]byte{}, value...)
	c.pending[string(key)] = &v
	return nil
}

func (c *CacheStore) Remove(key []byte) error {
	c.pending[string(key)] = nil
	return nil
}

// Pending is the number of buffered writes and removals.
func (c *CacheStore) Pending() int { return len(c.pending) }

// Write applies the buffered operations to the parent in key order and
// empties the buffer.
func (c *CacheStore) Write() error {
	keys := make([]string, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var err error
		if v := c.pending[k]; v == nil {
			err = c.parent.Remove([]byte(k))
		} else {
			err = c.parent.Set([]byte(k), *v)
		}
		if err != nil {
			return fmt.Errorf("flush %x: %w", k, err)
		}
	}
	c.pending = map[string]*[]byte{}
	return nil
}

// Discard drops the buffered operations.
func (c *CacheStore) Discard() {
	c.pending = map[string]*[]byte{}
}
