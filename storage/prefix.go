package storage

import (
	"encoding/binary"
	"fmt"
)

// MaxNamespaceLen is the longest namespace the 2-byte length field can hold.
const MaxNamespaceLen = 0xFFFF

// LengthPrefixed returns namespace preceded by its length as a 2-byte
// big-endian integer. It panics on namespaces longer than MaxNamespaceLen,
// whose length would not fit and could collide with another namespace.
func LengthPrefixed(namespace []byte) []byte {
	if len(namespace) > MaxNamespaceLen {
		panic(fmt.Sprintf("storage: namespace of %d bytes exceeds %d", len(namespace), MaxNamespaceLen))
	}
	out := make([]byte, 2+len(namespace))
	binary.BigEndian.PutUint16(out, uint16(len(namespace)))
	copy(out[2:], namespace)
	return out
}

func prefixKey(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// PrefixStore scopes every key of an underlying Store under a namespace.
type PrefixStore struct {
	prefix []byte
	parent Store
}

// NewPrefixStore returns a view of parent in which every key lives under namespace.
func NewPrefixStore(namespace []byte, parent Store) *PrefixStore {
	return &PrefixStore{prefix: LengthPrefixed(namespace), parent: parent}
}

func (p *PrefixStore) Get(key []byte) ([]byte, error) {
	return p.parent.Get(prefixKey(p.prefix, key))
}

func (p *PrefixStore) Set(key, value []byte) error {
	return p.parent.Set(prefixKey(p.prefix, key), value)
}

func (p *PrefixStore) Remove(key []byte) error {
	return p.parent.Remove(prefixKey(p.prefix, key))
}

// ReadonlyPrefixStore is the read-only counterpart of PrefixStore.
type ReadonlyPrefixStore struct {
	prefix []byte
	parent ReadonlyStore
}

func NewReadonlyPrefixStore(namespace []byte, parent ReadonlyStore) *ReadonlyPrefixStore {
	return &ReadonlyPrefixStore{prefix: LengthPrefixed(namespace), parent: parent}
}

func (p *ReadonlyPrefixStore) Get(key []byte) ([]byte, error) {
	return p.parent.Get(prefixKey(p.prefix, key))
}
