// Package contract implements the flag store: a contract that writes one
// boolean under a fixed key in its own namespace, reads it back and removes
// it, to check that the host storage behaves.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soden46/hyperlux-flagstore/storage"
)

// FlagStore exposes the instantiate, execute and query entry points over
// JSON-encoded requests.
type FlagStore struct {
	// SelfTest makes Instantiate remove the flag again after verifying it.
	SelfTest bool
}

// New returns a FlagStore. With selfTest set, instantiation also exercises
// the remove path and leaves the flag absent.
func New(selfTest bool) *FlagStore {
	return &FlagStore{SelfTest: selfTest}
}

func (f *FlagStore) Instantiate(_ Env, store storage.Store, msg []byte) (Response, error) {
	var init InitMsg
	if err := json.Unmarshal(msg, &init); err != nil {
		return Response{}, fmt.Errorf("parse init msg: %w", err)
	}
	if err := Initialize(store, f.SelfTest); err != nil {
		return Response{}, err
	}
	return Response{}, nil
}

func (f *FlagStore) Execute(_ Env, store storage.Store, msg []byte) (Response, error) {
	var handle HandleMsg
	if err := json.Unmarshal(msg, &handle); err != nil {
		return Response{}, err
	}
	switch {
	case handle.Remove != nil:
		return Remove(store)
	default:
		return Response{}, errors.New("handle msg: no variant set")
	}
}

func (f *FlagStore) Query(_ Env, store storage.ReadonlyStore, msg []byte) ([]byte, error) {
	var query QueryMsg
	if err := json.Unmarshal(msg, &query); err != nil {
		return nil, err
	}
	switch {
	case query.Read != nil:
		resp, err := Read(store)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	default:
		return nil, errors.New("query msg: no variant set")
	}
}

// Initialize writes true under TestKey, reads it back and checks it. With
// selfTest it then removes the key and checks that it is gone.
func Initialize(parent storage.Store, selfTest bool) error {
	store := storage.NewPrefixStore(PrefixTest, parent)

	if err := store.Set(TestKey, encodeBool(true)); err != nil {
		return fmt.Errorf("write flag: %w", err)
	}

	raw, err := store.Get(TestKey)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrMissingAfterWrite
	}
	if err != nil {
		return fmt.Errorf("read flag: %w", err)
	}
	val, err := decodeBool(raw)
	if err != nil {
		return ErrDeserialization
	}
	if !val {
		return ErrCorruptRetrieval
	}

	if !selfTest {
		return nil
	}

	if err := store.Remove(TestKey); err != nil {
		return fmt.Errorf("remove flag: %w", err)
	}
	present, err := storage.Has(store, TestKey)
	if err != nil {
		return fmt.Errorf("read flag: %w", err)
	}
	if present {
		return ErrNotRemoved
	}
	return nil
}

// Remove deletes the flag. It succeeds whether or not the flag was present.
func Remove(parent storage.Store) (Response, error) {
	store := storage.NewPrefixStore(PrefixTest, parent)
	if err := store.Remove(TestKey); err != nil {
		return Response{}, fmt.Errorf("remove flag: %w", err)
	}
	return Response{
		Log: []Attribute{{Key: "status", Value: "success"}},
	}, nil
}

// Read returns the stored flag, or ErrKeyRemoved when it is absent.
func Read(parent storage.ReadonlyStore) (ReadResponse, error) {
	store := storage.NewReadonlyPrefixStore(PrefixTest, parent)
	raw, err := store.Get(TestKey)
	if errors.Is(err, storage.ErrNotFound) {
		return ReadResponse{}, ErrKeyRemoved
	}
	if err != nil {
		return ReadResponse{}, fmt.Errorf("read flag: %w", err)
	}
	val, err := decodeBool(raw)
	if err != nil {
		return ReadResponse{}, ErrDeserialization
	}
	return ReadResponse{Val: val}, nil
}
