package contract_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soden46/hyperlux-flagstore/contract"
	"github.com/soden46/hyperlux-flagstore/storage"
)

// faultyStore misbehaves in the ways the instantiate self check must catch.
type faultyStore struct {
	*storage.MemStore
	dropWrites  bool
	dropRemoves bool
	readback    []byte
}

func (f *faultyStore) Set(key, value []byte) error {
	if f.dropWrites {
		return nil
	}
	return f.MemStore.Set(key, value)
}

func (f *faultyStore) Remove(key []byte) error {
	if f.dropRemoves {
		return nil
	}
	return f.MemStore.Remove(key)
}

func (f *faultyStore) Get(key []byte) ([]byte, error) {
	if f.readback != nil {
		return f.readback, nil
	}
	return f.MemStore.Get(key)
}

func flagKey() []byte {
	return append(storage.LengthPrefixed(contract.PrefixTest), contract.TestKey...)
}

func TestInitializeThenRead(t *testing.T) {
	store := storage.NewMemStore()
	require.NoError(t, contract.Initialize(store, false))

	resp, err := contract.Read(store)
	require.NoError(t, err)
	require.True(t, resp.Val)

	raw, err := store.Get(flagKey())
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, raw)
	require.Equal(t, 1, store.Len())
}

func TestInitializeSelfTestLeavesKeyAbsent(t *testing.T) {
	store := storage.NewMemStore()
	require.NoError(t, contract.Initialize(store, true))
	require.Equal(t, 0, store.Len())

	_, err := contract.Read(store)
	require.ErrorIs(t, err, contract.ErrKeyRemoved)
}

func TestInitializeFailures(t *testing.T) {
	tests := []struct {
		name     string
		store    *faultyStore
		selfTest bool
		want     error
	}{
		{
			name:  "readback false",
			store: &faultyStore{readback: []byte{0x00}},
			want:  contract.ErrCorruptRetrieval,
		},
		{
			name:  "readback undecodable",
			store: &faultyStore{readback: []byte{0x07}},
			want:  contract.ErrDeserialization,
		},
		{
			name:  "readback too long",
			store: &faultyStore{readback: []byte{0x01, 0x00}},
			want:  contract.ErrDeserialization,
		},
		{
			name:  "write lost",
			store: &faultyStore{dropWrites: true},
			want:  contract.ErrMissingAfterWrite,
		},
		{
			name:     "remove ignored",
			store:    &faultyStore{dropRemoves: true},
			selfTest: true,
			want:     contract.ErrNotRemoved,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.store.MemStore = storage.NewMemStore()
			err := contract.Initialize(tc.store, tc.selfTest)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestInitializeDoesNotRemoveWithoutSelfTest(t *testing.T) {
	store := &faultyStore{MemStore: storage.NewMemStore(), dropRemoves: true}
	require.NoError(t, contract.Initialize(store, false))
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := storage.NewMemStore()
	require.NoError(t, contract.Initialize(store, false))

	for i := 0; i < 2; i++ {
		resp, err := contract.Remove(store)
		require.NoError(t, err)
		require.Equal(t, []contract.Attribute{{Key: "status", Value: "success"}}, resp.Log)
		require.Equal(t, 0, store.Len())
	}
}

func TestRemoveOnFreshStore(t *testing.T) {
	_, err := contract.Remove(storage.NewMemStore())
	require.NoError(t, err)
}

func TestReadAfterRemove(t *testing.T) {
	store := storage.NewMemStore()
	require.NoError(t, contract.Initialize(store, false))
	_, err := contract.Remove(store)
	require.NoError(t, err)

	_, err = contract.Read(store)
	require.ErrorIs(t, err, contract.ErrKeyRemoved)
	require.EqualError(t, err, "This key has been removed")
}

func TestReadStoredFalse(t *testing.T) {
	store := storage.NewMemStore()
	require.NoError(t, store.Set(flagKey(), []byte{0x00}))

	resp, err := contract.Read(store)
	require.NoError(t, err)
	require.False(t, resp.Val)
}

func TestReadUndecodable(t *testing.T) {
	store := storage.NewMemStore()
	require.NoError(t, store.Set(flagKey(), []byte("yes")))

	_, err := contract.Read(store)
	require.ErrorIs(t, err, contract.ErrDeserialization)
}

func TestReadThroughReleasedScope(t *testing.T) {
	scope := storage.NewCallScope(storage.NewMemStore())
	scope.Release()

	_, err := contract.Read(scope)
	require.ErrorIs(t, err, storage.ErrScopeReleased)
}

func TestFlagStoreScenario(t *testing.T) {
	fs := contract.New(false)
	store := storage.NewMemStore()
	env := contract.Env{Contract: "flagstore"}

	resp, err := fs.Instantiate(env, store, []byte(`{"count":null}`))
	require.NoError(t, err)
	require.Empty(t, resp.Log)

	out, err := fs.Query(env, store, []byte(`{"read":{}}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"val":true}`, string(out))

	resp, err = fs.Execute(env, store, []byte(`"remove"`))
	require.NoError(t, err)
	require.Equal(t, []contract.Attribute{{Key: "status", Value: "success"}}, resp.Log)

	_, err = fs.Query(env, store, []byte(`"read"`))
	require.ErrorIs(t, err, contract.ErrKeyRemoved)
}

func TestFlagStoreSelfTestScenario(t *testing.T) {
	fs := contract.New(true)
	store := storage.NewMemStore()

	_, err := fs.Instantiate(contract.Env{}, store, []byte(`{"count":3}`))
	require.NoError(t, err)

	_, err = fs.Query(contract.Env{}, store, []byte(`{"read":{}}`))
	require.ErrorIs(t, err, contract.ErrKeyRemoved)
}

func TestFlagStoreRejectsUnknownVariants(t *testing.T) {
	fs := contract.New(false)
	store := storage.NewMemStore()

	_, err := fs.Execute(contract.Env{}, store, []byte(`{"notused":{}}`))
	require.ErrorContains(t, err, `unknown variant "notused"`)

	_, err = fs.Query(contract.Env{}, store, []byte(`"write"`))
	require.ErrorContains(t, err, `unknown variant "write"`)

	_, err = fs.Execute(contract.Env{}, store, []byte(`{"remove":{},"read":{}}`))
	require.ErrorContains(t, err, "expected exactly one variant")

	for _, msg := range []string{`{"remove":5}`, `{"remove":[1,2]}`, `{"remove":"x"}`, `{"remove":{"key":1}}`} {
		_, err = fs.Execute(contract.Env{}, store, []byte(msg))
		require.ErrorContains(t, err, `variant "remove" takes no fields`, msg)
	}
	_, err = fs.Query(contract.Env{}, store, []byte(`{"read":true}`))
	require.ErrorContains(t, err, `variant "read" takes no fields`)

	_, err = fs.Instantiate(contract.Env{}, store, []byte(`{"count":-1}`))
	require.ErrorContains(t, err, "parse init msg")
}

func TestFlagStoreRejectsMalformedRemoveKeepsFlag(t *testing.T) {
	fs := contract.New(false)
	store := storage.NewMemStore()

	_, err := fs.Instantiate(contract.Env{}, store, []byte(`{"count":null}`))
	require.NoError(t, err)

	_, err = fs.Execute(contract.Env{}, store, []byte(`{"remove":5}`))
	require.Error(t, err)

	out, err := fs.Query(contract.Env{}, store, []byte(`"read"`))
	require.NoError(t, err)
	require.JSONEq(t, `{"val":true}`, string(out))
}

func TestFlagStoreAcceptsUnitForms(t *testing.T) {
	fs := contract.New(false)
	store := storage.NewMemStore()

	for _, msg := range []string{`"remove"`, `{"remove":{}}`, `{"remove":null}`, ` { "remove" : { } } `} {
		resp, err := fs.Execute(contract.Env{}, store, []byte(msg))
		require.NoError(t, err, msg)
		require.Equal(t, []contract.Attribute{{Key: "status", Value: "success"}}, resp.Log)
	}
}

func TestMessagesMarshal(t *testing.T) {
	b, err := json.Marshal(contract.HandleMsg{Remove: &struct{}{}})
	require.NoError(t, err)
	require.JSONEq(t, `{"remove":{}}`, string(b))

	b, err = json.Marshal(contract.QueryMsg{Read: &struct{}{}})
	require.NoError(t, err)
	require.JSONEq(t, `{"read":{}}`, string(b))

	b, err = json.Marshal(contract.InitMsg{})
	require.NoError(t, err)
	require.JSONEq(t, `{"count":null}`, string(b))
}
