package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soden46/hyperlux-flagstore/storage"
)

func backends(t *testing.T) map[string]storage.Backend {
	t.Helper()

	level, err := storage.OpenLevelInMemory()
	require.NoError(t, err)
	badgerMem, err := storage.OpenBadgerInMemory()
	require.NoError(t, err)
	levelDisk, err := storage.OpenLevel(filepath.Join(t.TempDir(), "level"))
	require.NoError(t, err)

	out := map[string]storage.Backend{
		"memory":        storage.NewMemStore(),
		"leveldb":       level,
		"leveldb-disk":  levelDisk,
		"badger-memory": badgerMem,
	}
	t.Cleanup(func() {
		for _, b := range out {
			_ = b.Close()
		}
	})
	return out
}

func TestBackendsSetGetRemove(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Get([]byte("k"))
			require.ErrorIs(t, err, storage.ErrNotFound)

			require.NoError(t, b.Set([]byte("k"), []byte{0x01}))
			got, err := b.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte{0x01}, got)

			require.NoError(t, b.Remove([]byte("k")))
			_, err = b.Get([]byte("k"))
			require.ErrorIs(t, err, storage.ErrNotFound)

			// removing an absent key is fine
			require.NoError(t, b.Remove([]byte("k")))
		})
	}
}

func TestBackendsDistinguishAbsentFromEmpty(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Set([]byte("zero"), []byte{0x00}))
			ok, err := storage.Has(b, []byte("zero"))
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = storage.Has(b, []byte("missing"))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestLevelStorePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	s, err := storage.OpenLevel(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set([]byte("k"), []byte("v")))
	require.NoError(t, s.Close())

	s, err = storage.OpenLevel(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")

	s, err := storage.OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set([]byte("k"), []byte("v")))
	require.NoError(t, s.Close())

	s, err = storage.OpenBadger(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestMemStoreClosed(t *testing.T) {
	m := storage.NewMemStore()
	require.NoError(t, m.Close())
	_, err := m.Get([]byte("k"))
	require.ErrorIs(t, err, storage.ErrClosed)
	require.ErrorIs(t, m.Set([]byte("k"), nil), storage.ErrClosed)
}

func TestMemStoreCopiesValues(t *testing.T) {
	m := storage.NewMemStore()
	v := []byte{0x01}
	require.NoError(t, m.Set([]byte("k"), v))
	v[0] = 0x02

	got, err := m.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, got)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	b, err := storage.Open(storage.BackendMemory, "")
	require.NoError(t, err)
	require.IsType(t, &storage.MemStore{}, b)

	b, err = storage.Open(storage.BackendLevelDB, filepath.Join(dir, "level"))
	require.NoError(t, err)
	require.IsType(t, &storage.LevelStore{}, b)
	require.NoError(t, b.Close())

	b, err = storage.Open(storage.BackendBadger, filepath.Join(dir, "badger"))
	require.NoError(t, err)
	require.IsType(t, &storage.BadgerStore{}, b)
	require.NoError(t, b.Close())

	_, err = storage.Open("rocksdb", dir)
	require.ErrorContains(t, err, `unknown storage backend "rocksdb"`)
}
