package storage

import "fmt"

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBadger  = "badger"
)

// Open returns the named backend rooted at path. The memory backend ignores path.
func Open(backend, path string) (Backend, error) {
	switch backend {
	case BackendMemory:
		return NewMemStore(), nil
	case BackendLevelDB, "":
		return OpenLevel(path)
	case BackendBadger:
		return OpenBadger(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
