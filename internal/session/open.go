package session

import (
	"context"
	"fmt"
)

// Store kinds accepted by OpenStore.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// OpenStore constructs the TokenStore named by kind. The returned close function
// is never nil.
func OpenStore(ctx context.Context, kind, path string) (TokenStore, func() error, error) {
	noop := func() error { return nil }

	switch kind {
	case "", StoreFile:
		return NewFileStore(path), noop, nil
	case StoreSQLite:
		store, err := OpenSQLiteStore(ctx, path)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case StoreMemory:
		return NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown token store %q", kind)
	}
}
