package storage

import (
	"fmt"
	"path/filepath"
)

const (
	DefaultStoreKind = "file"
	DefaultDBFile    = "qusic.db"
)

// NewStore builds a backend by name. dataDir backs the file store and is the
// default parent of the sqlite database when sqlitePath is empty.
func NewStore(kind, dataDir, sqlitePath string) (Store, error) {
	switch kind {
	case "", DefaultStoreKind:
		return NewFileStore(dataDir), nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if sqlitePath == "" {
			if dataDir == "" {
				return nil, fmt.Errorf("sqlite backend needs a database path or data directory")
			}
			sqlitePath = filepath.Join(dataDir, DefaultDBFile)
		}
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
