package state

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/orderbot/internal/types"
)

// Lister is implemented by stores that can enumerate their customer keys.
type Lister interface {
	List(ctx context.Context) ([]types.SessionKey, error)
}

// Store is a session store that can also list keys and be closed.
type Store interface {
	types.SessionStore
	Lister
	io.Closer
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Open returns the store for the named backend.
func Open(backend, dataDir, redisURL string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return NewFileStore(filepath.Join(dataDir, "sessions")), nil
	case BackendRedis:
		return DialRedis(redisURL)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}

func isCustomerKey(key string) bool {
	return strings.HasPrefix(key, "customer:") && strings.HasSuffix(key, ":chat")
}

// LoadSession reads and decodes the session under key. A stored document
// without a status counts as missing.
func LoadSession(ctx context.Context, store types.SessionStore, key types.SessionKey) (*types.Session, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	sess, err := types.UnmarshalSession(data)
	if err != nil {
		return nil, err
	}
	if sess.Status == "" {
		return nil, types.ErrNotFound
	}
	return sess, nil
}
