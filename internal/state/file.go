package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/orderbot/internal/types"
)

const fileExt = ".json"

// FileStore keeps one JSON file per key under its root directory.
// Writes go to a temp file that is renamed into place, so a reader never
// sees a partial blob. Concurrent writers of the same key race and the
// last rename wins.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir. The directory is
// created on the first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the directory holding the session files.
func (s *FileStore) Root() string {
	return s.root
}

// ':' is not allowed in Windows file names.
var keyEscaper = strings.NewReplacer(":", "_", "/", "_", "\\", "_")

func (s *FileStore) path(key types.SessionKey) string {
	return filepath.Join(s.root, keyEscaper.Replace(string(key))+fileExt)
}

// Get returns the blob stored under key.
func (s *FileStore) Get(ctx context.Context, key types.SessionKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return data, nil
}

// Set replaces the blob stored under key.
func (s *FileStore) Set(ctx context.Context, key types.SessionKey, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp session file: %w", err)
	}
	return nil
}

// List returns the stored customer keys in lexical order.
func (s *FileStore) List(_ context.Context) ([]types.SessionKey, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var keys []types.SessionKey
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		// customer_+5511..._chat -> customer:+5511...:chat
		base := strings.TrimSuffix(name, fileExt)
		parts := strings.Split(base, "_")
		if len(parts) != 3 {
			continue
		}
		key := strings.Join(parts, ":")
		if isCustomerKey(key) {
			keys = append(keys, types.SessionKey(key))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (s *FileStore) Close() error {
	return nil
}
