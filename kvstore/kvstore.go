// Package kvstore is the simple key/value area used as the fallback when the
// primary store cannot take a save.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// FallbackKey is where the façade writes the snapshot blob.
const FallbackKey = "family_points_db_v1"

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("key not found")

// Store is a flat byte-blob area keyed by string.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func checkKey(key string) error {
	if !validKey.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// =============================================================================
// DIR - one file per key
// =============================================================================

// Dir stores each key as <root>/<key>.json. Writes go through a temp file
// and rename so a crash never leaves a half-written blob.
type Dir struct {
	root string
	mu   sync.Mutex
}

// NewDir creates root if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create fallback dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(key string) string {
	return filepath.Join(d.root, key+".json")
}

func (d *Dir) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (d *Dir) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tmp, err := os.CreateTemp(d.root, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, d.path(key)); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// MEMORY - for tests
// =============================================================================

// Memory is an in-process Store. Fail makes every Put fail.
type Memory struct {
	mu      sync.RWMutex
	data    map[string][]byte
	failPut error
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Fail makes subsequent Puts return err; nil restores normal behaviour.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut = err
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}
