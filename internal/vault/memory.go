package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"qvcs-go/internal/qvcs"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It stores all content and metadata in memory, making it useful for testing
// and for servers running with an in-memory database.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name            string
	content         map[string][]byte // key -> blob
	metadata        map[string][]byte // name -> snapshot
	metadataVersion map[string]int64  // name -> version
	mu              sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:            name,
		content:         make(map[string][]byte),
		metadata:        make(map[string][]byte),
		metadataVersion: make(map[string]int64),
	}
}

// PutContent stores a blob under key.
func (m *MemoryVault) PutContent(_ context.Context, key string, r io.Reader, size int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := readExactly(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: storing the same key multiple times is safe
	m.content[key] = data
	return nil
}

// GetContent writes the blob stored under key to w.
func (m *MemoryVault) GetContent(_ context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.content[key]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("content %s: %w", key, qvcs.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// HasContent reports whether key is stored.
func (m *MemoryVault) HasContent(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.content[key]
	return ok, nil
}

// PutMetadata stores a named metadata item.
func (m *MemoryVault) PutMetadata(_ context.Context, name string, r io.Reader, size int64, version int64) error {
	if err := validateKey(name); err != nil {
		return err
	}
	data, err := readExactly(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.metadata[name] = data
	m.metadataVersion[name] = version
	return nil
}

// GetMetadataVersion returns the stored version of a metadata item, 0 if absent.
func (m *MemoryVault) GetMetadataVersion(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.metadataVersion[name], nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

// Compile-time check that MemoryVault implements qvcs.Vault interface
var _ qvcs.Vault = (*MemoryVault)(nil)
