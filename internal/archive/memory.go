package archive

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"autoinspect/internal/inspection"
)

// MemoryArchive keeps everything in memory. It is safe for concurrent use.
type MemoryArchive struct {
	name            string
	receipts        map[string][]byte
	metadata        map[string][]byte // "inspectorID/name" -> data
	metadataVersion map[string]int64
	mu              sync.RWMutex
}

// NewMemoryArchive creates a new in-memory archive with the given name.
func NewMemoryArchive(name string) *MemoryArchive {
	return &MemoryArchive{
		name:            name,
		receipts:        make(map[string][]byte),
		metadata:        make(map[string][]byte),
		metadataVersion: make(map[string]int64),
	}
}

func readSized(r io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	return data, nil
}

// PutReceipt stores a receipt under key, replacing any previous one.
func (m *MemoryArchive) PutReceipt(key string, r io.Reader, size int64) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	data, err := readSized(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[key] = data
	return nil
}

func (m *MemoryArchive) GetReceipt(key string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.receipts[key]
	if !ok {
		return fmt.Errorf("receipt %s: %w", key, ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

func (m *MemoryArchive) PutMetadata(inspectorID string, name string, r io.Reader, size int64, version int64) error {
	data, err := readSized(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := metadataKey(inspectorID, name)
	m.metadata[key] = data
	m.metadataVersion[key] = version
	return nil
}

// GetMetadataVersion returns 0 if nothing has been stored for this inspector/name.
func (m *MemoryArchive) GetMetadataVersion(inspectorID string, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.metadataVersion[metadataKey(inspectorID, name)], nil
}

func (m *MemoryArchive) GetMetadata(inspectorID string, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.metadata[metadataKey(inspectorID, name)]
	if !ok {
		return fmt.Errorf("metadata %q for inspector %s: %w", name, inspectorID, ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Keys returns the stored receipt keys. Order is unspecified.
func (m *MemoryArchive) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.receipts))
	for k := range m.receipts {
		keys = append(keys, k)
	}
	return keys
}

// ValidateSetup always succeeds for an in-memory archive.
func (m *MemoryArchive) ValidateSetup() error {
	return nil
}

var _ inspection.Archive = (*MemoryArchive)(nil)
