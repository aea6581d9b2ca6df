package testutil

import (
	"autoinspect/internal/archive"
	"autoinspect/internal/encryption"
)

// NewTestEncryptor returns the header-only encryptor.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}

// NewTestArchive creates a new in-memory archive.
func NewTestArchive() *archive.MemoryArchive {
	return archive.NewMemoryArchive("test-archive")
}
