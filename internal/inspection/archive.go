package inspection

import "io"

// Archive stores submission receipts and snapshots of the local database.
// All operations stream through io.Reader/io.Writer.
type Archive interface {
	// PutReceipt stores a receipt under key. size is the number of bytes
	// that will be read from r.
	PutReceipt(key string, r io.Reader, size int64) error

	// GetReceipt retrieves a receipt by key and writes it to w.
	GetReceipt(key string, w io.Writer) error

	// PutMetadata stores a named metadata item for an inspector along with
	// a version used for consistency checks. Known names: "db".
	PutMetadata(inspectorID string, name string, r io.Reader, size int64, version int64) error

	// GetMetadata retrieves a named metadata item and writes it to w.
	GetMetadata(inspectorID string, name string, w io.Writer) error

	// GetMetadataVersion returns the stored version, or 0 if none.
	GetMetadataVersion(inspectorID string, name string) (int64, error)

	// ValidateSetup verifies that the archive is accessible.
	ValidateSetup() error
}
