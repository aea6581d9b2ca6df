package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"autoinspect/internal/inspection"
)

// FileSystemArchive stores receipts and metadata as files:
//
//	<root>/
//	  receipts/
//	    <inspection>/<receipt>.json[.age]
//	  metadata/
//	    <inspectorID>/<name>
//	    <inspectorID>/<name>.version
type FileSystemArchive struct {
	name        string
	root        string
	receiptDir  string
	metadataDir string
}

// NewFileSystemArchive creates a new filesystem archive rooted at the given path.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	receiptDir := filepath.Join(root, "receipts")
	metadataDir := filepath.Join(root, "metadata")

	if err := os.MkdirAll(receiptDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create receipts directory: %w", err)
	}
	if err := os.MkdirAll(metadataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	return &FileSystemArchive{
		name:        name,
		root:        root,
		receiptDir:  receiptDir,
		metadataDir: metadataDir,
	}, nil
}

// receiptPath maps a key such as "receipts/insp-1/r.json" below receiptDir.
// A leading "receipts/" segment is not repeated on disk.
func (a *FileSystemArchive) receiptPath(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	key = strings.TrimPrefix(key, "receipts/")
	return filepath.Join(a.receiptDir, filepath.FromSlash(key)), nil
}

func (a *FileSystemArchive) metadataPath(inspectorID, name string) (string, error) {
	key, err := cleanKey(metadataKey(inspectorID, name))
	if err != nil {
		return "", err
	}
	return filepath.Join(a.metadataDir, filepath.FromSlash(key)), nil
}

// PutReceipt stores a receipt. Rewriting an existing key replaces it.
func (a *FileSystemArchive) PutReceipt(key string, r io.Reader, size int64) error {
	destPath, err := a.receiptPath(key)
	if err != nil {
		return err
	}
	return writeFile(destPath, r, size)
}

func (a *FileSystemArchive) GetReceipt(key string, w io.Writer) error {
	srcPath, err := a.receiptPath(key)
	if err != nil {
		return err
	}
	return readFile(srcPath, w, "receipt "+key)
}

// PutMetadata stores a named item along with a version marker.
func (a *FileSystemArchive) PutMetadata(inspectorID string, name string, r io.Reader, size int64, version int64) error {
	destPath, err := a.metadataPath(inspectorID, name)
	if err != nil {
		return err
	}
	if err := writeFile(destPath, r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	return writeFile(destPath+".version", strings.NewReader(versionData), int64(len(versionData)))
}

// GetMetadataVersion returns 0 if no version file exists.
func (a *FileSystemArchive) GetMetadataVersion(inspectorID string, name string) (int64, error) {
	p, err := a.metadataPath(inspectorID, name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(p + ".version")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

func (a *FileSystemArchive) GetMetadata(inspectorID string, name string, w io.Writer) error {
	srcPath, err := a.metadataPath(inspectorID, name)
	if err != nil {
		return err
	}
	return readFile(srcPath, w, fmt.Sprintf("metadata %q for inspector %s", name, inspectorID))
}

// ValidateSetup verifies that the archive directories are accessible.
func (a *FileSystemArchive) ValidateSetup() error {
	for _, dir := range []string{a.root, a.receiptDir, a.metadataDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("archive directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("archive path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes r to destPath through a temp file and rename.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func readFile(srcPath string, w io.Writer, what string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

var _ inspection.Archive = (*FileSystemArchive)(nil)
