// Package archive stores submission receipts and database snapshots.
package archive

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when a receipt or metadata item does not exist.
var ErrNotFound = errors.New("not found")

// cleanKey validates a slash-separated receipt key.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid receipt key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid receipt key %q", key)
		}
	}
	return path.Clean(key), nil
}

// metadataKey returns the key for an inspector/name pair.
func metadataKey(inspectorID, name string) string {
	return inspectorID + "/" + name
}
