// Package fs reads photo attachments from the local filesystem.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"autoinspect/internal/config"
	"autoinspect/internal/inspection"
)

var (
	ErrTooLarge          = errors.New("attachment exceeds size limit")
	ErrExtensionRejected = errors.New("attachment extension not allowed")
)

// IgnoreFileName holds patterns excluded when a directory is attached.
const IgnoreFileName = ".inspectignore"

// loadConcurrency bounds how many files are read at once.
const loadConcurrency = 4

// AttachmentLoader resolves and reads files named on the command line.
// A directory expands to the allowed files directly inside it.
type AttachmentLoader struct {
	maxSize    int64 // 0 means unlimited
	extensions map[string]bool
}

func NewAttachmentLoader(cfg config.AttachmentsConfig) *AttachmentLoader {
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &AttachmentLoader{maxSize: cfg.MaxSize, extensions: exts}
}

func (l *AttachmentLoader) allowed(name string) bool {
	if len(l.extensions) == 0 {
		return true
	}
	return l.extensions[strings.ToLower(filepath.Ext(name))]
}

// Resolve turns rawPath into absolute file paths. Directories are not
// walked recursively; their entries come back sorted by name.
func (l *AttachmentLoader) Resolve(rawPath string) ([]string, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	if !info.IsDir() {
		if err := l.check(absPath, info); err != nil {
			return nil, err
		}
		return []string{absPath}, nil
	}

	ignore, err := LoadIgnoreMatcher(absPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || ignore.Match(entry.Name()) || !l.allowed(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		p := filepath.Join(absPath, entry.Name())
		if err := l.check(p, info); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no attachable files in %s", absPath)
	}
	return paths, nil
}

func (l *AttachmentLoader) check(path string, info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	if !l.allowed(path) {
		return fmt.Errorf("%s: %w", path, ErrExtensionRejected)
	}
	if l.maxSize > 0 && info.Size() > l.maxSize {
		return fmt.Errorf("%s is %d bytes, limit %d: %w", path, info.Size(), l.maxSize, ErrTooLarge)
	}
	return nil
}

// LoadFile reads one resolved file into a new attachment.
func (l *AttachmentLoader) LoadFile(path string) (inspection.AttachmentRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return inspection.AttachmentRef{}, fmt.Errorf("reading attachment: %w", err)
	}
	// The file may have grown since Resolve.
	if l.maxSize > 0 && int64(len(data)) > l.maxSize {
		return inspection.AttachmentRef{}, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}
	return inspection.NewAttachment(filepath.Base(path), data), nil
}

// Load resolves rawPath and reads every file it names.
func (l *AttachmentLoader) Load(rawPath string) ([]inspection.AttachmentRef, error) {
	paths, err := l.Resolve(rawPath)
	if err != nil {
		return nil, err
	}
	refs := make([]inspection.AttachmentRef, 0, len(paths))
	for _, p := range paths {
		ref, err := l.LoadFile(p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// LoadFields loads the paths given for each field concurrently. Within a
// field, attachments keep the order the paths were given in.
func (l *AttachmentLoader) LoadFields(ctx context.Context, specs map[string][]string) (map[string][]inspection.AttachmentRef, error) {
	type slot struct {
		field string
		index int
	}

	var (
		mu      sync.Mutex
		results = make(map[slot][]inspection.AttachmentRef)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for field, paths := range specs {
		for i, p := range paths {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				refs, err := l.Load(p)
				if err != nil {
					return fmt.Errorf("field %s: %w", field, err)
				}
				mu.Lock()
				results[slot{field, i}] = refs
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]inspection.AttachmentRef, len(specs))
	for field, paths := range specs {
		var refs []inspection.AttachmentRef
		for i := range paths {
			refs = append(refs, results[slot{field, i}]...)
		}
		out[field] = refs
	}
	return out, nil
}
