// Package fsutil narrows file IO to an interface the tools can swap out,
// so command paths are testable without touching the real disk.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSystem is the slice of file IO the tools use. OSFileSystem is the
// real thing; MemoryFileSystem backs tests.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Stat(name string) (fs.FileInfo, error)
	Exists(name string) bool
}

// OSFileSystem passes everything through to the os package.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem keeps whole files in a map. Paths are cleaned on every
// call, so "./config.json" and "config.json" name the same entry.
type MemoryFileSystem struct {
	mu    sync.Mutex
	files map[string]memEntry
}

type memEntry struct {
	data    []byte
	mode    os.FileMode
	written time.Time
}

// NewMemoryFileSystem returns an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{files: make(map[string]memEntry)}
}

func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.files[filepath.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), e.data...), nil
}

func (m *MemoryFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[filepath.Clean(name)] = memEntry{
		data:    append([]byte(nil), data...),
		mode:    perm,
		written: time.Now(),
	}
	return nil
}

func (m *MemoryFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clean := filepath.Clean(name)
	e, ok := m.files[clean]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return memInfo{name: filepath.Base(clean), entry: e}, nil
}

func (m *MemoryFileSystem) Exists(name string) bool {
	_, err := m.Stat(name)
	return err == nil
}

// memInfo adapts a map entry to fs.FileInfo.
type memInfo struct {
	name  string
	entry memEntry
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return int64(len(i.entry.data)) }
func (i memInfo) Mode() os.FileMode  { return i.entry.mode }
func (i memInfo) ModTime() time.Time { return i.entry.written }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }
