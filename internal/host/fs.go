package host

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileSystem is the boundary to kernel control files
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

// OSFileSystem resolves every path under Root, so a test can point it at a temp dir
type OSFileSystem struct {
	Root string
}

// NewOSFileSystem creates a file system rooted at root ("/" on a real host)
func NewOSFileSystem(root string) *OSFileSystem {
	if root == "" {
		root = "/"
	}
	return &OSFileSystem{Root: root}
}

// Resolve maps a control path onto the host root
func (f *OSFileSystem) Resolve(path string) string {
	return filepath.Join(f.Root, path)
}

// ReadFile reads the whole file
func (f *OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(f.Resolve(path))
}

// WriteFile writes data to an existing control file. It never creates files:
// a missing path means the kernel does not expose that knob.
func (f *OSFileSystem) WriteFile(path string, data []byte) error {
	file, err := os.OpenFile(f.Resolve(path), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteRecord is one write seen by MemFileSystem
type WriteRecord struct {
	Path  string
	Value string
}

// MemFileSystem is an in-memory FileSystem that records writes in order
type MemFileSystem struct {
	mu     sync.Mutex
	files  map[string][]byte
	writes []WriteRecord
	fail   map[string]error
}

// NewMemFileSystem creates an in-memory file system seeded with files
func NewMemFileSystem(files map[string]string) *MemFileSystem {
	m := &MemFileSystem{files: make(map[string][]byte), fail: make(map[string]error)}
	for p, v := range files {
		m.files[p] = []byte(v)
	}
	return m
}

// FailWrites makes every write to path return err
func (m *MemFileSystem) FailWrites(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[path] = err
}

// Set replaces the content of path without recording a write
func (m *MemFileSystem) Set(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
}

// ReadFile returns the stored content
func (m *MemFileSystem) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteFile stores data and records the write
func (m *MemFileSystem) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[path]; err != nil {
		return err
	}
	m.files[path] = append([]byte(nil), data...)
	m.writes = append(m.writes, WriteRecord{Path: path, Value: string(data)})
	return nil
}

// Writes returns every recorded write in call order
func (m *MemFileSystem) Writes() []WriteRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WriteRecord(nil), m.writes...)
}

// Paths returns the known paths, sorted
func (m *MemFileSystem) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
