// Package sink provides the output side of the pipeline: a Sink accepts
// relative slash-separated paths plus text or raw bytes. The packager
// guarantees that no path is written twice within a run.
package sink

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type Sink interface {
	WriteText(path string, text string) error
	WriteBytes(path string, data []byte) error
	Close() error
}

// DirSink writes output files under a root directory, creating parent
// directories as needed.
type DirSink struct {
	root string
}

func NewDirSink(root string) *DirSink {
	return &DirSink{root: root}
}

func (d *DirSink) WriteText(path string, text string) error {
	return d.WriteBytes(path, []byte(text))
}

func (d *DirSink) WriteBytes(path string, data []byte) error {
	full := filepath.Join(d.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (d *DirSink) Close() error {
	return nil
}

// ZipSink packs all output files into a single zip archive.
type ZipSink struct {
	zw     *zip.Writer
	closer io.Closer
}

// NewZipSink writes a zip archive to w. When w is also an io.Closer it is
// closed together with the archive.
func NewZipSink(w io.Writer) *ZipSink {
	s := &ZipSink{zw: zip.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (z *ZipSink) WriteText(path string, text string) error {
	return z.WriteBytes(path, []byte(text))
}

func (z *ZipSink) WriteBytes(path string, data []byte) error {
	fw, err := z.zw.Create(path)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", path, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write zip entry %s: %w", path, err)
	}
	return nil
}

func (z *ZipSink) Close() error {
	if err := z.zw.Close(); err != nil {
		return fmt.Errorf("close zip archive: %w", err)
	}
	if z.closer != nil {
		return z.closer.Close()
	}
	return nil
}

// MemorySink collects written files in memory. Used by tests and dry runs.
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

func (m *MemorySink) WriteText(path string, text string) error {
	return m.WriteBytes(path, []byte(text))
}

func (m *MemorySink) WriteBytes(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[path] = buf
	return nil
}

func (m *MemorySink) Close() error {
	return nil
}

// File returns the contents written to path, or nil when absent.
func (m *MemorySink) File(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path]
}

// Paths returns all written paths, sorted.
func (m *MemorySink) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
