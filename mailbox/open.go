package mailbox

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// OpenFunc opens a container from a file path.
type OpenFunc func(path string) (Container, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[string]OpenFunc)
)

// Register associates a file extension (including the leading dot) with a
// container opener. Adapters register themselves from init.
func Register(ext string, fn OpenFunc) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[strings.ToLower(ext)] = fn
}

// Open opens the container at path using the adapter registered for its file
// extension.
func Open(path string) (Container, error) {
	ext := strings.ToLower(filepath.Ext(path))

	openersMu.RLock()
	fn, ok := openers[ext]
	openersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported container format %q (supported: %s)", ext, strings.Join(Extensions(), ", "))
	}
	return fn(path)
}

// Extensions returns the registered container extensions, sorted.
func Extensions() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	exts := make([]string, 0, len(openers))
	for ext := range openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
