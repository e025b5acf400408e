// Package state tracks output paths claimed during a run so that no path is
// ever written twice.
package state

import (
	"strconv"
	"strings"
	"sync"
)

// PathRegistry resolves output path collisions. Within one run every path it
// hands out is unique; a colliding path gets a numeric suffix inserted before
// its file extension.
type PathRegistry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewPathRegistry() *PathRegistry {
	return &PathRegistry{seen: make(map[string]struct{})}
}

// Resolve claims the given path, disambiguating with _1, _2, ... suffixes
// until it is unique.
func (r *PathRegistry) Resolve(path string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := path
	for n := 1; ; n++ {
		if _, taken := r.seen[candidate]; !taken {
			r.seen[candidate] = struct{}{}
			return candidate
		}
		candidate = withSuffix(path, n)
	}
}

// Len returns how many distinct paths have been claimed.
func (r *PathRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// withSuffix inserts _n before the final extension of the path's last
// segment, or appends it when the segment has no extension.
func withSuffix(path string, n int) string {
	suffix := "_" + strconv.Itoa(n)

	slash := strings.LastIndex(path, "/")
	dir, name := path[:slash+1], path[slash+1:]

	dot := strings.LastIndex(name, ".")
	if dot < 0 || dot == len(name)-1 {
		return dir + name + suffix
	}
	return dir + name[:dot] + suffix + name[dot:]
}
