package state

import (
	"fmt"
	"sync"
	"testing"
)

func TestPathRegistry_Resolve(t *testing.T) {
	r := NewPathRegistry()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"first claim unchanged", "out/attachments/Inbox/report.pdf", "out/attachments/Inbox/report.pdf"},
		{"first collision", "out/attachments/Inbox/report.pdf", "out/attachments/Inbox/report_1.pdf"},
		{"second collision", "out/attachments/Inbox/report.pdf", "out/attachments/Inbox/report_2.pdf"},
		{"different folder is distinct", "out/attachments/Sent/report.pdf", "out/attachments/Sent/report.pdf"},
		{"no extension appends", "out/attachments/Inbox/README", "out/attachments/Inbox/README"},
		{"no extension collision", "out/attachments/Inbox/README", "out/attachments/Inbox/README_1"},
		{"dotted directory untouched", "out.v2/attachments/Inbox/data.bin", "out.v2/attachments/Inbox/data.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.in); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if r.Len() != 7 {
		t.Errorf("Len() = %d, want 7", r.Len())
	}
}

func TestPathRegistry_SuffixedNameAlreadyTaken(t *testing.T) {
	r := NewPathRegistry()

	if got := r.Resolve("a/b_1.txt"); got != "a/b_1.txt" {
		t.Fatalf("Resolve = %q", got)
	}
	if got := r.Resolve("a/b.txt"); got != "a/b.txt" {
		t.Fatalf("Resolve = %q", got)
	}
	// b_1.txt is taken, so the collision skips ahead to b_2.txt.
	if got := r.Resolve("a/b.txt"); got != "a/b_2.txt" {
		t.Errorf("Resolve = %q, want a/b_2.txt", got)
	}
}

func TestPathRegistry_TrailingDot(t *testing.T) {
	r := NewPathRegistry()

	r.Resolve("a/name.")
	if got := r.Resolve("a/name."); got != "a/name._1" {
		t.Errorf("Resolve = %q, want a/name._1", got)
	}
}

func TestPathRegistry_Concurrent(t *testing.T) {
	r := NewPathRegistry()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	results := make(chan string, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				results <- r.Resolve("shared/file.bin")
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]struct{})
	for p := range results {
		if _, dup := seen[p]; dup {
			t.Fatalf("path %q handed out twice", p)
		}
		seen[p] = struct{}{}
	}
	if len(seen) != workers*perWorker {
		t.Errorf("got %d distinct paths, want %d", len(seen), workers*perWorker)
	}
}

func TestWithSuffix(t *testing.T) {
	tests := []struct {
		path string
		n    int
		want string
	}{
		{"dir/file.txt", 1, "dir/file_1.txt"},
		{"dir/file.txt", 12, "dir/file_12.txt"},
		{"dir/archive.tar.gz", 1, "dir/archive.tar_1.gz"},
		{"dir/noext", 3, "dir/noext_3"},
		{"dir/trailing.", 1, "dir/trailing._1"},
		{"dir.v2/file", 1, "dir.v2/file_1"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.path, tt.n), func(t *testing.T) {
			if got := withSuffix(tt.path, tt.n); got != tt.want {
				t.Errorf("withSuffix(%q, %d) = %q, want %q", tt.path, tt.n, got, tt.want)
			}
		})
	}
}
