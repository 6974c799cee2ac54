package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	exts    []string
	indexed []string
	removed []string
}

func (r *recorder) Accepts(path string) bool {
	if len(r.exts) == 0 {
		return true
	}
	for _, e := range r.exts {
		if strings.EqualFold(filepath.Ext(path), e) {
			return true
		}
	}
	return false
}

func (r *recorder) IndexFile(ctx context.Context, path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, filepath.Base(path))
	return true, nil
}

func (r *recorder) RemoveFile(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, filepath.Base(path))
	return nil
}

func (r *recorder) snapshot() (indexed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	indexed = append([]string(nil), r.indexed...)
	removed = append([]string(nil), r.removed...)
	sort.Strings(indexed)
	return indexed, removed
}

// eventually polls cond until it holds or two seconds pass.
func eventually(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, rec *recorder, dir string, recursive bool) *Watcher {
	t.Helper()
	w := NewWatcher(rec, []string{dir}, recursive, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_IngestsNewFilesOnce(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{exts: []string{".txt"}}
	startWatcher(t, rec, dir, true)

	path := filepath.Join(dir, "f.txt")
	// Several quick writes collapse into one ingest.
	for i := 0; i < 3; i++ {
		writeFile(t, path, strings.Repeat("x", i+1))
	}
	writeFile(t, filepath.Join(dir, "skip.xyz"), "skip")
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "skip")

	if !eventually(t, func() bool { got, _ := rec.snapshot(); return len(got) >= 1 }) {
		t.Fatal("file was not ingested")
	}
	time.Sleep(150 * time.Millisecond)
	got, _ := rec.snapshot()
	if len(got) != 1 || got[0] != "f.txt" {
		t.Errorf("indexed = %v, want [f.txt]", got)
	}
}

func TestWatcher_RemoveDeletesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	writeFile(t, path, "temporary")
	rec := &recorder{exts: []string{".txt"}}
	startWatcher(t, rec, dir, true)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if !eventually(t, func() bool { _, rm := rec.snapshot(); return contains(rm, "gone.txt") }) {
		t.Error("removal was not reported")
	}
}

func TestWatcher_NewDirectoryIsWatchedAndSynced(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{exts: []string{".txt", ".md"}}
	startWatcher(t, rec, dir, true)

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(nested, "deep.txt"), "deep content")
	writeFile(t, filepath.Join(dir, "level1", "doc.md"), "world")
	writeFile(t, filepath.Join(nested, "ignore.xyz"), "skip")

	ok := eventually(t, func() bool {
		got, _ := rec.snapshot()
		return contains(got, "deep.txt") && contains(got, "doc.md")
	})
	got, _ := rec.snapshot()
	if !ok {
		t.Errorf("indexed = %v, want deep.txt and doc.md", got)
	}
	if contains(got, "ignore.xyz") {
		t.Error("ignore.xyz should not be indexed")
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(sub, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "c.pdf"), "c")

	rec := &recorder{exts: []string{".txt"}}
	NewWatcher(rec, []string{dir}, true).Sync(context.Background())
	if got, _ := rec.snapshot(); strings.Join(got, ",") != "a.txt,b.txt" {
		t.Errorf("recursive sync = %v", got)
	}

	rec = &recorder{exts: []string{".txt"}}
	NewWatcher(rec, []string{dir}, false).Sync(context.Background())
	if got, _ := rec.snapshot(); strings.Join(got, ",") != "a.txt" {
		t.Errorf("flat sync = %v", got)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox", "new")
	w := startWatcher(t, &recorder{}, root, true)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
	if dirs := w.Directories(); len(dirs) != 1 || dirs[0] != root {
		t.Errorf("Directories() = %v", dirs)
	}
	w.Stop()
	w.Stop()
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/ab", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
