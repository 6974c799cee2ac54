package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSized(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, n), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db", "documents.db")
	vectors := filepath.Join(dir, "indices", "vectors")
	bleve := filepath.Join(dir, "indices", "bleve")

	writeSized(t, db, 100)
	writeSized(t, db+"-wal", 10)
	writeSized(t, vectors+".faiss", 40)
	writeSized(t, vectors+".idmap", 2)
	writeSized(t, filepath.Join(bleve, "store", "root.bolt"), 7)
	writeSized(t, filepath.Join(bleve, "index_meta.json"), 3)
	writeSized(t, filepath.Join(dir, "indices", "vectors_old"), 1000)

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"database with journal", []string{db}, 110},
		{"faiss side files only", []string{vectors}, 42},
		{"directory", []string{bleve}, 10},
		{"all", []string{db, vectors, bleve}, 162},
		{"missing and empty", []string{"", filepath.Join(dir, "nope")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes(%v) = %d, want %d", tt.paths, got, tt.want)
			}
		})
	}
}
