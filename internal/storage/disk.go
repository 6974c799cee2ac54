package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// sideSuffixes are files written next to a storage path: SQLite journals and
// the FAISS index with its row mapping.
var sideSuffixes = []string{"-wal", "-shm", "-journal", ".faiss", ".idmap"}

// DiskUsageBytes returns the bytes used on disk by the given storage paths.
// A path may be a file or a directory; side files sharing the path as prefix
// are counted too. Missing paths contribute 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		for _, candidate := range append([]string{p}, withSuffixes(p)...) {
			n, err := pathSize(candidate)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

func withSuffixes(p string) []string {
	out := make([]string, len(sideSuffixes))
	for i, s := range sideSuffixes {
		out[i] = p + s
	}
	return out
}

func pathSize(p string) (int64, error) {
	var total int64
	err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return total, err
}
