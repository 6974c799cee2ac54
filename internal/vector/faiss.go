//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unsafe"
)

const faissCompiled = true

// FAISSIndex wraps a FAISS IndexFlatL2. FAISS labels are insertion positions;
// positions maps them to row ids. Removed rows stay in the FAISS index and are
// filtered out of search results.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	positions  []RowID
	removed    map[RowID]bool
	nextID     RowID
	mu         sync.RWMutex
}

// NewFAISSIndex creates an exact L2 FAISS index with the given dimension.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	var flat *C.FaissIndexFlatL2
	if ret := C.faiss_IndexFlatL2_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{
		index:      (*C.FaissIndex)(unsafe.Pointer(flat)),
		dimensions: dimensions,
		removed:    make(map[RowID]bool),
	}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}

// Dimensions returns the vector length accepted by the index.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Add appends vectors and returns their newly allocated row ids.
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) ([]RowID, error) {
	if err := checkBatch(vectors, f.dimensions); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []RowID{}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(vectors)
	flat := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		copy(flat[i*f.dimensions:(i+1)*f.dimensions], vec)
	}
	ret := C.faiss_Index_add(f.index, C.idx_t(n), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		return nil, fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	ids := make([]RowID, n)
	for i := range ids {
		ids[i] = f.nextID
		f.positions = append(f.positions, f.nextID)
		f.nextID++
	}
	return ids, nil
}

// Search returns the k rows closest to query by squared L2 distance.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, &ShapeError{Got: len(query), Want: f.dimensions}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	// Over-fetch so removed rows do not starve the result, and keep growing
	// while the last fetched distance still ties the k-th live hit: FAISS does
	// not order ties by label, so a lower row could sit past the cut.
	fetch := k + len(f.removed) + 1
	for {
		if fetch > ntotal {
			fetch = ntotal
		}
		hits, last, err := f.searchLocked(query, fetch)
		if err != nil {
			return nil, err
		}
		sort.Slice(hits, func(i, j int) bool { return lessHit(hits[i], hits[j]) })
		complete := fetch == ntotal || (len(hits) >= k && last > hits[k-1].Distance)
		if complete {
			if len(hits) > k {
				hits = hits[:k]
			}
			return hits, nil
		}
		fetch *= 2
	}
}

// searchLocked returns the live hits among the fetch nearest FAISS entries and
// the distance of the farthest entry fetched. Caller holds the lock.
func (f *FAISSIndex) searchLocked(query []float32, fetch int) ([]Hit, float64, error) {
	distances := make([]float32, fetch)
	labels := make([]int64, fetch)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(fetch),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, 0, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}
	hits := make([]Hit, 0, fetch)
	var last float64
	for i, label := range labels {
		if label < 0 || int(label) >= len(f.positions) {
			continue
		}
		last = float64(distances[i])
		row := f.positions[label]
		if f.removed[row] {
			continue
		}
		hits = append(hits, Hit{Row: row, Distance: float64(distances[i])})
	}
	return hits, last, nil
}

// Remove tombstones rows. IndexFlat has no cheap removal.
func (f *FAISSIndex) Remove(ctx context.Context, rows []RowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range rows {
		i := sort.Search(len(f.positions), func(i int) bool { return f.positions[i] >= id })
		if i < len(f.positions) && f.positions[i] == id {
			f.removed[id] = true
		}
	}
	return nil
}

// Reserve advances the allocator so no id below next is handed out.
func (f *FAISSIndex) Reserve(next RowID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if next > f.nextID {
		f.nextID = next
	}
}

// Rows returns the live row ids in ascending order.
func (f *FAISSIndex) Rows() []RowID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]RowID, 0, len(f.positions))
	for _, id := range f.positions {
		if !f.removed[id] {
			out = append(out, id)
		}
	}
	return out
}

type faissRowMapping struct {
	Positions []RowID
	Removed   map[RowID]bool
	NextID    RowID
}

// Save writes path.faiss and the row mapping to path.idmap.
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	cPath := C.CString(path + ".faiss")
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}
	mapFile, err := os.Create(path + ".idmap")
	if err != nil {
		return fmt.Errorf("create id map file: %w", err)
	}
	defer mapFile.Close()
	mapping := faissRowMapping{Positions: f.positions, Removed: f.removed, NextID: f.nextID}
	if err := gob.NewEncoder(mapFile).Encode(mapping); err != nil {
		return fmt.Errorf("encode id map: %w", err)
	}
	return nil
}

// Load reads path.faiss and path.idmap. Missing files leave the index unchanged.
func (f *FAISSIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	faissPath := path + ".faiss"
	if _, err := os.Stat(faissPath); os.IsNotExist(err) {
		return nil
	}
	mapFile, err := os.Open(path + ".idmap")
	if err != nil {
		return fmt.Errorf("open id map file: %w", err)
	}
	defer mapFile.Close()
	var mapping faissRowMapping
	if err := gob.NewDecoder(mapFile).Decode(&mapping); err != nil {
		return fmt.Errorf("decode id map: %w", err)
	}

	cPath := C.CString(faissPath)
	defer C.free(unsafe.Pointer(cPath))
	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", d, f.dimensions)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	f.positions = mapping.Positions
	f.removed = mapping.Removed
	if f.removed == nil {
		f.removed = make(map[RowID]bool)
	}
	f.nextID = mapping.NextID
	return nil
}

// Size returns the number of live vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.positions) - len(f.removed)
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
