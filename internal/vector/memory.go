package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const memoryIndexMagic = uint32(0x6b6f7631) // "kov1"

// MemoryIndex is an exact vector index using a linear scan over all rows.
// Rows are kept in ascending id order.
type MemoryIndex struct {
	dimensions int
	rows       []RowID
	vectors    [][]float32
	nextID     RowID
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		rows:       make([]RowID, 0),
		vectors:    make([][]float32, 0),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Dimensions returns the vector length accepted by the index.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Add appends vectors and returns their newly allocated row ids.
func (m *MemoryIndex) Add(ctx context.Context, vectors [][]float32) ([]RowID, error) {
	if err := checkBatch(vectors, m.dimensions); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]RowID, len(vectors))
	for i, v := range vectors {
		vec := make([]float32, m.dimensions)
		copy(vec, v)
		ids[i] = m.nextID
		m.rows = append(m.rows, m.nextID)
		m.vectors = append(m.vectors, vec)
		m.nextID++
	}
	return ids, nil
}

// Search returns the k rows closest to query by squared L2 distance.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != m.dimensions {
		return nil, &ShapeError{Got: len(query), Want: m.dimensions}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.rows) == 0 {
		return nil, nil
	}
	hits := make([]Hit, len(m.rows))
	for i, vec := range m.vectors {
		hits[i] = Hit{Row: m.rows[i], Distance: SquaredL2(query, vec)}
	}
	sort.Slice(hits, func(i, j int) bool { return lessHit(hits[i], hits[j]) })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Remove drops the given rows. Their ids stay retired.
func (m *MemoryIndex) Remove(ctx context.Context, rows []RowID) error {
	removeSet := make(map[RowID]bool, len(rows))
	for _, id := range rows {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	newRows := make([]RowID, 0, len(m.rows))
	newVectors := make([][]float32, 0, len(m.vectors))
	for i, id := range m.rows {
		if !removeSet[id] {
			newRows = append(newRows, id)
			newVectors = append(newVectors, m.vectors[i])
		}
	}
	m.rows = newRows
	m.vectors = newVectors
	return nil
}

// Reserve advances the allocator so no id below next is handed out.
func (m *MemoryIndex) Reserve(next RowID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if next > m.nextID {
		m.nextID = next
	}
}

// Rows returns the live row ids in ascending order.
func (m *MemoryIndex) Rows() []RowID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RowID, len(m.rows))
	copy(out, m.rows)
	return out
}

// Save persists the index to path. Directory is created if needed. Format: magic (4),
// dimension (4), next id (8), n (4), then per row: id (8), vector (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	header := []any{memoryIndexMagic, uint32(m.dimensions), int64(m.nextID), uint32(len(m.rows))}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i, id := range m.rows {
		if err := binary.Write(f, binary.LittleEndian, int64(id)); err != nil {
			return fmt.Errorf("write row id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var (
		magic, dim, n uint32
		next          int64
	)
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if magic != memoryIndexMagic {
		return fmt.Errorf("not a vector index file: %s", path)
	}
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &next); err != nil {
		return fmt.Errorf("read next id: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	rows := make([]RowID, 0, n)
	vectors := make([][]float32, 0, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var id int64
		if err := binary.Read(f, binary.LittleEndian, &id); err != nil {
			return fmt.Errorf("read row id: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		rows = append(rows, RowID(id))
		vectors = append(vectors, bytesToFloat32Slice(buf))
		if RowID(id) >= RowID(next) {
			next = id + 1
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
	m.vectors = vectors
	m.nextID = RowID(next)
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
