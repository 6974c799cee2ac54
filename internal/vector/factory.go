package vector

import (
	"errors"
	"fmt"
	"strings"
)

// IndexType names a VectorIndex backend.
type IndexType string

const (
	// IndexTypeMemory is the exact in-memory scan.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS is a FAISS IndexFlatL2. Requires the FAISS C library and -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// ErrUnknownIndexType is returned for an index type no backend implements.
var ErrUnknownIndexType = errors.New("unknown vector index type")

// ParseIndexType normalizes a configured index type. Empty selects memory.
func ParseIndexType(s string) (IndexType, error) {
	switch t := IndexType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return IndexTypeMemory, nil
	case IndexTypeMemory, IndexTypeFAISS:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: memory, faiss)", ErrUnknownIndexType, s)
	}
}

// NewVectorIndex creates an index of the given type and dimension.
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	t, err := ParseIndexType(indexType)
	if err != nil {
		return nil, err
	}
	if t == IndexTypeFAISS {
		return NewFAISSIndex(dimensions)
	}
	return NewMemoryIndex(dimensions)
}

// IsFAISSAvailable reports whether the FAISS backend is compiled in.
func IsFAISSAvailable() bool {
	return faissCompiled
}
