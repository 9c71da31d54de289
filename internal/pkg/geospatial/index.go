package geospatial

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50
	// rtreego rejects zero-length sides; degenerate boxes are padded by this.
	tolerance = 1e-9
)

type indexEntry struct {
	key  string
	rect *rtreego.Rect
}

func (e *indexEntry) Bounds() *rtreego.Rect {
	return e.rect
}

// Index is a thread-safe R-Tree of keyed bounding boxes in lat/lon space.
type Index struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
	size int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
}

// Insert adds a box under key.
func (ix *Index) Insert(key string, minLat, minLon, maxLat, maxLon float64) error {
	rect, err := newRect(minLat, minLon, maxLat, maxLon)
	if err != nil {
		return fmt.Errorf("index %s: %w", key, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tree.Insert(&indexEntry{key: key, rect: rect})
	ix.size++
	return nil
}

// Search returns the keys of every box intersecting the query box, sorted.
func (ix *Index) Search(minLat, minLon, maxLat, maxLon float64) ([]string, error) {
	rect, err := newRect(minLat, minLon, maxLat, maxLon)
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}

	ix.mu.RLock()
	results := ix.tree.SearchIntersect(rect)
	ix.mu.RUnlock()

	keys := make([]string, 0, len(results))
	for _, r := range results {
		if e, ok := r.(*indexEntry); ok {
			keys = append(keys, e.key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of indexed boxes.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

func newRect(minLat, minLon, maxLat, maxLon float64) (*rtreego.Rect, error) {
	if maxLat < minLat || maxLon < minLon {
		return nil, fmt.Errorf("min corner (%f, %f) exceeds max corner (%f, %f)", minLat, minLon, maxLat, maxLon)
	}
	return rtreego.NewRect(
		rtreego.Point{minLat, minLon},
		[]float64{max(maxLat-minLat, tolerance), max(maxLon-minLon, tolerance)},
	)
}
