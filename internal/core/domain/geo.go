package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Vertex is a single WGS 84 coordinate of a polygon.
type Vertex struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the vertex lies inside the WGS 84 coordinate range.
func (v Vertex) Valid() bool {
	if math.IsNaN(v.Lat) || math.IsNaN(v.Lng) {
		return false
	}
	return v.Lat >= -90 && v.Lat <= 90 && v.Lng >= -180 && v.Lng <= 180
}

// Path is an ordered, immutable sequence of vertices. Order defines winding
// and edge adjacency. The backing slice is never shared with callers.
type Path struct {
	vertices []Vertex
}

// NewPath copies vs into a new Path.
func NewPath(vs []Vertex) Path {
	if len(vs) == 0 {
		return Path{}
	}
	cp := make([]Vertex, len(vs))
	copy(cp, vs)
	return Path{vertices: cp}
}

// Len returns the number of vertices.
func (p Path) Len() int { return len(p.vertices) }

// At returns the i-th vertex. It panics if i is out of range, like a slice.
func (p Path) At(i int) Vertex { return p.vertices[i] }

// Vertices returns a copy of the vertex sequence.
func (p Path) Vertices() []Vertex {
	cp := make([]Vertex, len(p.vertices))
	copy(cp, p.vertices)
	return cp
}

// Equal reports whether both paths hold the same vertices in the same order.
func (p Path) Equal(o Path) bool {
	if len(p.vertices) != len(o.vertices) {
		return false
	}
	for i := range p.vertices {
		if p.vertices[i] != o.vertices[i] {
			return false
		}
	}
	return true
}

// Bounds returns the bounding box of the path. ok is false for an empty path.
func (p Path) Bounds() (b Bounds, ok bool) {
	if len(p.vertices) == 0 {
		return Bounds{}, false
	}
	b = Bounds{
		MinLat: p.vertices[0].Lat, MaxLat: p.vertices[0].Lat,
		MinLng: p.vertices[0].Lng, MaxLng: p.vertices[0].Lng,
	}
	for _, v := range p.vertices[1:] {
		b.MinLat = math.Min(b.MinLat, v.Lat)
		b.MaxLat = math.Max(b.MaxLat, v.Lat)
		b.MinLng = math.Min(b.MinLng, v.Lng)
		b.MaxLng = math.Max(b.MaxLng, v.Lng)
	}
	return b, true
}

func (p Path) String() string {
	return fmt.Sprintf("Path(%d vertices)", len(p.vertices))
}

// MarshalJSON encodes the path as a plain array of vertices.
func (p Path) MarshalJSON() ([]byte, error) {
	if p.vertices == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.vertices)
}

// UnmarshalJSON decodes a plain array of vertices.
func (p *Path) UnmarshalJSON(data []byte) error {
	var vs []Vertex
	if err := json.Unmarshal(data, &vs); err != nil {
		return err
	}
	*p = NewPath(vs)
	return nil
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Valid reports whether the box is well formed.
func (b Bounds) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLng <= b.MaxLng &&
		Vertex{Lat: b.MinLat, Lng: b.MinLng}.Valid() &&
		Vertex{Lat: b.MaxLat, Lng: b.MaxLng}.Valid()
}

// Intersects reports whether two boxes overlap, edges included.
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat &&
		b.MinLng <= o.MaxLng && o.MinLng <= b.MaxLng
}
