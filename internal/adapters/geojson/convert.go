package geojsonadapter

import (
	"errors"
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/samirrijal/polysync/internal/core/domain"
)

var (
	ErrUnsupportedGeometry = errors.New("unsupported geometry")
	ErrEmptyRing           = errors.New("empty exterior ring")
)

// PathFromGeometry returns the exterior ring of a Polygon, or of the first
// polygon of a MultiPolygon. GeoJSON positions are [lng, lat]; the closing
// position is dropped.
func PathFromGeometry(g *geojson.Geometry) (domain.Path, error) {
	if g == nil {
		return domain.Path{}, fmt.Errorf("%w: missing geometry", ErrUnsupportedGeometry)
	}

	var ring [][]float64
	switch g.Type {
	case geojson.GeometryPolygon:
		if len(g.Polygon) > 0 {
			ring = g.Polygon[0]
		}
	case geojson.GeometryMultiPolygon:
		if len(g.MultiPolygon) > 0 && len(g.MultiPolygon[0]) > 0 {
			ring = g.MultiPolygon[0][0]
		}
	default:
		return domain.Path{}, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.Type)
	}
	return pathFromRing(ring)
}

func pathFromRing(ring [][]float64) (domain.Path, error) {
	if len(ring) == 0 {
		return domain.Path{}, ErrEmptyRing
	}
	if len(ring) > 1 && samePosition(ring[0], ring[len(ring)-1]) {
		ring = ring[:len(ring)-1]
	}

	vs := make([]domain.Vertex, 0, len(ring))
	for i, pos := range ring {
		if len(pos) < 2 {
			return domain.Path{}, fmt.Errorf("position %d: need [lng, lat]", i)
		}
		v := domain.Vertex{Lat: pos[1], Lng: pos[0]}
		if !v.Valid() {
			return domain.Path{}, fmt.Errorf("position %d: out of range (%f, %f)", i, v.Lat, v.Lng)
		}
		vs = append(vs, v)
	}
	return domain.NewPath(vs), nil
}

func samePosition(a, b []float64) bool {
	return len(a) >= 2 && len(b) >= 2 && a[0] == b[0] && a[1] == b[1]
}

// PathGeometry encodes p as a closed GeoJSON Polygon.
func PathGeometry(p domain.Path) *geojson.Geometry {
	ring := make([][]float64, 0, p.Len()+1)
	for i := 0; i < p.Len(); i++ {
		v := p.At(i)
		ring = append(ring, []float64{v.Lng, v.Lat})
	}
	if p.Len() > 0 {
		first := p.At(0)
		ring = append(ring, []float64{first.Lng, first.Lat})
	}
	return geojson.NewPolygonGeometry([][][]float64{ring})
}

// SnapshotFeature wraps a session's current path as a GeoJSON Feature.
func SnapshotFeature(sessionID string, snap domain.PathSnapshot) *geojson.Feature {
	f := geojson.NewFeature(PathGeometry(snap.Path))
	f.ID = sessionID
	f.SetProperty("session_id", sessionID)
	f.SetProperty("version", snap.Version)
	f.SetProperty("updated_at", snap.UpdatedAt)
	return f
}

// BoundaryCollection encodes reference features as a FeatureCollection.
func BoundaryCollection(features []domain.BoundaryFeature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, b := range features {
		f := geojson.NewFeature(PathGeometry(b.Path))
		f.ID = b.ID
		for k, v := range b.Properties {
			f.SetProperty(k, v)
		}
		if b.Name != "" {
			f.SetProperty("name", b.Name)
		}
		fc.AddFeature(f)
	}
	return fc
}
