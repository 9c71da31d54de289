// Package geojsonadapter reads the reference boundary dataset from GeoJSON
// and converts between GeoJSON polygons and domain paths.
package geojsonadapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	geojson "github.com/paulmach/go.geojson"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
)

// FileRepo implements ports.BoundaryRepository over a FeatureCollection file.
type FileRepo struct {
	path    string
	decoder Decoder
}

// NewFileRepo creates a repository reading path on every List.
func NewFileRepo(path string, decoder Decoder) *FileRepo {
	return &FileRepo{path: path, decoder: decoder}
}

// List reads and decodes the file.
func (r *FileRepo) List(ctx context.Context) ([]domain.BoundaryFeature, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return r.decoder.Decode(data)
}

// Decoder turns a FeatureCollection into boundary features.
type Decoder struct {
	// IDProperty names the property holding the stable feature key. When
	// empty or absent the feature's own id is used.
	IDProperty   string
	NameProperty string
	Logger       *slog.Logger
}

// Decode parses data. Features without a usable polygon are skipped and
// logged; only a malformed collection is an error.
func (d Decoder) Decode(data []byte) ([]domain.BoundaryFeature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]domain.BoundaryFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		path, err := PathFromGeometry(f.Geometry)
		if err != nil {
			metrics.BoundariesSkipped.WithLabelValues("parse").Inc()
			logger.Warn("skipping feature", "index", i, "error", err)
			continue
		}
		out = append(out, domain.BoundaryFeature{
			ID:         d.featureID(f),
			Name:       stringProperty(f.Properties, d.NameProperty),
			Path:       path,
			Properties: f.Properties,
		})
	}
	return out, nil
}

func (d Decoder) featureID(f *geojson.Feature) string {
	if id := stringProperty(f.Properties, d.IDProperty); id != "" {
		return id
	}
	return formatID(f.ID)
}

func stringProperty(props map[string]interface{}, key string) string {
	if key == "" || props == nil {
		return ""
	}
	return formatID(props[key])
}

// formatID renders string and numeric identifiers; anything else is empty.
func formatID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}
