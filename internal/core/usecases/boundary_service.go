package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
	"github.com/samirrijal/polysync/internal/pkg/geospatial"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
	"github.com/samirrijal/polysync/internal/pkg/telemetry"
)

// ErrBoundaryNotFound is returned for unknown feature identifiers.
var ErrBoundaryNotFound = errors.New("boundary not found")

// ErrInvalidBounds is returned for malformed bounding boxes.
var ErrInvalidBounds = errors.New("invalid bounding box")

var tracer = otel.Tracer("github.com/samirrijal/polysync/internal/core/usecases")

// boundarySet is one immutable load of the reference dataset.
type boundarySet struct {
	features []domain.BoundaryFeature
	byID     map[string]int
	index    *geospatial.Index
	gen      uint64
}

// BoundaryService serves the read-only reference polygons.
type BoundaryService struct {
	repo   ports.BoundaryRepository
	cache  ports.CacheService
	logger *slog.Logger

	current atomic.Pointer[boundarySet]
	loads   atomic.Uint64
}

// NewBoundaryService creates an empty service. Call Load before serving.
func NewBoundaryService(repo ports.BoundaryRepository, cache ports.CacheService, logger *slog.Logger) *BoundaryService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &BoundaryService{repo: repo, cache: cache, logger: logger}
	s.current.Store(&boundarySet{byID: map[string]int{}, index: geospatial.NewIndex()})
	return s
}

// Load reads the dataset from the repository and swaps it in. Features that
// cannot be drawn are skipped. It returns the number of features kept.
func (s *BoundaryService) Load(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "BoundaryService.Load")
	defer span.End()

	features, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list boundaries: %w", err)
	}

	set := &boundarySet{
		features: make([]domain.BoundaryFeature, 0, len(features)),
		byID:     make(map[string]int, len(features)),
		index:    geospatial.NewIndex(),
		gen:      s.loads.Add(1),
	}
	for _, f := range features {
		if !f.Renderable() {
			metrics.BoundariesSkipped.WithLabelValues("load").Inc()
			s.logger.Warn("skipping boundary", "id", f.ID, "vertices", f.Path.Len())
			continue
		}
		if _, dup := set.byID[f.ID]; dup {
			metrics.BoundariesSkipped.WithLabelValues("duplicate").Inc()
			s.logger.Warn("skipping duplicate boundary", "id", f.ID)
			continue
		}
		b, _ := f.Path.Bounds()
		if err := set.index.Insert(f.ID, b.MinLat, b.MinLng, b.MaxLat, b.MaxLng); err != nil {
			metrics.BoundariesSkipped.WithLabelValues("index").Inc()
			s.logger.Warn("skipping boundary", "id", f.ID, "error", err)
			continue
		}
		set.byID[f.ID] = len(set.features)
		set.features = append(set.features, f)
	}

	s.current.Store(set)
	metrics.BoundariesLoaded.Set(float64(len(set.features)))
	span.SetAttributes(attribute.Int(telemetry.AttrBoundaries, len(set.features)))
	s.logger.Info("boundaries loaded", "count", len(set.features), "skipped", len(features)-len(set.features))
	return len(set.features), nil
}

// All returns every loaded feature in dataset order.
func (s *BoundaryService) All() []domain.BoundaryFeature {
	set := s.current.Load()
	out := make([]domain.BoundaryFeature, len(set.features))
	copy(out, set.features)
	return out
}

// GetByID returns a single feature.
func (s *BoundaryService) GetByID(id string) (domain.BoundaryFeature, error) {
	set := s.current.Load()
	i, ok := set.byID[id]
	if !ok {
		return domain.BoundaryFeature{}, ErrBoundaryNotFound
	}
	return set.features[i], nil
}

// Within returns the features whose bounding box intersects b.
func (s *BoundaryService) Within(ctx context.Context, b domain.Bounds) ([]domain.BoundaryFeature, error) {
	if !b.Valid() {
		return nil, ErrInvalidBounds
	}
	ctx, span := tracer.Start(ctx, "BoundaryService.Within")
	defer span.End()

	set := s.current.Load()

	// Try cache. Keys carry the load generation so a reload never serves
	// features from the previous dataset.
	cacheKey := bboxCacheKey(set.gen, b)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var features []domain.BoundaryFeature
			if err := json.Unmarshal(data, &features); err == nil {
				metrics.CacheHits.WithLabelValues("boundaries_bbox").Inc()
				return features, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("boundaries_bbox").Inc()
	}

	keys, err := set.index.Search(b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("search boundaries: %w", err)
	}
	features := make([]domain.BoundaryFeature, 0, len(keys))
	for _, k := range keys {
		features = append(features, set.features[set.byID[k]])
	}
	span.SetAttributes(attribute.Int(telemetry.AttrBoundaries, len(features)))

	// Cache for 5 minutes
	if s.cache != nil {
		if data, err := json.Marshal(features); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}

	return features, nil
}

// bboxCacheKey formats the bounds exactly; rounded keys would let nearby
// boxes share an entry.
func bboxCacheKey(gen uint64, b domain.Bounds) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return fmt.Sprintf("boundaries:bbox:%d:%s:%s:%s:%s", gen, f(b.MinLat), f(b.MinLng), f(b.MaxLat), f(b.MaxLng))
}

// Len returns the number of loaded features.
func (s *BoundaryService) Len() int {
	return len(s.current.Load().features)
}
