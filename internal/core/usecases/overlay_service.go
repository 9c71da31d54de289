package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/pkg/geospatial"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
	"github.com/samirrijal/polysync/internal/pkg/telemetry"
)

// ReferenceSource supplies the reference polygons drawn under the editable
// shape. *BoundaryService implements it.
type ReferenceSource interface {
	All() []domain.BoundaryFeature
	Within(ctx context.Context, b domain.Bounds) ([]domain.BoundaryFeature, error)
}

// Viewport is the initial map position sent with every frame.
type Viewport struct {
	Center domain.Vertex
	Zoom   int
}

// OverlayService builds render frames: the editable polygon bound to the
// session's path plus one non-interactive polygon per reference feature.
type OverlayService struct {
	refs     ReferenceSource
	viewport Viewport
	logger   *slog.Logger
}

// NewOverlayService creates an OverlayService. refs may be nil when no
// dataset is configured.
func NewOverlayService(refs ReferenceSource, viewport Viewport, logger *slog.Logger) *OverlayService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverlayService{refs: refs, viewport: viewport, logger: logger}
}

// Render produces the frame for snap. When bbox is non-nil only references
// intersecting it are included. Malformed references are skipped and counted
// in the frame, never failing the render.
func (s *OverlayService) Render(ctx context.Context, sessionID string, snap domain.PathSnapshot, bbox *domain.Bounds) (domain.OverlayFrame, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "OverlayService.Render")
	defer span.End()
	defer func() { metrics.OverlayRenderDuration.Observe(time.Since(start).Seconds()) }()

	frame := domain.OverlayFrame{
		SessionID: sessionID,
		Version:   snap.Version,
		Center:    s.viewport.Center,
		Zoom:      s.viewport.Zoom,
		Editable: domain.EditableShape{
			Path:            snap.Path,
			Editable:        true,
			Draggable:       true,
			PerimeterMeters: perimeter(snap.Path),
		},
		References: []domain.ReferenceShape{},
	}

	features, err := s.references(ctx, bbox)
	if err != nil {
		return domain.OverlayFrame{}, err
	}
	for _, f := range features {
		if !f.Renderable() {
			frame.Skipped++
			metrics.BoundariesSkipped.WithLabelValues("render").Inc()
			s.logger.Warn("skipping reference polygon", "id", f.ID, "vertices", f.Path.Len())
			continue
		}
		frame.References = append(frame.References, domain.ReferenceShape{
			Key:  f.ID,
			Name: f.Name,
			Path: f.Path,
		})
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrSessionID, sessionID),
		attribute.Int(telemetry.AttrBoundaries, len(frame.References)),
		attribute.Int("overlay.skipped", frame.Skipped),
	)
	return frame, nil
}

func (s *OverlayService) references(ctx context.Context, bbox *domain.Bounds) ([]domain.BoundaryFeature, error) {
	if s.refs == nil {
		return nil, nil
	}
	if bbox == nil {
		return s.refs.All(), nil
	}
	features, err := s.refs.Within(ctx, *bbox)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	return features, nil
}

func perimeter(p domain.Path) float64 {
	lats := make([]float64, p.Len())
	lons := make([]float64, p.Len())
	for i := 0; i < p.Len(); i++ {
		v := p.At(i)
		lats[i], lons[i] = v.Lat, v.Lng
	}
	return geospatial.RingPerimeter(lats, lons)
}
