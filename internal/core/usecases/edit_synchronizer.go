package usecases

import (
	"log/slog"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
)

// HandleSource exposes the geometry currently bound to a session, or nil.
type HandleSource interface {
	CurrentHandle() ports.GeometryHandle
}

// EditSynchronizer funnels every edit gesture into one operation: re-read the
// widget geometry and replace the application path with it. Gestures are not
// modelled individually; the widget's geometry is the source of truth.
type EditSynchronizer struct {
	state   *PathState
	handles HandleSource
	logger  *slog.Logger
}

// NewEditSynchronizer creates a synchronizer writing into state.
func NewEditSynchronizer(state *PathState, handles HandleSource, logger *slog.Logger) *EditSynchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &EditSynchronizer{state: state, handles: handles, logger: logger}
}

// OnMutationEvent re-reads the bound geometry and replaces the path. With no
// geometry bound (an event straggling in after detach) it does nothing and
// returns false.
func (s *EditSynchronizer) OnMutationEvent(trigger domain.EditTrigger) bool {
	var h ports.GeometryHandle
	if s.handles != nil {
		h = s.handles.CurrentHandle()
	}

	p, ok := SnapshotPath(h)
	if !ok {
		metrics.StaleEvents.WithLabelValues(string(trigger)).Inc()
		s.logger.Debug("edit trigger without geometry", "trigger", trigger)
		return false
	}

	snap := s.state.Replace(p)
	metrics.EditsApplied.WithLabelValues(string(trigger)).Inc()
	s.logger.Debug("path replaced",
		"trigger", trigger,
		"version", snap.Version,
		"vertices", p.Len(),
	)
	return true
}
