package usecases

import (
	"reflect"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
)

// SnapshotPath reads the handle's current vertex sequence into a new Path.
// ok is false when there is no handle to read; callers must then leave
// application state untouched.
func SnapshotPath(h ports.GeometryHandle) (p domain.Path, ok bool) {
	if isNilHandle(h) {
		return domain.Path{}, false
	}
	return domain.NewPath(h.Snapshot()), true
}

// isNilHandle also catches a typed nil pointer stored in the interface.
func isNilHandle(h ports.GeometryHandle) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
