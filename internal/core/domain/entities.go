package domain

import (
	"time"
)

// MutationClass names one kind of change the widget reports on its geometry.
// Values match the widget's own event names.
type MutationClass string

const (
	VertexReplaced MutationClass = "set_at"
	VertexInserted MutationClass = "insert_at"
	VertexRemoved  MutationClass = "remove_at"
)

// MutationClasses lists every class a synchronizer subscribes to, in
// subscription order.
func MutationClasses() []MutationClass {
	return []MutationClass{VertexReplaced, VertexInserted, VertexRemoved}
}

// EditTrigger identifies what caused the synchronizer to re-read the geometry.
type EditTrigger string

const (
	TriggerSetAt    EditTrigger = "set_at"
	TriggerInsertAt EditTrigger = "insert_at"
	TriggerRemoveAt EditTrigger = "remove_at"
	TriggerDragEnd  EditTrigger = "drag_end"
	TriggerMouseUp  EditTrigger = "mouse_up"
)

// PathSnapshot is the application-owned state of one editable polygon.
// Version increases by one on every replace.
type PathSnapshot struct {
	Path      Path      `json:"path"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PathUpdate is the event published whenever a session's path is replaced.
type PathUpdate struct {
	SessionID string    `json:"session_id"`
	Path      Path      `json:"path"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoundaryFeature is one read-only reference polygon from the boundary dataset.
type BoundaryFeature struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Path       Path           `json:"path"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Renderable reports whether the feature can be drawn as a reference polygon.
func (f BoundaryFeature) Renderable() bool {
	return f.ID != "" && f.Path.Len() >= 3
}

// EditableShape is the user-editable polygon inside a render frame.
type EditableShape struct {
	Path            Path    `json:"path"`
	Editable        bool    `json:"editable"`
	Draggable       bool    `json:"draggable"`
	PerimeterMeters float64 `json:"perimeter_meters"`
}

// ReferenceShape is a non-interactive polygon keyed by its dataset identifier.
type ReferenceShape struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
	Path Path   `json:"path"`
}

// OverlayFrame is everything the widget needs to draw one state of the map.
type OverlayFrame struct {
	SessionID  string           `json:"session_id,omitempty"`
	Version    uint64           `json:"version"`
	Center     Vertex           `json:"center"`
	Zoom       int              `json:"zoom"`
	Editable   EditableShape    `json:"editable"`
	References []ReferenceShape `json:"references"`
	Skipped    int              `json:"skipped,omitempty"`
}

// SessionInfo describes an edit session for API responses.
type SessionInfo struct {
	ID                  string    `json:"id"`
	State               string    `json:"state"`
	ActiveSubscriptions int       `json:"active_subscriptions"`
	Version             uint64    `json:"version"`
	Vertices            int       `json:"vertices"`
	CreatedAt           time.Time `json:"created_at"`
}
