package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/polysync/internal/adapters/postgres"
	"github.com/samirrijal/polysync/internal/adapters/valkey"
	"github.com/samirrijal/polysync/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions   *usecases.SessionManager
	Boundaries *usecases.BoundaryService
	Overlay    *usecases.OverlayService
	NATS       *nats.Conn    // optional, enables /ws/watch
	DB         *postgres.DB  // optional, only with the postgres dataset
	Cache      *valkey.Cache // optional

	OpenAPIPath string // defaults to DefaultOpenAPIPath
}
