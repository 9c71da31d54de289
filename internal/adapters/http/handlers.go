package http

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	geojsonadapter "github.com/samirrijal/polysync/internal/adapters/geojson"
	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/usecases"
)

// ---- Sessions ----

// CreateSessionHandler starts a new edit session seeded with the configured
// initial path.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := deps.Sessions.Create()
		info, err := s.Info()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Location("/v1/sessions/" + s.ID())
		return c.Status(fiber.StatusCreated).JSON(info)
	}
}

// ListSessionsHandler returns every open session, oldest first.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessions := deps.Sessions.List()
		infos := make([]domain.SessionInfo, 0, len(sessions))
		for _, s := range sessions {
			info, err := s.Info()
			if err != nil {
				continue // closed between List and Info
			}
			infos = append(infos, info)
		}

		offset, limit := pageParams(c, 50, 200)
		total := len(infos)
		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page(infos, offset, limit), Pagination: pg})
	}
}

// GetSessionHandler returns a session's lifecycle state.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errNotFound(c, "session not found")
		}
		info, err := s.Info()
		if err != nil {
			return sessionError(c, err)
		}
		return c.JSON(info)
	}
}

// SessionPathHandler returns the session's current path and version.
func SessionPathHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errNotFound(c, "session not found")
		}
		return c.JSON(s.Snapshot())
	}
}

// SessionPathGeoJSONHandler returns the session's path as a GeoJSON Feature.
func SessionPathGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errNotFound(c, "session not found")
		}
		data, err := geojsonadapter.SnapshotFeature(s.ID(), s.Snapshot()).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

// SessionOverlayHandler renders the session's current frame, optionally
// limited to references inside a bounding box.
func SessionOverlayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errNotFound(c, "session not found")
		}
		bbox, err := parseBBox(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		frame, err := deps.Overlay.Render(c.UserContext(), s.ID(), s.Snapshot(), bbox)
		if err != nil {
			if errors.Is(err, usecases.ErrInvalidBounds) {
				return errBadRequest(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(frame)
	}
}

// DeleteSessionHandler closes a session, detaching any bound geometry.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.Params("id")); err != nil {
			return errNotFound(c, "session not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func sessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, usecases.ErrSessionClosed) {
		return errGone(c, "session closed")
	}
	return errInternal(c, err.Error())
}

// ---- Boundaries ----

// ListBoundariesHandler returns reference polygons, optionally limited to a
// bounding box. format=geojson returns a FeatureCollection instead.
func ListBoundariesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bbox, err := parseBBox(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		var features []domain.BoundaryFeature
		if bbox != nil {
			features, err = deps.Boundaries.Within(c.UserContext(), *bbox)
			if err != nil {
				if errors.Is(err, usecases.ErrInvalidBounds) {
					return errBadRequest(c, err.Error())
				}
				return errInternal(c, err.Error())
			}
		} else {
			features = deps.Boundaries.All()
		}

		offset, limit := pageParams(c, 100, 500)
		total := len(features)
		features = page(features, offset, limit)

		if c.Query("format") == "geojson" {
			data, err := geojsonadapter.BoundaryCollection(features).MarshalJSON()
			if err != nil {
				return errInternal(c, err.Error())
			}
			c.Set(fiber.HeaderContentType, "application/geo+json")
			return c.Send(data)
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: features, Pagination: pg})
	}
}

// GetBoundaryHandler returns a single reference polygon by key.
func GetBoundaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := deps.Boundaries.GetByID(c.Params("id"))
		if err != nil {
			return errNotFound(c, "boundary not found")
		}
		return c.JSON(f)
	}
}

// ReloadBoundariesHandler re-reads the dataset and swaps it in.
func ReloadBoundariesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := deps.Boundaries.Load(c.UserContext())
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("reload boundaries", "error", err)
			return errInternal(c, "reload failed")
		}
		return c.JSON(fiber.Map{"loaded": n})
	}
}

// ---- Helpers ----

// parseBBox reads min_lat, min_lng, max_lat and max_lng. It returns nil when
// none is given and an error when only some are.
func parseBBox(c *fiber.Ctx) (*domain.Bounds, error) {
	keys := []string{"min_lat", "min_lng", "max_lat", "max_lng"}
	vals := make([]float64, len(keys))
	present := 0
	for i, k := range keys {
		raw := c.Query(k)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", k)
		}
		vals[i] = v
		present++
	}
	switch present {
	case 0:
		return nil, nil
	case len(keys):
	default:
		return nil, fmt.Errorf("bbox needs all of min_lat, min_lng, max_lat, max_lng")
	}

	b := &domain.Bounds{MinLat: vals[0], MinLng: vals[1], MaxLat: vals[2], MaxLng: vals[3]}
	if !b.Valid() {
		return nil, usecases.ErrInvalidBounds
	}
	return b, nil
}
