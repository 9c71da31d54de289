package http

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses. Query
// parameters other than offset and limit (a bbox, say) are carried over so
// every link pages through the same selection.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	keep := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		if key != "offset" && key != "limit" {
			keep.Add(key, string(v))
		}
	})
	extra := ""
	if len(keep) > 0 {
		extra = "&" + keep.Encode()
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d%s>; rel="%s"`, base, offset, p.Limit, extra, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	links = append(links, link(max(p.Total-p.Limit, 0), "last"))

	c.Set("Link", strings.Join(links, ", "))
}

// pageParams reads offset and limit, falling back to defLimit when limit is
// missing or above maxLimit.
func pageParams(c *fiber.Ctx, defLimit, maxLimit int) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	limit = c.QueryInt("limit", defLimit)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxLimit {
		limit = defLimit
	}
	return offset, limit
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	return items[offset:min(offset+limit, len(items))]
}
