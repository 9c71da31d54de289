package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/polysync/internal/core/domain"
)

// pathOf resolves the "path" field of any source carrying a domain.Path.
func pathOf(p graphql.ResolveParams) (interface{}, error) {
	switch src := p.Source.(type) {
	case domain.BoundaryFeature:
		return src.Path.Vertices(), nil
	case map[string]interface{}:
		if path, ok := src["path"].(domain.Path); ok {
			return path.Vertices(), nil
		}
	}
	return nil, nil
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	vertexType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Vertex",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":                   &graphql.Field{Type: graphql.String},
			"state":                &graphql.Field{Type: graphql.String},
			"active_subscriptions": &graphql.Field{Type: graphql.Int},
			"version":              &graphql.Field{Type: graphql.Int},
			"vertices":             &graphql.Field{Type: graphql.Int},
			"created_at":           &graphql.Field{Type: graphql.DateTime},
			"path":                 &graphql.Field{Type: graphql.NewList(vertexType), Resolve: pathOf},
		},
	})

	boundaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Boundary",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.String},
			"name": &graphql.Field{Type: graphql.String},
			"path": &graphql.Field{Type: graphql.NewList(vertexType), Resolve: pathOf},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "An edit session and its current path",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := deps.Sessions.Get(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					info, err := s.Info()
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"id":                   info.ID,
						"state":                info.State,
						"active_subscriptions": info.ActiveSubscriptions,
						"version":              int(info.Version),
						"vertices":             info.Vertices,
						"created_at":           info.CreatedAt,
						"path":                 s.Path(),
					}, nil
				},
			},
			"boundaries": &graphql.Field{
				Type:        graphql.NewList(boundaryType),
				Description: "Reference polygons intersecting a bounding box",
				Args: graphql.FieldConfigArgument{
					"min_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"min_lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Boundaries.Within(p.Context, domain.Bounds{
						MinLat: p.Args["min_lat"].(float64),
						MinLng: p.Args["min_lng"].(float64),
						MaxLat: p.Args["max_lat"].(float64),
						MaxLng: p.Args["max_lng"].(float64),
					})
				},
			},
			"boundary": &graphql.Field{
				Type:        boundaryType,
				Description: "Get a reference polygon by key",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Boundaries.GetByID(p.Args["id"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
