package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/usecases"
)

// shopFields flattens a wire candidate for graphql-go's default resolvers,
// which read map keys and json tags.
func shopFields(c domain.ShopCandidate) map[string]interface{} {
	m := map[string]interface{}{
		"id":      c.ID,
		"name":    c.Name,
		"address": c.Address,
		"amenities": map[string]interface{}{
			"wifi":          c.Amenities.Wifi,
			"power_outlets": c.Amenities.PowerOutlets,
			"smoking":       c.Amenities.Smoking,
			"takeout":       c.Amenities.Takeout,
		},
	}
	if c.Lat != nil {
		m["lat"] = *c.Lat
	}
	if c.Lng != nil {
		m["lng"] = *c.Lng
	}
	if c.Distance != nil {
		m["distance_km"] = *c.Distance
	}
	return m
}

func pageFields(p *domain.ShopPage) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(p.Shops))
	for _, c := range p.Shops {
		out = append(out, shopFields(c))
	}
	return out
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	amenitiesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Amenities",
		Fields: graphql.Fields{
			"wifi":          &graphql.Field{Type: graphql.Boolean},
			"power_outlets": &graphql.Field{Type: graphql.Boolean},
			"smoking":       &graphql.Field{Type: graphql.Boolean},
			"takeout":       &graphql.Field{Type: graphql.Boolean},
		},
	})

	shopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Shop",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"lat":         &graphql.Field{Type: graphql.Float},
			"lng":         &graphql.Field{Type: graphql.Float},
			"amenities":   &graphql.Field{Type: amenitiesType},
			"distance_km": &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"shops": &graphql.Field{
				Type:        graphql.NewList(shopType),
				Description: "List shops ordered by name",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					offset := p.Args["offset"].(int)
					page, err := deps.Shops.ListAll(p.Context, limit, offset)
					if err != nil {
						return nil, err
					}
					return pageFields(page), nil
				},
			},
			"shopsNearby": &graphql.Field{
				Type:        graphql.NewList(shopType),
				Description: "Find shops near a location",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius_km": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 10.0},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lng := p.Args["lng"].(float64)
					radius := p.Args["radius_km"].(float64)
					limit := p.Args["limit"].(int)
					page, err := deps.Shops.SearchNearby(p.Context, lat, lng, radius, limit)
					if err != nil {
						return nil, err
					}
					return pageFields(page), nil
				},
			},
			"shop": &graphql.Field{
				Type:        shopType,
				Description: "Get a shop by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					shop, err := deps.Shops.GetByID(p.Context, id)
					if err != nil {
						return nil, err
					}
					return shopFields(shop.Candidate()), nil
				},
			},
			"planRadius": &graphql.Field{
				Type:        graphql.Float,
				Description: "Search radius in km for a viewport latitude span",
				Args: graphql.FieldConfigArgument{
					"latitude_delta": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					delta := p.Args["latitude_delta"].(float64)
					return usecases.PlanRadius(domain.Viewport{LatitudeDelta: delta}), nil
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
