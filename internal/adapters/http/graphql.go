package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/darkhorizon/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	classType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SkyClass",
		Fields: graphql.Fields{
			"class_id": &graphql.Field{Type: graphql.Int},
			"label":    &graphql.Field{Type: graphql.String},
			"r":        &graphql.Field{Type: graphql.Int},
			"g":        &graphql.Field{Type: graphql.Int},
			"b":        &graphql.Field{Type: graphql.Int},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"label":    &graphql.Field{Type: graphql.String},
			"kind":     &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
			"extent":   &graphql.Field{Type: boundsType},
		},
	})

	layersType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Layers",
		Fields: graphql.Fields{
			"zoom":            &graphql.Field{Type: graphql.Int},
			"base_layer":      &graphql.Field{Type: graphql.String},
			"overlay_opacity": &graphql.Field{Type: graphql.Float},
			"satellite":       &graphql.Field{Type: graphql.Boolean},
		},
	})

	rasterType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Raster",
		Fields: graphql.Fields{
			"name":   &graphql.Field{Type: graphql.String},
			"url":    &graphql.Field{Type: graphql.String},
			"state":  &graphql.Field{Type: graphql.String},
			"width":  &graphql.Field{Type: graphql.Int},
			"height": &graphql.Field{Type: graphql.Int},
			"error":  &graphql.Field{Type: graphql.String},
		},
	})

	spotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Spot",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"class_id":    &graphql.Field{Type: graphql.Int},
			"class_label": &graphql.Field{Type: graphql.String},
			"elevation":   &graphql.Field{Type: graphql.Int},
			"distance":    &graphql.Field{Type: graphql.Float},
			"created_at":  &graphql.Field{Type: graphql.DateTime},
		},
	})

	coordArgs := graphql.FieldConfigArgument{
		"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"classify": &graphql.Field{
				Type:        classType,
				Description: "Light-pollution class at a point (null outside the rasters)",
				Args:        coordArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sampler.Classify(p.Context, p.Args["lat"].(float64), p.Args["lon"].(float64))
				},
			},
			"elevation": &graphql.Field{
				Type:        graphql.Int,
				Description: "Terrain height in meters",
				Args:        coordArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Elevation == nil {
						return nil, nil
					}
					return deps.Elevation.Lookup(p.Context, p.Args["lat"].(float64), p.Args["lon"].(float64))
				},
			},
			"search": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Geocode free text",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 5},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Search == nil {
						return nil, nil
					}
					return deps.Search.Search(p.Context, p.Args["query"].(string), p.Args["limit"].(int))
				},
			},
			"layers": &graphql.Field{
				Type:        layersType,
				Description: "Visible layers for a zoom level",
				Args: graphql.FieldConfigArgument{
					"zoom":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"satellite": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					zoom := p.Args["zoom"].(int)
					v, effective := usecases.Route(zoom, p.Args["satellite"].(bool), deps.Session.Layers)
					return map[string]interface{}{
						"zoom":            zoom,
						"base_layer":      string(v.BaseLayer),
						"overlay_opacity": v.OverlayOpacity,
						"satellite":       effective,
					}, nil
				},
			},
			"palette": &graphql.Field{
				Type:        graphql.NewList(classType),
				Description: "Classification legend",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sampler.Palette().Entries(), nil
				},
			},
			"rasters": &graphql.Field{
				Type:        graphql.NewList(rasterType),
				Description: "Load state of the configured rasters",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return rasterStatuses(deps.Sampler), nil
				},
			},
			"spotsNearby": &graphql.Field{
				Type:        graphql.NewList(spotType),
				Description: "Saved spots near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 25000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Spots == nil {
						return nil, nil
					}
					return deps.Spots.FindNearby(p.Context,
						p.Args["lat"].(float64), p.Args["lon"].(float64),
						p.Args["radius"].(float64), p.Args["limit"].(int))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createSpot": &graphql.Field{
				Type:        spotType,
				Description: "Save an observing spot",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Spots == nil {
						return nil, nil
					}
					return deps.Spots.Create(p.Context,
						p.Args["name"].(string), p.Args["lat"].(float64), p.Args["lon"].(float64))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
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
