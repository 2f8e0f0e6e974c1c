// Package graphql exposes a read-only introspection schema over a
// jacis.Container, grounded on the teacher's pkg/graphql.Schema — same
// graphql-go/graphql object-type construction, scoped down from LauraDB's
// full document CRUD schema to what a single untyped GraphQL schema can
// say about a set of generically-typed stores: names, sizes, and
// transaction-lifecycle counters. Fetching an individual committed value
// by key is intentionally not exposed here, since each store's value type
// is a distinct Go type parameter unknown to a schema built once at
// startup — that operation belongs to the statically-typed caller API
// (§6 of spec.md), not this diagnostic surface.
package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/mnohosten/jacis-go/pkg/jacis"
	"github.com/mnohosten/jacis-go/pkg/jacis/metrics"
)

// Schema builds the introspection schema for container, additionally
// reporting collector's engine-wide counters if collector is non-nil.
func Schema(container *jacis.Container, collector *metrics.Collector) (graphql.Schema, error) {
	storeStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "StoreStats",
		Description: "Live size and activity counters for one store",
		Fields: graphql.Fields{
			"name": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.String),
				Description: "Store name",
			},
			"committedEntries": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Number of live (non-tombstoned) committed entries",
			},
			"activeTxViews": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Number of transactions currently holding a TX view on this store",
			},
			"listenerCount": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Number of registered modification listeners (indexes, tracked views, persistence adapters)",
			},
		},
	})

	engineStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "EngineStats",
		Description: "Transaction-lifecycle counters across the whole container",
		Fields: graphql.Fields{
			"uptimeSeconds":        &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"prepareTotal":         &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"prepareFailedTotal":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"commitTotal":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"commitFailedTotal":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"rollbackTotal":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"staleObjectTotal":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"uniqueViolationTotal": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"vetoTotal":            &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"stores": &graphql.Field{
				Type:        graphql.NewList(graphql.NewNonNull(storeStatsType)),
				Description: "Every store registered in the container",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return container.StoreStats(), nil
				},
			},
			"store": &graphql.Field{
				Type:        storeStatsType,
				Description: "A single store by name, or null if not found",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name, _ := p.Args["name"].(string)
					for _, st := range container.StoreStats() {
						if st.Name == name {
							return st, nil
						}
					}
					return nil, nil
				},
			},
			"engine": &graphql.Field{
				Type:        engineStatsType,
				Description: "Engine-wide transaction counters, null if no metrics collector is attached",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if collector == nil {
						return nil, nil
					}
					return collector.Snapshot(), nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("jacis/server/graphql: build schema: %w", err)
	}
	return schema, nil
}
