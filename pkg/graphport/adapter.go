// Package graphport is the Graph Sync Port (C3): an optional write path
// that mirrors fact relations into a property graph so callers can query
// entity relationships directly. Neo4j and Memgraph both speak the Bolt
// protocol, so one driver (neo4j-go-driver) serves either backend depending
// on which *_URI environment variable is set.
package graphport

import "context"

// Relation mirrors store.FactRelation without importing the store package,
// keeping this port independent of the storage layer's types.
type Relation struct {
	Subject   string
	Predicate string
	Object    string
}

// GraphAdapter is the narrow capability the orchestrator needs from a graph
// backend. A NoopAdapter, whose methods all return nil, is used when no
// graph backend is configured; the orchestrator checks for it to report
// the graph layer as skipped.
type GraphAdapter interface {
	UpsertRelations(ctx context.Context, memorySpaceID string, relations []Relation) error
	DeleteForSubject(ctx context.Context, memorySpaceID, subject string) error
	DeleteForSpace(ctx context.Context, memorySpaceID string) error
	// ExpandOneHop returns every relation within memorySpaceID whose subject
	// or object matches one of seeds, for the recall planner's graph
	// expansion step.
	ExpandOneHop(ctx context.Context, memorySpaceID string, seeds []string) ([]Relation, error)
	Close(ctx context.Context) error
}
