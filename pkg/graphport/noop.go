package graphport

import "context"

// NoopAdapter discards every write. Used when no NEO4J_URI/MEMGRAPH_URI is
// configured so the orchestrator's graph-sync step is always safe to call.
type NoopAdapter struct{}

func (NoopAdapter) UpsertRelations(ctx context.Context, memorySpaceID string, relations []Relation) error {
	return nil
}

func (NoopAdapter) DeleteForSubject(ctx context.Context, memorySpaceID, subject string) error {
	return nil
}

func (NoopAdapter) DeleteForSpace(ctx context.Context, memorySpaceID string) error { return nil }

func (NoopAdapter) ExpandOneHop(ctx context.Context, memorySpaceID string, seeds []string) ([]Relation, error) {
	return nil, nil
}

func (NoopAdapter) Close(ctx context.Context) error { return nil }
