package graphport

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cortexmem/memcore/pkg/cortexerr"
)

// Neo4jAdapter mirrors fact relations into a property graph. Nodes are
// (:Entity {name, memorySpaceId}) and edges are generic
// [:RELATES {predicate}] relationships between them, keyed so repeated
// writes for the same (subject, predicate, object) triple upsert in place.
type Neo4jAdapter struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jAdapter dials uri (bolt:// or bolt+s://, matching either a Neo4j
// or a Bolt-compatible Memgraph deployment) with basic auth.
func NewNeo4jAdapter(ctx context.Context, uri, username, password string) (*Neo4jAdapter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "graphport.connect", "failed to create driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "graphport.connect", "failed to verify connectivity", err)
	}
	return &Neo4jAdapter{driver: driver}, nil
}

func (a *Neo4jAdapter) UpsertRelations(ctx context.Context, memorySpaceID string, relations []Relation) error {
	if len(relations) == 0 {
		return nil
	}
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, r := range relations {
			_, err := tx.Run(ctx, `
				MERGE (s:Entity {name: $subject, memorySpaceId: $space})
				MERGE (o:Entity {name: $object, memorySpaceId: $space})
				MERGE (s)-[rel:RELATES {predicate: $predicate}]->(o)`,
				map[string]any{
					"subject":   r.Subject,
					"object":    r.Object,
					"predicate": r.Predicate,
					"space":     memorySpaceID,
				})
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "graphport.upsertRelations", "write failed", err)
	}
	return nil
}

func (a *Neo4jAdapter) DeleteForSubject(ctx context.Context, memorySpaceID, subject string) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (s:Entity {name: $subject, memorySpaceId: $space})-[rel:RELATES]->()
			DELETE rel`,
			map[string]any{"subject": subject, "space": memorySpaceID})
	})
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "graphport.deleteForSubject", "delete failed", err)
	}
	return nil
}

func (a *Neo4jAdapter) DeleteForSpace(ctx context.Context, memorySpaceID string) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (e:Entity {memorySpaceId: $space})
			DETACH DELETE e`,
			map[string]any{"space": memorySpaceID})
	})
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "graphport.deleteForSpace", "delete failed", err)
	}
	return nil
}

// ExpandOneHop finds every RELATES edge touching one of seeds and returns
// it as a Relation, for the recall planner's one-hop graph expansion.
func (a *Neo4jAdapter) ExpandOneHop(ctx context.Context, memorySpaceID string, seeds []string) ([]Relation, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH (s:Entity {memorySpaceId: $space})-[rel:RELATES]->(o:Entity {memorySpaceId: $space})
			WHERE s.name IN $seeds OR o.name IN $seeds
			RETURN s.name AS subject, rel.predicate AS predicate, o.name AS object`,
			map[string]any{"space": memorySpaceID, "seeds": seeds})
		if err != nil {
			return nil, err
		}
		var out []Relation
		for records.Next(ctx) {
			rec := records.Record()
			subject, _ := rec.Get("subject")
			predicate, _ := rec.Get("predicate")
			object, _ := rec.Get("object")
			out = append(out, Relation{
				Subject:   fmt.Sprint(subject),
				Predicate: fmt.Sprint(predicate),
				Object:    fmt.Sprint(object),
			})
		}
		return out, records.Err()
	})
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "graphport.expandOneHop", "read failed", err)
	}
	return result.([]Relation), nil
}

func (a *Neo4jAdapter) Close(ctx context.Context) error {
	if err := a.driver.Close(ctx); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "graphport.close", "close failed", err)
	}
	return nil
}

