package recall

import (
	"context"
	"testing"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/graphport"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.RegisterMemorySpace(context.Background(), &store.MemorySpace{
		ID: "space1", Type: store.SpacePersonal, Status: store.SpaceActive,
	}); err != nil {
		t.Fatalf("RegisterMemorySpace: %v", err)
	}
	return s
}

func TestPlan_MergesAndRanksAcrossSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.StoreMemory(ctx, &store.VectorMemory{
		ID: "mem1", MemorySpaceID: "space1", Content: "likes hiking on weekends",
		ContentType: "text", Metadata: store.VectorMemoryMetadata{Importance: 40},
		CreatedAt: 1000,
	}); err != nil {
		t.Fatalf("StoreMemory: %v", err)
	}

	if err := s.StoreFact(ctx, &store.Fact{
		ID: "fact1", MemorySpaceID: "space1", Fact: "prefers to be called Alex",
		FactType: store.FactPreference, Subject: "user1", Predicate: "prefers name",
		Object: "Alex", Confidence: 92, ValidFrom: 1000,
	}); err != nil {
		t.Fatalf("StoreFact: %v", err)
	}

	p := NewPlanner(s, nil, graphport.NoopAdapter{})
	result, err := p.Plan(ctx, Input{
		MemorySpaceID: "space1",
		Query:         "Alex hiking",
		Limit:         10,
		Sources:       SourceToggles{Vector: true, Facts: true},
		FormatForLLM:  true,
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if result.TotalResults == 0 {
		t.Fatal("expected at least one result")
	}
	if result.Context == "" {
		t.Error("expected a rendered markdown context block")
	}

	var sawFact, sawMemory bool
	for _, it := range result.Items {
		if it.Type == ItemFact {
			sawFact = true
		}
		if it.Type == ItemMemory {
			sawMemory = true
		}
	}
	if !sawFact || !sawMemory {
		t.Errorf("expected both fact and memory items, got %+v", result.Items)
	}
}

func TestPlan_RespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := store.NewID()
		if err := s.StoreFact(ctx, &store.Fact{
			ID: id, MemorySpaceID: "space1", Fact: "fact number " + id,
			FactType: store.FactCustom, Subject: "subject" + id, Confidence: 50, ValidFrom: 1000,
		}); err != nil {
			t.Fatalf("StoreFact: %v", err)
		}
	}

	p := NewPlanner(s, nil, graphport.NoopAdapter{})
	result, err := p.Plan(ctx, Input{
		MemorySpaceID: "space1",
		Query:         "fact",
		Limit:         2,
		Sources:       SourceToggles{Facts: true},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(result.Items) != 2 {
		t.Errorf("expected 2 items after truncation, got %d", len(result.Items))
	}
	if result.TotalResults < 2 {
		t.Errorf("expected TotalResults to reflect pre-truncation count, got %d", result.TotalResults)
	}
}

func TestDedup_FactWinsOverSimilarMemory(t *testing.T) {
	items := []Item{
		{Type: ItemMemory, BackingID: "m1", Content: "the user prefers to be called Alex", Score: 0.9},
		{Type: ItemFact, BackingID: "f1", Content: "user prefers to be called Alex", Score: 0.8},
	}
	out := dedup(items)
	if len(out) != 1 {
		t.Fatalf("expected dedup to collapse to 1 item, got %d", len(out))
	}
	if out[0].Type != ItemFact {
		t.Errorf("expected the fact to win, got %s", out[0].Type)
	}
}
