package facts

import (
	"context"
	"testing"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/ports"
)

type fakeArbitrationCompleter struct {
	response string
	err      error
}

func (f *fakeArbitrationCompleter) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ports.CompletionResult{Content: f.response}, nil
}

func candidateFact(subject, predicate, object string) *store.Fact {
	return &store.Fact{Fact: subject + " " + predicate + " " + object, Subject: subject, Predicate: predicate, Object: object, Confidence: 80}
}

func TestDecide_NoSlotConflictCreates(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	candidate := candidateFact("user1", "lives in", "Toronto")

	decision, err := engine.Decide(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Kind != Create {
		t.Errorf("expected CREATE, got %s", decision.Kind)
	}
}

func TestDecide_SameSlotSameObjectSkipsWithConfidenceBump(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	old := &store.Fact{ID: "f1", Fact: "user1 lives in Toronto", Subject: "user1", Predicate: "lives in", Object: "Toronto", Confidence: 60}
	candidate := candidateFact("user1", "lives in", "Toronto")

	decision, err := engine.Decide(context.Background(), candidate, []*store.Fact{old})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Kind != SkipDuplicate {
		t.Fatalf("expected SKIP_DUPLICATE, got %s", decision.Kind)
	}
	if decision.Target.ID != "f1" {
		t.Errorf("expected target to be the existing fact")
	}
	want := bumpConfidence(60)
	if decision.NewConfidence != want {
		t.Errorf("expected bumped confidence %f, got %f", want, decision.NewConfidence)
	}
}

func TestDecide_TextualDuplicateSkips(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	old := &store.Fact{ID: "f1", Fact: "User likes tea", Subject: "user1", Predicate: "", Object: "", Confidence: 50}
	candidate := &store.Fact{Fact: "user likes tea", Subject: "user1", Confidence: 70}

	decision, err := engine.Decide(context.Background(), candidate, []*store.Fact{old})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Kind != SkipDuplicate {
		t.Fatalf("expected SKIP_DUPLICATE for a case/whitespace-insensitive duplicate, got %s", decision.Kind)
	}
}

func TestDecide_SlotConflictWithoutLLMResolutionDefaultsToSupersede(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLMResolution = false
	engine := NewEngine(cfg, nil)

	old := &store.Fact{ID: "f1", Fact: "user1 lives in Toronto", Subject: "user1", Predicate: "lives in", Object: "Toronto", Confidence: 80}
	candidate := candidateFact("user1", "lives in", "Vancouver")

	decision, err := engine.Decide(context.Background(), candidate, []*store.Fact{old})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Kind != Supersede {
		t.Fatalf("expected SUPERSEDE, got %s", decision.Kind)
	}
	if decision.Target.ID != "f1" {
		t.Errorf("expected target to be the conflicting fact")
	}
}

func TestDecide_SlotConflictArbitratesUpdate(t *testing.T) {
	completer := &fakeArbitrationCompleter{response: `{"decision": "UPDATE", "supersededIndex": 0}`}
	engine := NewEngine(DefaultConfig(), completer)

	old := &store.Fact{ID: "f1", Fact: "user1 lives in Toronto", Subject: "user1", Predicate: "lives in", Object: "Toronto", Confidence: 80}
	candidate := candidateFact("user1", "lives in", "Vancouver")

	decision, err := engine.Decide(context.Background(), candidate, []*store.Fact{old})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Kind != Update {
		t.Fatalf("expected UPDATE from arbitration, got %s", decision.Kind)
	}
	if decision.Target.ID != "f1" {
		t.Errorf("expected arbitration target to resolve to the conflicting fact")
	}
}

func TestDecide_SlotConflictArbitratesSkipDuplicateWithBump(t *testing.T) {
	completer := &fakeArbitrationCompleter{response: `{"decision": "SKIP_DUPLICATE", "supersededIndex": 0}`}
	engine := NewEngine(DefaultConfig(), completer)

	old := &store.Fact{ID: "f1", Fact: "user1 likes tea", Subject: "user1", Predicate: "likes", Object: "tea", Confidence: 50}
	candidate := candidateFact("user1", "likes", "coffee")

	decision, err := engine.Decide(context.Background(), candidate, []*store.Fact{old})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Kind != SkipDuplicate {
		t.Fatalf("expected SKIP_DUPLICATE from arbitration, got %s", decision.Kind)
	}
	if decision.NewConfidence != bumpConfidence(50) {
		t.Errorf("expected arbitrated skip to bump confidence, got %f", decision.NewConfidence)
	}
}

func TestDecide_MalformedArbitrationFallsBackToSupersede(t *testing.T) {
	completer := &fakeArbitrationCompleter{response: `not json`}
	engine := NewEngine(DefaultConfig(), completer)

	old := &store.Fact{ID: "f1", Fact: "user1 lives in Toronto", Subject: "user1", Predicate: "lives in", Object: "Toronto", Confidence: 80}
	candidate := candidateFact("user1", "lives in", "Vancouver")

	decision, err := engine.Decide(context.Background(), candidate, []*store.Fact{old})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Kind != Supersede {
		t.Fatalf("expected fallback to SUPERSEDE on malformed arbitration response, got %s", decision.Kind)
	}
}

func TestDecide_DisabledEngineAlwaysCreates(t *testing.T) {
	engine := NewEngine(Config{Enabled: false}, nil)
	old := &store.Fact{ID: "f1", Fact: "user1 lives in Toronto", Subject: "user1", Predicate: "lives in", Object: "Toronto", Confidence: 80}
	candidate := candidateFact("user1", "lives in", "Toronto")

	decision, err := engine.Decide(context.Background(), candidate, []*store.Fact{old})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Kind != Create {
		t.Errorf("expected a disabled engine to always CREATE, got %s", decision.Kind)
	}
}

func TestBumpConfidence_DiminishingReturns(t *testing.T) {
	if got := bumpConfidence(80); got != 84 {
		t.Errorf("bumpConfidence(80) = %f, want 84", got)
	}
	if got := bumpConfidence(0); got != 20 {
		t.Errorf("bumpConfidence(0) = %f, want 20", got)
	}
}
