package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/extraction"
	"github.com/cortexmem/memcore/pkg/facts"
	"github.com/cortexmem/memcore/pkg/graphport"
	"github.com/cortexmem/memcore/pkg/observer"
	"github.com/cortexmem/memcore/pkg/ports"
)

// recordingObserver captures layer events for assertions.
type recordingObserver struct {
	onLayer func(observer.LayerUpdate)
}

func (recordingObserver) OnOrchestrationStart(orchestrationID string) {}
func (r recordingObserver) OnLayerUpdate(update observer.LayerUpdate) {
	if r.onLayer != nil {
		r.onLayer(update)
	}
}
func (recordingObserver) OnOrchestrationComplete(summary observer.CompletionSummary) {}

// fakeCompleter returns a fixed sequence of responses, one per call, for
// deterministic extraction/arbitration tests without a real LLM.
type fakeCompleter struct {
	responses []string
	calls     int
}

func (f *fakeCompleter) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	if f.calls >= len(f.responses) {
		return &ports.CompletionResult{Content: "{}"}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return &ports.CompletionResult{Content: resp}, nil
}

func factsResponse(facts ...map[string]any) string {
	payload := map[string]any{"facts": facts}
	b, _ := json.Marshal(payload)
	return string(b)
}

func newTestOrchestrator(t *testing.T, responses ...string) (*Orchestrator, *fakeCompleter) {
	t.Helper()
	s, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.RegisterMemorySpace(context.Background(), &store.MemorySpace{ID: "space1", Type: store.SpacePersonal, Status: store.SpaceActive}); err != nil {
		t.Fatalf("RegisterMemorySpace: %v", err)
	}

	completer := &fakeCompleter{responses: responses}
	extractor := extraction.NewService(completer, extraction.NewKnownSubjects())
	revision := facts.NewEngine(facts.DefaultConfig(), completer)

	return New(s, nil, extractor, revision, facts.NewResolver(), graphport.NoopAdapter{}), completer
}

func TestRemember_AppendsConversationAndSkipsFactsWithoutExtractor(t *testing.T) {
	s, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	if err := s.RegisterMemorySpace(context.Background(), &store.MemorySpace{ID: "space1", Type: store.SpacePersonal, Status: store.SpaceActive}); err != nil {
		t.Fatalf("RegisterMemorySpace: %v", err)
	}

	o := New(s, nil, nil, facts.NewEngine(facts.DefaultConfig(), nil), facts.NewResolver(), nil)
	result, err := o.Remember(context.Background(), RememberInput{
		MemorySpaceID: "space1",
		UserMessage:   "hello there",
		AgentResponse: "hi!",
		UserID:        "user1",
		AgentID:       "agent1",
	}, nil)
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if result.ConversationID == "" {
		t.Fatal("expected a conversation id")
	}
	if len(result.Facts) != 0 {
		t.Errorf("expected no facts without an extractor, got %d", len(result.Facts))
	}

	conv, err := s.GetConversation(context.Background(), result.ConversationID, "")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.MessageCount != 2 {
		t.Errorf("expected 2 messages, got %d", conv.MessageCount)
	}
}

func TestRemember_RejectsEmptyMemorySpace(t *testing.T) {
	s, _ := store.NewSQLiteStore()
	defer s.Close()
	o := New(s, nil, nil, facts.NewEngine(facts.DefaultConfig(), nil), facts.NewResolver(), nil)

	_, err := o.Remember(context.Background(), RememberInput{UserMessage: "hi"}, nil)
	if err == nil {
		t.Fatal("expected a validation error for missing memorySpaceId")
	}
}

func TestRemember_PreferenceSupersession(t *testing.T) {
	firstExtraction := factsResponse(map[string]any{
		"fact": "User likes the color blue", "factType": "preference",
		"subject": "user1", "predicate": "prefers color", "object": "blue", "confidence": 90.0,
	})
	secondExtraction := factsResponse(map[string]any{
		"fact": "User prefers the color purple", "factType": "preference",
		"subject": "user1", "predicate": "prefers color", "object": "purple", "confidence": 90.0,
	})
	arbitration := `{"decision": "SUPERSEDE", "supersededIndex": 0}`

	o, completer := newTestOrchestrator(t, firstExtraction, secondExtraction, arbitration)

	ctx := context.Background()
	r1, err := o.Remember(ctx, RememberInput{
		MemorySpaceID: "space1", UserMessage: "My name is Nicholas and I like the color blue",
		AgentResponse: "Nice!", UserID: "user1", AgentID: "agent1",
	}, nil)
	if err != nil {
		t.Fatalf("Remember (1): %v", err)
	}
	if len(r1.Facts) != 1 {
		t.Fatalf("expected 1 fact after first remember, got %d: calls=%d", len(r1.Facts), completer.calls)
	}

	active, err := o.Store.ListActiveFactsForSubject(ctx, "space1", "user1")
	if err != nil {
		t.Fatalf("ListActiveFactsForSubject: %v", err)
	}
	if len(active) != 1 || active[0].Object != "blue" {
		t.Fatalf("expected one active fact with object 'blue', got %+v", active)
	}

	r2, err := o.Remember(ctx, RememberInput{
		MemorySpaceID: "space1", ConversationID: r1.ConversationID,
		UserMessage: "Actually, I prefer purple now", AgentResponse: "Got it",
		UserID: "user1", AgentID: "agent1",
	}, nil)
	if err != nil {
		t.Fatalf("Remember (2): %v", err)
	}
	if len(r2.FactRevisions) != 1 || r2.FactRevisions[0].Kind != facts.Supersede {
		t.Fatalf("expected a SUPERSEDE revision, got %+v", r2.FactRevisions)
	}

	active, err = o.Store.ListActiveFactsForSubject(ctx, "space1", "user1")
	if err != nil {
		t.Fatalf("ListActiveFactsForSubject: %v", err)
	}
	if len(active) != 1 || active[0].Object != "purple" {
		t.Fatalf("expected one active fact with object 'purple', got %+v", active)
	}
}

func TestRemember_ObserverReceivesTerminalEventPerLayer(t *testing.T) {
	o, _ := newTestOrchestrator(t, factsResponse())

	var layers []string
	recorder := recordingObserver{onLayer: func(u observer.LayerUpdate) { layers = append(layers, fmt.Sprintf("%s:%s", u.Layer, u.Status)) }}

	_, err := o.Remember(context.Background(), RememberInput{
		MemorySpaceID: "space1", UserMessage: "hi", AgentResponse: "hello", UserID: "user1", AgentID: "agent1",
	}, recorder)
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if len(layers) == 0 {
		t.Fatal("expected layer events")
	}
	want := []string{"conversation:complete", "vector:complete", "facts:complete", "graph:skipped"}
	if fmt.Sprint(layers) != fmt.Sprint(want) {
		t.Fatalf("expected one terminal event per layer %v, got %v", want, layers)
	}
}
