package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/config"
	"github.com/cortexmem/memcore/pkg/facts"
)

func TestRememberStream_ForwardsChunksInOrderAndFinalizes(t *testing.T) {
	s, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	if err := s.RegisterMemorySpace(context.Background(), &store.MemorySpace{ID: "space1", Type: store.SpacePersonal, Status: store.SpaceActive}); err != nil {
		t.Fatalf("RegisterMemorySpace: %v", err)
	}
	conv := &store.Conversation{ID: "conv1", MemorySpaceID: "space1", Type: store.ConversationUserAgent,
		Participants: store.Participants{UserID: "user1", AgentID: "agent1"}}
	if err := s.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	o := New(s, nil, nil, facts.NewEngine(facts.DefaultConfig(), nil), facts.NewResolver(), nil)

	chunks := make(chan StreamChunk, 4)
	chunks <- StreamChunk{Text: "The capital "}
	chunks <- StreamChunk{Text: "of France "}
	chunks <- StreamChunk{Text: "is Paris."}
	close(chunks)

	forward := make(chan string, 4)
	var completed CompleteInfo
	hooks := StreamHooks{OnComplete: func(info CompleteInfo) { completed = info }}

	opts := config.DefaultStreamingConfig()
	opts.PartialResponseIntervalMs = 0 // disable progressive writes for this test's timing
	result, err := o.RememberStream(context.Background(), StreamInput{
		MemorySpaceID: "space1", ConversationID: "conv1", UserID: "user1", AgentID: "agent1", Chunks: chunks,
	}, opts, forward, hooks, nil)
	if err != nil {
		t.Fatalf("RememberStream: %v", err)
	}

	close(forward)
	var got string
	for chunk := range forward {
		got += chunk
	}
	if got != "The capital of France is Paris." {
		t.Errorf("unexpected forwarded text: %q", got)
	}
	if completed.TotalChunks != 3 {
		t.Errorf("expected 3 chunks, got %d", completed.TotalChunks)
	}
	if result.Metrics.Bytes != len("The capital of France is Paris.") {
		t.Errorf("unexpected byte count: %d", result.Metrics.Bytes)
	}

	updatedConv, err := s.GetConversation(context.Background(), "conv1", "")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	var agentMsg *store.Message
	for i := range updatedConv.Messages {
		if updatedConv.Messages[i].Role == store.RoleAgent {
			agentMsg = &updatedConv.Messages[i]
		}
	}
	if agentMsg == nil || agentMsg.Content != "The capital of France is Paris." {
		t.Fatalf("expected the final agent message to equal the concatenated chunks, got %+v", agentMsg)
	}
}

func TestRememberStream_TimeoutProducesResumeToken(t *testing.T) {
	s, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	if err := s.RegisterMemorySpace(context.Background(), &store.MemorySpace{ID: "space1", Type: store.SpacePersonal, Status: store.SpaceActive}); err != nil {
		t.Fatalf("RegisterMemorySpace: %v", err)
	}
	conv := &store.Conversation{ID: "conv1", MemorySpaceID: "space1", Type: store.ConversationUserAgent,
		Participants: store.Participants{UserID: "user1", AgentID: "agent1"}}
	if err := s.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	o := New(s, nil, nil, facts.NewEngine(facts.DefaultConfig(), nil), facts.NewResolver(), nil)

	chunks := make(chan StreamChunk) // never closed, never sends: forces the timeout path

	opts := config.DefaultStreamingConfig()
	opts.StreamTimeoutMs = 20
	opts.GenerateResumeToken = true
	opts.PartialFailureHandling = "store-partial"

	var recoverable bool
	hooks := StreamHooks{OnError: func(err error, rec bool, token *ResumeToken) { recoverable = rec }}

	start := time.Now()
	result, err := o.RememberStream(context.Background(), StreamInput{
		MemorySpaceID: "space1", ConversationID: "conv1", UserID: "user1", AgentID: "agent1", Chunks: chunks,
	}, opts, nil, hooks, nil)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout took far longer than configured")
	}
	if !recoverable {
		t.Error("expected the stream timeout to be reported as recoverable")
	}
	if result.ResumeToken == nil {
		t.Error("expected a resume token when GenerateResumeToken is set")
	}
}
