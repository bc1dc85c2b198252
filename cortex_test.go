package cortex

import (
	"context"
	"testing"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/config"
	"github.com/cortexmem/memcore/pkg/orchestrator"
	"github.com/cortexmem/memcore/pkg/recall"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default()
	c, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestClient_RememberAndRecallRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.MemorySpaces.Register(ctx, &store.MemorySpace{ID: "space1", Type: store.SpacePersonal, Status: store.SpaceActive}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := c.Memory.Remember(ctx, orchestrator.RememberInput{
		MemorySpaceID: "space1", UserMessage: "I live in Toronto", AgentResponse: "Got it.",
		UserID: "user1", AgentID: "agent1",
	})
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if result.ConversationID == "" {
		t.Fatal("expected a conversation id")
	}

	conv, err := c.Conversations.Get(ctx, result.ConversationID, "")
	if err != nil {
		t.Fatalf("Conversations.Get: %v", err)
	}
	if conv.MessageCount != 2 {
		t.Errorf("expected 2 messages, got %d", conv.MessageCount)
	}

	recallResult, err := c.Memory.Recall(ctx, recall.Input{
		MemorySpaceID: "space1", Query: "Toronto", UserID: "user1",
		Sources: recall.SourceToggles{Vector: true, Facts: true}, Limit: 5,
	})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if recallResult.TotalResults == 0 {
		t.Error("expected at least one recalled item from the just-remembered turn")
	}
}

func TestClient_UserCascadeDeletesAcrossFacade(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.MemorySpaces.Register(ctx, &store.MemorySpace{ID: "space1", Type: store.SpacePersonal, Status: store.SpaceActive}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := c.Memory.Remember(ctx, orchestrator.RememberInput{
		MemorySpaceID: "space1", UserMessage: "hi", AgentResponse: "hello", UserID: "user1", AgentID: "agent1",
	}); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if _, err := c.Users.Upsert(ctx, "user1", map[string]string{"name": "Nicholas"}, ""); err != nil {
		t.Fatalf("Users.Upsert: %v", err)
	}

	summary, err := c.Users.Delete(ctx, "user1", false)
	if err != nil {
		t.Fatalf("Users.Delete: %v", err)
	}
	if !summary.Verification.Complete {
		t.Fatalf("expected a clean cascade, issues: %v", summary.Verification.Issues)
	}
	if _, err := c.Users.Get(ctx, "user1"); err == nil {
		t.Error("expected the user profile to be gone after cascade deletion")
	}
}
