package cascade

import (
	"context"
	"testing"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/graphport"
)

func seedUser(t *testing.T, s *store.SQLiteStore, userID string) string {
	t.Helper()
	ctx := context.Background()
	if err := s.RegisterMemorySpace(ctx, &store.MemorySpace{ID: "space1", Type: store.SpacePersonal, Status: store.SpaceActive}); err != nil {
		t.Fatalf("RegisterMemorySpace: %v", err)
	}
	conv := &store.Conversation{ID: "conv1", MemorySpaceID: "space1", Type: store.ConversationUserAgent,
		Participants: store.Participants{UserID: userID, AgentID: "agent1"}}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.AddMessage(ctx, "conv1", store.Message{ID: store.NewID(), Role: store.RoleUser, Content: "hi", Timestamp: int64(i)}); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := s.StoreMemory(ctx, &store.VectorMemory{ID: store.NewID(), MemorySpaceID: "space1", UserID: userID, Content: "memory", ContentType: "text"}); err != nil {
			t.Fatalf("StoreMemory: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := s.StoreFact(ctx, &store.Fact{ID: store.NewID(), MemorySpaceID: "space1", UserID: userID, Fact: "fact", FactType: store.FactCustom, Subject: "s", ValidFrom: 1}); err != nil {
			t.Fatalf("StoreFact: %v", err)
		}
	}
	if err := s.StoreImmutable(ctx, &store.ImmutableRecord{Type: "user", ID: userID, UserID: userID, Data: []byte(`{}`)}); err != nil {
		t.Fatalf("StoreImmutable: %v", err)
	}
	return userID
}

func TestDeleteUser_RemovesRowsAcrossAllTables(t *testing.T) {
	s, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	userID := seedUser(t, s, "user1")

	c := New(s, graphport.NoopAdapter{})
	summary, err := c.DeleteUser(context.Background(), userID, false)
	if err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if !summary.Verification.Complete {
		t.Fatalf("expected verification to be complete, issues: %v", summary.Verification.Issues)
	}
	if summary.ConversationsDeleted != 1 || summary.VectorMemoriesDeleted != 2 || summary.FactsDeleted != 2 {
		t.Fatalf("unexpected deletion counts: %+v", summary)
	}
	if !summary.UserProfileDeleted {
		t.Error("expected the user's immutable profile to be deleted")
	}

	convs, err := s.ListConversations(context.Background(), "space1", userID, "")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 0 {
		t.Errorf("expected zero conversations for the deleted user, got %d", len(convs))
	}
}

func TestDeleteUser_DryRunWritesNothing(t *testing.T) {
	s, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	userID := seedUser(t, s, "user1")

	c := New(s, graphport.NoopAdapter{})
	summary, err := c.DeleteUser(context.Background(), userID, true)
	if err != nil {
		t.Fatalf("DeleteUser dryRun: %v", err)
	}
	if summary.ConversationsDeleted != 1 {
		t.Fatalf("expected dry run to report 1 conversation, got %d", summary.ConversationsDeleted)
	}

	convs, err := s.ListConversations(context.Background(), "space1", userID, "")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 {
		t.Errorf("expected dry run to leave the conversation in place, got %d", len(convs))
	}
}

func TestDeleteUser_RejectsEmptyID(t *testing.T) {
	s, _ := store.NewSQLiteStore()
	defer s.Close()
	c := New(s, nil)
	if _, err := c.DeleteUser(context.Background(), "", false); err == nil {
		t.Fatal("expected a validation error for an empty userId")
	}
}
