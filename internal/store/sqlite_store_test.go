package store

import (
	"context"
	"sync"
	"testing"

	"github.com/cortexmem/memcore/pkg/cortexerr"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSpace(t *testing.T, s *SQLiteStore, id, tenantID string) {
	t.Helper()
	ctx := context.Background()
	if err := s.RegisterMemorySpace(ctx, &MemorySpace{ID: id, Type: SpacePersonal, Status: SpaceActive, TenantID: tenantID, CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatalf("RegisterMemorySpace: %v", err)
	}
}

func TestCreateConversation_RequiresUserAndAgentForUserAgentType(t *testing.T) {
	s := newTestStore(t)
	seedSpace(t, s, "space1", "")

	err := s.CreateConversation(context.Background(), &Conversation{
		ID: "c1", MemorySpaceID: "space1", Type: ConversationUserAgent,
		Participants: Participants{UserID: "u1"}, CreatedAt: 1, UpdatedAt: 1,
	})
	if err == nil {
		t.Fatal("expected an error for a user-agent conversation missing agentId")
	}
	if !cortexerr.IsKind(err, cortexerr.InvariantViolation) {
		t.Errorf("expected InvariantViolation, got %v", err)
	}
}

func TestAddMessage_KeepsMessageCountConsistent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "")

	conv := &Conversation{ID: "c1", MemorySpaceID: "space1", Type: ConversationUserAgent,
		Participants: Participants{UserID: "u1", AgentID: "a1"}, CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	for i, ts := range []int64{10, 20, 30} {
		msg := Message{ID: string(rune('a' + i)), Role: RoleUser, Content: "hi", Timestamp: ts}
		if err := s.AddMessage(ctx, "c1", msg); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	got, err := s.GetConversation(ctx, "c1", "")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.MessageCount != 3 || len(got.Messages) != 3 {
		t.Fatalf("expected messageCount and len(messages) to both be 3, got %d/%d", got.MessageCount, len(got.Messages))
	}
}

func TestAddMessage_RejectsOutOfOrderTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "")

	conv := &Conversation{ID: "c1", MemorySpaceID: "space1", Type: ConversationUserAgent,
		Participants: Participants{UserID: "u1", AgentID: "a1"}, CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if err := s.AddMessage(ctx, "c1", Message{ID: "m1", Role: RoleUser, Content: "first", Timestamp: 100}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	err := s.AddMessage(ctx, "c1", Message{ID: "m2", Role: RoleUser, Content: "second", Timestamp: 50})
	if err == nil {
		t.Fatal("expected an error for a message timestamp preceding the prior message")
	}
}

func TestAddMessage_ConcurrentAppendsPreserveCountInvariant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "")

	conv := &Conversation{ID: "c1", MemorySpaceID: "space1", Type: ConversationUserAgent,
		Participants: Participants{UserID: "u1", AgentID: "a1"}, CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AddMessage(ctx, "c1", Message{ID: string(rune('A' + i)), Role: RoleUser, Content: "msg", Timestamp: 1000})
		}(i)
	}
	wg.Wait()

	got, err := s.GetConversation(ctx, "c1", "")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.MessageCount != n || len(got.Messages) != n {
		t.Fatalf("expected %d messages after concurrent appends, got count=%d len=%d", n, got.MessageCount, len(got.Messages))
	}
}

func TestUpdateMessage_OverwritesInPlaceWithoutChangingCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "")

	conv := &Conversation{ID: "c1", MemorySpaceID: "space1", Type: ConversationUserAgent,
		Participants: Participants{UserID: "u1", AgentID: "a1"}, CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if err := s.AddMessage(ctx, "c1", Message{ID: "m1", Role: RoleAgent, Content: "partial", Timestamp: 10}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if err := s.UpdateMessage(ctx, "c1", Message{ID: "m1", Content: "partial and complete", Timestamp: 20}); err != nil {
		t.Fatalf("UpdateMessage: %v", err)
	}

	got, err := s.GetConversation(ctx, "c1", "")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.MessageCount != 1 {
		t.Fatalf("expected UpdateMessage to leave messageCount unchanged, got %d", got.MessageCount)
	}
	if got.Messages[0].Content != "partial and complete" {
		t.Errorf("expected message content to be overwritten, got %q", got.Messages[0].Content)
	}
}

func TestUpdateMessage_UnknownIDIsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "")
	conv := &Conversation{ID: "c1", MemorySpaceID: "space1", Type: ConversationUserAgent,
		Participants: Participants{UserID: "u1", AgentID: "a1"}, CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	err := s.UpdateMessage(ctx, "c1", Message{ID: "nope", Content: "x", Timestamp: 1})
	if !cortexerr.IsKind(err, cortexerr.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestGetConversation_EnforcesTenantIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "tenantA")

	conv := &Conversation{ID: "c1", MemorySpaceID: "space1", Type: ConversationUserAgent,
		Participants: Participants{UserID: "u1", AgentID: "a1"}, TenantID: "tenantA", CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if _, err := s.GetConversation(ctx, "c1", "tenantA"); err != nil {
		t.Fatalf("expected the owning tenant to read the conversation, got %v", err)
	}
	if _, err := s.GetConversation(ctx, "c1", "tenantB"); !cortexerr.IsKind(err, cortexerr.NotFound) {
		t.Errorf("expected a foreign tenant lookup to report NotFound, got %v", err)
	}
}

func TestGetFact_EnforcesTenantIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "tenantA")

	fact := &Fact{ID: "f1", MemorySpaceID: "space1", Fact: "likes tea", FactType: FactPreference,
		Subject: "user1", Confidence: 80, ValidFrom: 1, TenantID: "tenantA"}
	if err := s.StoreFact(ctx, fact); err != nil {
		t.Fatalf("StoreFact: %v", err)
	}

	if _, err := s.GetFact(ctx, "f1", "tenantA"); err != nil {
		t.Fatalf("expected the owning tenant to read the fact, got %v", err)
	}
	if _, err := s.GetFact(ctx, "f1", "tenantB"); !cortexerr.IsKind(err, cortexerr.NotFound) {
		t.Errorf("expected a foreign tenant lookup to report NotFound, got %v", err)
	}
}

func TestListActiveFactsForSubject_ExcludesSuperseded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "")

	active := &Fact{ID: "f1", MemorySpaceID: "space1", Fact: "lives in Toronto", FactType: FactIdentity,
		Subject: "user1", Confidence: 80, ValidFrom: 1}
	supersededAt := int64(5)
	superseded := &Fact{ID: "f0", MemorySpaceID: "space1", Fact: "lives in Vancouver", FactType: FactIdentity,
		Subject: "user1", Confidence: 80, ValidFrom: 0, ValidUntil: &supersededAt, SupersededBy: "f1"}
	if err := s.StoreFact(ctx, superseded); err != nil {
		t.Fatalf("StoreFact(superseded): %v", err)
	}
	if err := s.StoreFact(ctx, active); err != nil {
		t.Fatalf("StoreFact(active): %v", err)
	}

	got, err := s.ListActiveFactsForSubject(ctx, "space1", "user1")
	if err != nil {
		t.Fatalf("ListActiveFactsForSubject: %v", err)
	}
	if len(got) != 1 || got[0].ID != "f1" {
		t.Fatalf("expected only the active fact, got %+v", got)
	}
}

func TestListMemories_ScopesByMemorySpaceAndUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "")
	seedSpace(t, s, "space2", "")

	mems := []*VectorMemory{
		{ID: "m1", MemorySpaceID: "space1", UserID: "u1", Content: "a", ContentType: "text", CreatedAt: 1},
		{ID: "m2", MemorySpaceID: "space1", UserID: "u2", Content: "b", ContentType: "text", CreatedAt: 2},
		{ID: "m3", MemorySpaceID: "space2", UserID: "u1", Content: "c", ContentType: "text", CreatedAt: 3},
	}
	for _, m := range mems {
		if err := s.StoreMemory(ctx, m); err != nil {
			t.Fatalf("StoreMemory: %v", err)
		}
	}

	got, err := s.ListMemories(ctx, "space1", "u1")
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected only m1 scoped to space1/u1, got %+v", got)
	}
}

func TestDeleteUserCascade_DryRunReportsCountsWithoutDeleting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "")

	conv := &Conversation{ID: "c1", MemorySpaceID: "space1", Type: ConversationUserAgent,
		Participants: Participants{UserID: "u1", AgentID: "a1"}, CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if err := s.StoreFact(ctx, &Fact{ID: "f1", MemorySpaceID: "space1", UserID: "u1", Fact: "x", FactType: FactCustom, Subject: "user1", Confidence: 50, ValidFrom: 1}); err != nil {
		t.Fatalf("StoreFact: %v", err)
	}

	counts, err := s.DeleteUserCascade(ctx, "u1", true)
	if err != nil {
		t.Fatalf("DeleteUserCascade(dryRun): %v", err)
	}
	if counts.ConversationsDeleted == 0 || counts.FactsDeleted == 0 {
		t.Fatalf("expected non-zero owned counts in dry-run, got %+v", counts)
	}
	if _, err := s.GetConversation(ctx, "c1", ""); err != nil {
		t.Errorf("dry-run must not delete anything, but conversation lookup failed: %v", err)
	}
}

func TestDeleteUserCascade_RemovesOwnedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSpace(t, s, "space1", "")

	conv := &Conversation{ID: "c1", MemorySpaceID: "space1", Type: ConversationUserAgent,
		Participants: Participants{UserID: "u1", AgentID: "a1"}, CreatedAt: 1, UpdatedAt: 1}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if err := s.StoreFact(ctx, &Fact{ID: "f1", MemorySpaceID: "space1", UserID: "u1", Fact: "x", FactType: FactCustom, Subject: "user1", Confidence: 50, ValidFrom: 1}); err != nil {
		t.Fatalf("StoreFact: %v", err)
	}

	if _, err := s.DeleteUserCascade(ctx, "u1", false); err != nil {
		t.Fatalf("DeleteUserCascade: %v", err)
	}
	if _, err := s.GetConversation(ctx, "c1", ""); !cortexerr.IsKind(err, cortexerr.NotFound) {
		t.Errorf("expected the conversation to be gone after cascade delete, got %v", err)
	}
	if _, err := s.GetFact(ctx, "f1", ""); !cortexerr.IsKind(err, cortexerr.NotFound) {
		t.Errorf("expected the fact to be gone after cascade delete, got %v", err)
	}
}
