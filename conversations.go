package cortex

import (
	"context"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/cortexerr"
)

// ConversationsAPI is the thin facade over the append-only conversation log.
type ConversationsAPI struct{ c *Client }

func (a *ConversationsAPI) Create(ctx context.Context, conv *store.Conversation) error {
	if conv.ID == "" {
		conv.ID = store.NewID()
	}
	return a.c.store.CreateConversation(ctx, conv)
}

func (a *ConversationsAPI) Get(ctx context.Context, id, tenantID string) (*store.Conversation, error) {
	return a.c.store.GetConversation(ctx, id, tenantID)
}

func (a *ConversationsAPI) List(ctx context.Context, memorySpaceID, userID, tenantID string) ([]*store.Conversation, error) {
	return a.c.store.ListConversations(ctx, memorySpaceID, userID, tenantID)
}

func (a *ConversationsAPI) Delete(ctx context.Context, id string) error {
	return a.c.store.DeleteConversation(ctx, id)
}

// AddMessage appends a single message outside of a remember call, e.g. to
// seed a conversation before the first rememberStream.
func (a *ConversationsAPI) AddMessage(ctx context.Context, conversationID string, msg store.Message) error {
	if msg.ID == "" {
		msg.ID = store.NewID()
	}
	return a.c.store.AddMessage(ctx, conversationID, msg)
}

// Count rejects an empty memorySpaceId with a Validation error; the other
// ConversationsAPI methods pass their ids to the store unchecked.
func (a *ConversationsAPI) Count(ctx context.Context, memorySpaceID string) (int, error) {
	if memorySpaceID == "" {
		return 0, cortexerr.New(cortexerr.Validation, "conversations.count", "memorySpaceId is required")
	}
	return a.c.store.CountConversations(ctx, memorySpaceID)
}
