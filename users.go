package cortex

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/cascade"
	"github.com/cortexmem/memcore/pkg/cortexerr"
)

// userRecordType is the ImmutableRecord.Type a user profile is stored
// under; profiles piggyback on the generic immutable/versioned table
// rather than getting a dedicated one.
const userRecordType = "user"

// UsersAPI is the thin facade over user profiles (versioned, append-only)
// and user-scoped GDPR cascade deletion.
type UsersAPI struct{ c *Client }

// Upsert stores a new version of a user's profile payload. The store's
// immutable-record layer bumps the version and retains the prior payload.
func (a *UsersAPI) Upsert(ctx context.Context, userID string, data any, tenantID string) (*store.ImmutableRecord, error) {
	if userID == "" {
		return nil, cortexerr.New(cortexerr.Validation, "users.upsert", "userId is required")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Validation, "users.upsert", "failed to marshal profile", err)
	}
	rec := &store.ImmutableRecord{
		Type: userRecordType, ID: userID, UserID: userID, TenantID: tenantID,
		Data: payload, UpdatedAt: time.Now().Unix(),
	}
	if err := a.c.store.StoreImmutable(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (a *UsersAPI) Get(ctx context.Context, userID string) (*store.ImmutableRecord, error) {
	return a.c.store.GetImmutable(ctx, userRecordType, userID)
}

func (a *UsersAPI) GetVersion(ctx context.Context, userID string, version int) (*store.ImmutableRecord, error) {
	return a.c.store.GetImmutableVersion(ctx, userRecordType, userID, version)
}

// Delete runs the full GDPR cascade for this user across every user-scoped
// table: conversations, memories, facts, mutable/immutable records, the
// profile itself, and the fact graph. Contexts belong to a memory space,
// not a user, and are not deleted.
func (a *UsersAPI) Delete(ctx context.Context, userID string, dryRun bool) (*cascade.UserCascadeSummary, error) {
	return a.c.Cascade.DeleteUser(ctx, userID, dryRun)
}
