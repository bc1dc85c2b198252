package cortex

import (
	"context"

	"github.com/cortexmem/memcore/internal/store"
)

// ImmutableAPI is the thin facade over the generic versioned KV table that
// UsersAPI also piggybacks on. Use it directly for other append-only
// record types (e.g. "agentConfig", "policyDocument").
type ImmutableAPI struct{ c *Client }

func (a *ImmutableAPI) Store(ctx context.Context, r *store.ImmutableRecord) error {
	return a.c.store.StoreImmutable(ctx, r)
}

func (a *ImmutableAPI) Get(ctx context.Context, recordType, id string) (*store.ImmutableRecord, error) {
	return a.c.store.GetImmutable(ctx, recordType, id)
}

func (a *ImmutableAPI) GetVersion(ctx context.Context, recordType, id string, version int) (*store.ImmutableRecord, error) {
	return a.c.store.GetImmutableVersion(ctx, recordType, id, version)
}

func (a *ImmutableAPI) List(ctx context.Context, recordType, userID string) ([]*store.ImmutableRecord, error) {
	return a.c.store.ListImmutable(ctx, recordType, userID)
}

func (a *ImmutableAPI) Purge(ctx context.Context, recordType, id string) error {
	return a.c.store.PurgeImmutable(ctx, recordType, id)
}
