package cortex

import (
	"context"

	"github.com/cortexmem/memcore/internal/store"
)

// MutableAPI is the thin facade over the last-write-wins namespace/key
// table, for scratch state an agent host wants memcore to hold alongside
// conversations and facts without versioning overhead.
type MutableAPI struct{ c *Client }

func (a *MutableAPI) Set(ctx context.Context, r *store.MutableRecord) error {
	return a.c.store.SetMutable(ctx, r)
}

func (a *MutableAPI) Get(ctx context.Context, namespace, key string) (*store.MutableRecord, error) {
	return a.c.store.GetMutable(ctx, namespace, key)
}

func (a *MutableAPI) Delete(ctx context.Context, namespace, key string) error {
	return a.c.store.DeleteMutable(ctx, namespace, key)
}

func (a *MutableAPI) PurgeNamespace(ctx context.Context, namespace, userID string) (int, error) {
	return a.c.store.PurgeMutableNamespace(ctx, namespace, userID)
}
