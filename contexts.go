package cortex

import (
	"context"

	"github.com/cortexmem/memcore/internal/store"
)

// ContextsAPI is the thin facade over the per-space context forest.
type ContextsAPI struct{ c *Client }

func (a *ContextsAPI) Create(ctx context.Context, c *store.Context) error {
	if c.ID == "" {
		c.ID = store.NewID()
	}
	return a.c.store.CreateContext(ctx, c)
}

// Get returns the node, and when includeChain is set, its ancestor chain
// from root to this node's parent.
func (a *ContextsAPI) Get(ctx context.Context, id string, includeChain bool) (*store.Context, []*store.Context, error) {
	return a.c.store.GetContext(ctx, id, includeChain)
}

func (a *ContextsAPI) Update(ctx context.Context, c *store.Context) error {
	return a.c.store.UpdateContext(ctx, c)
}

func (a *ContextsAPI) Children(ctx context.Context, id string) ([]*store.Context, error) {
	return a.c.store.GetContextChildren(ctx, id)
}

func (a *ContextsAPI) Delete(ctx context.Context, id string) error {
	return a.c.store.DeleteContext(ctx, id)
}

func (a *ContextsAPI) History(ctx context.Context, memorySpaceID string) ([]*store.Context, error) {
	return a.c.store.ContextHistory(ctx, memorySpaceID)
}
