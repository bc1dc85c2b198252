package cortex

import (
	"context"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/cascade"
)

// MemorySpacesAPI is the thin facade over the tenancy-boundary table, plus
// the space-scoped cascade deletion.
type MemorySpacesAPI struct{ c *Client }

func (a *MemorySpacesAPI) Register(ctx context.Context, s *store.MemorySpace) error {
	if s.ID == "" {
		s.ID = store.NewID()
	}
	return a.c.store.RegisterMemorySpace(ctx, s)
}

func (a *MemorySpacesAPI) Get(ctx context.Context, id string) (*store.MemorySpace, error) {
	return a.c.store.GetMemorySpace(ctx, id)
}

func (a *MemorySpacesAPI) List(ctx context.Context, tenantID string) ([]*store.MemorySpace, error) {
	return a.c.store.ListMemorySpaces(ctx, tenantID)
}

func (a *MemorySpacesAPI) Archive(ctx context.Context, id string) error {
	return a.c.store.ArchiveMemorySpace(ctx, id)
}

func (a *MemorySpacesAPI) Reactivate(ctx context.Context, id string) error {
	return a.c.store.ReactivateMemorySpace(ctx, id)
}

// Delete runs the full cascade (conversations, memories, facts, contexts,
// and the graph) for one space. dryRun:true previews counts without
// writing anything.
func (a *MemorySpacesAPI) Delete(ctx context.Context, id string, dryRun bool) (*cascade.SpaceCascadeSummary, error) {
	return a.c.Cascade.DeleteSpace(ctx, id, dryRun)
}
