package cortex

import (
	"context"

	"github.com/cortexmem/memcore/internal/store"
)

// FactsAPI is the thin facade over the fact store and belief-revision
// history, for callers that want to query facts outside of remember/
// recall (audit tools, admin UIs).
type FactsAPI struct{ c *Client }

func (a *FactsAPI) Get(ctx context.Context, id, tenantID string) (*store.Fact, error) {
	return a.c.store.GetFact(ctx, id, tenantID)
}

func (a *FactsAPI) List(ctx context.Context, memorySpaceID, userID string) ([]*store.Fact, error) {
	return a.c.store.ListFacts(ctx, memorySpaceID, userID)
}

func (a *FactsAPI) ListActiveForSubject(ctx context.Context, memorySpaceID, subject string) ([]*store.Fact, error) {
	return a.c.store.ListActiveFactsForSubject(ctx, memorySpaceID, subject)
}

func (a *FactsAPI) Search(ctx context.Context, q store.FactSearchQuery) ([]store.FactSearchHit, error) {
	return a.c.store.SearchFacts(ctx, q)
}

// History returns every version of a (subject, predicate) slot, newest
// first, including superseded and updated facts.
func (a *FactsAPI) History(ctx context.Context, memorySpaceID, subject, predicate string) ([]*store.Fact, error) {
	return a.c.store.FactHistory(ctx, memorySpaceID, subject, predicate)
}

// SupersessionChain returns the head of factID's supersession chain followed
// by every closed version of the same slot, newest first.
func (a *FactsAPI) SupersessionChain(ctx context.Context, factID string) ([]*store.Fact, error) {
	return a.c.store.FactSupersessionChain(ctx, factID)
}

func (a *FactsAPI) Delete(ctx context.Context, id string) error {
	return a.c.store.DeleteFact(ctx, id)
}
