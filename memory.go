package cortex

import (
	"context"

	"github.com/cortexmem/memcore/pkg/orchestrator"
	"github.com/cortexmem/memcore/pkg/recall"
)

// MemoryAPI is the thin facade over the Memory Orchestrator and Recall
// Planner: remember, rememberStream, recall.
type MemoryAPI struct{ c *Client }

// Remember absorbs one conversational turn.
func (m *MemoryAPI) Remember(ctx context.Context, in orchestrator.RememberInput) (*orchestrator.RememberResult, error) {
	return m.c.Orchestrator.Remember(ctx, in, m.c.Observer)
}

// RememberStream forwards a lazy response stream while progressively
// persisting it, extracting facts, and syncing the fact graph.
func (m *MemoryAPI) RememberStream(ctx context.Context, in orchestrator.StreamInput, forward chan<- string, hooks orchestrator.StreamHooks) (*orchestrator.StreamResult, error) {
	return m.c.Orchestrator.RememberStream(ctx, in, m.c.cfg.Streaming, forward, hooks, m.c.Observer)
}

// Recall runs a fan-out query over vector memories, active facts, and
// (optionally) one hop of the fact graph, merged into a single ranked,
// deduplicated list.
func (m *MemoryAPI) Recall(ctx context.Context, in recall.Input) (*recall.Result, error) {
	return m.c.Recall.Plan(ctx, in)
}
