// Package cascade implements the Cascade Deletion Coordinator (C8):
// GDPR-style deletion of everything owned by a user or scoped to a memory
// space, across every logical table, with a dry-run mode and a post-hoc
// verification pass.
package cascade

import (
	"context"
	"strconv"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/cortexerr"
	"github.com/cortexmem/memcore/pkg/graphport"
)

// Verification is the coordinator's self-check: it re-counts rows after
// deletion and reports anything left behind.
type Verification struct {
	Complete bool
	Issues   []string
}

// UserCascadeSummary is the outcome of one user-scoped cascade deletion.
type UserCascadeSummary struct {
	UserID                  string
	DryRun                  bool
	TotalDeleted            int
	DeletedLayers           []string
	ConversationsDeleted    int
	VectorMemoriesDeleted   int
	FactsDeleted            int
	ContextsDeleted         int
	MutableRecordsDeleted   int
	ImmutableRecordsDeleted int
	UserProfileDeleted      bool
	GraphNodesDeleted       int
	Verification            Verification
}

// SpaceCascadeSummary is the outcome of one space-scoped cascade deletion.
// It never touches user profiles.
type SpaceCascadeSummary struct {
	SpaceID               string
	DryRun                bool
	TotalDeleted          int
	DeletedLayers         []string
	ConversationsDeleted  int
	VectorMemoriesDeleted int
	FactsDeleted          int
	ContextsDeleted       int
	GraphNodesDeleted     int
	Verification          Verification
}

// Coordinator composes the data-access port's cascade-support queries with
// an optional graph adapter's node deletion, so a single call can delete
// (or preview deleting) everything tied to a user or a memory space.
type Coordinator struct {
	Store store.Storer
	Graph graphport.GraphAdapter // graphport.NoopAdapter{} when unconfigured
}

// New builds a Coordinator. graph may be nil.
func New(s store.Storer, graph graphport.GraphAdapter) *Coordinator {
	if graph == nil {
		graph = graphport.NoopAdapter{}
	}
	return &Coordinator{Store: s, Graph: graph}
}

// DeleteUser runs the user cascade: conversations -> vector memories ->
// facts -> mutable -> immutable -> user profile -> graph nodes. Contexts
// are not user-scoped and are left in place, so ContextsDeleted stays 0.
// dryRun:true performs only the counting step and writes nothing.
// Failures in individual layers do not abort the others; they surface
// through Verification.Issues.
func (c *Coordinator) DeleteUser(ctx context.Context, userID string, dryRun bool) (*UserCascadeSummary, error) {
	if userID == "" {
		return nil, cortexerr.New(cortexerr.Validation, "cascade.deleteUser", "userId is required")
	}

	counts, err := c.Store.DeleteUserCascade(ctx, userID, dryRun)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "cascade.deleteUser", "cascade delete failed", err)
	}

	summary := &UserCascadeSummary{
		UserID: userID, DryRun: dryRun,
		ConversationsDeleted: counts.ConversationsDeleted, VectorMemoriesDeleted: counts.VectorMemoriesDeleted,
		FactsDeleted: counts.FactsDeleted, ContextsDeleted: counts.ContextsDeleted,
		MutableRecordsDeleted: counts.MutableRecordsDeleted, ImmutableRecordsDeleted: counts.ImmutableRecordsDeleted,
		UserProfileDeleted: counts.UserProfileDeleted,
	}
	summary.TotalDeleted = counts.ConversationsDeleted + counts.VectorMemoriesDeleted + counts.FactsDeleted +
		counts.ContextsDeleted + counts.MutableRecordsDeleted + counts.ImmutableRecordsDeleted
	if counts.UserProfileDeleted {
		summary.TotalDeleted++
	}
	summary.DeletedLayers = nonZeroLayers(map[string]int{
		"conversations": counts.ConversationsDeleted, "vectorMemories": counts.VectorMemoriesDeleted,
		"facts": counts.FactsDeleted, "contexts": counts.ContextsDeleted,
		"mutable": counts.MutableRecordsDeleted, "immutable": counts.ImmutableRecordsDeleted,
	})

	var issues []string
	if !dryRun {
		if _, isNoop := c.Graph.(graphport.NoopAdapter); !isNoop {
			if err := c.Graph.DeleteForSubject(ctx, "", userID); err != nil {
				issues = append(issues, "graph: "+err.Error())
			} else {
				summary.GraphNodesDeleted = 1 // adapter does not report a count; presence of the call is recorded
				summary.DeletedLayers = append(summary.DeletedLayers, "graph")
			}
		}

		after, err := c.Store.UserOwnedCounts(ctx, userID)
		if err != nil {
			issues = append(issues, "verification: "+err.Error())
		} else if remaining := remainingCount(after); remaining != "" {
			issues = append(issues, "rows remain after deletion: "+remaining)
		}
	}

	summary.Verification = Verification{Complete: len(issues) == 0, Issues: issues}
	return summary, nil
}

// DeleteSpace runs the space cascade. It never touches user profiles.
func (c *Coordinator) DeleteSpace(ctx context.Context, spaceID string, dryRun bool) (*SpaceCascadeSummary, error) {
	if spaceID == "" {
		return nil, cortexerr.New(cortexerr.Validation, "cascade.deleteSpace", "memorySpaceId is required")
	}

	counts, err := c.Store.DeleteMemorySpaceCascade(ctx, spaceID, dryRun)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "cascade.deleteSpace", "cascade delete failed", err)
	}

	summary := &SpaceCascadeSummary{
		SpaceID: spaceID, DryRun: dryRun,
		ConversationsDeleted: counts.ConversationsDeleted, VectorMemoriesDeleted: counts.VectorMemoriesDeleted,
		FactsDeleted: counts.FactsDeleted, ContextsDeleted: counts.ContextsDeleted,
	}
	summary.TotalDeleted = counts.ConversationsDeleted + counts.VectorMemoriesDeleted + counts.FactsDeleted + counts.ContextsDeleted
	summary.DeletedLayers = nonZeroLayers(map[string]int{
		"conversations": counts.ConversationsDeleted, "vectorMemories": counts.VectorMemoriesDeleted,
		"facts": counts.FactsDeleted, "contexts": counts.ContextsDeleted,
	})

	var issues []string
	if !dryRun {
		if _, isNoop := c.Graph.(graphport.NoopAdapter); !isNoop {
			if err := c.Graph.DeleteForSpace(ctx, spaceID); err != nil {
				issues = append(issues, "graph: "+err.Error())
			} else {
				summary.GraphNodesDeleted = 1
				summary.DeletedLayers = append(summary.DeletedLayers, "graph")
			}
		}

		remaining, err := c.Store.CountConversations(ctx, spaceID)
		if err != nil {
			issues = append(issues, "verification: "+err.Error())
		} else if remaining != 0 {
			issues = append(issues, "conversations remain after deletion")
		}
	}

	summary.Verification = Verification{Complete: len(issues) == 0, Issues: issues}
	return summary, nil
}

// remainingCount renders a human-readable summary of any table a
// verification pass still found rows in, or "" if every count is zero.
func remainingCount(after *store.UserCascadeCounts) string {
	if after.ConversationsDeleted == 0 && after.VectorMemoriesDeleted == 0 && after.FactsDeleted == 0 &&
		after.ContextsDeleted == 0 && after.MutableRecordsDeleted == 0 && after.ImmutableRecordsDeleted == 0 &&
		!after.UserProfileDeleted {
		return ""
	}
	return "conversations=" + itoa(after.ConversationsDeleted) + " vectorMemories=" + itoa(after.VectorMemoriesDeleted) +
		" facts=" + itoa(after.FactsDeleted) + " contexts=" + itoa(after.ContextsDeleted) +
		" mutable=" + itoa(after.MutableRecordsDeleted) + " immutable=" + itoa(after.ImmutableRecordsDeleted)
}

func itoa(n int) string { return strconv.Itoa(n) }

func nonZeroLayers(counts map[string]int) []string {
	var out []string
	for _, layer := range []string{"conversations", "vectorMemories", "facts", "contexts", "mutable", "immutable"} {
		if counts[layer] > 0 {
			out = append(out, layer)
		}
	}
	return out
}
