package recall

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/cortexerr"
	"github.com/cortexmem/memcore/pkg/graphport"
	"github.com/cortexmem/memcore/pkg/matcher"
	"github.com/cortexmem/memcore/pkg/ports"
)

// dedupJaccardThreshold is how similar a fact and a vector memory's
// normalized token sets must be before they're treated as the same
// content; the fact wins the tie since it's the distilled, revised form.
const dedupJaccardThreshold = 0.85

// graphSeedCount bounds how many top vector/fact subjects feed the
// one-hop graph expansion step.
const graphSeedCount = 5

// Planner answers recall queries by fanning out across the memory store's
// vector and fact search paths and, optionally, a one-hop graph
// expansion, then merging everything into one ranked list.
type Planner struct {
	store    store.Storer
	embedder ports.Embedder // optional
	graph    graphport.GraphAdapter
}

// NewPlanner builds a Planner. embedder may be nil (callers must then
// supply Input.Embedding themselves to get semantic vector search); graph
// may be a graphport.NoopAdapter when no graph backend is configured.
func NewPlanner(s store.Storer, embedder ports.Embedder, graph graphport.GraphAdapter) *Planner {
	if graph == nil {
		graph = graphport.NoopAdapter{}
	}
	return &Planner{store: s, embedder: embedder, graph: graph}
}

// Plan runs one recall query end to end: fan out, merge, rank, dedup,
// truncate, and optionally render as a markdown context block.
func (p *Planner) Plan(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	if in.Limit <= 0 {
		in.Limit = 10
	}

	embedding := in.Embedding
	if in.Sources.Vector && embedding == nil && p.embedder != nil && in.Query != "" {
		emb, err := p.embedder.Embed(ctx, in.Query)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Degraded, "recall.plan", "embedding failed", err)
		}
		embedding = emb
	}

	var (
		wg         sync.WaitGroup
		memHits    []store.MemorySearchHit
		factHits   []store.FactSearchHit
		memErr     error
		factErr    error
	)

	if in.Sources.Vector {
		wg.Add(1)
		go func() {
			defer wg.Done()
			memHits, memErr = p.store.SearchMemories(ctx, store.MemorySearchQuery{
				MemorySpaceID: in.MemorySpaceID,
				UserID:        in.UserID,
				Embedding:     embedding,
				Keyword:       in.Query,
				MinImportance: in.MinImportance,
				Limit:         in.Limit * 2,
			})
		}()
	}
	if in.Sources.Facts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			factHits, factErr = p.store.SearchFacts(ctx, store.FactSearchQuery{
				MemorySpaceID: in.MemorySpaceID,
				UserID:        in.UserID,
				Keyword:       in.Query,
				ActiveOnly:    true,
				Limit:         in.Limit * 2,
			})
		}()
	}
	wg.Wait()
	if memErr != nil {
		return nil, cortexerr.Wrap(cortexerr.Degraded, "recall.plan", "vector search failed", memErr)
	}
	if factErr != nil {
		return nil, cortexerr.Wrap(cortexerr.Degraded, "recall.plan", "fact search failed", factErr)
	}

	now := time.Now().Unix()
	items := make([]Item, 0, len(memHits)+len(factHits))
	for _, h := range memHits {
		age := float64(now - h.Memory.CreatedAt)
		score := unifiedScore(h.Similarity, 0, float64(h.Memory.Metadata.Importance), age)
		items = append(items, memoryItem(h.Memory, score))
	}
	for _, h := range factHits {
		age := float64(now - h.Fact.ValidFrom)
		score := unifiedScore(h.Score, h.Fact.Confidence, 0, age)
		items = append(items, factItem(h.Fact, score))
	}

	var graphHits int
	if in.Sources.Graph {
		seeds := topSubjects(items, graphSeedCount)
		if len(seeds) > 0 {
			relations, err := p.graph.ExpandOneHop(ctx, in.MemorySpaceID, seeds)
			if err == nil {
				graphHits = len(relations)
				seedScore := topScore(items)
				for _, r := range relations {
					items = append(items, Item{
						Type:      ItemGraph,
						BackingID: r.Subject + "|" + r.Predicate + "|" + r.Object,
						Content:   r.Subject + " " + r.Predicate + " " + r.Object,
						Score:     seedScore * graphHopAttenuation,
						Subject:   r.Subject,
						Predicate: r.Predicate,
						Object:    r.Object,
					})
				}
			}
		}
	}

	items = dedup(items)
	sort.Slice(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	total := len(items)
	if len(items) > in.Limit {
		items = items[:in.Limit]
	}

	result := &Result{
		Items:        items,
		TotalResults: total,
		QueryTimeMs:  time.Since(start).Milliseconds(),
		Sources:      SourceCounts{Vector: len(memHits), Facts: len(factHits), Graph: graphHits},
	}
	if in.FormatForLLM {
		result.Context = renderMarkdown(items)
	}
	return result, nil
}

// dedup collapses items sharing a (type, backingId) pair, then resolves
// fact/memory content collisions via Jaccard token overlap, keeping the
// fact since it is the revised, deduplicated form of the same claim.
func dedup(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	byKey := items[:0:0]
	for _, it := range items {
		key := string(it.Type) + "|" + it.BackingID
		if seen[key] {
			continue
		}
		seen[key] = true
		byKey = append(byKey, it)
	}

	out := make([]Item, 0, len(byKey))
	suppressed := make(map[int]bool)
	for i := range byKey {
		if suppressed[i] || byKey[i].Type != ItemMemory {
			continue
		}
		for j := range byKey {
			if i == j || byKey[j].Type != ItemFact {
				continue
			}
			if matcher.JaccardOverlap(byKey[i].Content, byKey[j].Content) >= dedupJaccardThreshold {
				suppressed[i] = true
				break
			}
		}
	}
	for i, it := range byKey {
		if !suppressed[i] {
			out = append(out, it)
		}
	}
	return out
}

func topSubjects(items []Item, n int) []string {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	seen := make(map[string]bool)
	out := make([]string, 0, n)
	for _, it := range sorted {
		subj := it.Subject
		if subj == "" {
			continue
		}
		if seen[subj] {
			continue
		}
		seen[subj] = true
		out = append(out, subj)
		if len(out) >= n {
			break
		}
	}
	return out
}

func topScore(items []Item) float64 {
	var max float64
	for _, it := range items {
		if it.Score > max {
			max = it.Score
		}
	}
	return max
}
