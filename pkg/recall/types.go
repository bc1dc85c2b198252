// Package recall implements the Recall Planner (C5): a fan-out query over
// vector memories, active facts, and (optionally) one hop of the fact
// graph, merged into a single ranked, deduplicated list. Its rendering
// shape is adapted from GoKitt's slim response builder, which trimmed a
// full concept graph down to only the fields a caller actually consumes.
package recall

import (
	"github.com/cortexmem/memcore/internal/store"
)

// ItemType distinguishes which source surfaced a ranked item.
type ItemType string

const (
	ItemMemory ItemType = "memory"
	ItemFact   ItemType = "fact"
	ItemGraph  ItemType = "graph"
)

// Item is one ranked piece of recalled context, merged across sources.
type Item struct {
	Type       ItemType `json:"type"`
	BackingID  string   `json:"backingId"`
	Content    string   `json:"content"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence,omitempty"` // facts
	Importance int      `json:"importance,omitempty"` // memories
	CreatedAt  int64    `json:"createdAt,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Predicate  string   `json:"predicate,omitempty"`
	Object     string   `json:"object,omitempty"`
}

// SourceToggles selects which sources the planner fans out to.
type SourceToggles struct {
	Vector bool
	Facts  bool
	Graph  bool
}

// Input parameterizes one recall query.
type Input struct {
	MemorySpaceID      string
	Query              string
	Embedding          []float32 // precomputed; planner embeds Query via an Embedder if nil and Sources.Vector is set
	UserID             string
	Limit              int
	MinImportance      int
	Sources            SourceToggles
	FormatForLLM       bool
	IncludeConversation string // optional conversation id; Plan does not read it
}

// SourceCounts reports how many raw hits each source contributed before
// merge and dedup.
type SourceCounts struct {
	Vector int `json:"vector"`
	Facts  int `json:"facts"`
	Graph  int `json:"graph"`
}

// Result is the merged, ranked, deduplicated output of one recall query.
type Result struct {
	Items       []Item       `json:"items"`
	Context     string       `json:"context,omitempty"`
	TotalResults int         `json:"totalResults"`
	QueryTimeMs int64        `json:"queryTimeMs"`
	Sources     SourceCounts `json:"sources"`
}

func factItem(f store.Fact, score float64) Item {
	return Item{
		Type:       ItemFact,
		BackingID:  f.ID,
		Content:    f.Fact,
		Score:      score,
		Confidence: f.Confidence,
		CreatedAt:  f.ValidFrom,
		Subject:    f.Subject,
		Predicate:  f.Predicate,
		Object:     f.Object,
	}
}

func memoryItem(m store.VectorMemory, score float64) Item {
	return Item{
		Type:       ItemMemory,
		BackingID:  m.ID,
		Content:    m.Content,
		Score:      score,
		Importance: m.Metadata.Importance,
		CreatedAt:  m.CreatedAt,
	}
}
