package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/cortexerr"
	"github.com/cortexmem/memcore/pkg/ports"
)

// DecisionKind is the outcome of a belief-revision pass.
type DecisionKind string

const (
	Create        DecisionKind = "CREATE"
	Update        DecisionKind = "UPDATE"
	Supersede     DecisionKind = "SUPERSEDE"
	SkipDuplicate DecisionKind = "SKIP_DUPLICATE"
)

// Decision is the engine's verdict for one candidate fact.
type Decision struct {
	Kind       DecisionKind
	Target     *store.Fact // the F_old involved in UPDATE/SUPERSEDE/SKIP_DUPLICATE
	NewConfidence float64   // SKIP_DUPLICATE's diminishing-returns confidence bump
}

// Config toggles the engine per spec §6's beliefRevision block.
type Config struct {
	Enabled       bool
	SlotMatching  bool
	LLMResolution bool
}

// DefaultConfig enables every stage.
func DefaultConfig() Config {
	return Config{Enabled: true, SlotMatching: true, LLMResolution: true}
}

// Engine implements the belief-revision algorithm (C4).
type Engine struct {
	cfg       Config
	completer ports.Completer // optional
}

func NewEngine(cfg Config, completer ports.Completer) *Engine {
	return &Engine{cfg: cfg, completer: completer}
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizeObject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Decide runs the revision algorithm: slot match, textual duplicate,
// optional LLM arbitration, default policy.
func (e *Engine) Decide(ctx context.Context, candidate *store.Fact, active []*store.Fact) (*Decision, error) {
	if !e.cfg.Enabled {
		return &Decision{Kind: Create}, nil
	}

	normCandidatePredicate := NormalizePredicate(candidate.Predicate)
	normCandidateFact := normalizeText(candidate.Fact)

	var slotConflict *store.Fact
	if e.cfg.SlotMatching {
		for _, old := range active {
			if old.Subject != candidate.Subject {
				continue
			}
			if NormalizePredicate(old.Predicate) != normCandidatePredicate {
				continue
			}
			if normalizeObject(old.Object) == normalizeObject(candidate.Object) {
				return &Decision{Kind: SkipDuplicate, Target: old, NewConfidence: bumpConfidence(old.Confidence)}, nil
			}
			slotConflict = old
		}
	}

	for _, old := range active {
		if normalizeText(old.Fact) == normCandidateFact {
			return &Decision{Kind: SkipDuplicate, Target: old, NewConfidence: bumpConfidence(old.Confidence)}, nil
		}
	}

	if slotConflict == nil {
		return &Decision{Kind: Create}, nil
	}

	if e.cfg.LLMResolution && e.completer != nil {
		if d, err := e.arbitrate(ctx, candidate, []*store.Fact{slotConflict}); err == nil && d != nil {
			return d, nil
		}
		// malformed or unavailable response: fall through to default policy
	}

	return &Decision{Kind: Supersede, Target: slotConflict}, nil
}

// bumpConfidence applies the diminishing-returns rule from spec §4.4:
// new = old + (100 - old) * 0.2.
func bumpConfidence(old float64) float64 {
	return old + (100-old)*0.2
}

type arbitrationResponse struct {
	Decision        string `json:"decision"`
	SupersededIndex int    `json:"supersededIndex"`
}

// arbitrate asks the Completer to choose among CREATE/UPDATE/SUPERSEDE/
// SKIP_DUPLICATE, giving precedence to explicit retraction, temporal cues,
// and confidence per the rubric in spec §4.4.
func (e *Engine) arbitrate(ctx context.Context, candidate *store.Fact, conflicts []*store.Fact) (*Decision, error) {
	prompt := buildArbitrationPrompt(candidate, conflicts)
	result, err := e.completer.Complete(ctx, ports.CompletionRequest{
		SystemPrompt: arbitrationSystemPrompt,
		UserPrompt:   prompt,
		Temperature:  0,
		MaxTokens:    200,
		JSONMode:     true,
	})
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Degraded, "facts.arbitrate", "completer call failed", err)
	}

	var parsed arbitrationResponse
	if err := json.Unmarshal([]byte(extractJSON(result.Content)), &parsed); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Degraded, "facts.arbitrate", "malformed arbitration response", err)
	}

	switch DecisionKind(strings.ToUpper(parsed.Decision)) {
	case Create:
		return &Decision{Kind: Create}, nil
	case Update:
		if parsed.SupersededIndex < 0 || parsed.SupersededIndex >= len(conflicts) {
			return nil, cortexerr.New(cortexerr.Degraded, "facts.arbitrate", "update target out of range")
		}
		return &Decision{Kind: Update, Target: conflicts[parsed.SupersededIndex]}, nil
	case Supersede:
		if parsed.SupersededIndex < 0 || parsed.SupersededIndex >= len(conflicts) {
			return nil, cortexerr.New(cortexerr.Degraded, "facts.arbitrate", "supersede target out of range")
		}
		return &Decision{Kind: Supersede, Target: conflicts[parsed.SupersededIndex]}, nil
	case SkipDuplicate:
		if parsed.SupersededIndex < 0 || parsed.SupersededIndex >= len(conflicts) {
			return nil, cortexerr.New(cortexerr.Degraded, "facts.arbitrate", "skip target out of range")
		}
		old := conflicts[parsed.SupersededIndex]
		return &Decision{Kind: SkipDuplicate, Target: old, NewConfidence: bumpConfidence(old.Confidence)}, nil
	default:
		return nil, cortexerr.New(cortexerr.Degraded, "facts.arbitrate", "unrecognized decision")
	}
}

const arbitrationSystemPrompt = `You arbitrate conflicts between a candidate fact and prior facts about the same subject and predicate.
Choose exactly one of CREATE, UPDATE, SUPERSEDE, SKIP_DUPLICATE.
Give precedence, in order, to: (a) explicit user retraction ("actually", "I no longer", "that's not right anymore"),
(b) temporal cues ("now", "currently", "these days"), (c) higher stated confidence.
Respond with JSON only: {"decision": "...", "supersededIndex": <int>}.`

func buildArbitrationPrompt(candidate *store.Fact, conflicts []*store.Fact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate fact: %q (subject=%s predicate=%s object=%s confidence=%.0f)\n",
		candidate.Fact, candidate.Subject, candidate.Predicate, candidate.Object, candidate.Confidence)
	b.WriteString("Conflicting prior facts:\n")
	for i, c := range conflicts {
		fmt.Fprintf(&b, "[%d] %q (object=%s confidence=%.0f)\n", i, c.Fact, c.Object, c.Confidence)
	}
	return b.String()
}

// extractJSON strips markdown code fences a completion sometimes wraps its
// JSON in, matching the fence-stripping GoKitt's extraction parser does.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
