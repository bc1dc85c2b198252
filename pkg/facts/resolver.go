// Package facts implements the belief-revision engine (C4) and subject
// resolution (C14): deciding what a new fact's (subject, predicate) slot
// should normalize to, and whether it creates, updates, supersedes, or
// duplicates an existing fact.
package facts

import (
	"strings"

	"github.com/cortexmem/memcore/pkg/matcher"
)

var firstPersonPronouns = map[string]bool{
	"i": true, "me": true, "my": true, "mine": true, "myself": true,
}

var secondPersonPronouns = map[string]bool{
	"you": true, "your": true, "yours": true, "yourself": true,
}

// ResolutionContext supplies the participants a pronoun can resolve
// against, mirroring the two-party shape of a user-agent conversation.
type ResolutionContext struct {
	SpeakerUserID string
	AgentID       string
	KnownAliases  *matcher.Dictionary // subject label/alias -> canonical ID, built from ListActiveFactsForSubject
}

// Resolver normalizes a raw extracted subject string into a canonical
// subject key. Resolution order: first-person/second-person pronoun
// heuristic, then exact alias/label match against known subjects, then the
// raw, canonicalized string as a fresh subject.
type Resolver struct{}

func NewResolver() *Resolver { return &Resolver{} }

// Resolve returns the canonical subject key for raw within ctx.
func (r *Resolver) Resolve(raw string, ctx ResolutionContext) string {
	norm := strings.ToLower(strings.TrimSpace(raw))
	if firstPersonPronouns[norm] && ctx.SpeakerUserID != "" {
		return ctx.SpeakerUserID
	}
	if secondPersonPronouns[norm] {
		if ctx.AgentID != "" && ctx.SpeakerUserID != "" {
			return ctx.AgentID
		}
	}
	if ctx.KnownAliases != nil {
		if matches := ctx.KnownAliases.Lookup(raw); len(matches) > 0 {
			return matches[0].ID
		}
	}
	return matcher.Canonicalize(raw)
}

// NormalizePredicate folds a predicate phrase to the form used as half of a
// fact's revision slot: lowercase, whitespace-collapsed, no trailing "is"/
// copula variance (e.g. "lives in" and "living in" both -> "lives in" is
// NOT attempted here; only literal normalization, matching spec's "slot is
// keyed on exact normalized predicate string" decision recorded in the
// design doc).
func NormalizePredicate(predicate string) string {
	return strings.Join(strings.Fields(strings.ToLower(predicate)), " ")
}
