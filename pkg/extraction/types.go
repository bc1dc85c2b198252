// Package extraction implements the Fact Extraction Rubric (C13): a single
// LLM call that turns a conversational turn into candidate facts. Parsing
// and repair machinery is adapted from GoKitt's entity/relation extractor,
// with the wire schema replaced by the fact schema belief revision expects.
package extraction

import "github.com/cortexmem/memcore/internal/store"

var validFactTypes = map[store.FactType]bool{
	store.FactPreference:   true,
	store.FactIdentity:     true,
	store.FactKnowledge:    true,
	store.FactRelationship: true,
	store.FactEvent:        true,
	store.FactObservation:  true,
	store.FactCustom:       true,
}

// IsValidFactType reports whether s names a recognized FactType.
func IsValidFactType(s string) bool {
	return validFactTypes[store.FactType(s)]
}

// AllFactTypes lists every recognized fact type, for prompt construction.
var AllFactTypes = []string{
	string(store.FactPreference), string(store.FactIdentity), string(store.FactKnowledge),
	string(store.FactRelationship), string(store.FactEvent), string(store.FactObservation),
	string(store.FactCustom),
}

// CandidateRelation is a (subject, predicate, object) triple extracted
// alongside a fact, feeding graph sync.
type CandidateRelation struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// CandidateFact is one fact as extracted by the LLM, before subject
// resolution and belief revision run.
type CandidateFact struct {
	Fact            string              `json:"fact"`
	FactType        string              `json:"factType"`
	Category        string              `json:"category,omitempty"`
	Subject         string              `json:"subject"`
	Predicate       string              `json:"predicate,omitempty"`
	Object          string              `json:"object,omitempty"`
	SearchAliases   []string            `json:"searchAliases,omitempty"`
	SemanticContext string              `json:"semanticContext,omitempty"`
	Entities        []string            `json:"entities,omitempty"`
	Relations       []CandidateRelation `json:"relations,omitempty"`
	Confidence      float64             `json:"confidence"`
}

// Result is the unified output of one extraction call.
type Result struct {
	Facts []CandidateFact `json:"facts"`
}
