package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseResponse parses the raw LLM response into a Result. Handles
// markdown code fences and attempts regex repair on malformed JSON.
func ParseResponse(raw string) (*Result, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return &Result{}, nil
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return filterResult(&result), nil
	}

	// Backward-compatible shape: a bare array of fact objects.
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &arr); err == nil {
		return &Result{Facts: parseFactArray(cleaned)}, nil
	}

	facts := repairFacts(cleaned)
	if len(facts) == 0 {
		return nil, fmt.Errorf("extraction: failed to parse LLM response")
	}
	return &Result{Facts: facts}, nil
}

// stripCodeFence removes markdown code block wrappers (```json ... ```).
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// filterResult validates and cleans parsed facts, dropping anything that
// can't be stored (no fact text, no subject, unrecognized factType).
func filterResult(r *Result) *Result {
	out := &Result{Facts: make([]CandidateFact, 0, len(r.Facts))}
	for _, f := range r.Facts {
		if cleaned, ok := cleanFact(f); ok {
			out.Facts = append(out.Facts, cleaned)
		}
	}
	return out
}

func cleanFact(f CandidateFact) (CandidateFact, bool) {
	f.Fact = strings.TrimSpace(f.Fact)
	f.Subject = strings.TrimSpace(f.Subject)
	if f.Fact == "" || f.Subject == "" {
		return f, false
	}

	typeUpper := strings.ToLower(strings.TrimSpace(f.FactType))
	if !IsValidFactType(typeUpper) {
		typeUpper = string(storeFactCustom)
	}
	f.FactType = typeUpper

	if f.Confidence <= 0 {
		f.Confidence = 60
	}
	if f.Confidence > 100 {
		f.Confidence = 100
	}

	f.Predicate = strings.TrimSpace(f.Predicate)
	f.Object = strings.TrimSpace(f.Object)
	f.Category = strings.TrimSpace(f.Category)
	f.SemanticContext = strings.TrimSpace(f.SemanticContext)

	if len(f.SearchAliases) > 0 {
		f.SearchAliases = trimNonEmpty(f.SearchAliases)
	}
	if len(f.Entities) > 0 {
		f.Entities = trimNonEmpty(f.Entities)
	}

	cleanedRelations := make([]CandidateRelation, 0, len(f.Relations))
	for _, rel := range f.Relations {
		rel.Subject = strings.TrimSpace(rel.Subject)
		rel.Predicate = strings.TrimSpace(rel.Predicate)
		rel.Object = strings.TrimSpace(rel.Object)
		if rel.Subject == "" || rel.Object == "" {
			continue
		}
		cleanedRelations = append(cleanedRelations, rel)
	}
	f.Relations = cleanedRelations

	return f, true
}

// storeFactCustom avoids importing internal/store just for one constant
// string; extraction only needs the wire value, not the typed enum.
const storeFactCustom = "custom"

func trimNonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseFactArray(raw string) []CandidateFact {
	var items []CandidateFact
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	out := make([]CandidateFact, 0, len(items))
	for _, item := range items {
		if cleaned, ok := cleanFact(item); ok {
			out = append(out, cleaned)
		}
	}
	return out
}

// factPattern matches a complete fact JSON object for regex-based repair
// of malformed LLM output, mirroring GoKitt's entity/relation repair regex.
var factPattern = regexp.MustCompile(
	`\{\s*"fact"\s*:\s*"[^"]+"\s*,\s*"factType"\s*:\s*"[^"]+"\s*(?:,\s*"[^"]+"\s*:\s*(?:"[^"]*"|[\d.]+|\[[^\]]*\]|\{[^}]*\}|true|false|null))*\s*\}`,
)

func repairFacts(raw string) []CandidateFact {
	matches := factPattern.FindAllString(raw, -1)
	out := make([]CandidateFact, 0, len(matches))
	for _, m := range matches {
		var item CandidateFact
		if err := json.Unmarshal([]byte(m), &item); err != nil {
			continue
		}
		if cleaned, ok := cleanFact(item); ok {
			out = append(out, cleaned)
		}
	}
	return out
}
