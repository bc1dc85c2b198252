// Package matcher provides Aho-Corasick alias/keyword matching, string
// canonicalization and Jaccard overlap, shared by recall's dedup step (C5),
// subject resolution (C14) and known-subject tracking (C13). It is adapted
// from GoKitt's narrative entity dictionary, stripped of entity-kind
// inference: a subject here is just a label plus its known aliases.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

// isJoiner reports punctuation kept inside a canonicalized surface form so
// multiword subjects like "Monkey D. Luffy" or "O'Brien" stay intact.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '/', '#', '&':
		return true
	default:
		return false
	}
}

func isSeparator(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || isJoiner(r) {
		return false
	}
	return true
}

// Canonicalize lowercases, folds curly quotes/dashes, preserves joiners,
// and collapses all other runs of punctuation/whitespace to a single space.
// Used identically at pattern-compile time and scan time so offsets line up.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	lastWasSpace := true

	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}
	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

var stopwordSet = stopwords.MustGet("en")

// TokenizeFiltered canonicalizes text into words, dropping English
// stopwords, for use as a scoring bag-of-words.
func TokenizeFiltered(text string) []string {
	words := strings.Fields(Canonicalize(text))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" && !stopwordSet.Contains(w) {
			out = append(out, w)
		}
	}
	return out
}

// Subject is one registered alias set: a canonical subject label plus the
// alternate surface forms that should resolve to it.
type Subject struct {
	ID      string
	Label   string
	Aliases []string
}

// Dictionary is an Aho-Corasick automaton over subject surface forms,
// letting subject-mention scanning run in a single pass over text.
type Dictionary struct {
	ac           *ahocorasick.Automaton
	patterns     []string
	patternIndex map[string]int
	patternToIDs [][]string
	idToSubject  map[string]Subject
}

// Compile builds a Dictionary from a set of subjects. Safe to call with an
// empty slice (yields a Dictionary whose Scan always returns no matches).
func Compile(subjects []Subject) (*Dictionary, error) {
	d := &Dictionary{
		patternIndex: make(map[string]int),
		idToSubject:  make(map[string]Subject, len(subjects)),
	}
	for _, s := range subjects {
		d.idToSubject[s.ID] = s
		surfaces := append([]string{s.Label}, s.Aliases...)
		for _, surface := range surfaces {
			key := Canonicalize(surface)
			if key == "" {
				continue
			}
			idx, exists := d.patternIndex[key]
			if !exists {
				idx = len(d.patterns)
				d.patterns = append(d.patterns, key)
				d.patternIndex[key] = idx
				d.patternToIDs = append(d.patternToIDs, nil)
			}
			d.patternToIDs[idx] = appendUnique(d.patternToIDs[idx], s.ID)
		}
	}
	if len(d.patterns) == 0 {
		return d, nil
	}
	ac, err := ahocorasick.NewBuilder().
		AddStrings(d.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	d.ac = ac
	return d, nil
}

// Lookup returns subjects whose canonical label or alias exactly matches s.
func (d *Dictionary) Lookup(s string) []Subject {
	key := Canonicalize(s)
	idx, exists := d.patternIndex[key]
	if !exists {
		return nil
	}
	ids := d.patternToIDs[idx]
	out := make([]Subject, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.idToSubject[id])
	}
	return out
}

// Match is one subject mention found by Scan, with offsets into the
// original (uncanonicalized) text.
type Match struct {
	Start    int
	End      int
	Text     string
	Subjects []Subject
}

// Scan finds every subject mention in text in one Aho-Corasick pass.
func (d *Dictionary) Scan(text string) []Match {
	if d.ac == nil {
		return nil
	}
	canon := Canonicalize(text)
	offsets := buildOffsetMap(text)

	raw := d.ac.FindAllOverlapping([]byte(canon))
	out := make([]Match, 0, len(raw))
	for _, m := range raw {
		start := mapOffset(m.Start, offsets, len(text))
		end := mapOffset(m.End, offsets, len(text))
		if start >= len(text) || end > len(text) || start >= end {
			continue
		}
		ids := d.patternToIDs[m.PatternID]
		subjects := make([]Subject, 0, len(ids))
		for _, id := range ids {
			subjects = append(subjects, d.idToSubject[id])
		}
		out = append(out, Match{Start: start, End: end, Text: text[start:end], Subjects: subjects})
	}
	return out
}

func buildOffsetMap(original string) []int {
	mapping := make([]int, 0, len(original)+1)
	lastWasSpace := true
	pos := 0
	for _, ch := range original {
		runeLen := utf8.RuneLen(ch)
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			canonLen := utf8.RuneLen(c)
			for i := 0; i < canonLen; i++ {
				mapping = append(mapping, pos)
			}
			lastWasSpace = false
		} else if !lastWasSpace {
			mapping = append(mapping, pos)
			lastWasSpace = true
		}
		pos += runeLen
	}
	mapping = append(mapping, pos)
	return mapping
}

func mapOffset(canonOffset int, mapping []int, originalLen int) int {
	if canonOffset >= len(mapping) {
		return originalLen
	}
	if canonOffset < 0 {
		return 0
	}
	return mapping[canonOffset]
}

func appendUnique(slice []string, item string) []string {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}

// JaccardOverlap computes token-set Jaccard similarity between two strings,
// used by the recall planner's dedup pass (threshold 0.85, fact wins).
func JaccardOverlap(a, b string) float64 {
	setA := toSet(TokenizeFiltered(a))
	setB := toSet(TokenizeFiltered(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(tokens []string) map[string]bool {
	m := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m[t] = true
	}
	return m
}
