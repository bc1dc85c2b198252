package extraction

import (
	"sort"
	"sync"

	"github.com/cortexmem/memcore/pkg/matcher"
)

// KnownSubjects tracks how often each subject has appeared in extracted
// facts for one memory space, so the extraction prompt can prime the LLM
// with names it already recognizes — adapted from GoKitt's candidate
// registry, which did the same for narrative entity discovery.
type KnownSubjects struct {
	mu    sync.Mutex
	count map[string]int
	label map[string]string // canonical token -> best display form seen
}

// NewKnownSubjects creates an empty tracker.
func NewKnownSubjects() *KnownSubjects {
	return &KnownSubjects{
		count: make(map[string]int),
		label: make(map[string]string),
	}
}

// Observe records one mention of subject.
func (k *KnownSubjects) Observe(subject string) {
	key := matcher.Canonicalize(subject)
	if key == "" {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.count[key]++
	if _, ok := k.label[key]; !ok {
		k.label[key] = subject
	}
}

// Top returns up to n subject labels ordered by mention count, most
// frequent first, for priming an extraction prompt.
func (k *KnownSubjects) Top(n int) []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	type entry struct {
		label string
		count int
	}
	entries := make([]entry, 0, len(k.count))
	for key, c := range k.count {
		entries = append(entries, entry{label: k.label[key], count: c})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].count > entries[j].count })

	if n > len(entries) {
		n = len(entries)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = entries[i].label
	}
	return out
}
