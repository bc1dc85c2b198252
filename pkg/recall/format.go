package recall

import (
	"fmt"
	"strings"
)

// renderMarkdown builds the markdown context block a caller can splice
// directly into an LLM prompt.
func renderMarkdown(items []Item) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Relevant context from past interactions:\n")
	for _, it := range items {
		switch it.Type {
		case ItemFact:
			fmt.Fprintf(&sb, "- [fact, confidence %.0f] %s\n", it.Confidence, it.Content)
		case ItemMemory:
			fmt.Fprintf(&sb, "- [memory, importance %d] %s\n", it.Importance, it.Content)
		case ItemGraph:
			fmt.Fprintf(&sb, "- [graph] %s %s %s\n", it.Subject, it.Predicate, it.Object)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
