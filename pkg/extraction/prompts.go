package extraction

import (
	"fmt"
	"strings"
)

// MaxTextLength bounds the conversational turn text sent to the LLM,
// carried over from GoKitt's narrative extractor's 8000-char limit.
const MaxTextLength = 8000

// SystemPrompt instructs the LLM to return structured JSON only.
const SystemPrompt = `You are a memory extraction assistant for a conversational agent.
Extract durable facts worth remembering about the user from the given turn.
Return ONLY a valid JSON object with one array: "facts".
No markdown, no explanation. Start with { and end with }.`

// BuildUserPrompt constructs the fact-extraction prompt for one turn.
// knownSubjects primes the LLM with subjects already tracked for this
// memory space (mirrors GoKitt's "KNOWN ENTITIES" priming section).
func BuildUserPrompt(text string, knownSubjects []string) string {
	truncated := text
	if len(truncated) > MaxTextLength {
		truncated = truncated[:MaxTextLength]
	}

	var sb strings.Builder
	sb.WriteString("Extract durable facts from this conversational turn. ")
	sb.WriteString("Return a JSON object with one array: \"facts\".\n\n")

	if len(knownSubjects) > 0 {
		sb.WriteString("KNOWN SUBJECTS (reuse these spellings when the turn refers to them):\n")
		sb.WriteString(strings.Join(knownSubjects, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString("=== FACTS ===\n")
	sb.WriteString("Each fact object:\n")
	sb.WriteString("- \"fact\": Natural-language statement (string)\n")
	sb.WriteString(fmt.Sprintf("- \"factType\": One of: %s\n", strings.Join(AllFactTypes, ", ")))
	sb.WriteString("- \"subject\": Who/what the fact is about (string)\n")
	sb.WriteString("- \"predicate\": Optional normalized relation, e.g. \"lives in\", \"prefers\" (string)\n")
	sb.WriteString("- \"object\": Optional value of the predicate (string)\n")
	sb.WriteString("- \"confidence\": 0-100 (number)\n")
	sb.WriteString("- \"category\": Optional free-form grouping (string)\n")
	sb.WriteString("- \"searchAliases\": Optional alternative phrasings for retrieval (string[])\n")
	sb.WriteString("- \"semanticContext\": Optional short context sentence (string)\n")
	sb.WriteString("- \"entities\": Optional named entities mentioned (string[])\n")
	sb.WriteString("- \"relations\": Optional [{subject, predicate, object}] triples for graph sync\n\n")

	sb.WriteString("TYPE GUIDE:\n")
	sb.WriteString("- preference: likes, dislikes, wants\n")
	sb.WriteString("- identity: name, role, demographic\n")
	sb.WriteString("- knowledge: things the user knows or believes\n")
	sb.WriteString("- relationship: connections to people/entities\n")
	sb.WriteString("- event: things that happened at a point in time\n")
	sb.WriteString("- observation: agent-made inferences, not stated directly\n")
	sb.WriteString("- custom: anything else worth retaining\n\n")

	sb.WriteString("RULES:\n")
	sb.WriteString("1. Only extract facts with lasting relevance — skip small talk\n")
	sb.WriteString("2. Reuse an existing subject spelling from KNOWN SUBJECTS when it refers to the same entity\n")
	sb.WriteString("3. One fact per distinct statement; do not merge unrelated claims\n")
	sb.WriteString("4. confidence >= 80 for explicit statements, 40-79 for implied\n\n")

	sb.WriteString("TURN:\n")
	sb.WriteString(truncated)

	return sb.String()
}
