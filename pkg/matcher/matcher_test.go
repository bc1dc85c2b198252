package matcher

import "testing"

func TestCanonicalize_FoldsCaseAndPunctuation(t *testing.T) {
	cases := map[string]string{
		"Monkey D. Luffy": "monkey d. luffy",
		"O'Brien":          "o'brien",
		"  extra   spaces": "extra spaces",
		"Hello, World!":    "hello world",
	}
	for in, want := range cases {
		if got := Canonicalize(in); got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompileAndScan_FindsAliasMentions(t *testing.T) {
	dict, err := Compile([]Subject{
		{ID: "s1", Label: "Nicholas", Aliases: []string{"Nick", "the user"}},
		{ID: "s2", Label: "Paris"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	matches := dict.Scan("Nick mentioned he's visiting Paris next week.")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}

	var sawSubject1, sawSubject2 bool
	for _, m := range matches {
		for _, s := range m.Subjects {
			if s.ID == "s1" {
				sawSubject1 = true
			}
			if s.ID == "s2" {
				sawSubject2 = true
			}
		}
	}
	if !sawSubject1 || !sawSubject2 {
		t.Errorf("expected both subjects matched, got %+v", matches)
	}
}

func TestCompile_EmptyYieldsNoMatches(t *testing.T) {
	dict, err := Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if matches := dict.Scan("anything at all"); matches != nil {
		t.Errorf("expected no matches from an empty dictionary, got %+v", matches)
	}
}

func TestLookup_ExactAliasMatch(t *testing.T) {
	dict, err := Compile([]Subject{{ID: "s1", Label: "Nicholas", Aliases: []string{"Nick"}}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	found := dict.Lookup("nick")
	if len(found) != 1 || found[0].ID != "s1" {
		t.Errorf("expected Lookup to resolve the alias case-insensitively, got %+v", found)
	}
	if found := dict.Lookup("nobody"); found != nil {
		t.Errorf("expected no match for an unregistered label, got %+v", found)
	}
}

func TestJaccardOverlap(t *testing.T) {
	a := "User likes the color blue"
	b := "User prefers the color blue"
	if overlap := JaccardOverlap(a, b); overlap < 0.5 {
		t.Errorf("expected high overlap between near-identical sentences, got %f", overlap)
	}

	c := "Completely unrelated statement about rocket engines"
	if overlap := JaccardOverlap(a, c); overlap > 0.2 {
		t.Errorf("expected low overlap between unrelated sentences, got %f", overlap)
	}

	if overlap := JaccardOverlap("", ""); overlap != 0 {
		t.Errorf("expected zero overlap for two empty strings, got %f", overlap)
	}
}
