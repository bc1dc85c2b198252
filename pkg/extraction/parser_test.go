package extraction

import "testing"

func TestParseResponse_PlainJSONObject(t *testing.T) {
	raw := `{"facts": [{"fact": "User lives in Toronto", "factType": "identity", "subject": "user1", "confidence": 80}]}`
	result, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(result.Facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(result.Facts))
	}
	if result.Facts[0].Subject != "user1" {
		t.Errorf("unexpected subject: %q", result.Facts[0].Subject)
	}
}

func TestParseResponse_StripsMarkdownFence(t *testing.T) {
	raw := "```json\n{\"facts\": [{\"fact\": \"User likes tea\", \"factType\": \"preference\", \"subject\": \"user1\"}]}\n```"
	result, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(result.Facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(result.Facts))
	}
}

func TestParseResponse_BareArrayBackwardCompat(t *testing.T) {
	raw := `[{"fact": "User likes tea", "factType": "preference", "subject": "user1"}]`
	result, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(result.Facts) != 1 {
		t.Fatalf("expected 1 fact from a bare array, got %d", len(result.Facts))
	}
}

func TestParseResponse_RepairsTrailingGarbage(t *testing.T) {
	raw := `Sure, here are the facts: {"fact": "User likes tea", "factType": "preference", "subject": "user1", "confidence": 70} -- hope that helps!`
	result, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(result.Facts) != 1 {
		t.Fatalf("expected the repair pass to recover 1 fact, got %d", len(result.Facts))
	}
}

func TestParseResponse_EmptyInputYieldsEmptyResult(t *testing.T) {
	result, err := ParseResponse("   ")
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(result.Facts) != 0 {
		t.Errorf("expected no facts for empty input, got %d", len(result.Facts))
	}
}

func TestParseResponse_UnparsableGarbageErrors(t *testing.T) {
	if _, err := ParseResponse("not json at all and no fact-shaped fragments either"); err == nil {
		t.Fatal("expected an error for unparsable, unrepairable input")
	}
}

func TestCleanFact_DropsFactsMissingRequiredFields(t *testing.T) {
	raw := `{"facts": [{"fact": "", "factType": "preference", "subject": "user1"}, {"fact": "ok", "factType": "preference", "subject": ""}]}`
	result, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(result.Facts) != 0 {
		t.Errorf("expected both facts dropped for missing fact/subject, got %d", len(result.Facts))
	}
}

func TestCleanFact_NormalizesUnknownFactTypeAndClampsConfidence(t *testing.T) {
	raw := `{"facts": [{"fact": "ok", "factType": "not-a-real-type", "subject": "user1", "confidence": 500}]}`
	result, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(result.Facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(result.Facts))
	}
	if result.Facts[0].FactType != "custom" {
		t.Errorf("expected an unrecognized factType to fall back to custom, got %q", result.Facts[0].FactType)
	}
	if result.Facts[0].Confidence != 100 {
		t.Errorf("expected confidence to clamp to 100, got %f", result.Facts[0].Confidence)
	}
}
