package extraction

import (
	"context"
	"strings"
	"testing"

	"github.com/cortexmem/memcore/pkg/ports"
)

type fakeCompleter struct {
	response string
	err      error
	lastReq  ports.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &ports.CompletionResult{Content: f.response}, nil
}

func TestService_ExtractFromTurn_ParsesCompleterResponse(t *testing.T) {
	completer := &fakeCompleter{response: `{"facts": [{"fact": "User lives in Toronto", "factType": "identity", "subject": "user1", "confidence": 85}]}`}
	svc := NewService(completer, NewKnownSubjects())

	result, err := svc.ExtractFromTurn(context.Background(), "I live in Toronto")
	if err != nil {
		t.Fatalf("ExtractFromTurn: %v", err)
	}
	if len(result.Facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(result.Facts))
	}
	if completer.lastReq.SystemPrompt != SystemPrompt {
		t.Error("expected the service to send the shared system prompt")
	}
}

func TestService_ExtractFromTurn_PrimesKnownSubjects(t *testing.T) {
	known := NewKnownSubjects()
	known.Observe("Nicholas")
	known.Observe("Nicholas")
	known.Observe("Paris")

	completer := &fakeCompleter{response: `{"facts": []}`}
	svc := NewService(completer, known)

	if _, err := svc.ExtractFromTurn(context.Background(), "some turn text"); err != nil {
		t.Fatalf("ExtractFromTurn: %v", err)
	}
	if !strings.Contains(completer.lastReq.UserPrompt, "Nicholas") {
		t.Error("expected the prompt to be primed with known subjects")
	}
}

func TestService_ExtractFromTurn_NoCompleterIsDegraded(t *testing.T) {
	svc := NewService(nil, nil)
	if _, err := svc.ExtractFromTurn(context.Background(), "hi"); err == nil {
		t.Fatal("expected an error when no completer is configured")
	}
}

func TestService_ExtractFromTurn_EmptyTextSkipsCall(t *testing.T) {
	completer := &fakeCompleter{response: `{"facts": []}`}
	svc := NewService(completer, nil)

	result, err := svc.ExtractFromTurn(context.Background(), "")
	if err != nil {
		t.Fatalf("ExtractFromTurn: %v", err)
	}
	if len(result.Facts) != 0 {
		t.Errorf("expected no facts for empty input, got %d", len(result.Facts))
	}
	if completer.lastReq.UserPrompt != "" {
		t.Error("expected the completer to never be called for empty text")
	}
}

func TestService_ExtractFromTurn_ObservesExtractedSubjects(t *testing.T) {
	completer := &fakeCompleter{response: `{"facts": [{"fact": "User likes tea", "factType": "preference", "subject": "Nicholas", "confidence": 70}]}`}
	known := NewKnownSubjects()
	svc := NewService(completer, known)

	if _, err := svc.ExtractFromTurn(context.Background(), "I like tea"); err != nil {
		t.Fatalf("ExtractFromTurn: %v", err)
	}
	top := known.Top(5)
	if len(top) != 1 || top[0] != "Nicholas" {
		t.Errorf("expected the extracted subject to be observed, got %+v", top)
	}
}

func TestBuildUserPrompt_WithKnownSubjects(t *testing.T) {
	prompt := BuildUserPrompt("Some text about a trip.", []string{"Nicholas", "Paris"})
	if !strings.Contains(prompt, "KNOWN SUBJECTS") {
		t.Error("expected a KNOWN SUBJECTS section in the prompt")
	}
	if !strings.Contains(prompt, "Nicholas, Paris") {
		t.Error("expected the known subjects list in the prompt")
	}
}

func TestBuildUserPrompt_NoKnownSubjects(t *testing.T) {
	prompt := BuildUserPrompt("Some text.", nil)
	if strings.Contains(prompt, "KNOWN SUBJECTS") {
		t.Error("should not include a KNOWN SUBJECTS section when none were given")
	}
}

func TestBuildUserPrompt_TruncatesLongText(t *testing.T) {
	longText := strings.Repeat("x", MaxTextLength+500)
	prompt := BuildUserPrompt(longText, nil)
	if strings.Contains(prompt, longText) {
		t.Error("expected the prompt to truncate text beyond MaxTextLength")
	}
}
