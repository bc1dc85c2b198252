package extraction

import (
	"context"

	"github.com/cortexmem/memcore/pkg/cortexerr"
	"github.com/cortexmem/memcore/pkg/ports"
)

// Service coordinates fact extraction from a conversational turn. It
// composes with a ports.Completer for the actual LLM call and a
// KnownSubjects tracker for prompt priming.
type Service struct {
	completer ports.Completer
	known     *KnownSubjects
}

// NewService creates an extraction service backed by the given completer.
// known may be nil, in which case no subjects are primed into the prompt.
func NewService(completer ports.Completer, known *KnownSubjects) *Service {
	return &Service{completer: completer, known: known}
}

// ExtractFromTurn performs an LLM call to extract candidate facts from the
// given turn text. If the reply cannot be parsed it retries once with a
// stricter instruction; a second unusable reply yields an empty result.
func (s *Service) ExtractFromTurn(ctx context.Context, text string) (*Result, error) {
	if s.completer == nil {
		return nil, cortexerr.New(cortexerr.Degraded, "extraction.extract", "no completer configured")
	}

	text = truncateText(text)
	if text == "" {
		return &Result{}, nil
	}

	var knownSubjects []string
	if s.known != nil {
		knownSubjects = s.known.Top(20)
	}
	userPrompt := BuildUserPrompt(text, knownSubjects)

	resp, err := s.completer.Complete(ctx, ports.CompletionRequest{
		SystemPrompt: SystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.3,
		MaxTokens:    2048,
		JSONMode:     true,
	})
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Degraded, "extraction.extract", "LLM call failed", err)
	}

	result, err := ParseResponse(resp.Content)
	if err != nil {
		retryResp, retryErr := s.completer.Complete(ctx, ports.CompletionRequest{
			SystemPrompt: SystemPrompt + "\nYour previous reply could not be parsed. Reply with the JSON object only, no prose and no markdown.",
			UserPrompt:   userPrompt,
			Temperature:  0.3,
			MaxTokens:    2048,
			JSONMode:     true,
		})
		if retryErr != nil {
			return &Result{}, nil
		}
		if result, err = ParseResponse(retryResp.Content); err != nil {
			return &Result{}, nil
		}
	}

	if s.known != nil {
		for _, f := range result.Facts {
			s.known.Observe(f.Subject)
		}
	}

	return result, nil
}

func truncateText(text string) string {
	if len(text) > MaxTextLength {
		return text[:MaxTextLength]
	}
	return text
}
