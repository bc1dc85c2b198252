// Package ports declares the capability interfaces the orchestrator depends
// on instead of any concrete vendor SDK: Embedder for vector generation and
// Completer for LLM chat completions. Concrete adapters live in pkg/llmclient.
package ports

import "context"

// Embedder turns text into a fixed-dimension vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// CompletionRequest is a single non-streaming chat completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	JSONMode     bool // ask the provider to constrain output to JSON
}

// CompletionResult is the textual response plus basic usage accounting.
type CompletionResult struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Completer performs a single-shot LLM completion, used for fact extraction
// and belief-revision arbitration.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}
