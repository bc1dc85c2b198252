// Package llmclient provides net/http-based Completer and Embedder adapters
// for OpenRouter and Google GenAI, replacing GoKitt's syscall/js fetch
// bridge (browser-only) with a transport any Go process can run.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cortexmem/memcore/pkg/cortexerr"
	"github.com/cortexmem/memcore/pkg/ports"
)

// Provider names a supported LLM backend.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderGoogle     Provider = "google"
)

// Config holds credentials and model selection for one provider.
type Config struct {
	Provider    Provider
	APIKey      string
	Model       string
	EmbedModel  string
	BaseURL     string // override for testing
	HTTPTimeout time.Duration
}

// Client is a Completer (and, for providers that support it, an Embedder)
// backed by plain HTTP calls.
type Client struct {
	cfg  Config
	http *http.Client
	dims int
}

// WithDimensions overrides the reported embedding width (see Dimensions).
func (c *Client) WithDimensions(n int) *Client {
	c.dims = n
	return c
}

// New builds a Client for the given config. IsConfigured reports whether
// it has credentials; callers that need extraction disabled without an
// API key should check that instead of treating a missing key as fatal.
func New(cfg Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

// IsConfigured reports whether credentials and a model are present.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != "" && c.cfg.Model != ""
}

func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	switch c.cfg.Provider {
	case ProviderGoogle:
		return c.completeGoogle(ctx, req)
	default:
		return c.completeOpenRouter(ctx, req)
	}
}

// --- OpenRouter -------------------------------------------------------

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterRequest struct {
	Model          string          `json:"model"`
	Messages       []openRouterMsg `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Stream         bool            `json:"stream"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (c *Client) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	return "https://openrouter.ai/api/v1/chat/completions"
}

func (c *Client) completeOpenRouter(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	messages := make([]openRouterMsg, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openRouterMsg{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openRouterMsg{Role: "user", Content: req.UserPrompt})

	body := openRouterRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	}
	if req.JSONMode {
		body.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Validation, "llmclient.complete", "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.complete", "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))
	httpReq.Header.Set("HTTP-Referer", "https://cortexmem.local")
	httpReq.Header.Set("X-Title", "cortexmem")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.complete", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.complete", "failed to read response", err)
	}
	if resp.StatusCode >= 500 {
		return nil, cortexerr.New(cortexerr.Transport, "llmclient.complete", fmt.Sprintf("openrouter returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, cortexerr.New(cortexerr.Validation, "llmclient.complete", fmt.Sprintf("openrouter rejected request: %d %s", resp.StatusCode, string(raw)))
	}

	var parsed openRouterResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.complete", "failed to parse response", err)
	}
	if parsed.Error != nil {
		return nil, cortexerr.New(cortexerr.Transport, "llmclient.complete", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, cortexerr.New(cortexerr.Degraded, "llmclient.complete", "empty completion")
	}
	return &ports.CompletionResult{
		Content:      parsed.Choices[0].Message.Content,
		PromptTokens: parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// --- Google GenAI -------------------------------------------------------

type googleContent struct {
	Role  string `json:"role,omitempty"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type googleRequest struct {
	Contents         []googleContent `json:"contents"`
	SystemInstruction *googleContent `json:"systemInstruction,omitempty"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) completeGoogle(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	url := c.cfg.BaseURL
	if url == "" {
		url = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", c.cfg.Model, c.cfg.APIKey)
	}

	body := googleRequest{
		Contents: []googleContent{{Role: "user", Parts: []struct {
			Text string `json:"text"`
		}{{Text: req.UserPrompt}}}},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &googleContent{Parts: []struct {
			Text string `json:"text"`
		}{{Text: req.SystemPrompt}}}
	}
	body.GenerationConfig.Temperature = req.Temperature
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Validation, "llmclient.complete", "failed to marshal request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.complete", "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.complete", "request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.complete", "failed to read response", err)
	}
	if resp.StatusCode >= 500 {
		return nil, cortexerr.New(cortexerr.Transport, "llmclient.complete", fmt.Sprintf("google genai returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, cortexerr.New(cortexerr.Validation, "llmclient.complete", fmt.Sprintf("google genai rejected request: %d %s", resp.StatusCode, string(raw)))
	}

	var parsed googleResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.complete", "failed to parse response", err)
	}
	if parsed.Error != nil {
		return nil, cortexerr.New(cortexerr.Transport, "llmclient.complete", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, cortexerr.New(cortexerr.Degraded, "llmclient.complete", "empty completion")
	}
	return &ports.CompletionResult{
		Content:      parsed.Candidates[0].Content.Parts[0].Text,
		PromptTokens: parsed.UsageMetadata.PromptTokenCount,
		OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
	}, nil
}
