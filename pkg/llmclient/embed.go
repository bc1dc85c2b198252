package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cortexmem/memcore/pkg/cortexerr"
)

// Dimensions reports the embedding width configured for this client.
// Google's text-embedding-004 produces 768-dimensional vectors; callers
// using a different EmbedModel should set dims via WithDimensions.
func (c *Client) Dimensions() int {
	if c.dims != 0 {
		return c.dims
	}
	return 768
}

type googleEmbedRequest struct {
	Model   string `json:"model"`
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

type googleEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed satisfies ports.Embedder using Google's embedContent endpoint.
// OpenRouter has no first-party embeddings endpoint, so an
// OpenRouter-configured Client always returns a Degraded error here;
// callers should configure a dedicated embedding provider in that case.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.cfg.Provider != ProviderGoogle {
		return nil, cortexerr.New(cortexerr.Degraded, "llmclient.embed", "configured provider has no embeddings endpoint")
	}
	model := c.cfg.EmbedModel
	if model == "" {
		model = "text-embedding-004"
	}
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:embedContent?key=%s", model, c.cfg.APIKey)

	var body googleEmbedRequest
	body.Model = "models/" + model
	body.Content.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Validation, "llmclient.embed", "failed to marshal request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.embed", "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.embed", "request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.embed", "failed to read response", err)
	}
	if resp.StatusCode >= 500 {
		return nil, cortexerr.New(cortexerr.Transport, "llmclient.embed", fmt.Sprintf("embeddings endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, cortexerr.New(cortexerr.Validation, "llmclient.embed", fmt.Sprintf("embeddings request rejected: %d %s", resp.StatusCode, string(raw)))
	}

	var parsed googleEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "llmclient.embed", "failed to parse response", err)
	}
	if parsed.Error != nil {
		return nil, cortexerr.New(cortexerr.Transport, "llmclient.embed", parsed.Error.Message)
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, cortexerr.New(cortexerr.Degraded, "llmclient.embed", "empty embedding")
	}
	return parsed.Embedding.Values, nil
}
