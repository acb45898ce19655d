// Package ollama embeds session text through a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/engram/pkg/embeddings"
	"github.com/papercomputeco/engram/pkg/vector"
)

const (
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultBaseURL        = "http://localhost:11434"

	defaultTimeout = 60 * time.Second
)

// Embedder calls Ollama's /api/embed endpoint.
type Embedder struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// Config holds configuration for the Ollama embedder.
type Config struct {
	// BaseURL is the Ollama API URL. A bare host:port gets an http scheme.
	BaseURL string

	Model string

	// Dimensions, when non-zero, is enforced on every returned embedding.
	Dimensions int

	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// New creates an Embedder. It does not contact the server.
func New(c Config) *Embedder {
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	model := c.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Embedder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		dimensions: c.Dimensions,
		httpClient: client,
	}
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", vector.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: ollama returned status %d: %s",
			vector.ErrEmbedding, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vector.ErrEmbedding, err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrEmbedding)
	}

	emb := out.Embeddings[0]
	if e.dimensions > 0 && len(emb) != e.dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d, configured %d",
			vector.ErrDimensions, e.model, len(emb), e.dimensions)
	}
	return emb, nil
}

// Ping reports whether the server answers on /api/tags.
func (e *Embedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
