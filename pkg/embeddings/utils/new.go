// Package embeddingutils builds an Embedder from configuration.
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/engram/pkg/embeddings"
	"github.com/papercomputeco/engram/pkg/embeddings/ollama"
)

// ProviderOllama is the only supported embedding provider.
const ProviderOllama = "ollama"

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   uint
}

// NewEmbedder returns nil, nil when no provider is configured; semantic
// search is then disabled.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "":
		return nil, nil
	case ProviderOllama:
		return ollama.New(ollama.Config{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: int(o.Dimensions),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
