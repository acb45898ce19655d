package config

import "slices"

const (
	defaultBackend = "local"

	defaultVectorProvider = "sqlite"

	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingTarget     = "http://localhost:11434"

	defaultCoreBudget    = 400
	defaultPinnedBudget  = 800
	defaultProjectBudget = 1600
	defaultRecentBudget  = 800

	defaultAPIListen = "127.0.0.1:8765"
)

var backendNames = []string{"local", "github", "gitee", "webdav", "s3"}

// ValidBackendNames returns the supported remote backend names.
func ValidBackendNames() []string {
	return slices.Clone(backendNames)
}

// IsValidBackend reports whether name is a supported backend.
func IsValidBackend(name string) bool {
	return slices.Contains(backendNames, name)
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Backend: BackendConfig{
			Name: defaultBackend,
		},
		Embedding: EmbeddingConfig{
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Context: ContextConfig{
			CoreBudget:    defaultCoreBudget,
			PinnedBudget:  defaultPinnedBudget,
			ProjectBudget: defaultProjectBudget,
			RecentBudget:  defaultRecentBudget,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
