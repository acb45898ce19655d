package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent engram configuration stored as config.toml
// in the ~/.engram/ directory. The TOML layout uses sections for logical
// grouping. The file holds backend credentials and is always written 0600.
type Config struct {
	Version     int               `toml:"version" mapstructure:"version"`
	Storage     StorageConfig     `toml:"storage" mapstructure:"storage"`
	Backend     BackendConfig     `toml:"backend" mapstructure:"backend"`
	Embedding   EmbeddingConfig   `toml:"embedding" mapstructure:"embedding"`
	VectorStore VectorStoreConfig `toml:"vector_store" mapstructure:"vector_store"`
	Context     ContextConfig     `toml:"context" mapstructure:"context"`
	API         APIConfig         `toml:"api" mapstructure:"api"`
}

// StorageConfig overrides the database locations. Empty values mean the
// default files inside the engram home.
type StorageConfig struct {
	SessionsPath string `toml:"sessions_path,omitempty" mapstructure:"sessions_path"`
	FactsPath    string `toml:"facts_path,omitempty" mapstructure:"facts_path"`
}

// BackendConfig selects the remote sync backend and carries its credentials.
// Which fields matter depends on Name:
//
//	local          none
//	github, gitee  Token, Repo, Branch
//	webdav         URL, Username, Password, Prefix
//	s3             Endpoint, Region, Bucket, AccessKey, SecretKey, Prefix
type BackendConfig struct {
	Name      string `toml:"name,omitempty" mapstructure:"name"`
	Token     string `toml:"token,omitempty" mapstructure:"token"`
	Repo      string `toml:"repo,omitempty" mapstructure:"repo"`
	Branch    string `toml:"branch,omitempty" mapstructure:"branch"`
	URL       string `toml:"url,omitempty" mapstructure:"url"`
	Username  string `toml:"username,omitempty" mapstructure:"username"`
	Password  string `toml:"password,omitempty" mapstructure:"password"`
	Endpoint  string `toml:"endpoint,omitempty" mapstructure:"endpoint"`
	Region    string `toml:"region,omitempty" mapstructure:"region"`
	Bucket    string `toml:"bucket,omitempty" mapstructure:"bucket"`
	AccessKey string `toml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey string `toml:"secret_key,omitempty" mapstructure:"secret_key"`
	Prefix    string `toml:"prefix,omitempty" mapstructure:"prefix"`
}

// EmbeddingConfig holds embedding provider settings. An empty Provider
// disables semantic search.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty" mapstructure:"provider"`
	Target     string `toml:"target,omitempty" mapstructure:"target"`
	Model      string `toml:"model,omitempty" mapstructure:"model"`
	Dimensions uint   `toml:"dimensions,omitempty" mapstructure:"dimensions"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`
	Target   string `toml:"target,omitempty" mapstructure:"target"`
}

// ContextConfig holds the character budgets of the rendered context files.
type ContextConfig struct {
	CoreBudget    int `toml:"core_budget,omitempty" mapstructure:"core_budget"`
	PinnedBudget  int `toml:"pinned_budget,omitempty" mapstructure:"pinned_budget"`
	ProjectBudget int `toml:"project_budget,omitempty" mapstructure:"project_budget"`
	RecentBudget  int `toml:"recent_budget,omitempty" mapstructure:"recent_budget"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty" mapstructure:"listen"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret values are masked by DisplayValue.
	secret bool
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func secretKey(field func(c *Config) *string) configKeyInfo {
	info := stringKey(field)
	info.secret = true
	return info
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n <= 0 {
				return fmt.Errorf("invalid value for %s: must be positive", name)
			}
			*field(c) = n
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sessions_path": stringKey(func(c *Config) *string { return &c.Storage.SessionsPath }),
	"storage.facts_path":    stringKey(func(c *Config) *string { return &c.Storage.FactsPath }),

	"backend.name": {
		get: func(c *Config) string { return c.Backend.Name },
		set: func(c *Config, v string) error {
			if !IsValidBackend(v) {
				return fmt.Errorf("invalid value for backend.name: %q (available: %v)", v, ValidBackendNames())
			}
			c.Backend.Name = v
			return nil
		},
	},
	"backend.token":      secretKey(func(c *Config) *string { return &c.Backend.Token }),
	"backend.repo":       stringKey(func(c *Config) *string { return &c.Backend.Repo }),
	"backend.branch":     stringKey(func(c *Config) *string { return &c.Backend.Branch }),
	"backend.url":        stringKey(func(c *Config) *string { return &c.Backend.URL }),
	"backend.username":   stringKey(func(c *Config) *string { return &c.Backend.Username }),
	"backend.password":   secretKey(func(c *Config) *string { return &c.Backend.Password }),
	"backend.endpoint":   stringKey(func(c *Config) *string { return &c.Backend.Endpoint }),
	"backend.region":     stringKey(func(c *Config) *string { return &c.Backend.Region }),
	"backend.bucket":     stringKey(func(c *Config) *string { return &c.Backend.Bucket }),
	"backend.access_key": secretKey(func(c *Config) *string { return &c.Backend.AccessKey }),
	"backend.secret_key": secretKey(func(c *Config) *string { return &c.Backend.SecretKey }),
	"backend.prefix":     stringKey(func(c *Config) *string { return &c.Backend.Prefix }),

	"embedding.provider": stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":   stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":    stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},

	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),

	"context.core_budget":    intKey("context.core_budget", func(c *Config) *int { return &c.Context.CoreBudget }),
	"context.pinned_budget":  intKey("context.pinned_budget", func(c *Config) *int { return &c.Context.PinnedBudget }),
	"context.project_budget": intKey("context.project_budget", func(c *Config) *int { return &c.Context.ProjectBudget }),
	"context.recent_budget":  intKey("context.recent_budget", func(c *Config) *int { return &c.Context.RecentBudget }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),
}
