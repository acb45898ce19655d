package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/engram/pkg/dotdir"
)

const (
	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0

	// configPerm keeps credentials readable by the owner only.
	configPerm = 0o600

	maskedValue = "********"
)

// ErrInvalidKey is returned for config keys that are not in the registry.
var ErrInvalidKey = errors.New("unknown config key")

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(target, dotdir.ConfigFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the list of all supported configuration key names in
// the order of the TOML section layout.
func ValidConfigKeys() []string {
	ordered := []string{
		"storage.sessions_path",
		"storage.facts_path",
		"backend.name",
		"backend.token",
		"backend.repo",
		"backend.branch",
		"backend.url",
		"backend.username",
		"backend.password",
		"backend.endpoint",
		"backend.region",
		"backend.bucket",
		"backend.access_key",
		"backend.secret_key",
		"backend.prefix",
		"embedding.provider",
		"embedding.target",
		"embedding.model",
		"embedding.dimensions",
		"vector_store.provider",
		"vector_store.target",
		"context.core_budget",
		"context.pinned_budget",
		"context.project_budget",
		"context.recent_budget",
		"api.listen",
	}

	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the engram home.
// If the file does not exist, returns NewDefaultConfig() so callers always
// receive a fully-populated Config. Fields explicitly set in the file override
// the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Backend.Name == "" {
		cfg.Backend.Name = defaults.Backend.Name
	}

	if cfg.Embedding.Target == "" {
		cfg.Embedding.Target = defaults.Embedding.Target
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaults.Embedding.Model
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = defaults.Embedding.Dimensions
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = defaults.VectorStore.Provider
	}

	if cfg.Context.CoreBudget == 0 {
		cfg.Context.CoreBudget = defaults.Context.CoreBudget
	}
	if cfg.Context.PinnedBudget == 0 {
		cfg.Context.PinnedBudget = defaults.Context.PinnedBudget
	}
	if cfg.Context.ProjectBudget == 0 {
		cfg.Context.ProjectBudget = defaults.Context.ProjectBudget
	}
	if cfg.Context.RecentBudget == 0 {
		cfg.Context.RecentBudget = defaults.Context.RecentBudget
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
}

// SaveConfig persists the configuration to config.toml in the engram home.
// The file mode is forced to 0600 even when the file already existed with
// wider permissions.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), configPerm); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := os.Chmod(c.targetPath, configPerm); err != nil {
		return fmt.Errorf("restricting config permissions: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// DisplayValue returns the value of key for printing, masking credentials.
func DisplayValue(cfg *Config, key string) string {
	info, ok := configKeys[key]
	if !ok {
		return ""
	}

	v := info.get(cfg)
	if info.secret && v != "" {
		return maskedValue
	}
	return v
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
