package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/engram/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file from
// the engram home, and binds environment variables with the ENGRAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ENGRAM_API_LISTEN, ENGRAM_BACKEND_NAME, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("ENGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper decodes the merged viper state into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. Every registry key gets a default so that
// AutomaticEnv can resolve it during Unmarshal.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)
	for _, key := range ValidConfigKeys() {
		switch key {
		case "embedding.dimensions":
			v.SetDefault(key, d.Embedding.Dimensions)
		case "context.core_budget":
			v.SetDefault(key, d.Context.CoreBudget)
		case "context.pinned_budget":
			v.SetDefault(key, d.Context.PinnedBudget)
		case "context.project_budget":
			v.SetDefault(key, d.Context.ProjectBudget)
		case "context.recent_budget":
			v.SetDefault(key, d.Context.RecentBudget)
		default:
			v.SetDefault(key, configKeys[key].get(d))
		}
	}
}
