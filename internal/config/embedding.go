package config

import (
	"errors"
	"fmt"
	"os"
)

var embeddingProviders = map[string]bool{
	"jina":              true,
	"openai-compatible": true,
}

// EmbeddingConfig selects the model that vectorizes vibelogs for related posts.
type EmbeddingConfig struct {
	Name       string `mapstructure:"name"`
	Provider   string `mapstructure:"provider"` // jina or openai-compatible
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	APIKeyEnv  string `mapstructure:"api_key_env"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"` // must match the qdrant collection
}

// ResolveEnvVars reads APIKey from the variable named by APIKeyEnv. A key set
// directly in config wins.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKey != "" || c.APIKeyEnv == "" {
		return
	}
	c.APIKey = os.Getenv(c.APIKeyEnv)
}

// Validate reports every problem at once so a bad deploy fails with the full list.
func (c *EmbeddingConfig) Validate() error {
	var errs []error
	if !embeddingProviders[c.Provider] {
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.Provider == "openai-compatible" && c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required for openai-compatible"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Dimensions <= 0 {
		errs = append(errs, errors.New("dimensions must be positive"))
	}
	if c.APIKey == "" {
		errs = append(errs, fmt.Errorf("api_key is required (set it directly or via %s)", c.APIKeyEnv))
	}
	if len(errs) > 0 {
		return fmt.Errorf("embedding %q: %w", c.Name, errors.Join(errs...))
	}
	return nil
}
