// Package config resolves detector configuration from viper and the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/pulseboard/surveykpi/internal/common"
	"github.com/pulseboard/surveykpi/internal/llm"
)

// Detector builds the LLM configuration from viper settings. The API key is
// read from `llm.anthropic_api_key`, falling back to the ANTHROPIC_API_KEY
// environment variable.
func Detector() (llm.Config, error) {
	cfg := llm.Config{
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
	}

	// Defaults
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	apiKey := viper.GetString("llm.anthropic_api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return llm.Config{}, fmt.Errorf("%w: anthropic API key not found in config or ANTHROPIC_API_KEY environment variable", common.ErrMissingConfig)
	}
	cfg.APIKey = apiKey

	return cfg, nil
}
