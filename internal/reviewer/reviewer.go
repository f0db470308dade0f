// Package reviewer invokes external LLM endpoints to critique a plan.
package reviewer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Reviewer is one configured model endpoint. Review returns the model's
// raw reply text; transport and API failures return an error.
type Reviewer interface {
	Name() string
	Review(ctx context.Context, prompt string) (string, error)
}

// Config holds invocation settings shared by all reviewers.
type Config struct {
	Timeout time.Duration
	Proxy   string
}

// DefaultConfig reads invocation settings from viper.
func DefaultConfig() Config {
	timeout := viper.GetInt("review.timeout_seconds")
	if timeout <= 0 {
		timeout = 120
	}
	return Config{
		Timeout: time.Duration(timeout) * time.Second,
		Proxy:   viper.GetString("proxy"),
	}
}

// FromViper builds the enabled reviewers in configuration order: claude,
// gemini, qwen. A reviewer is enabled iff its API key is configured
// (config file or environment fallback). Zero enabled reviewers is a fatal
// configuration error.
func FromViper(cfg Config) ([]Reviewer, error) {
	client, err := newHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	var reviewers []Reviewer

	if key := apiKey("claude.api_key", "ANTHROPIC_API_KEY"); key != "" {
		reviewers = append(reviewers, NewAnthropic(key, viper.GetString("claude.model")))
	}
	if key := apiKey("gemini.api_key", "GEMINI_API_KEY"); key != "" {
		reviewers = append(reviewers, NewGemini(client, key, viper.GetString("gemini.model")))
	}
	if key := apiKey("qwen.api_key", "DASHSCOPE_API_KEY"); key != "" {
		reviewers = append(reviewers, NewQwen(client, key, viper.GetString("qwen.model")))
	}

	if len(reviewers) == 0 {
		return nil, fmt.Errorf("no reviewer models configured: set at least one API key (run 'planreview config init')")
	}
	return reviewers, nil
}

// apiKey reads a credential from viper with an environment fallback.
func apiKey(viperKey, envVar string) string {
	if key := viper.GetString(viperKey); key != "" {
		return key
	}
	return os.Getenv(envVar)
}

// newHTTPClient builds the shared client for REST backends, honoring an
// optional outbound proxy. Per-call deadlines come from the context, not a
// client timeout.
func newHTTPClient(proxy string) (*http.Client, error) {
	if proxy == "" {
		return &http.Client{}, nil
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("parse proxy URL %q: %w", proxy, err)
	}
	return &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
	}, nil
}
