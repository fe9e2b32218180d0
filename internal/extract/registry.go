// Package extract structures raw recipe text into the validated recipe
// document the engine consumes. It sits upstream of the engine and never
// touches session state.
package extract

import (
	"fmt"
	"os"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	OpenAIProvider ProviderType = "openai"
	OllamaProvider ProviderType = "ollama"
)

// ProviderConfig defines a supported LLM provider
type ProviderConfig struct {
	Type   ProviderType
	Model  string
	APIKey string
	// BaseURL covers OpenAI-compatible endpoints and local Ollama hosts.
	BaseURL string
}

// ModelRegistry manages available LLM models
type ModelRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderConfig
	instances map[string]llms.Model
}

// NewModelRegistry creates a registry with the default provider set.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		providers: map[string]ProviderConfig{
			"gpt4": {
				Type:  OpenAIProvider,
				Model: "gpt-4-turbo-preview",
			},
			"llama3": {
				Type:  OllamaProvider,
				Model: "llama3",
			},
		},
		instances: make(map[string]llms.Model),
	}
}

// RegisterProvider adds or replaces a named provider configuration.
func (r *ModelRegistry) RegisterProvider(name string, cfg ProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = cfg
	delete(r.instances, name)
}

// GetModel returns an initialized LLM instance for the named provider.
func (r *ModelRegistry) GetModel(name string) (llms.Model, error) {
	r.mu.RLock()
	if model, exists := r.instances[name]; exists {
		r.mu.RUnlock()
		return model, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if model, exists := r.instances[name]; exists {
		return model, nil
	}

	cfg, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}

	model, err := buildModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize model %q: %w", name, err)
	}
	r.instances[name] = model
	return model, nil
}

func buildModel(cfg ProviderConfig) (llms.Model, error) {
	switch cfg.Type {
	case OpenAIProvider:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(apiKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case OllamaProvider:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}
