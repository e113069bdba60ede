package provider

import (
	"context"
	"fmt"

	"github.com/arovi-health/arovi/config"
)

// LLMProvider is the boundary every LLM-backed stage talks through. The core
// only defines prompt templates and output-key shapes; model behaviour lives
// behind this interface.
type LLMProvider interface {
	// Generate generates text using the LLM
	Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error)

	// GenerateWithTokens generates text and returns input/output token usage
	GenerateWithTokens(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, int64, int64, error)

	// GetAvailableModels returns available models
	GetAvailableModels() []string

	// GetModelInfo returns information about a specific model
	GetModelInfo(model string) (ModelInfo, error)

	// CalculateCost calculates the cost for a given number of tokens
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// ModelInfo contains information about an LLM model
type ModelInfo struct {
	Name            string   `json:"name"`
	Provider        string   `json:"provider"`
	MaxTokens       int      `json:"max_tokens"`
	CostPer1KInput  float64  `json:"cost_per_1k_input"`
	CostPer1KOutput float64  `json:"cost_per_1k_output"`
	Capabilities    []string `json:"capabilities"`
	Description     string   `json:"description"`
}

// NewLLMProvider creates an LLM provider based on configuration. The first
// configured provider wins.
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	for _, pc := range cfg.Providers {
		switch pc.Type {
		case "openai":
			return NewOpenAIProvider(pc), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", pc.Type)
		}
	}

	return nil, fmt.Errorf("no valid LLM providers found")
}
