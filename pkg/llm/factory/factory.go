package factory

import (
	"fmt"

	"workflow-agent-be/pkg/llm"
	"workflow-agent-be/pkg/llm/huggingface"
	"workflow-agent-be/pkg/llm/ollama"
)

// NewLLMProvider builds a provider by type name. The apiKey is only used by
// hosted providers; ollama ignores it.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
