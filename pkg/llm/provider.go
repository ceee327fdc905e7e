// Package llm defines the provider-agnostic contract the reasoning stages
// call models through. Concrete backends live in subpackages and are chosen
// per stage by the factory.
package llm

import (
	"context"
)

// Message is one entry of the chat history sent to a model.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option tunes a single call without changing the provider's defaults.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override the provider's default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider is the backend contract shared by both pipeline stages.
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the raw completion.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model.
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
