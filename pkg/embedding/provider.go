// Package embedding turns workflow text into the vectors the archive stores
// for similarity search.
package embedding

// EmbeddingProvider generates an embedding vector for a piece of text.
// taskType distinguishes document vectors from query vectors for backends
// that care.
type EmbeddingProvider interface {
	Generate(text string, taskType string) (*EmbeddingResponse, error)
}
