// Package embedding provides the embedding Provider seam used by every
// package that needs to vectorize text (memory, extract, layers, search).
// Grounded on the teacher's llm/embedding package; adapted to emit the f32
// vectors the spec's Memory.Embedding field requires.
package embedding

import (
	"context"
	"time"
)

// InputType optimizes the embedding for its downstream use.
type InputType string

const (
	InputTypeQuery    InputType = "query"
	InputTypeDocument InputType = "document"
)

// Request is a request to embed one or more text inputs.
type Request struct {
	Input     []string  `json:"input"`
	InputType InputType `json:"input_type,omitempty"`
}

// Response is the result of an embedding request.
type Response struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Provider is the unified embedding seam. Dynamic dispatch on the
// embedding backend is confined to this interface (spec §9).
type Provider interface {
	// Embed embeds every string in req.Input, preserving order.
	Embed(ctx context.Context, req *Request) (*Response, error)

	// EmbedQuery is a convenience wrapper for a single query string.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// EmbedDocuments is a convenience wrapper for a batch of documents.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error)

	// Dimensions returns the fixed vector length this provider produces.
	Dimensions() int

	// Name returns the provider's identifier, used in logs and metrics.
	Name() string
}
