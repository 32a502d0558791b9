package embedding

import (
	"context"

	"github.com/cortexmem/engine/cortexerr"
)

// BaseProvider supplies the EmbedQuery/EmbedDocuments convenience wrappers
// shared by every concrete provider, grounded on the teacher's
// llm/embedding/base.go BaseProvider.
type BaseProvider struct {
	name       string
	model      string
	dimensions int
}

// BaseConfig configures a BaseProvider.
type BaseConfig struct {
	Name       string
	Model      string
	Dimensions int
}

// NewBaseProvider constructs a BaseProvider.
func NewBaseProvider(cfg BaseConfig) BaseProvider {
	return BaseProvider{name: cfg.Name, model: cfg.Model, dimensions: cfg.Dimensions}
}

func (p BaseProvider) Name() string    { return p.name }
func (p BaseProvider) Dimensions() int { return p.dimensions }

// EmbedQuery issues a single-input embed request through embedFn.
func (p BaseProvider) EmbedQuery(
	ctx context.Context,
	query string,
	embedFn func(context.Context, *Request) (*Response, error),
) ([]float32, error) {
	resp, err := embedFn(ctx, &Request{Input: []string{query}, InputType: InputTypeQuery})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, cortexerr.New(cortexerr.LLM, "embedding provider returned no vectors")
	}
	return resp.Embeddings[0], nil
}

// EmbedDocuments issues a batch embed request through embedFn.
func (p BaseProvider) EmbedDocuments(
	ctx context.Context,
	documents []string,
	embedFn func(context.Context, *Request) (*Response, error),
) ([][]float32, error) {
	resp, err := embedFn(ctx, &Request{Input: documents, InputType: InputTypeDocument})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
