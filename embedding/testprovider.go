package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// DeterministicProvider is a test double that derives a unit vector from
// the hash of its input text, so the same text always embeds to the same
// vector and different texts embed to (very likely) different vectors.
// Grounded on the teacher's testutil/mocks builder-style fakes
// (testutil/mocks/provider.go), adapted for the embedding seam.
type DeterministicProvider struct {
	BaseProvider
	err error
}

// NewDeterministicProvider creates a DeterministicProvider with the given
// fixed output dimension.
func NewDeterministicProvider(dimensions int) *DeterministicProvider {
	return &DeterministicProvider{
		BaseProvider: NewBaseProvider(BaseConfig{Name: "deterministic-test", Model: "deterministic-v1", Dimensions: dimensions}),
	}
}

// WithError makes every subsequent Embed call fail with err, for testing
// best-effort enhancement paths that must tolerate embedding failure.
func (p *DeterministicProvider) WithError(err error) *DeterministicProvider {
	p.err = err
	return p
}

func (p *DeterministicProvider) Embed(ctx context.Context, req *Request) (*Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(req.Input))
	for i, text := range req.Input {
		out[i] = vectorFor(text, p.Dimensions())
	}
	return &Response{Provider: p.Name(), Model: "deterministic-v1", Embeddings: out}, nil
}

func (p *DeterministicProvider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return p.BaseProvider.EmbedQuery(ctx, query, p.Embed)
}

func (p *DeterministicProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	return p.BaseProvider.EmbedDocuments(ctx, documents, p.Embed)
}

// vectorFor derives a deterministic unit vector of length dim from text.
// Each component is seeded from a distinct FNV-1a hash of (text, index) so
// components are not simply repeated, then the vector is L2-normalized.
func vectorFor(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 8
	}
	v := make([]float32, dim)
	for i := 0; i < dim; i++ {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		_, _ = h.Write([]byte{byte(i), byte(i >> 8)})
		sum := h.Sum64()
		// Map to [-1, 1].
		v[i] = float32(int64(sum%2000001)-1000000) / 1000000.0
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
