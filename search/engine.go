// Package search implements the Layered Search Engine (spec §4.7): an
// L0 fan-out over the URI namespace, L1 re-scoring of the surviving
// candidates, and an L2 fetch of the winning directories' raw content,
// blended with importance the same way the Memory Manager ranks results.
package search

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cortexmem/engine/cortexerr"
	"github.com/cortexmem/engine/embedding"
	"github.com/cortexmem/engine/fs"
	"github.com/cortexmem/engine/types"
	"github.com/cortexmem/engine/uri"
	"github.com/cortexmem/engine/vectorstore"
)

// Options bounds one Search call (spec §4.7 "{limit, threshold, root_uri?,
// recursive}").
type Options struct {
	Limit        int
	Threshold    *float64
	RootURI      *uri.URI
	Recursive    bool
	ReturnLayers bool
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = 10
	}
	return o
}

// Hit is one ranked result. Snippet and L0 always hold the L0 excerpt; L1 is
// populated only when ReturnLayers was requested (spec §4.7 step 3).
type Hit struct {
	URI        string
	Snippet    string
	L0         string
	L1         string
	Content    string
	Similarity float64
	Importance float32
	CreatedAt  time.Time
}

var dimensions = []uri.Dimension{uri.DimensionSession, uri.DimensionUser, uri.DimensionAgent, uri.DimensionResources}

// Engine runs layered search over a FileSystem, using embed to score
// candidates on the fly and store to resolve a directory's associated
// vector-indexed memory, when one exists, for its importance score and raw
// content.
type Engine struct {
	fsys   fs.FileSystem
	embed  embedding.Provider
	store  vectorstore.Store
	logger *zap.Logger
}

func New(fsys fs.FileSystem, embed embedding.Provider, store vectorstore.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{fsys: fsys, embed: embed, store: store, logger: logger.With(zap.String("component", "search_engine"))}
}

// Search runs the four-step layered ranking described in spec §4.7.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	opts = opts.withDefaults()
	if query == "" {
		return nil, cortexerr.New(cortexerr.Validation, "search: query is required")
	}

	queryVec, err := e.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, cortexerr.New(cortexerr.LLM, "search: query embedding failed").WithCause(err)
	}

	candidates, err := e.fanOutL0(ctx, opts, queryVec)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	e.rescoreWithL1(ctx, candidates, queryVec)

	overfetch := opts.Limit * 3
	if overfetch < opts.Limit+10 {
		overfetch = opts.Limit + 10
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].similarity > candidates[j].similarity })
	if len(candidates) > overfetch {
		candidates = candidates[:overfetch]
	}

	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		hit := e.fetchL2(ctx, c, opts)
		hits = append(hits, hit)
	}

	blend(hits)
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

type l0Candidate struct {
	dir        uri.URI
	l0         string
	similarity float64
}

// fanOutL0 walks every directory reachable from the configured root (or
// from the four dimension roots) that carries an L0 abstract, embeds each
// abstract, and keeps those scoring at or above threshold (spec §4.7 step
// 1).
func (e *Engine) fanOutL0(ctx context.Context, opts Options, queryVec []float32) ([]l0Candidate, error) {
	roots := e.roots(opts.RootURI)

	var out []l0Candidate
	for _, root := range roots {
		entries, err := e.fsys.ListRecursive(ctx, root.String())
		if err != nil {
			if cortexerr.CodeOf(err) == cortexerr.NotFound {
				continue
			}
			return nil, cortexerr.New(cortexerr.Other, "search: listing failed").WithCause(err)
		}
		for _, entry := range entries {
			if entry.IsDir || !isAbstractFile(entry.URI) {
				continue
			}
			content, _, err := e.fsys.Read(ctx, entry.URI)
			if err != nil {
				continue
			}
			vec, err := e.embed.EmbedQuery(ctx, content)
			if err != nil {
				e.logger.Warn("l0 embedding failed", zap.String("uri", entry.URI), zap.Error(err))
				continue
			}
			sim := cosineSimilarity(queryVec, vec)
			if opts.Threshold != nil && sim < *opts.Threshold {
				continue
			}
			dir, err := uri.Parse(stripName(entry.URI))
			if err != nil {
				continue
			}
			out = append(out, l0Candidate{dir: dir, l0: content, similarity: sim})
		}
	}
	return out, nil
}

func (e *Engine) roots(rootURI *uri.URI) []uri.URI {
	if rootURI != nil {
		return []uri.URI{*rootURI}
	}
	roots := make([]uri.URI, len(dimensions))
	for i, d := range dimensions {
		roots[i] = uri.URI{Dimension: d}
	}
	return roots
}

// rescoreWithL1 re-scores each L0 hit against its sibling L1 overview, when
// one exists, blending the two similarities (spec §4.7 step 2, resolved
// open question: equal-weight average of L0 and L1 similarity).
func (e *Engine) rescoreWithL1(ctx context.Context, candidates []l0Candidate, queryVec []float32) {
	for i := range candidates {
		l1URI := candidates[i].dir.Join(uri.OverviewFile)
		content, _, err := e.fsys.Read(ctx, l1URI.String())
		if err != nil {
			continue
		}
		vec, err := e.embed.EmbedQuery(ctx, content)
		if err != nil {
			e.logger.Warn("l1 embedding failed", zap.String("uri", l1URI.String()), zap.Error(err))
			continue
		}
		simL1 := cosineSimilarity(queryVec, vec)
		candidates[i].similarity = 0.5*candidates[i].similarity + 0.5*simL1
	}
}

// fetchL2 loads the raw content backing a surviving candidate, preferring
// the vector store (when the directory corresponds to an indexed memory,
// resolved by URI-as-id) and falling back to reading the directory's
// content files directly (spec §4.7 step 3).
func (e *Engine) fetchL2(ctx context.Context, c l0Candidate, opts Options) Hit {
	hit := Hit{
		URI:        c.dir.String(),
		Snippet:    c.l0,
		L0:         c.l0,
		Similarity: c.similarity,
		Importance: 0.5,
	}

	if mem, ok := e.lookupMemory(ctx, c.dir.String()); ok {
		hit.Content = mem.Content
		hit.Importance = mem.Metadata.ImportanceScore
		hit.CreatedAt = mem.CreatedAt
	} else if content, ok := e.readFirstContentFile(ctx, c.dir); ok {
		hit.Content = content
	}

	if opts.ReturnLayers {
		if l1, _, err := e.fsys.Read(ctx, c.dir.Join(uri.OverviewFile).String()); err == nil {
			hit.L1 = l1
		}
	}
	return hit
}

func (e *Engine) lookupMemory(ctx context.Context, id string) (types.Memory, bool) {
	if e.store == nil {
		return types.Memory{}, false
	}
	mem, err := e.store.Get(ctx, id)
	if err != nil {
		return types.Memory{}, false
	}
	return mem, true
}

func (e *Engine) readFirstContentFile(ctx context.Context, dir uri.URI) (string, bool) {
	entries, err := e.fsys.List(ctx, dir.String())
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir || isReservedFile(entry.URI) {
			continue
		}
		content, _, err := e.fsys.Read(ctx, entry.URI)
		if err != nil {
			continue
		}
		return content, true
	}
	return "", false
}

// blend applies the §4.1/§4.7 shared ranking formula: 0.7*sim + 0.3*importance,
// stable tie-break by created_at (newer first).
func blend(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		si := 0.7*hits[i].Similarity + 0.3*float64(hits[i].Importance)
		sj := 0.7*hits[j].Similarity + 0.3*float64(hits[j].Importance)
		if si != sj {
			return si > sj
		}
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})
}

func isAbstractFile(uriStr string) bool {
	return hasSuffix(uriStr, "/"+uri.AbstractFile)
}

func isReservedFile(uriStr string) bool {
	return hasSuffix(uriStr, "/"+uri.AbstractFile) || hasSuffix(uriStr, "/"+uri.OverviewFile) || hasSuffix(uriStr, "/"+uri.SessionFile)
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// stripName removes the trailing "/<filename>" segment from a file URI to
// recover its parent directory's URI string.
func stripName(uriStr string) string {
	for i := len(uriStr) - 1; i >= 0; i-- {
		if uriStr[i] == '/' {
			return uriStr[:i]
		}
	}
	return uriStr
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
