// Package layers implements the Layer Generator (spec §4.4): it scans the
// URI filesystem and maintains the L0 (.abstract.md) and L1 (.overview.md)
// summary files that the layered search engine fans out over.
package layers

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"go.uber.org/zap"

	"github.com/cortexmem/engine/fs"
	"github.com/cortexmem/engine/llmchat"
	"github.com/cortexmem/engine/uri"
)

const addedTimeLayout = "2006-01-02 15:04:05"

var addedStampPattern = regexp.MustCompile(`\*\*Added\*\*:\s*(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\s*UTC`)

// Config bounds the generator's behavior (spec §6 "Environment / config
// hooks"): max_chars for L0/L1, batch size and inter-batch delay for
// rate-limiting the LLM.
type Config struct {
	MaxCharsL0      int
	MaxCharsL1      int
	AggregateCap    int // spec §4.4 step 1: 10,000 characters
	MaxTokensL0     int // spec §4.4 step 4: ~400 tokens, tiktoken-counted
	MaxTokensL1     int // spec §4.4 step 4: ~1500 tokens, tiktoken-counted
	BatchSize       int
	InterBatchDelay time.Duration
	TokenizerModel  string // tiktoken encoding hint, e.g. "gpt-4o"
}

func (c Config) withDefaults() Config {
	if c.MaxCharsL0 <= 0 {
		c.MaxCharsL0 = 1600 // ~400 tokens
	}
	if c.MaxCharsL1 <= 0 {
		c.MaxCharsL1 = 6000 // ~1500 tokens
	}
	if c.AggregateCap <= 0 {
		c.AggregateCap = 10000
	}
	if c.MaxTokensL0 <= 0 {
		c.MaxTokensL0 = 400
	}
	if c.MaxTokensL1 <= 0 {
		c.MaxTokensL1 = 1500
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.InterBatchDelay <= 0 {
		c.InterBatchDelay = 2 * time.Second
	}
	return c
}

// BatchResult reports how many directories a batched generation run touched
// (spec §4.4 "per-directory failures are counted, not fatal").
type BatchResult struct {
	Processed int
	Generated int
	Failed    int
	Errors    []error
}

// Generator produces and refreshes L0/L1 layer files over a FileSystem.
type Generator struct {
	fsys    fs.FileSystem
	chat    llmchat.Provider
	cfg     Config
	logger  *zap.Logger
	tokens  *tokenCounter
	now     func() time.Time
	limiter *rate.Limiter
}

// New creates a Generator. chat is the LLM used for AbstractGenerator
// (L0) and OverviewGenerator (L1) prompts.
func New(fsys fs.FileSystem, chat llmchat.Provider, cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Generator{
		fsys:    fsys,
		chat:    chat,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "layers_generator")),
		tokens:  newTokenCounter(cfg.TokenizerModel),
		now:     time.Now,
		limiter: rate.NewLimiter(rate.Every(cfg.InterBatchDelay), 1),
	}
}

// Scan recursively lists candidate directories under each top-level
// dimension, skipping hidden entries (spec §4.4 "Scan").
func (g *Generator) Scan(ctx context.Context) ([]uri.URI, error) {
	roots := []uri.URI{
		{Dimension: uri.DimensionSession},
		{Dimension: uri.DimensionUser},
		{Dimension: uri.DimensionAgent},
		{Dimension: uri.DimensionResources},
	}
	var out []uri.URI
	for _, root := range roots {
		dirs, err := g.listDirs(ctx, root)
		if err != nil {
			return nil, err
		}
		out = append(out, dirs...)
	}
	return out, nil
}

func (g *Generator) listDirs(ctx context.Context, dir uri.URI) ([]uri.URI, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := g.fsys.List(ctx, dir.String())
	if err != nil {
		return nil, err
	}
	out := []uri.URI{dir}
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		child, err := uri.Parse(e.URI)
		if err != nil || child.IsHidden() {
			continue
		}
		sub, err := g.listDirs(ctx, child)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// HasLayers reports whether both layer files exist under dir (spec §4.4
// "has_layers").
func (g *Generator) HasLayers(ctx context.Context, dir uri.URI) (bool, error) {
	abstractOK, err := g.fsys.Exists(ctx, dir.Join(uri.AbstractFile).String())
	if err != nil {
		return false, err
	}
	overviewOK, err := g.fsys.Exists(ctx, dir.Join(uri.OverviewFile).String())
	if err != nil {
		return false, err
	}
	return abstractOK && overviewOK, nil
}

// ShouldRegenerate implements spec §4.4 "should_regenerate": true if either
// layer file is missing, the abstract has no parseable Added stamp, or any
// sibling content file is stamped strictly newer than the abstract.
func (g *Generator) ShouldRegenerate(ctx context.Context, dir uri.URI) (bool, error) {
	has, err := g.HasLayers(ctx, dir)
	if err != nil {
		return false, err
	}
	if !has {
		return true, nil
	}

	abstract, _, err := g.fsys.Read(ctx, dir.Join(uri.AbstractFile).String())
	if err != nil {
		return true, nil
	}
	abstractStamp, ok := parseAddedStamp(abstract)
	if !ok {
		return true, nil
	}

	entries, err := g.fsys.List(ctx, dir.String())
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		child, err := uri.Parse(e.URI)
		if err != nil || child.IsHidden() || !isContentFile(child.Name()) {
			continue
		}
		content, _, err := g.fsys.Read(ctx, e.URI)
		if err != nil {
			continue
		}
		stamp, ok := parseAddedStamp(content)
		if !ok {
			continue
		}
		if stamp.After(abstractStamp) {
			return true, nil
		}
	}
	return false, nil
}

// Generate produces and writes fresh L0/L1 layer files for dir (spec §4.4
// "Generate"). It is a no-op (returns false, nil) when dir has no
// aggregable content.
func (g *Generator) Generate(ctx context.Context, dir uri.URI) (bool, error) {
	aggregate, err := g.aggregateContent(ctx, dir)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(aggregate) == "" {
		return false, nil
	}

	abstract, err := g.generateLayer(ctx, abstractSystemPrompt, aggregate)
	if err != nil {
		return false, fmt.Errorf("generate abstract for %s: %w", dir, err)
	}
	overview, err := g.generateLayer(ctx, overviewSystemPrompt, aggregate)
	if err != nil {
		return false, fmt.Errorf("generate overview for %s: %w", dir, err)
	}

	now := g.now().UTC()
	abstract = capText(abstract, g.cfg.MaxCharsL0, false)
	abstract = g.capTokens(abstract, g.cfg.MaxTokensL0)
	abstract = abstract + "\n\n**Added**: " + now.Format(addedTimeLayout) + " UTC"

	overview = capText(overview, g.cfg.MaxCharsL1, true)
	overview = g.capTokens(overview, g.cfg.MaxTokensL1)
	overview = overview + "\n\n---\n\n**Added**: " + now.Format(addedTimeLayout) + " UTC"

	if err := g.fsys.Write(ctx, dir.Join(uri.AbstractFile).String(), abstract); err != nil {
		return false, err
	}
	if err := g.fsys.Write(ctx, dir.Join(uri.OverviewFile).String(), overview); err != nil {
		return false, err
	}
	return true, nil
}

const abstractSystemPrompt = "You write a terse abstract (roughly 400 tokens) summarizing the key facts in the supplied content. Output only the abstract text."
const overviewSystemPrompt = "You write a structured overview (roughly 1500 tokens) of the supplied content, organized by theme. Output only the overview text."

func (g *Generator) generateLayer(ctx context.Context, systemPrompt, aggregate string) (string, error) {
	resp, err := g.chat.Complete(ctx, &llmchat.Request{
		Messages: []llmchat.Message{
			{Role: llmchat.RoleSystem, Content: systemPrompt},
			{Role: llmchat.RoleUser, Content: aggregate},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (g *Generator) aggregateContent(ctx context.Context, dir uri.URI) (string, error) {
	entries, err := g.fsys.List(ctx, dir.String())
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URI < entries[j].URI })

	var b strings.Builder
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		child, err := uri.Parse(e.URI)
		if err != nil || child.IsHidden() || !isContentFile(child.Name()) {
			continue
		}
		content, _, err := g.fsys.Read(ctx, e.URI)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n\n=== %s ===\n\n%s", child.Name(), content)
	}
	return capAggregate(b.String(), g.cfg.AggregateCap), nil
}

func isContentFile(name string) bool {
	return strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".txt")
}

func capAggregate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "\n\n[aggregate truncated at 10,000 characters]"
}

var sentenceTerminators = map[rune]struct{}{
	'。': {}, '？': {}, '！': {}, '.': {}, '?': {}, '!': {},
}

// capText enforces a layer's length cap (spec §4.4 step 4). It prefers
// truncating at the last sentence terminator before the cap; failing that,
// L1 prefers the last paragraph boundary, and both fall back to a hard cut
// with a truncation suffix.
func capText(text string, max int, isL1 bool) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	window := runes[:max]
	if idx := lastSentenceBoundary(window); idx >= 0 {
		return string(window[:idx+1])
	}
	if isL1 {
		if idx := strings.LastIndex(string(window), "\n\n"); idx >= 0 {
			return string(window)[:idx] + "\n\n[content truncated...]"
		}
	}
	cut := max - 3
	if cut < 0 {
		cut = 0
	}
	if cut > len(runes) {
		cut = len(runes)
	}
	return string(runes[:cut]) + "..."
}

// capTokens enforces the token budget tiktoken-go measures (spec §4.4 step
// 4's ~400/~1500 token caps), applied after capText's sentence-safe
// character truncation above. capText alone only bounds rune count, which
// drifts from true token count on content tiktoken tokenizes densely (CJK
// text, code, unusual punctuation); this re-checks with the real encoder
// and shrinks proportionally to the overshoot until it fits.
func (g *Generator) capTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	for i := 0; i < 8; i++ {
		count := g.tokens.Count(text)
		if count <= maxTokens {
			return text
		}
		runes := []rune(text)
		cut := int(float64(len(runes)) * float64(maxTokens) / float64(count))
		if cut <= 0 {
			return ""
		}
		if cut >= len(runes) {
			cut = len(runes) - 1
		}
		text = strings.TrimSpace(string(runes[:cut])) + "..."
	}
	return text
}

func lastSentenceBoundary(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if _, ok := sentenceTerminators[runes[i]]; ok {
			return i
		}
	}
	return -1
}

func parseAddedStamp(content string) (time.Time, bool) {
	m := addedStampPattern.FindStringSubmatch(content)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(addedTimeLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// EnsureAllLayers generates layers for every directory returned by Scan
// that currently lacks or needs regenerated layers (spec §4.4
// "ensure_all_layers"), batched with an inter-batch delay.
func (g *Generator) EnsureAllLayers(ctx context.Context) (BatchResult, error) {
	dirs, err := g.Scan(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	return g.ensureLayers(ctx, dirs)
}

// EnsureTimelineLayers generates L0/L1 for every timeline subdirectory of
// threadURI missing them (spec §4.6 step 1).
func (g *Generator) EnsureTimelineLayers(ctx context.Context, threadURI uri.URI) (BatchResult, error) {
	timelineRoot := threadURI.Join("timeline")
	dirs, err := g.listDirs(ctx, timelineRoot)
	if err != nil {
		return BatchResult{}, err
	}
	return g.ensureLayers(ctx, dirs)
}

// RegenerateOversizedAbstracts regenerates layers for any directory whose
// current abstract exceeds the configured L0 cap once its Added trailer is
// stripped (spec §4.4 "regenerate_oversized_abstracts").
func (g *Generator) RegenerateOversizedAbstracts(ctx context.Context) (BatchResult, error) {
	dirs, err := g.Scan(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	var oversized []uri.URI
	for _, dir := range dirs {
		content, _, err := g.fsys.Read(ctx, dir.Join(uri.AbstractFile).String())
		if err != nil {
			continue
		}
		stripped := stripAddedStamp(content)
		if len([]rune(stripped)) > g.cfg.MaxCharsL0 {
			oversized = append(oversized, dir)
		}
	}
	return g.runBatches(ctx, oversized, func(ctx context.Context, dir uri.URI) (bool, error) {
		return g.Generate(ctx, dir)
	})
}

func stripAddedStamp(content string) string {
	return strings.TrimSpace(addedStampPattern.ReplaceAllString(content, ""))
}

func (g *Generator) ensureLayers(ctx context.Context, dirs []uri.URI) (BatchResult, error) {
	var need []uri.URI
	for _, dir := range dirs {
		should, err := g.ShouldRegenerate(ctx, dir)
		if err != nil {
			g.logger.Warn("should_regenerate check failed", zap.String("dir", dir.String()), zap.Error(err))
			continue
		}
		if should {
			need = append(need, dir)
		}
	}
	return g.runBatches(ctx, need, func(ctx context.Context, dir uri.URI) (bool, error) {
		return g.Generate(ctx, dir)
	})
}

// runBatches processes dirs in fixed-size batches, running each batch's
// directories concurrently and, between batches, waiting on a rate limiter
// that admits one batch per InterBatchDelay (spec §5 "Backpressure"). The
// limiter starts with one token, so the first inter-batch wait returns at
// once. A per-directory failure is counted and does not abort the batch
// (spec §4.4).
func (g *Generator) runBatches(ctx context.Context, dirs []uri.URI, work func(context.Context, uri.URI) (bool, error)) (BatchResult, error) {
	result := BatchResult{}
	batchSize := g.cfg.BatchSize

	for start := 0; start < len(dirs); start += batchSize {
		end := start + batchSize
		if end > len(dirs) {
			end = len(dirs)
		}
		batch := dirs[start:end]

		grp, gctx := errgroup.WithContext(ctx)
		generated := make([]bool, len(batch))
		errs := make([]error, len(batch))
		for i, dir := range batch {
			i, dir := i, dir
			grp.Go(func() error {
				ok, err := work(gctx, dir)
				generated[i] = ok
				errs[i] = err
				return nil // per-directory errors are collected, not propagated
			})
		}
		_ = grp.Wait()

		for i := range batch {
			result.Processed++
			if errs[i] != nil {
				result.Failed++
				result.Errors = append(result.Errors, errs[i])
				g.logger.Warn("layer generation failed", zap.String("dir", batch[i].String()), zap.Error(errs[i]))
				continue
			}
			if generated[i] {
				result.Generated++
			}
		}

		if end < len(dirs) {
			if err := g.limiter.Wait(ctx); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}
