package session

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cortexmem/engine/cortexerr"
	"github.com/cortexmem/engine/embedding"
	"github.com/cortexmem/engine/fs"
	"github.com/cortexmem/engine/layers"
	"github.com/cortexmem/engine/llmchat"
	"github.com/cortexmem/engine/types"
	"github.com/cortexmem/engine/uri"
	"github.com/cortexmem/engine/vectorstore"
)

var commitCodeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// decodeJSONLoose parses raw into v, first stripping code fences and
// trimming to the outer JSON object if the strict parse fails. Same
// fence-stripping fallback as extract.extractJSON/update.extractJSONArray/
// memory.decodeJSONLoose, duplicated here since it's a small unexported
// helper in each package rather than a shared dependency.
func decodeJSONLoose(raw string, v any) bool {
	if json.Unmarshal([]byte(raw), v) == nil {
		return true
	}
	clean := strings.TrimSpace(raw)
	if strings.Contains(clean, "```") {
		if m := commitCodeFencePattern.FindStringSubmatch(clean); len(m) > 1 {
			clean = strings.TrimSpace(m[1])
		}
	}
	if start := strings.IndexAny(clean, "{["); start >= 0 {
		var end int
		if clean[start] == '{' {
			end = strings.LastIndex(clean, "}")
		} else {
			end = strings.LastIndex(clean, "]")
		}
		if end > start {
			clean = clean[start : end+1]
		}
	}
	return json.Unmarshal([]byte(clean), v) == nil
}

// categories are the fixed extraction buckets spec §4.6 names for the
// close-session memory extraction step.
var categories = []string{
	"preferences", "entities", "events", "cases",
	"personal_info", "work_history", "relationships", "goals",
}

// CommitPipelineDeps are the components the close-session pipeline drives.
// Any of these may be nil to skip that stage entirely (useful for tests
// that only exercise the session/lock mechanics).
type CommitPipelineDeps struct {
	Layers *layers.Generator
	Chat   llmchat.Provider
	Embed  embedding.Provider
	Store  vectorstore.Store
}

type commitPipeline struct {
	fsys   fs.FileSystem
	deps   CommitPipelineDeps
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func newCommitPipeline(fsys fs.FileSystem, deps CommitPipelineDeps, cfg Config, logger *zap.Logger) *commitPipeline {
	return &commitPipeline{fsys: fsys, deps: deps, cfg: cfg, logger: logger.With(zap.String("component", "commit_pipeline")), now: time.Now}
}

// run executes the three commit-pipeline steps in order (spec §4.6 "Close
// session"). Each step is independently skippable when its dependency is
// nil, so a caller without an LLM/embedding/vector-store wiring can still
// exercise message append and layer generation.
func (p *commitPipeline) run(ctx context.Context, sess Session) error {
	if p.deps.Layers != nil {
		if _, err := p.deps.Layers.EnsureTimelineLayers(ctx, threadRootURI(sess.ThreadID)); err != nil {
			p.logger.Warn("ensure_timeline_layers failed", zap.String("thread_id", sess.ThreadID), zap.Error(err))
		}
	}
	if p.deps.Chat == nil {
		return nil
	}

	transcript, err := p.readTimeline(ctx, sess.ThreadID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(transcript) == "" {
		return nil
	}

	extraction, err := p.extractCategories(ctx, transcript)
	if err != nil {
		return cortexerr.New(cortexerr.LLM, "close_session: category extraction failed").WithCause(err)
	}

	written := 0
	for _, category := range categories {
		items := extraction[category]
		if len(items) == 0 {
			continue
		}
		dir := p.categoryDir(sess, category)
		if dir == nil {
			continue
		}
		novel, existingCount, err := p.dedupeAgainstExisting(ctx, *dir, items)
		if err != nil {
			p.logger.Warn("category dedup failed", zap.String("category", category), zap.Error(err))
			continue
		}
		seq := existingCount
		for _, item := range novel {
			if err := ctx.Err(); err != nil {
				return err
			}
			seq++
			fileURI, content := p.renderCategoryFile(*dir, category, item, seq)
			if err := p.fsys.Write(ctx, fileURI.String(), content); err != nil {
				p.logger.Warn("category file write failed", zap.String("uri", fileURI.String()), zap.Error(err))
				continue
			}
			p.indexFile(ctx, sess, fileURI, item.Content)
			written++
			p.throttle(written)
		}
	}
	return nil
}

func (p *commitPipeline) throttle(itemsWritten int) {
	time.Sleep(p.cfg.ItemDelay)
	if itemsWritten%5 == 0 {
		time.Sleep(p.cfg.ItemDelay)
	}
}

func (p *commitPipeline) readTimeline(ctx context.Context, threadID string) (string, error) {
	entries, err := p.fsys.ListRecursive(ctx, threadTimelineURI(threadID).String())
	if err != nil {
		return "", cortexerr.New(cortexerr.Other, "close_session: timeline listing failed").WithCause(err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URI < entries[j].URI })

	var b strings.Builder
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		content, _, err := p.fsys.Read(ctx, e.URI)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n---\n")
	}
	return b.String(), nil
}

const categoryExtractionPromptTemplate = `Read the following session transcript and extract durable facts, grouped
into these categories: preferences, entities, events, cases, personal_info,
work_history, relationships, goals. For each item give a short dedup key
combining its most distinguishing fields (e.g. "topic+preference" for a
preference).

Respond with strict JSON: {"preferences": [{"content": "...", "confidence":
0.0, "key": "..."}], "entities": [...], "events": [...], "cases": [...],
"personal_info": [...], "work_history": [...], "relationships": [...],
"goals": [...]}. Omit categories with nothing to report. Respond with ONLY
the JSON object.

Transcript:
%s
`

type categoryItem struct {
	Content    string  `json:"content"`
	Confidence float32 `json:"confidence"`
	Key        string  `json:"key"`
}

func (p *commitPipeline) extractCategories(ctx context.Context, transcript string) (map[string][]categoryItem, error) {
	resp, err := p.deps.Chat.Complete(ctx, &llmchat.Request{
		Messages: []llmchat.Message{{Role: llmchat.RoleUser, Content: fmt.Sprintf(categoryExtractionPromptTemplate, transcript)}},
	})
	if err != nil {
		return nil, err
	}
	var parsed map[string][]categoryItem
	decodeJSONLoose(resp.Content, &parsed)
	return parsed, nil
}

func (p *commitPipeline) categoryDir(sess Session, category string) *uri.URI {
	if category == "cases" && sess.AgentID != "" {
		u := uri.URI{Dimension: uri.DimensionAgent, Segments: []string{sess.AgentID, "cases"}}
		return &u
	}
	if sess.UserID == "" {
		return nil
	}
	u := uri.URI{Dimension: uri.DimensionUser, Segments: []string{sess.UserID, category}}
	return &u
}

// dedupeAgainstExisting loads existing files under dir and drops any new
// item whose composite key is string-similar (> 0.8) to an existing file's
// recorded key (spec §4.6 "deduplicate new items against existing ones").
// It also returns the count of pre-existing (non-directory) entries in dir,
// which the caller uses to seed renderCategoryFile's filename sequence
// instead of any shared counter.
func (p *commitPipeline) dedupeAgainstExisting(ctx context.Context, dir uri.URI, items []categoryItem) ([]categoryItem, int, error) {
	entries, err := p.fsys.List(ctx, dir.String())
	if err != nil && cortexerr.CodeOf(err) != cortexerr.NotFound {
		return nil, 0, err
	}
	var existingKeys []string
	existingCount := 0
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		existingCount++
		content, _, err := p.fsys.Read(ctx, e.URI)
		if err != nil {
			continue
		}
		existingKeys = append(existingKeys, extractKeyStamp(content))
	}

	novel := make([]categoryItem, 0, len(items))
	for _, item := range items {
		if item.Key == "" {
			item.Key = item.Content
		}
		isDup := false
		for _, existing := range existingKeys {
			if stringSimilarity(item.Key, existing) > 0.8 {
				isDup = true
				break
			}
		}
		if !isDup {
			novel = append(novel, item)
			existingKeys = append(existingKeys, item.Key)
		}
	}
	return novel, existingCount, nil
}

var keyStampPrefix = "**Key**: "

func extractKeyStamp(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, keyStampPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, keyStampPrefix))
		}
	}
	return content
}

// stringSimilarity is a token-based Jaccard overlap, consistent with the
// fact extractor's near-duplicate test (extract.FilterAndSort).
func stringSimilarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,!?;:\"'()[]{}")
		if tok != "" {
			out[tok] = struct{}{}
		}
	}
	return out
}

// renderCategoryFile names the file with a caller-supplied sequence number
// derived from the target directory's existing entry count (see
// dedupeAgainstExisting), rather than a package-level counter: concurrent
// CloseSession calls for different sessions share one commitPipeline
// instance, so any shared mutable sequence state would race across them.
func (p *commitPipeline) renderCategoryFile(dir uri.URI, category string, item categoryItem, seq int) (uri.URI, string) {
	name := category + "_" + strconv.Itoa(seq) + ".md"
	fileURI := dir.Join(name)
	content := fmt.Sprintf("%s\n\n**Key**: %s\n**Added**: %s\n**Confidence**: %.2f\n",
		item.Content, item.Key, p.now().UTC().Format("2006-01-02 15:04:05")+" UTC", item.Confidence)
	return fileURI, content
}

func (p *commitPipeline) indexFile(ctx context.Context, sess Session, fileURI uri.URI, content string) {
	if p.deps.Embed == nil || p.deps.Store == nil {
		return
	}
	vec, err := p.deps.Embed.EmbedQuery(ctx, content)
	if err != nil {
		p.logger.Warn("vector indexing: embedding failed", zap.String("uri", fileURI.String()), zap.Error(err))
		return
	}
	now := p.now().UTC()
	mem := types.Memory{
		ID:        fileURI.String(),
		Content:   content,
		Embedding: vec,
		Metadata: types.MemoryMetadata{
			Hash:       types.HashContent(content),
			MemoryType: types.Semantic,
			UserID:     sess.UserID,
			AgentID:    sess.AgentID,
			URI:        fileURI.String(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.deps.Store.Insert(ctx, mem); err != nil {
		p.logger.Warn("vector indexing: insert failed", zap.String("uri", fileURI.String()), zap.Error(err))
	}
}
