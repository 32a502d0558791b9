// Package memory implements the Memory Manager (spec §4.1): the single
// orchestration surface wiring fact extraction, update planning, embeddings
// and the vector store together behind store/add_memory/search/CRUD.
package memory

// Config bounds the manager's behavior.
type Config struct {
	// Deduplicate enables the hash-based dedup scan in Store.
	Deduplicate bool
	// AutoEnhance enables the best-effort enhancement pipeline in Store.
	AutoEnhance bool
	// DedupScanLimit caps how many same-scope candidates Store inspects for
	// an exact hash match, default 100.
	DedupScanLimit int
	// UpdateTopK is how many similar existing memories AddMemory searches
	// for per extracted fact before invoking the updater, default 5.
	UpdateTopK int
	// AutoSummaryChars is the content length above which the enhancement
	// pipeline asks the LLM for a summary, default 2000.
	AutoSummaryChars int
	// MergeThreshold is the cosine-similarity floor the enhancement
	// pipeline's duplicate-merge step uses, default 0.9.
	MergeThreshold float64
	// MaxConcurrentFacts bounds how many extracted facts AddMemory plans and
	// applies at once, default 4.
	MaxConcurrentFacts int
}

func (c Config) withDefaults() Config {
	if c.DedupScanLimit <= 0 {
		c.DedupScanLimit = 100
	}
	if c.UpdateTopK <= 0 {
		c.UpdateTopK = 5
	}
	if c.AutoSummaryChars <= 0 {
		c.AutoSummaryChars = 2000
	}
	if c.MergeThreshold <= 0 {
		c.MergeThreshold = 0.9
	}
	if c.MaxConcurrentFacts <= 0 {
		c.MaxConcurrentFacts = 4
	}
	return c
}
