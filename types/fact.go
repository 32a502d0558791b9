package types

// FactCategory classifies an ExtractedFact. Priority order for sorting
// (spec §4.2.4) is Personal > Preference > Factual > Procedural > Contextual.
type FactCategory string

const (
	CategoryPersonal    FactCategory = "personal"
	CategoryPreference  FactCategory = "preference"
	CategoryFactual     FactCategory = "factual"
	CategoryProcedural  FactCategory = "procedural"
	CategoryContextual  FactCategory = "contextual"
)

// categoryPriority ranks categories for the stable sort in spec §4.2.4 step 4.
// Higher value sorts first.
var categoryPriority = map[FactCategory]int{
	CategoryPersonal:   5,
	CategoryPreference: 4,
	CategoryFactual:    3,
	CategoryProcedural: 2,
	CategoryContextual: 1,
}

// Priority returns the sort priority of c; unknown categories sort last.
func (c FactCategory) Priority() int {
	return categoryPriority[c]
}

// ExtractedFact is a candidate unit of durable knowledge produced by the
// fact extractor, prior to being planned into memory update actions.
type ExtractedFact struct {
	Content     string       `json:"content"`
	Importance  float32      `json:"importance"`
	Category    FactCategory `json:"category"`
	Entities    []string     `json:"entities,omitempty"`
	Language    string       `json:"language,omitempty"`
	SourceRole  Role         `json:"source_role"`
}

// MemoryTypeForCategory maps an extracted fact's category onto a MemoryType
// for CREATE actions (spec §4.3 "type chosen from fact category").
func MemoryTypeForCategory(c FactCategory) MemoryType {
	switch c {
	case CategoryPersonal:
		return Personal
	case CategoryPreference:
		return Semantic
	case CategoryProcedural:
		return Procedural
	case CategoryContextual:
		return Episodic
	case CategoryFactual:
		fallthrough
	default:
		return Factual
	}
}
