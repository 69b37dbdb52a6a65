// Package extract turns normalized statute text into structured provisions:
// numbered articles with their hierarchical context, trailing transitory
// clauses, and defined terms.
package extract

// Provision is a single addressable unit of statute text: a numbered
// article or an ordinal-word transitory clause.
type Provision struct {
	// Key is the canonical reference key ("art1", "art211bis1", "trans3").
	// Unique within a document.
	Key string `json:"key" bson:"key"`

	// Chapter is the hierarchical-context label in force where the
	// provision was found ("TÍTULO PRIMERO - Disposiciones Generales").
	Chapter string `json:"chapter,omitempty" bson:"chapter,omitempty"`

	// Label is the human-readable marker as displayed ("1o", "211 Bis 1",
	// "PRIMERO").
	Label string `json:"label" bson:"label"`

	// Title is an opportunistic short title taken from the first sentence.
	Title string `json:"title,omitempty" bson:"title,omitempty"`

	// Content is the provision text, capped at a maximum length.
	Content string `json:"content" bson:"content"`
}

// Definition is a term defined inside a provision's enumerated list.
type Definition struct {
	Term    string `json:"term" bson:"term"`
	Meaning string `json:"meaning" bson:"meaning"`

	// Key is the reference key of the provision the term was defined in.
	Key string `json:"key" bson:"key"`
}

// ExtractConfig holds the extraction safety bounds.
type ExtractConfig struct {
	// MaxProvisionChars truncates runaway provision content, which
	// otherwise swallows the rest of the document when a boundary is
	// missed.
	MaxProvisionChars int

	// MinProvisionChars discards implausibly short articles as false
	// positive boundary matches.
	MinProvisionChars int

	// MinDocumentChars short-circuits extraction on inputs too short to
	// be a statute.
	MinDocumentChars int

	// MaxTransitory caps how many transitory clauses are extracted per
	// document.
	MaxTransitory int

	// MaxHeaderChars caps the length of a hierarchical-context label.
	MaxHeaderChars int
}

// DefaultExtractConfig returns an ExtractConfig with sensible bounds.
func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		MaxProvisionChars: 20000,
		MinProvisionChars: 60,
		MinDocumentChars:  200,
		MaxTransitory:     40,
		MaxHeaderChars:    120,
	}
}
