package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// notFoundMarkers short-circuit extraction when the fetched body is an
// archive error page rather than a statute.
var notFoundMarkers = []string{
	"error 404",
	"404 not found",
	"página no encontrada",
	"pagina no encontrada",
}

// Pre-compiled patterns for reference key derivation.
var (
	ordinalSuffixPattern = regexp.MustCompile(`(\d)\s*[oº°]\.?`)
	keySeparatorPattern  = regexp.MustCompile(`[\s.\-–—:;,]+`)
)

// Extractor pulls structured provisions out of normalized statute text.
// Extraction runs in two passes: a forward scan producing an ordered
// marker token list, then a fold that assembles provision content and
// carries the hierarchical context in force at each position.
type Extractor struct {
	config ExtractConfig
}

// NewExtractor creates an Extractor. Non-positive config fields fall back
// to the defaults.
func NewExtractor(config ExtractConfig) *Extractor {
	defaults := DefaultExtractConfig()
	if config.MaxProvisionChars <= 0 {
		config.MaxProvisionChars = defaults.MaxProvisionChars
	}
	if config.MinProvisionChars <= 0 {
		config.MinProvisionChars = defaults.MinProvisionChars
	}
	if config.MinDocumentChars <= 0 {
		config.MinDocumentChars = defaults.MinDocumentChars
	}
	if config.MaxTransitory <= 0 {
		config.MaxTransitory = defaults.MaxTransitory
	}
	if config.MaxHeaderChars <= 0 {
		config.MaxHeaderChars = defaults.MaxHeaderChars
	}
	return &Extractor{config: config}
}

// Extract returns the provisions of a statute: numbered articles in source
// order followed by transitory clauses keyed sequentially. Inputs too short
// to be a statute, or carrying a not-found marker, yield nil.
func (extractor *Extractor) Extract(text string) []Provision {
	if utf8.RuneCountInString(text) < extractor.config.MinDocumentChars {
		return nil
	}
	lowered := strings.ToLower(text)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lowered, marker) {
			return nil
		}
	}

	lines := strings.Split(text, "\n")
	tokens := scan(lines, extractor.config.MaxHeaderChars)
	return extractor.fold(lines, tokens)
}

// fold performs the second pass: tokens become provisions, each tagged with
// the chapter context in force at its position. Transitory clauses keep
// their own section context and are appended after the numbered articles.
func (extractor *Extractor) fold(lines []string, tokens []token) []Provision {
	var regular []Provision
	var transitory []Provision

	currentChapter := ""
	transitorySection := ""
	usedKeys := make(map[string]bool)

	for tokenIndex, currentToken := range tokens {
		switch currentToken.kind {
		case headerToken:
			currentChapter = currentToken.label

		case transSectionToken:
			transitorySection = currentToken.label

		case articleToken:
			content := extractor.sliceContent(lines, tokens, tokenIndex)
			// Dropping an underweight numbered article is safe: its key
			// comes from the label, not from its position.
			if utf8.RuneCountInString(content) < extractor.config.MinProvisionChars {
				continue
			}
			regular = append(regular, Provision{
				Key:     uniqueKey(ReferenceKey(currentToken.label), usedKeys),
				Chapter: currentChapter,
				Label:   currentToken.label,
				Title:   shortTitle(content),
				Content: content,
			})

		case transMarkerToken:
			if len(transitory) >= extractor.config.MaxTransitory {
				continue
			}
			content := extractor.sliceContent(lines, tokens, tokenIndex)
			transitory = append(transitory, Provision{
				Key:     uniqueKey(fmt.Sprintf("trans%d", len(transitory)+1), usedKeys),
				Chapter: transitorySection,
				Label:   currentToken.label,
				Content: content,
			})
		}
	}

	return append(regular, transitory...)
}

// sliceContent assembles provision content from the marker's trailing text
// plus every line up to the next structural token, capped at the configured
// maximum.
func (extractor *Extractor) sliceContent(lines []string, tokens []token, tokenIndex int) string {
	currentToken := tokens[tokenIndex]

	endLine := len(lines)
	if tokenIndex+1 < len(tokens) {
		endLine = tokens[tokenIndex+1].line
	}

	parts := make([]string, 0, endLine-currentToken.line)
	if currentToken.rest != "" {
		parts = append(parts, currentToken.rest)
	}
	for lineIndex := currentToken.line + 1; lineIndex < endLine; lineIndex++ {
		parts = append(parts, strings.TrimSpace(lines[lineIndex]))
	}

	content := strings.TrimSpace(strings.Join(parts, "\n"))
	return truncateRunes(content, extractor.config.MaxProvisionChars)
}

// ReferenceKey derives the canonical lookup key for an article label.
// "Artículo 1o.", "Artículo 1." and "ARTÍCULO 1-" all normalize to "art1";
// "211 Bis 1" becomes "art211bis1".
func ReferenceKey(label string) string {
	key := accentReplacer.Replace(strings.ToLower(strings.TrimSpace(label)))
	key = strings.TrimPrefix(key, "articulo")
	key = strings.TrimPrefix(key, "art.")
	key = ordinalSuffixPattern.ReplaceAllString(key, "$1")
	key = keySeparatorPattern.ReplaceAllString(key, "")
	if key == "" {
		return ""
	}
	if !strings.HasPrefix(key, "art") {
		key = "art" + key
	}
	return key
}

// uniqueKey suffixes colliding keys so near-duplicate labels do not
// silently merge.
func uniqueKey(key string, used map[string]bool) string {
	if key == "" {
		key = "art"
	}
	candidate := key
	for suffix := 2; used[candidate]; suffix++ {
		candidate = fmt.Sprintf("%s-%d", key, suffix)
	}
	used[candidate] = true
	return candidate
}

// shortTitleMaxChars bounds the opportunistic first-sentence title.
const shortTitleMaxChars = 80

// shortTitle extracts a heading-sized first sentence when the provision
// opens with one, empty otherwise.
func shortTitle(content string) string {
	firstLine := content
	if newline := strings.IndexByte(firstLine, '\n'); newline >= 0 {
		firstLine = firstLine[:newline]
	}
	firstLine = strings.TrimSpace(firstLine)

	if stop := strings.IndexAny(firstLine, ".;"); stop > 0 {
		firstLine = firstLine[:stop]
	}
	if runes := utf8.RuneCountInString(firstLine); runes < 3 || runes > shortTitleMaxChars {
		return ""
	}
	return firstLine
}

// truncateRunes cuts content at a rune boundary after maxRunes characters.
func truncateRunes(content string, maxRunes int) string {
	if utf8.RuneCountInString(content) <= maxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxRunes])
}
