package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// definitionCues are the phrases signalling that a provision defines
// terms. Compared against lowercase, accent-folded content.
var definitionCues = []string{
	"se entendera por",
	"se entiende por",
	"se entienden por",
	"para los efectos de esta ley",
	"para los efectos de este codigo",
	"para los efectos de este reglamento",
	"para los efectos de la presente ley",
	"para efectos de esta ley",
	"para efectos de este codigo",
	"para efectos de este reglamento",
}

// romanItemPattern matches one enumerated definition:
// "I. Término: significado;".
var romanItemPattern = regexp.MustCompile(`^([IVXLCDM]+(?:\s+Bis)?)\.\s*([^:]+):\s*(.*)$`)

// Plausibility bounds for extracted terms and meanings, guarding against
// enumeration items that are not definitions.
const (
	minTermChars    = 2
	maxTermChars    = 120
	minMeaningChars = 10
	maxMeaningChars = 5000
)

// ExtractDefinitions pulls defined terms from a provision. Only provisions
// whose content carries a definitional cue phrase are scanned; within them,
// Roman-numeral enumerations of the form "I. Término: significado;" produce
// one Definition each. Continuation lines between items extend the pending
// meaning.
func ExtractDefinitions(provision Provision) []Definition {
	if !hasDefinitionCue(provision.Content) {
		return nil
	}

	var definitions []Definition
	var currentTerm string
	var meaningBuffer strings.Builder

	flushDefinition := func() {
		if currentTerm == "" {
			return
		}
		meaning := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(meaningBuffer.String()), ";"))
		if plausibleDefinition(currentTerm, meaning) {
			definitions = append(definitions, Definition{
				Term:    currentTerm,
				Meaning: meaning,
				Key:     provision.Key,
			})
		}
		currentTerm = ""
		meaningBuffer.Reset()
	}

	for _, line := range strings.Split(provision.Content, "\n") {
		trimmed := strings.TrimSpace(line)

		if match := romanItemPattern.FindStringSubmatch(trimmed); match != nil {
			flushDefinition()
			currentTerm = strings.TrimSpace(match[2])
			meaningBuffer.WriteString(strings.TrimSpace(match[3]))
			continue
		}

		if currentTerm != "" && trimmed != "" {
			if meaningBuffer.Len() > 0 {
				meaningBuffer.WriteString(" ")
			}
			meaningBuffer.WriteString(trimmed)
		}
	}
	flushDefinition()

	return definitions
}

// hasDefinitionCue reports whether content signals definitional intent.
func hasDefinitionCue(content string) bool {
	folded := accentReplacer.Replace(strings.ToLower(content))
	for _, cue := range definitionCues {
		if strings.Contains(folded, cue) {
			return true
		}
	}
	return false
}

// plausibleDefinition bounds term and meaning lengths.
func plausibleDefinition(term string, meaning string) bool {
	termChars := utf8.RuneCountInString(term)
	meaningChars := utf8.RuneCountInString(meaning)
	return termChars >= minTermChars && termChars <= maxTermChars &&
		meaningChars >= minMeaningChars && meaningChars <= maxMeaningChars
}
