package extract

import (
	"regexp"
	"strings"
)

// tokenKind classifies the structural markers found in the first pass.
type tokenKind int

const (
	headerToken tokenKind = iota
	articleToken
	transSectionToken
	transMarkerToken
)

// token is one structural marker in source order. rest carries the text
// following the marker on the same line.
type token struct {
	kind  tokenKind
	label string
	line  int
	rest  string
}

// Pre-compiled patterns for structural markers.
var (
	// articleLinePattern matches article boundary markers: a numeral with
	// optional ordinal indicator and Bis/Ter-style suffix chain, closed by
	// a period or dash. "Artículo 1o.-", "ARTICULO 211 Bis 1.-", "Art. 27.".
	articleLinePattern = regexp.MustCompile(`(?i)^art(?:[íi]culo|\.)\s+(\d+(?:\s*[oº°])?(?:\s+(?:bis|ter|qu[aá]ter|quinquies|sexies|septies|octies|nonies|decies|undecies|duodecies)(?:\s+\d+)?)*)\s*[.\-–—:]+\s*(.*)$`)

	// headerLinePattern matches standalone hierarchy headers:
	// "TÍTULO PRIMERO", "CAPÍTULO I", "Sección 2a.", "LIBRO SEGUNDO".
	headerLinePattern = regexp.MustCompile(`(?i)^(?:libro|t[íi]tulo|cap[íi]tulo|secci[óo]n)\s+[0-9a-záéíóúüñ]+\.?(?:\s+[0-9a-záéíóúüñ]+\.?)?$`)

	// transSectionPattern matches the marker opening the transitory
	// provisions section.
	transSectionPattern = regexp.MustCompile(`(?i)^(?:(?:art[íi]culos\s+)?transitorios?|disposiciones\s+transitorias)$`)

	// transMarkerLinePattern captures the leading ordinal word or word pair
	// of a transitory clause, with or without trailing text.
	transMarkerLinePattern = regexp.MustCompile(`^([A-Za-zÁÉÍÓÚÜÑáéíóúüñ]+(?:\s+[A-Za-zÁÉÍÓÚÜÑáéíóúüñ]+)?)\s*(?:[.\-–—:]+\s*(.*))?$`)
)

// accentReplacer folds Spanish accented vowels for stable comparisons.
var accentReplacer = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n")

// transitoryOrdinals is the closed vocabulary of ordinal words labelling
// transitory clauses, in lowercase accent-folded form, both genders,
// spaced and fused compounds.
var transitoryOrdinals = buildTransitoryOrdinals()

func buildTransitoryOrdinals() map[string]bool {
	units := []string{"primer", "segund", "tercer", "cuart", "quint", "sext", "septim", "octav", "noven"}
	tens := []string{"decim", "vigesim", "trigesim"}

	vocabulary := make(map[string]bool)
	addForms := func(stem string) {
		vocabulary[stem+"o"] = true
		vocabulary[stem+"a"] = true
	}

	addForms("unic")
	for _, unit := range units {
		addForms(unit)
	}
	addForms("decim")
	addForms("undecim")
	addForms("duodecim")
	addForms("vigesim")
	addForms("trigesim")

	for _, ten := range tens {
		for _, unit := range units {
			vocabulary[ten+"o "+unit+"o"] = true
			vocabulary[ten+"a "+unit+"a"] = true
			vocabulary[ten+"o"+unit+"o"] = true
			vocabulary[ten+"a"+unit+"a"] = true
		}
	}
	return vocabulary
}

// isTransitoryOrdinal reports whether a marker word belongs to the closed
// transitory ordinal vocabulary.
func isTransitoryOrdinal(words string) bool {
	normalized := accentReplacer.Replace(strings.ToLower(strings.TrimSpace(words)))
	normalized = strings.Join(strings.Fields(normalized), " ")
	return transitoryOrdinals[normalized]
}

// scan performs the first extraction pass: a single forward sweep emitting
// structural marker tokens in source order. Ordinal-word transitory markers
// are recognized only after the transitory section marker.
func scan(lines []string, maxHeaderChars int) []token {
	var tokens []token
	inTransitory := false

	for lineIndex := 0; lineIndex < len(lines); lineIndex++ {
		trimmed := strings.TrimSpace(lines[lineIndex])
		if trimmed == "" {
			continue
		}

		if transSectionPattern.MatchString(trimmed) {
			tokens = append(tokens, token{kind: transSectionToken, label: trimmed, line: lineIndex})
			inTransitory = true
			continue
		}

		if match := articleLinePattern.FindStringSubmatch(trimmed); match != nil {
			rest := strings.TrimSpace(match[2])
			// A comma right after the marker is a cross-reference
			// ("Artículo 5o., fracción II, ..."), not a boundary.
			if !strings.HasPrefix(rest, ",") {
				tokens = append(tokens, token{
					kind:  articleToken,
					label: strings.TrimSpace(match[1]),
					line:  lineIndex,
					rest:  rest,
				})
				continue
			}
		}

		if inTransitory {
			if match := transMarkerLinePattern.FindStringSubmatch(trimmed); match != nil && isTransitoryOrdinal(match[1]) {
				tokens = append(tokens, token{
					kind:  transMarkerToken,
					label: strings.TrimSpace(match[1]),
					line:  lineIndex,
					rest:  strings.TrimSpace(match[2]),
				})
				continue
			}
		}

		if len(trimmed) <= 60 && headerLinePattern.MatchString(trimmed) {
			label, consumed := foldHeaderCaption(lines, lineIndex, trimmed, maxHeaderChars)
			tokens = append(tokens, token{kind: headerToken, label: label, line: lineIndex})
			lineIndex += consumed
			continue
		}
	}

	return tokens
}

// foldHeaderCaption joins a header line with its caption when the next
// non-blank line reads as a caption rather than content. Returns the
// combined label and how many lines past the header were consumed.
func foldHeaderCaption(lines []string, headerLine int, label string, maxHeaderChars int) (string, int) {
	for nextIndex := headerLine + 1; nextIndex < len(lines) && nextIndex <= headerLine+2; nextIndex++ {
		caption := strings.TrimSpace(lines[nextIndex])
		if caption == "" {
			continue
		}
		if len(caption) > 80 || isMarkerLine(caption) {
			break
		}

		label = label + " - " + caption
		if runes := []rune(label); len(runes) > maxHeaderChars {
			label = string(runes[:maxHeaderChars])
		}
		return label, nextIndex - headerLine
	}
	return label, 0
}

// isMarkerLine reports whether a line is itself a structural marker.
func isMarkerLine(trimmed string) bool {
	return articleLinePattern.MatchString(trimmed) ||
		headerLinePattern.MatchString(trimmed) ||
		transSectionPattern.MatchString(trimmed)
}
