package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// institutionalHeaders are boilerplate lines the archive stamps on every
// page of its exports, matched exactly after trimming.
var institutionalHeaders = map[string]bool{
	"CÁMARA DE DIPUTADOS DEL H. CONGRESO DE LA UNIÓN":                         true,
	"CAMARA DE DIPUTADOS DEL H. CONGRESO DE LA UNION":                         true,
	"Secretaría General":                                                      true,
	"Secretaría de Servicios Parlamentarios":                                  true,
	"Dirección General de Servicios de Documentación, Información y Análisis": true,
}

// Pre-compiled patterns for layout-artifact removal.
var (
	// lastReformPattern matches "Última Reforma DOF dd-mm-yyyy" footer lines.
	lastReformPattern = regexp.MustCompile(`(?i)^últimas?\s+reformas?\s+dof\s+\d{2}-\d{2}-\d{4}\.?$`)

	// pageNumberPattern matches bare "N de M" page-count lines.
	pageNumberPattern = regexp.MustCompile(`^\d+\s+de\s+\d+$`)

	// reformAnnotationPattern matches editorial amendment notes such as
	// "Párrafo reformado DOF 20-05-2021" or "Fracción adicionada DOF ...".
	reformAnnotationPattern = regexp.MustCompile(`(?i)^(?:art[íi]culo|p[áa]rrafo|fracci[óo]n|inciso|cap[íi]tulo|secci[óo]n|t[íi]tulo|denominaci[óo]n|apartado|numeral|libro|ep[íi]grafe|rubro)(?:es|s)?(?:\s+del?\s+(?:cap[íi]tulo|secci[óo]n|t[íi]tulo|libro))?\s+(?:reformad[oa]s?|adicionad[oa]s?|derogad[oa]s?|recorrid[oa]s?|reubicad[oa]s?|modificad[oa]s?)\b.*$`)

	// blankRunPattern matches runs of three or more blank lines.
	blankRunPattern = regexp.MustCompile(`\n{4,}`)
)

// runningTitleMinLength and runningTitleMinRepeats tune the repeated
// running-title detector. Repetition, not wording, is what separates a page
// header from genuine upper-case legal text: chapter headings are shorter
// or appear once.
const (
	runningTitleMinLength  = 25
	runningTitleMinRepeats = 3
)

// Normalize removes layout artifacts from raw extracted statute text:
// institutional header lines, "last amended" footers, page numbers, reform
// annotations, and repeated upper-case running titles. Runs of blank lines
// collapse to at most two. Deterministic and idempotent.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	// First pass: count candidate running titles across the document.
	titleCounts := make(map[string]int)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isRunningTitleCandidate(trimmed) {
			titleCounts[trimmed]++
		}
	}

	var cleanedLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			cleanedLines = append(cleanedLines, "")
			continue
		}
		if institutionalHeaders[trimmed] {
			continue
		}
		if lastReformPattern.MatchString(trimmed) {
			continue
		}
		if pageNumberPattern.MatchString(trimmed) {
			continue
		}
		if reformAnnotationPattern.MatchString(trimmed) {
			continue
		}
		if isRunningTitleCandidate(trimmed) && titleCounts[trimmed] >= runningTitleMinRepeats {
			continue
		}

		cleanedLines = append(cleanedLines, strings.TrimRight(line, " \t"))
	}

	text = strings.Join(cleanedLines, "\n")
	text = blankRunPattern.ReplaceAllString(text, "\n\n\n")
	return strings.TrimSpace(text)
}

// isRunningTitleCandidate reports whether a line could be a repeated page
// header: entirely upper-case and long enough not to be a chapter heading.
func isRunningTitleCandidate(trimmed string) bool {
	runes := []rune(trimmed)
	if len(runes) < runningTitleMinLength {
		return false
	}

	hasLetter := false
	for _, r := range runes {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
