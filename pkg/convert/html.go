// Package convert turns fetched document payloads (structured HTML pages,
// word-processor exports, PDFs) into plain text suitable for structural
// extraction.
package convert

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Pre-compiled patterns for HTML-to-text conversion.
var (
	// blockTagPattern marks tags that should start a new output line. The
	// break is inserted before parsing so goquery's Text() keeps the
	// document's line structure instead of concatenating paragraphs.
	blockTagPattern = regexp.MustCompile(`(?i)</?(?:p|div|br|tr|li|h[1-6]|table|blockquote)(?:\s[^>]*)?/?>`)

	intralineSpacePattern = regexp.MustCompile(`[^\S\n]{2,}`)
	multiNewlinePattern   = regexp.MustCompile(`\n{3,}`)
)

// HTMLText converts an HTML document to line-structured plain text. Block
// elements become line breaks, scripts and styles are dropped, and
// whitespace is tidied line by line.
func HTMLText(htmlSource string) string {
	withBreaks := blockTagPattern.ReplaceAllString(htmlSource, "\n${0}")

	document, err := goquery.NewDocumentFromReader(strings.NewReader(withBreaks))
	if err != nil {
		return ""
	}
	document.Find("script, style, noscript").Remove()

	return tidyText(document.Text())
}

// ReadableHTMLText isolates the main content of a noisy HTML page before
// converting it to plain text. Pages where readability finds nothing fall
// back to plain HTMLText stripping. The error return is reserved for an
// unparseable page URL.
func ReadableHTMLText(htmlSource string, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %s: %w", pageURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(htmlSource), parsedURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return HTMLText(htmlSource), nil
	}

	text := HTMLText(article.Content)
	if strings.TrimSpace(text) == "" {
		return HTMLText(htmlSource), nil
	}
	return text, nil
}

// tidyText normalizes converted text: non-breaking spaces become plain
// spaces, runs of intra-line whitespace collapse, line edges are trimmed,
// and runs of blank lines shrink to one.
func tidyText(text string) string {
	text = strings.ReplaceAll(text, " ", " ")
	text = intralineSpacePattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = multiNewlinePattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
