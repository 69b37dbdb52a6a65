package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rcoria/leyesmx/pkg/catalog"
)

// Fallback walks the parallel publications of a statute in preference
// order. The archive is split across structured HTML pages, word-processor
// exports, and PDFs, with inconsistent identifier casing and coverage, so
// retrieval tries an ordered candidate list and short-circuits on the
// first usable hit.
type Fallback struct {
	client *Client
	config FallbackConfig
}

// NewFallback creates a Fallback around the given client. Zero-valued
// config fields fall back to the defaults.
func NewFallback(client *Client, config FallbackConfig) *Fallback {
	defaults := DefaultFallbackConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.MinHTMLBytes <= 0 {
		config.MinHTMLBytes = defaults.MinHTMLBytes
	}

	return &Fallback{
		client: client,
		config: config,
	}
}

// FetchMarkup retrieves the structured HTML publication of a document. A
// non-200 status or an implausibly short body triggers one retry with the
// upper-case identifier variant. If both attempts fail the first result is
// returned so callers can inspect the failure.
func (fallback *Fallback) FetchMarkup(ctx context.Context, descriptor catalog.Descriptor) (*Result, error) {
	primaryURL := descriptor.MarkupURL
	if primaryURL == "" {
		primaryURL = fmt.Sprintf("%s/ref/%s.htm", fallback.config.BaseURL, strings.ToLower(descriptor.ID))
	}

	primary, err := fallback.client.Fetch(ctx, primaryURL)
	if err != nil {
		return nil, err
	}
	if fallback.plausibleMarkup(primary) {
		return primary, nil
	}

	secondaryURL := fmt.Sprintf("%s/ref/%s.htm", fallback.config.BaseURL, strings.ToUpper(descriptor.ID))
	if secondaryURL == primaryURL {
		return primary, nil
	}

	secondary, err := fallback.client.Fetch(ctx, secondaryURL)
	if err != nil {
		return nil, err
	}
	if fallback.plausibleMarkup(secondary) {
		return secondary, nil
	}

	return primary, nil
}

// plausibleMarkup reports whether a markup response looks like a real
// document page: HTTP 200 with a body at least MinHTMLBytes long. The
// archive serves tiny placeholder pages for some identifier casings, so
// status alone is not enough.
func (fallback *Fallback) plausibleMarkup(result *Result) bool {
	return result != nil && result.StatusCode == http.StatusOK && len(result.Body) >= fallback.config.MinHTMLBytes
}

// FetchBinary retrieves a binary publication of a document, walking
// candidates in order: explicit catalog overrides first, then the
// conventional archive patterns in several identifier casings. HTTP 404
// means the format is absent at that location and advances to the next
// candidate without retrying; any other terminal failure aborts the walk.
// An exhausted list yields a nil RawFile and the first candidate's
// not-found result for diagnostics.
func (fallback *Fallback) FetchBinary(ctx context.Context, descriptor catalog.Descriptor, kind FormatKind) (*RawFile, *Result, error) {
	var candidates []string
	switch kind {
	case FormatWord:
		candidates = append(candidates, descriptor.WordURLs...)
		candidates = append(candidates, fallback.conventionalURLs("doc", descriptor.ID, "doc")...)
	case FormatPDF:
		candidates = append(candidates, descriptor.PDFURLs...)
		candidates = append(candidates, fallback.conventionalURLs("pdf", descriptor.ID, "pdf")...)
	default:
		return nil, nil, fmt.Errorf("no binary candidates for format %q", kind)
	}
	candidates = dedupeURLs(candidates)

	var firstResult *Result

	for _, candidateURL := range candidates {
		result, err := fallback.client.Fetch(ctx, candidateURL)
		if err != nil {
			return nil, nil, err
		}
		if firstResult == nil {
			firstResult = result
		}

		switch {
		case result.StatusCode == http.StatusOK:
			rawFile := &RawFile{
				Payload:   result.Raw,
				Kind:      kind,
				SourceURL: result.FinalURL,
			}
			return rawFile, result, nil
		case result.StatusCode == http.StatusNotFound:
			continue
		default:
			return nil, result, nil
		}
	}

	return nil, firstResult, nil
}

// conventionalURLs builds the archive-pattern URLs for an identifier in the
// casings the host is known to use.
func (fallback *Fallback) conventionalURLs(directory string, id string, extension string) []string {
	variants := []string{id, strings.ToLower(id), strings.ToUpper(id)}

	urls := make([]string, 0, len(variants))
	for _, variant := range variants {
		urls = append(urls, fmt.Sprintf("%s/%s/%s.%s", fallback.config.BaseURL, directory, variant, extension))
	}
	return urls
}

// dedupeURLs removes duplicate candidates while preserving order.
func dedupeURLs(candidateURLs []string) []string {
	seen := make(map[string]bool, len(candidateURLs))
	deduped := make([]string, 0, len(candidateURLs))
	for _, candidateURL := range candidateURLs {
		if seen[candidateURL] {
			continue
		}
		seen[candidateURL] = true
		deduped = append(deduped, candidateURL)
	}
	return deduped
}
