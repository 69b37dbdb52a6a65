// Package ingest orchestrates the per-document pipeline: fetch a statute
// in its best available format, convert it to plain text, extract its
// provisions, and persist the result. Upstream failures never abort a
// batch; they are folded into per-document reports.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rcoria/leyesmx/pkg/catalog"
	"github.com/rcoria/leyesmx/pkg/convert"
	"github.com/rcoria/leyesmx/pkg/extract"
	"github.com/rcoria/leyesmx/pkg/fetch"
	"github.com/rcoria/leyesmx/pkg/store"
)

// StubKey is the reference key of the single provision synthesized when no
// format yields a usable extraction.
const StubKey = "doc"

// ProgressCallback receives per-document completion updates during a batch.
type ProgressCallback func(completed int, total int, documentID string)

// PipelineConfig tunes batch behavior.
type PipelineConfig struct {
	// Workers bounds concurrent document ingestions in IngestAll. Keep at
	// or below the fetch gate's in-flight limit; extra workers only queue.
	Workers int
}

// DefaultPipelineConfig returns single-worker batch settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{Workers: 1}
}

// Pipeline wires the fetch, convert, extract, and store collaborators into
// the per-document ingestion flow.
type Pipeline struct {
	fallback   *fetch.Fallback
	converter  *convert.ExecConverter
	extractor  *extract.Extractor
	documents  store.Store
	config     PipelineConfig
	mu         sync.Mutex
	progressCb ProgressCallback
}

// NewPipeline creates a Pipeline. Workers below 1 are raised to 1. The
// documents store may be nil for preview-only use.
func NewPipeline(fallback *fetch.Fallback, converter *convert.ExecConverter, extractor *extract.Extractor, documents store.Store, config PipelineConfig) *Pipeline {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Pipeline{
		fallback:  fallback,
		converter: converter,
		extractor: extractor,
		documents: documents,
		config:    config,
	}
}

// SetProgressCallback sets a callback receiving batch progress updates.
func (pipeline *Pipeline) SetProgressCallback(callback ProgressCallback) {
	pipeline.mu.Lock()
	pipeline.progressCb = callback
	pipeline.mu.Unlock()
}

// extraction is the outcome of one format attempt.
type extraction struct {
	provisions []extract.Provision
	sourceURL  string
	format     fetch.FormatKind
}

// Preview runs the pipeline for one descriptor without persisting: markup
// first, then the word export, then the PDF export; the first format
// yielding a non-empty extraction wins. When every format fails, the
// returned document is a stub with a single synthesized provision. The
// report carries the status the document would be saved with.
func (pipeline *Pipeline) Preview(ctx context.Context, descriptor catalog.Descriptor) (*store.Document, *Report, error) {
	report := &Report{DocumentID: descriptor.ID}

	var failures []string
	var fallbackURL string

	winner, markupURL, markupFailure := pipeline.tryMarkup(ctx, descriptor)
	fallbackURL = markupURL
	if markupFailure != "" {
		failures = append(failures, markupFailure)
	}
	if winner == nil {
		if err := ctx.Err(); err != nil {
			report.Status = StatusFailed
			report.Err = err.Error()
			return nil, report, err
		}
		var failure string
		winner, failure = pipeline.tryBinary(ctx, descriptor, fetch.FormatWord)
		if failure != "" {
			failures = append(failures, failure)
		}
	}
	if winner == nil {
		if err := ctx.Err(); err != nil {
			report.Status = StatusFailed
			report.Err = err.Error()
			return nil, report, err
		}
		var failure string
		winner, failure = pipeline.tryBinary(ctx, descriptor, fetch.FormatPDF)
		if failure != "" {
			failures = append(failures, failure)
		}
	}
	if err := ctx.Err(); err != nil {
		report.Status = StatusFailed
		report.Err = err.Error()
		return nil, report, err
	}

	document := pipeline.assemble(descriptor, winner, fallbackURL)
	report.FormatUsed = document.Format
	report.Stub = document.Stub
	report.Provisions = len(document.Provisions)
	report.Definitions = len(document.Definitions)
	if document.Stub {
		report.Status = StatusStub
		if len(failures) > 0 {
			report.Err = strings.Join(failures, "; ")
		}
	} else {
		report.Status = StatusIngested
	}

	return document, report, nil
}

// IngestDocument runs Preview and persists the result. The returned error
// is non-nil only for aborts and persistence failures; upstream trouble is
// reported in Report.Err.
func (pipeline *Pipeline) IngestDocument(ctx context.Context, descriptor catalog.Descriptor) (*Report, error) {
	document, report, err := pipeline.Preview(ctx, descriptor)
	if err != nil {
		return report, err
	}

	if err := pipeline.documents.Save(ctx, document); err != nil {
		saveErr := fmt.Errorf("failed to persist %s: %w", descriptor.ID, err)
		report.Status = StatusFailed
		report.Err = saveErr.Error()
		return report, saveErr
	}

	return report, nil
}

// tryMarkup fetches and extracts the structured HTML publication. Returns
// the winning extraction (nil on failure), the URL of the page that
// answered, and a failure note.
func (pipeline *Pipeline) tryMarkup(ctx context.Context, descriptor catalog.Descriptor) (*extraction, string, string) {
	result, err := pipeline.fallback.FetchMarkup(ctx, descriptor)
	if err != nil {
		return nil, "", fmt.Sprintf("markup: %v", err)
	}
	if result.StatusCode != 200 {
		if result.Err != "" {
			return nil, result.FinalURL, fmt.Sprintf("markup: %s", result.Err)
		}
		return nil, result.FinalURL, fmt.Sprintf("markup: status %d", result.StatusCode)
	}

	text, err := convert.ReadableHTMLText(result.Body, result.FinalURL)
	if err != nil {
		text = convert.HTMLText(result.Body)
	}

	provisions := pipeline.extractor.Extract(extract.Normalize(text))
	if len(provisions) == 0 {
		return nil, result.FinalURL, "markup: no provisions extracted"
	}

	return &extraction{
		provisions: provisions,
		sourceURL:  result.FinalURL,
		format:     fetch.FormatMarkup,
	}, result.FinalURL, ""
}

// tryBinary fetches one binary publication and converts it with the
// configured external tool. Returns the winning extraction (nil on
// failure) and a failure note.
func (pipeline *Pipeline) tryBinary(ctx context.Context, descriptor catalog.Descriptor, kind fetch.FormatKind) (*extraction, string) {
	rawFile, result, err := pipeline.fallback.FetchBinary(ctx, descriptor, kind)
	if err != nil {
		return nil, fmt.Sprintf("%s: %v", kind, err)
	}
	if rawFile == nil {
		if result != nil && result.Err != "" {
			return nil, fmt.Sprintf("%s: %s", kind, result.Err)
		}
		if result != nil {
			return nil, fmt.Sprintf("%s: status %d", kind, result.StatusCode)
		}
		return nil, fmt.Sprintf("%s: no candidate answered", kind)
	}

	text, err := pipeline.converter.Convert(ctx, rawFile.Payload, kind)
	if err != nil {
		return nil, fmt.Sprintf("%s: %v", kind, err)
	}

	provisions := pipeline.extractor.Extract(extract.Normalize(text))
	if len(provisions) == 0 {
		return nil, fmt.Sprintf("%s: no provisions extracted", kind)
	}

	return &extraction{
		provisions: provisions,
		sourceURL:  rawFile.SourceURL,
		format:     kind,
	}, ""
}

// assemble builds the store document from the winning extraction, or a
// stub document when no format produced one.
func (pipeline *Pipeline) assemble(descriptor catalog.Descriptor, winner *extraction, fallbackURL string) *store.Document {
	document := &store.Document{
		ID:          descriptor.ID,
		Title:       descriptor.Title,
		ShortTitle:  descriptor.ShortTitle,
		Status:      string(descriptor.Status),
		Published:   descriptor.Published,
		Description: descriptor.Description,
		FetchedAt:   time.Now().UTC(),
	}

	if winner != nil {
		document.SourceURL = winner.sourceURL
		document.Format = string(winner.format)
		document.Provisions = winner.provisions
		for _, provision := range winner.provisions {
			document.Definitions = append(document.Definitions, extract.ExtractDefinitions(provision)...)
		}
		return document
	}

	document.SourceURL = fallbackURL
	document.Stub = true
	document.Provisions = []extract.Provision{stubProvision(descriptor, fallbackURL)}
	return document
}

// stubProvision synthesizes the single placeholder provision of a stub
// document, so downstream consumers always see at least one entry.
func stubProvision(descriptor catalog.Descriptor, sourceURL string) extract.Provision {
	var content strings.Builder
	if descriptor.Description != "" {
		content.WriteString(descriptor.Description)
	} else {
		content.WriteString(descriptor.Title)
	}
	if sourceURL != "" {
		content.WriteString("\n\nFuente: ")
		content.WriteString(sourceURL)
	}

	return extract.Provision{
		Key:     StubKey,
		Label:   descriptor.Title,
		Content: content.String(),
	}
}

// IngestAll ingests every descriptor with a bounded worker pool, isolating
// failures per document. The batch report preserves descriptor order.
func (pipeline *Pipeline) IngestAll(ctx context.Context, descriptors []catalog.Descriptor) *BatchReport {
	batch := &BatchReport{StartedAt: time.Now().UTC()}
	if len(descriptors) == 0 {
		batch.FinishedAt = time.Now().UTC()
		return batch
	}

	reports := make([]*Report, len(descriptors))
	semaphore := make(chan struct{}, pipeline.config.Workers)
	var wg sync.WaitGroup

	completedCount := 0
	var progressMu sync.Mutex

	for index, descriptor := range descriptors {
		wg.Add(1)
		go func(index int, descriptor catalog.Descriptor) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			var report *Report
			select {
			case <-ctx.Done():
				report = &Report{DocumentID: descriptor.ID, Status: StatusFailed, Err: ctx.Err().Error()}
			default:
				report, _ = pipeline.IngestDocument(ctx, descriptor)
			}
			reports[index] = report

			progressMu.Lock()
			completedCount++
			pipeline.reportProgress(completedCount, len(descriptors), descriptor.ID)
			progressMu.Unlock()
		}(index, descriptor)
	}

	wg.Wait()

	for _, report := range reports {
		batch.Add(report)
	}
	batch.FinishedAt = time.Now().UTC()
	return batch
}

func (pipeline *Pipeline) reportProgress(completed int, total int, documentID string) {
	pipeline.mu.Lock()
	callback := pipeline.progressCb
	pipeline.mu.Unlock()

	if callback != nil {
		callback(completed, total, documentID)
	}
}
