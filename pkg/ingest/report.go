package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Report statuses.
const (
	StatusIngested = "ingested"
	StatusStub     = "stub"
	StatusFailed   = "failed"
)

// Report is the outcome of ingesting one document.
type Report struct {
	DocumentID  string `json:"document_id"`
	Status      string `json:"status"`
	FormatUsed  string `json:"format_used,omitempty"`
	Provisions  int    `json:"provisions"`
	Definitions int    `json:"definitions"`
	Stub        bool   `json:"stub"`
	Err         string `json:"error,omitempty"`
}

// BatchReport aggregates the outcomes of a batch run.
type BatchReport struct {
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	TotalAttempted int       `json:"total_attempted"`
	Succeeded      int       `json:"succeeded"`
	Stubbed        int       `json:"stubbed"`
	Failed         int       `json:"failed"`
	Reports        []*Report `json:"reports"`
}

// Add appends a report and updates the counters.
func (batch *BatchReport) Add(report *Report) {
	if report == nil {
		return
	}
	batch.TotalAttempted++
	batch.Reports = append(batch.Reports, report)

	switch report.Status {
	case StatusIngested:
		batch.Succeeded++
	case StatusStub:
		batch.Stubbed++
	default:
		batch.Failed++
	}
}

// FormatBatchReport formats a batch report for terminal output.
func FormatBatchReport(batch *BatchReport) string {
	var builder strings.Builder

	builder.WriteString("\nIngest Report\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")
	builder.WriteString(fmt.Sprintf("Attempted: %d | Ingested: %d | Stubs: %d | Failed: %d\n",
		batch.TotalAttempted, batch.Succeeded, batch.Stubbed, batch.Failed))
	builder.WriteString(strings.Repeat("─", 60) + "\n")

	for _, report := range batch.Reports {
		status := report.Status
		switch status {
		case StatusIngested:
			status = "[OK]"
		case StatusStub:
			status = "[STUB]"
		case StatusFailed:
			status = "[FAIL]"
		}

		line := fmt.Sprintf("  %-8s %-24s", status, report.DocumentID)
		if report.FormatUsed != "" {
			line += fmt.Sprintf(" %-8s", report.FormatUsed)
		}
		if report.Provisions > 0 && !report.Stub {
			line += fmt.Sprintf(" (%d provisions, %d definitions)", report.Provisions, report.Definitions)
		}
		if report.Err != "" {
			line += fmt.Sprintf(" error: %s", report.Err)
		}
		builder.WriteString(line + "\n")
	}

	if !batch.FinishedAt.IsZero() && !batch.StartedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("\nElapsed: %s\n", batch.FinishedAt.Sub(batch.StartedAt).Round(time.Millisecond)))
	}

	return builder.String()
}

// FormatBatchReportJSON formats a batch report as indented JSON.
func FormatBatchReportJSON(batch *BatchReport) string {
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
