package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rcoria/leyesmx/pkg/fetch"
)

// ConvertConfig holds configuration for the external conversion tools.
type ConvertConfig struct {
	// WordCommand is the tool invoked for word-processor exports.
	WordCommand string

	// PDFCommand is the tool invoked for PDF exports.
	PDFCommand string

	// Timeout bounds a single conversion run.
	Timeout time.Duration

	// MaxOutputBytes caps the accepted size of converted text.
	MaxOutputBytes int64
}

// DefaultConvertConfig returns a ConvertConfig with sensible defaults.
func DefaultConvertConfig() ConvertConfig {
	return ConvertConfig{
		WordCommand:    "antiword",
		PDFCommand:     "pdftotext",
		Timeout:        60 * time.Second,
		MaxOutputBytes: 20 * 1024 * 1024, // 20MB max
	}
}

// ExecConverter extracts text from binary document payloads by shelling
// out to command-line conversion tools. Conversion failures are document
// level: callers degrade to the next format or a stub record.
type ExecConverter struct {
	config ConvertConfig
}

// NewExecConverter creates an ExecConverter. Zero-valued config fields
// fall back to the defaults.
func NewExecConverter(config ConvertConfig) *ExecConverter {
	defaults := DefaultConvertConfig()
	if config.WordCommand == "" {
		config.WordCommand = defaults.WordCommand
	}
	if config.PDFCommand == "" {
		config.PDFCommand = defaults.PDFCommand
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = defaults.MaxOutputBytes
	}

	return &ExecConverter{config: config}
}

// Convert extracts UTF-8 plain text from a binary payload of the given kind.
func (converter *ExecConverter) Convert(ctx context.Context, payload []byte, kind fetch.FormatKind) (string, error) {
	switch kind {
	case fetch.FormatWord:
		return converter.run(ctx, converter.config.WordCommand, payload, ".doc", wordArgs)
	case fetch.FormatPDF:
		return converter.run(ctx, converter.config.PDFCommand, payload, ".pdf", pdfArgs)
	default:
		return "", fmt.Errorf("no conversion tool for format %q", kind)
	}
}

// wordArgs builds antiword-style arguments: UTF-8 mapping, text to stdout.
func wordArgs(inputPath string) []string {
	return []string{"-m", "UTF-8.txt", inputPath}
}

// pdfArgs builds pdftotext-style arguments: layout-preserving UTF-8 text
// to stdout.
func pdfArgs(inputPath string) []string {
	return []string{"-layout", "-enc", "UTF-8", inputPath, "-"}
}

// boundedBuffer retains at most limit bytes of what is written while
// counting everything offered, so oversized output is detected without
// buffering it.
type boundedBuffer struct {
	buffer bytes.Buffer
	limit  int64
	seen   int64
}

func (bounded *boundedBuffer) Write(payload []byte) (int, error) {
	consumed := len(payload)
	bounded.seen += int64(consumed)
	remaining := bounded.limit - int64(bounded.buffer.Len())
	if remaining > 0 {
		if int64(consumed) > remaining {
			payload = payload[:int(remaining)]
		}
		bounded.buffer.Write(payload)
	}
	return consumed, nil
}

// run writes the payload to a temp file, invokes the tool under the
// configured timeout, and returns its stdout, capped at MaxOutputBytes.
func (converter *ExecConverter) run(ctx context.Context, command string, payload []byte, extension string, buildArgs func(string) []string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("no conversion command configured for %s files", extension)
	}

	tempFile, err := os.CreateTemp("", "leyesmx-*"+extension)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(payload); err != nil {
		tempFile.Close()
		return "", fmt.Errorf("failed to write temp file %s: %w", tempPath, err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file %s: %w", tempPath, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, converter.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, buildArgs(tempPath)...)
	stdoutBuffer := &boundedBuffer{limit: converter.config.MaxOutputBytes}
	var stderrBuffer bytes.Buffer
	cmd.Stdout = stdoutBuffer
	cmd.Stderr = &stderrBuffer

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%s timed out after %s", command, converter.config.Timeout)
		}
		stderrText := strings.TrimSpace(stderrBuffer.String())
		if stderrText != "" {
			return "", fmt.Errorf("%s failed: %w: %s", command, err, stderrText)
		}
		return "", fmt.Errorf("%s failed: %w", command, err)
	}

	if stdoutBuffer.seen > converter.config.MaxOutputBytes {
		return "", fmt.Errorf("%s output exceeds %d bytes", command, converter.config.MaxOutputBytes)
	}

	return stdoutBuffer.buffer.String(), nil
}
