package fetch

import (
	"net/http"
	"time"
)

// FormatKind identifies which upstream publication of a document a payload
// came from. The archive publishes each statute in parallel formats with
// varying text-extraction quality.
type FormatKind string

const (
	// FormatMarkup is the structured HTML publication.
	FormatMarkup FormatKind = "markup"

	// FormatWord is the word-processor export publication.
	FormatWord FormatKind = "word"

	// FormatPDF is the print-oriented PDF publication.
	FormatPDF FormatKind = "pdf"
)

// ClientConfig holds configuration for the fetch client.
type ClientConfig struct {
	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// AcceptLanguage is the Accept-Language header sent with every request.
	AcceptLanguage string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first for
	// transient failures (timeouts, HTTP 429, 5xx).
	MaxRetries int

	// RetryBaseDelay is the initial delay between retries (doubles each attempt).
	RetryBaseDelay time.Duration

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64

	// DefaultCharset is the encoding assumed for textual responses that
	// declare no charset in the header or the document. The upstream host
	// serves legacy single-byte encodings inconsistently across documents.
	DefaultCharset string

	// HTTPClient allows injection of a custom HTTP client (for testing).
	HTTPClient *http.Client

	// Cache, when set, serves repeated fetches of the same URL from disk.
	Cache *DiskCache
}

// DefaultClientConfig returns a ClientConfig with sensible defaults for the
// statute archive.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		UserAgent:      "leyesmx/1.0 (+https://github.com/rcoria/leyesmx)",
		AcceptLanguage: "es-MX,es;q=0.9",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,
		MaxBodyBytes:   20 * 1024 * 1024, // 20MB max
		DefaultCharset: "windows-1252",
	}
}

// Result captures the outcome of a single fetch, including in-protocol
// failures. StatusCode 0 with Err set means the request never produced an
// HTTP response even after retries.
type Result struct {
	// StatusCode is the final HTTP status, or 0 for client-side failures.
	StatusCode int `json:"status_code"`

	// Body is the decoded text for textual content types, empty otherwise.
	Body string `json:"body,omitempty"`

	// Raw is the response payload as received.
	Raw []byte `json:"raw,omitempty"`

	// ContentType is the Content-Type header of the response.
	ContentType string `json:"content_type,omitempty"`

	// FinalURL is the URL that produced the response, after redirects.
	FinalURL string `json:"final_url"`

	// Err describes the client-side failure when StatusCode is 0.
	Err string `json:"error,omitempty"`

	// Cached is true when the result was served from the disk cache.
	Cached bool `json:"cached,omitempty"`
}

// RawFile is a successfully fetched binary publication of a document.
type RawFile struct {
	Payload   []byte
	Kind      FormatKind
	SourceURL string
}

// FallbackConfig holds configuration for the format fallback orchestrator.
type FallbackConfig struct {
	// BaseURL is the root of the upstream document archive.
	BaseURL string

	// MinHTMLBytes is the minimum plausible body length for a real document
	// page. Shorter bodies indicate an error or placeholder page.
	MinHTMLBytes int
}

// DefaultFallbackConfig returns a FallbackConfig pointing at the federal
// statute archive of the Cámara de Diputados.
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		BaseURL:      "https://www.diputados.gob.mx/LeyesBiblio",
		MinHTMLBytes: 2048,
	}
}
