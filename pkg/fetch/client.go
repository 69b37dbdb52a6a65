package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// metaSniffBytes bounds how far into a document the charset meta tag is
// looked for.
const metaSniffBytes = 4096

// metaCharsetPattern matches charset declarations in HTML meta tags, both
// the <meta charset="..."> form and the http-equiv Content-Type form.
var metaCharsetPattern = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([a-zA-Z0-9_.:-]+)`)

// Client fetches URLs from the statute archive through the politeness gate,
// retrying transient failures and decoding legacy charsets.
type Client struct {
	httpClient *http.Client
	gate       *Gate
	config     ClientConfig
}

// NewClient creates a Client sharing the given gate. Zero-valued config
// fields fall back to the defaults.
func NewClient(config ClientConfig, gate *Gate) *Client {
	defaults := DefaultClientConfig()
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.AcceptLanguage == "" {
		config.AcceptLanguage = defaults.AcceptLanguage
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.DefaultCharset == "" {
		config.DefaultCharset = defaults.DefaultCharset
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(request *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}

	if gate == nil {
		gate = NewGate(1, 0)
	}

	return &Client{
		httpClient: httpClient,
		gate:       gate,
		config:     config,
	}
}

// Fetch retrieves targetURL through the gate, retrying timeouts, transport
// errors, and HTTP 429/5xx with exponential backoff. In-protocol failures
// (non-200 statuses, transport exhaustion) are reported inside the Result;
// the error return is reserved for malformed input and context cancellation.
func (client *Client) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	if targetURL == "" {
		return nil, fmt.Errorf("empty URL")
	}
	if _, err := url.Parse(targetURL); err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", targetURL, err)
	}

	if client.config.Cache != nil {
		if cachedResult, found := client.config.Cache.Get(targetURL); found {
			cachedResult.Cached = true
			return &cachedResult, nil
		}
	}

	var lastResult *Result
	var lastErr error

	for attempt := 0; attempt <= client.config.MaxRetries; attempt++ {
		if attempt > 0 {
			currentDelay := client.config.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(currentDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := client.fetchAttempt(ctx, targetURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastResult = nil
			lastErr = err
			if !isRetryableError(err) {
				break
			}
			continue
		}

		if result.StatusCode == http.StatusTooManyRequests || result.StatusCode >= 500 {
			lastResult = result
			lastErr = nil
			continue
		}

		if client.config.Cache != nil && result.StatusCode == http.StatusOK {
			_ = client.config.Cache.Set(targetURL, *result)
		}
		return result, nil
	}

	if lastResult != nil {
		return lastResult, nil
	}
	return &Result{FinalURL: targetURL, Err: lastErr.Error()}, nil
}

// fetchAttempt performs a single gated request. The gate slot is released
// on every return path.
func (client *Client) fetchAttempt(ctx context.Context, targetURL string) (*Result, error) {
	if err := client.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer client.gate.Release()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", targetURL, err)
	}
	request.Header.Set("User-Agent", client.config.UserAgent)
	request.Header.Set("Accept-Language", client.config.AcceptLanguage)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", targetURL, err)
	}
	defer response.Body.Close()

	limitedReader := io.LimitReader(response.Body, client.config.MaxBodyBytes)
	rawBody, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body from %s: %w", targetURL, err)
	}

	contentType := response.Header.Get("Content-Type")
	result := &Result{
		StatusCode:  response.StatusCode,
		Raw:         rawBody,
		ContentType: contentType,
		FinalURL:    response.Request.URL.String(),
	}
	if isTextualContentType(contentType) {
		result.Body = client.decodeText(rawBody, contentType)
	}

	return result, nil
}

// decodeText converts a textual payload to UTF-8. Charset resolution order:
// the Content-Type charset parameter, then a meta tag sniffed from the
// start of the document, then the configured default.
func (client *Client) decodeText(rawBody []byte, contentType string) string {
	textEncoding := resolveEncoding(rawBody, contentType, client.config.DefaultCharset)

	decoded, err := textEncoding.NewDecoder().Bytes(rawBody)
	if err != nil {
		return string(rawBody)
	}
	return string(decoded)
}

// resolveEncoding resolves the charset of a textual response. Unknown or
// invalid charset names fall through to the next resolution step.
func resolveEncoding(rawBody []byte, contentType string, defaultCharset string) encoding.Encoding {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if declaredEncoding, _ := charset.Lookup(params["charset"]); declaredEncoding != nil {
			return declaredEncoding
		}
	}

	head := rawBody
	if len(head) > metaSniffBytes {
		head = head[:metaSniffBytes]
	}
	if match := metaCharsetPattern.FindSubmatch(head); match != nil {
		if sniffedEncoding, _ := charset.Lookup(string(match[1])); sniffedEncoding != nil {
			return sniffedEncoding
		}
	}

	if fallbackEncoding, _ := charset.Lookup(defaultCharset); fallbackEncoding != nil {
		return fallbackEncoding
	}
	return charmap.Windows1252
}

// isTextualContentType reports whether the response body should be decoded
// into Result.Body. An absent Content-Type is treated as textual so the
// meta-tag sniff still gets a chance.
func isTextualContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	lowered := strings.ToLower(contentType)
	return strings.HasPrefix(lowered, "text/") ||
		strings.Contains(lowered, "html") ||
		strings.Contains(lowered, "xml")
}

// isRetryableError returns true if the error warrants another attempt.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection reset",
		"connection refused",
		"timeout",
		"eof",
		"broken pipe",
		"temporary failure",
		"no such host",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
