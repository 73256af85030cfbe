package silo

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/encoding/htmlindex"
)

// maxFetchBytes bounds how much of a response body is read.
const maxFetchBytes = 10 * 1024 * 1024

// browserHeaders reduce bot-blocking on sites that reject obvious crawlers.
var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0 Safari/537.36",
	"Accept-Language": "he,en-US,en;q=0.9,ar;q=0.8",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Charset":  "utf-8, iso-8859-1;q=0.5",
}

// FetchResult is the raw outcome of a direct page fetch.
type FetchResult struct {
	HTML        string
	ContentType string
	FinalURL    string
}

// Fetcher retrieves raw HTML over plain HTTP. All failures are soft: the
// pipeline treats a nil result as "no content", never as a fatal error.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Fetch performs a GET with browser-like headers, following redirects.
// Returns nil on any transport error or non-2xx status.
func (f *Fetcher) Fetch(ctx context.Context, url string) *FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("invalid fetch URL", "url", url, "error", err)
		return nil
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Warn("error fetching URL", "url", url, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("fetch returned non-success status", "url", url, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		slog.Warn("error reading response body", "url", url, "error", err)
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	html := ""
	if strings.Contains(contentType, "html") || strings.Contains(contentType, "text") {
		html = decodeBody(body, contentType, url)
	}

	return &FetchResult{
		HTML:        html,
		ContentType: contentType,
		FinalURL:    resp.Request.URL.String(),
	}
}

var (
	metaCharsetPattern   = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([^"'\s;/>]+)`)
	httpEquivPattern     = regexp.MustCompile(`(?i)<meta[^>]+http-equiv\s*=\s*["']?content-type["']?[^>]*>`)
	contentCharsetSubexp = regexp.MustCompile(`(?i)charset=([^;\s"']+)`)
)

// decodeBody resolves the page's true character encoding. The declared
// encoding is trusted unless it is absent or a low-confidence server default
// (Latin-1/ASCII), in which case the document is inspected for a charset
// meta-tag, falling back to UTF-8. A failed decode retries as UTF-8 with
// lossy replacement so the page is never dropped over encoding alone.
func decodeBody(body []byte, contentType, url string) string {
	name := charsetFromContentType(contentType)
	if name == "" || lowConfidenceCharset(name) {
		if meta := charsetFromMeta(body); meta != "" {
			name = meta
		} else {
			name = "utf-8"
		}
	}

	if !strings.EqualFold(name, "utf-8") {
		if enc, err := htmlindex.Get(name); err == nil {
			if decoded, err := enc.NewDecoder().Bytes(body); err == nil {
				return string(decoded)
			}
			slog.Info("charset decode failed, retrying as UTF-8", "url", url, "charset", name)
		}
	}

	if utf8.Valid(body) {
		return string(body)
	}
	return strings.ToValidUTF8(string(body), "�")
}

// charsetFromContentType extracts the charset parameter from a Content-Type
// header, or "" when none is declared.
func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// lowConfidenceCharset reports whether a declared charset is a server
// default that frequently misrepresents international content.
func lowConfidenceCharset(name string) bool {
	switch strings.ToLower(name) {
	case "iso-8859-1", "latin1", "ascii", "us-ascii":
		return true
	}
	return false
}

// charsetFromMeta scans the document for <meta charset> or an http-equiv
// content-type declaration.
func charsetFromMeta(body []byte) string {
	if m := metaCharsetPattern.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	if tag := httpEquivPattern.Find(body); tag != nil {
		if m := contentCharsetSubexp.FindSubmatch(tag); m != nil {
			return string(m[1])
		}
	}
	return ""
}
