package silo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RenderResult is the response of the headless rendering service.
type RenderResult struct {
	HTML             string `json:"html"`
	Text             string `json:"text_content"`
	ResolvedURL      string `json:"resolved_url"`
	ScreenshotBase64 string `json:"screenshot_base64"`
	ScreenshotMIME   string `json:"screenshot_mime"`
	Status           string `json:"status"`
}

// RenderClient talks to an external headless browser rendering service.
// The zero endpoint disables rendering entirely.
type RenderClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewRenderClient(endpoint, apiKey string, timeout time.Duration) *RenderClient {
	return &RenderClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Enabled reports whether a rendering endpoint is configured.
func (r *RenderClient) Enabled() bool {
	return r != nil && r.endpoint != ""
}

// Render asks the rendering service to load the URL in a headless browser.
// Returns nil when the service is unreachable, rejects the request, or
// produces no usable output. Rendering is best effort and never fails the
// caller.
func (r *RenderClient) Render(ctx context.Context, pageURL string) *RenderResult {
	if !r.Enabled() {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"url": pageURL})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		slog.Warn("renderer request build failed", "url", pageURL, "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.apiKey))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("renderer unreachable", "url", pageURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("renderer returned error", "url", pageURL, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		slog.Warn("renderer response read failed", "url", pageURL, "error", err)
		return nil
	}

	var result RenderResult
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Warn("renderer returned invalid JSON", "url", pageURL, "error", err)
		return nil
	}
	if result.HTML == "" && result.Text == "" && result.ScreenshotBase64 == "" {
		return nil
	}
	if result.ScreenshotBase64 != "" && result.ScreenshotMIME == "" {
		result.ScreenshotMIME = "image/png"
	}
	return &result
}
