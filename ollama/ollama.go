// Package ollama is a minimal client for a local Ollama server, covering
// the three endpoints the link pipeline needs: JSON-mode text generation,
// vision-model text extraction and embeddings.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "gpt-oss:20b"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Stream bool     `json:"stream"`
	Format string   `json:"format,omitempty"`
	Images []string `json:"images,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// GenerateJSON runs a prompt in JSON mode and returns the raw model output.
func (c *Client) GenerateJSON(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.generate(ctx, generateRequest{
		Model:  model,
		Prompt: prompt,
		Format: "json",
	})
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// ExtractImageText asks a vision model to transcribe the text visible in a
// base64-encoded image.
func (c *Client) ExtractImageText(ctx context.Context, model, imageBase64, mimeType string) (string, error) {
	_ = mimeType // Ollama infers the image format from the bytes
	resp, err := c.generate(ctx, generateRequest{
		Model:  model,
		Prompt: "Extract all visible text from this screenshot. Return plain text only without additional commentary.",
		Images: []string{imageBase64},
	})
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Embeddings returns the embedding vector for the given input.
func (c *Client) Embeddings(ctx context.Context, model, input string) ([]float64, error) {
	body, err := c.post(ctx, "/api/embeddings", embeddingRequest{Model: model, Prompt: input})
	if err != nil {
		return nil, err
	}
	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	return resp.Embedding, nil
}

func (c *Client) generate(ctx context.Context, req generateRequest) (*generateResponse, error) {
	req.Stream = false
	body, err := c.post(ctx, "/api/generate", req)
	if err != nil {
		return nil, err
	}
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding generate response: %w", err)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
