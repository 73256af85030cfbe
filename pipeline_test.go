package silo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeOCR struct {
	text   string
	err    error
	called bool
}

func (f *fakeOCR) ExtractImageText(ctx context.Context, imageBase64, mimeType string) (string, error) {
	f.called = true
	return f.text, f.err
}

type fakeShots struct {
	path  string
	saved []byte
}

func (f *fakeShots) SaveScreenshot(data []byte, mimeType string) (string, error) {
	f.saved = data
	return f.path, nil
}

func servePage(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server
}

func serveRenderer(t *testing.T, result RenderResult) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}))
	t.Cleanup(server.Close)
	return server
}

// failingRenderer fails the test if the pipeline escalates to rendering.
func failingRenderer(t *testing.T) *RenderClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("renderer called for a page that did not need rendering")
	}))
	t.Cleanup(server.Close)
	return NewRenderClient(server.URL, "", 5*time.Second)
}

func richPage() string {
	words := strings.Repeat("word ", 100)
	return fmt.Sprintf(`<html><head><title>Rich</title></head><body><p>%s</p></body></html>`, words)
}

func TestProcessDirect(t *testing.T) {
	page := servePage(t, richPage())
	pipeline := NewPipeline(newTestFetcher(), failingRenderer(t), nil, nil, 50)

	res := pipeline.Process(context.Background(), page.URL)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.ExtractionMethod != MethodDirect {
		t.Errorf("method = %q, want %q", res.ExtractionMethod, MethodDirect)
	}
	if res.Metadata.WordCount != 100 {
		t.Errorf("word count = %d, want 100", res.Metadata.WordCount)
	}
	if res.Metadata.ReadTime != 1 {
		t.Errorf("read time = %d, want 1", res.Metadata.ReadTime)
	}
}

func TestProcessSparsePageWithDescriptionSkipsRenderer(t *testing.T) {
	page := servePage(t, `<html><head><title>App</title>
		<meta name="description" content="A single page app with a real description.">
	</head><body>loading</body></html>`)
	pipeline := NewPipeline(newTestFetcher(), failingRenderer(t), nil, nil, 50)

	res := pipeline.Process(context.Background(), page.URL)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.ExtractionMethod != MethodDirect {
		t.Errorf("method = %q, want %q", res.ExtractionMethod, MethodDirect)
	}
}

func TestProcessRendererEscalation(t *testing.T) {
	page := servePage(t, `<html><head><title>App</title></head><body>loading</body></html>`)
	rendered := serveRenderer(t, RenderResult{
		HTML:   `<html><head><title>App Rendered</title></head><body><p>full client side article text with enough words to read</p></body></html>`,
		Status: "ok",
	})
	renderer := NewRenderClient(rendered.URL, "", 5*time.Second)
	pipeline := NewPipeline(newTestFetcher(), renderer, nil, nil, 50)

	res := pipeline.Process(context.Background(), page.URL)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.ExtractionMethod != MethodRenderer {
		t.Errorf("method = %q, want %q", res.ExtractionMethod, MethodRenderer)
	}
	if res.Metadata.Title != "App Rendered" {
		t.Errorf("expected metadata re-extracted from rendered HTML, got title %q", res.Metadata.Title)
	}
	if !strings.Contains(res.Text, "client side article") {
		t.Errorf("text = %q", res.Text)
	}
	if res.RenderStatus != "ok" {
		t.Errorf("render status = %q", res.RenderStatus)
	}
}

func TestProcessRendererFailureKeepsDirectResult(t *testing.T) {
	page := servePage(t, `<html><head><title>App</title></head><body>loading</body></html>`)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	renderer := NewRenderClient(broken.URL, "", 5*time.Second)
	pipeline := NewPipeline(newTestFetcher(), renderer, nil, nil, 50)

	res := pipeline.Process(context.Background(), page.URL)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.ExtractionMethod != MethodDirect {
		t.Errorf("method = %q, want %q", res.ExtractionMethod, MethodDirect)
	}
	if res.Text != "loading" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestProcessOCRTierReplacesSparseText(t *testing.T) {
	page := servePage(t, `<html><head><title>Shot</title></head><body>tiny</body></html>`)
	shotData := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	rendered := serveRenderer(t, RenderResult{
		ScreenshotBase64: shotData,
		ScreenshotMIME:   "image/png",
		Status:           "ok",
	})
	renderer := NewRenderClient(rendered.URL, "", 5*time.Second)
	ocr := &fakeOCR{text: "text recovered from the screenshot image"}
	shots := &fakeShots{path: "screenshots/2026/08/rendered_test.png"}
	pipeline := NewPipeline(newTestFetcher(), renderer, ocr, shots, 50)

	res := pipeline.Process(context.Background(), page.URL)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if !ocr.called {
		t.Fatal("expected OCR to run on sparse page with screenshot")
	}
	if res.Text != "text recovered from the screenshot image" {
		t.Errorf("text = %q", res.Text)
	}
	if res.ScreenshotPath != shots.path {
		t.Errorf("screenshot path = %q", res.ScreenshotPath)
	}
	if string(shots.saved) != "png-bytes" {
		t.Errorf("saved screenshot = %q", shots.saved)
	}
	// Final counts reflect the OCR text, not the original page
	if res.Metadata.WordCount != 6 {
		t.Errorf("word count = %d, want 6", res.Metadata.WordCount)
	}
}

func TestProcessOCRFailureKeepsExistingText(t *testing.T) {
	page := servePage(t, `<html><head><title>Shot</title></head><body>tiny</body></html>`)
	shotData := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	rendered := serveRenderer(t, RenderResult{ScreenshotBase64: shotData})
	renderer := NewRenderClient(rendered.URL, "", 5*time.Second)
	ocr := &fakeOCR{err: fmt.Errorf("model not loaded")}
	pipeline := NewPipeline(newTestFetcher(), renderer, ocr, &fakeShots{path: "p.png"}, 50)

	res := pipeline.Process(context.Background(), page.URL)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.Text != "tiny" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestProcessFetchFailureReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	pipeline := NewPipeline(newTestFetcher(), nil, nil, nil, 50)
	if res := pipeline.Process(context.Background(), server.URL); res != nil {
		t.Errorf("expected nil for unfetchable page, got %+v", res)
	}
}
