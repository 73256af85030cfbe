package silo

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/silobot/silo/models"
)

// Extraction methods recorded on pipeline results.
const (
	MethodDirect   = "direct"
	MethodRenderer = "renderer"
)

// OCRClient extracts text from a screenshot image. Implementations are
// expected to be vision-capable language model clients.
type OCRClient interface {
	ExtractImageText(ctx context.Context, imageBase64, mimeType string) (string, error)
}

// ScreenshotStore persists rendered screenshots and returns their path.
type ScreenshotStore interface {
	SaveScreenshot(data []byte, mimeType string) (string, error)
}

// Result is the combined output of the content pipeline for one URL.
type Result struct {
	HTML             string
	ResolvedURL      string
	Metadata         models.Metadata
	Text             string
	ScreenshotPath   string
	ExtractionMethod string
	RenderStatus     string
}

// Pipeline runs the fetch, extract, render and OCR ladder for a URL.
// Rendering and OCR are optional escalation tiers: each one runs only when
// the previous tier produced too little text to be worth enriching.
type Pipeline struct {
	fetcher  *Fetcher
	renderer *RenderClient
	ocr      OCRClient
	shots    ScreenshotStore
	minWords int
}

// NewPipeline wires the pipeline tiers. renderer, ocr and shots may be nil
// to disable the corresponding tier.
func NewPipeline(fetcher *Fetcher, renderer *RenderClient, ocr OCRClient, shots ScreenshotStore, minWords int) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		renderer: renderer,
		ocr:      ocr,
		shots:    shots,
		minWords: minWords,
	}
}

// Process fetches a URL and extracts its content, escalating through the
// renderer and OCR tiers when the direct fetch yields a sparse page.
// Returns nil only when the URL could not be fetched at all.
func (p *Pipeline) Process(ctx context.Context, pageURL string) *Result {
	fetched := p.fetcher.Fetch(ctx, pageURL)
	if fetched == nil {
		fetchFailuresTotal.Inc()
		return nil
	}

	meta, text := ExtractMetadata(fetched.HTML, fetched.FinalURL, fetched.ContentType)
	res := &Result{
		HTML:             fetched.HTML,
		ResolvedURL:      fetched.FinalURL,
		Metadata:         meta,
		Text:             text,
		ExtractionMethod: MethodDirect,
	}

	var shot *screenshot
	if p.shouldRender(res) {
		shot = p.render(ctx, pageURL, res)
	}
	if shot != nil && p.shouldOCR(res) {
		p.runOCR(ctx, pageURL, shot, res)
	}

	res.Metadata.WordCount = len(strings.Fields(res.Text))
	res.Metadata.ReadTime = readTimeMinutes(res.Metadata.WordCount)
	extractionMethodTotal.WithLabelValues(res.ExtractionMethod).Inc()
	return res
}

// shouldRender decides whether a page looks JavaScript-rendered: no text
// at all, or too few words with no description to compensate.
func (p *Pipeline) shouldRender(res *Result) bool {
	if !p.renderer.Enabled() {
		return false
	}
	if res.Text == "" {
		return true
	}
	return res.Metadata.WordCount < p.minWords && res.Metadata.Description == ""
}

// screenshot holds a rendered screenshot for the OCR tier.
type screenshot struct {
	base64 string
	mime   string
}

func (p *Pipeline) render(ctx context.Context, pageURL string, res *Result) *screenshot {
	rendered := p.renderer.Render(ctx, pageURL)
	if rendered == nil {
		return nil
	}

	res.ExtractionMethod = MethodRenderer
	res.RenderStatus = rendered.Status
	if rendered.ResolvedURL != "" {
		res.ResolvedURL = rendered.ResolvedURL
	}
	if rendered.HTML != "" {
		res.HTML = rendered.HTML
		meta, text := ExtractMetadata(rendered.HTML, res.ResolvedURL, res.Metadata.ContentType)
		res.Metadata = meta
		res.Text = text
	}
	if res.Text == "" && rendered.Text != "" {
		res.Text = rendered.Text
	}

	if rendered.ScreenshotBase64 == "" {
		return nil
	}
	if p.shots != nil {
		data, err := base64.StdEncoding.DecodeString(rendered.ScreenshotBase64)
		if err != nil {
			slog.Warn("screenshot decode failed", "url", pageURL, "error", err)
			return nil
		}
		path, err := p.shots.SaveScreenshot(data, rendered.ScreenshotMIME)
		if err != nil {
			slog.Warn("screenshot save failed", "url", pageURL, "error", err)
		} else {
			res.ScreenshotPath = path
		}
	}
	return &screenshot{base64: rendered.ScreenshotBase64, mime: rendered.ScreenshotMIME}
}

// shouldOCR runs OCR only when the page is still sparse after rendering.
func (p *Pipeline) shouldOCR(res *Result) bool {
	if p.ocr == nil {
		return false
	}
	if res.Text == "" {
		return true
	}
	return len(strings.Fields(res.Text)) < p.minWords
}

func (p *Pipeline) runOCR(ctx context.Context, pageURL string, shot *screenshot, res *Result) {
	ocrRunsTotal.Inc()
	text, err := p.ocr.ExtractImageText(ctx, shot.base64, shot.mime)
	if err != nil {
		slog.Warn("screenshot OCR failed", "url", pageURL, "error", err)
		return
	}
	if text = strings.TrimSpace(text); text != "" {
		res.Text = text
	}
}
