// Package enrich turns extracted page text into structured analysis
// (category, topics, entities, summary) and embedding vectors using a
// language model. Every operation degrades gracefully: a failed model call
// yields a usable default analysis or a nil embedding, never an error that
// would block saving the link.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/silobot/silo/models"
)

// LLM is the model surface enrichment needs.
type LLM interface {
	GenerateJSON(ctx context.Context, model, prompt string) (string, error)
	Embeddings(ctx context.Context, model, input string) ([]float64, error)
}

type Config struct {
	Model          string
	FallbackModel  string
	EmbeddingModel string
	MaxInputChars  int
	MaxEmbedChars  int
}

func (c *Config) applyDefaults() {
	if c.MaxInputChars == 0 {
		c.MaxInputChars = 6000
	}
	if c.MaxEmbedChars == 0 {
		c.MaxEmbedChars = 4000
	}
	if c.FallbackModel == "" {
		c.FallbackModel = c.Model
	}
}

type Enricher struct {
	llm LLM
	cfg Config
}

func New(llm LLM, cfg Config) *Enricher {
	cfg.applyDefaults()
	return &Enricher{llm: llm, cfg: cfg}
}

// DefaultAnalysis is the degraded result used when the model cannot be
// reached or returns garbage.
func DefaultAnalysis() models.Analysis {
	return models.Analysis{
		Category:   "General",
		Categories: []string{"General"},
		Summary:    "No summary available.",
	}
}

// Analyze classifies and summarises the given text. An empty text returns
// the default analysis without a model call. Model failures are retried
// once on the fallback model before giving up.
func (e *Enricher) Analyze(ctx context.Context, text, userContext string) models.Analysis {
	text = strings.TrimSpace(text)
	if text == "" {
		return DefaultAnalysis()
	}
	text = truncate(text, e.cfg.MaxInputChars)

	prompt := buildPrompt(text, userContext)
	analysis, err := e.analyzeOnce(ctx, e.cfg.Model, prompt)
	if err != nil && e.cfg.FallbackModel != e.cfg.Model {
		slog.Warn("analysis failed, retrying with fallback model",
			"model", e.cfg.Model, "fallback", e.cfg.FallbackModel, "error", err)
		fallbackRetriesTotal.Inc()
		analysis, err = e.analyzeOnce(ctx, e.cfg.FallbackModel, prompt)
	}
	if err != nil {
		slog.Warn("analysis failed, using default", "error", err)
		defaultAnalysisTotal.Inc()
		return DefaultAnalysis()
	}
	return analysis
}

func (e *Enricher) analyzeOnce(ctx context.Context, model, prompt string) (models.Analysis, error) {
	out, err := e.llm.GenerateJSON(ctx, model, prompt)
	if err != nil {
		return models.Analysis{}, err
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return models.Analysis{}, fmt.Errorf("parsing model output: %w", err)
	}
	return raw.normalize(), nil
}

// Embed returns the embedding for the text, truncated to the configured
// limit. Returns nil on any failure; embeddings are optional.
func (e *Enricher) Embed(ctx context.Context, text string) *models.Embedding {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	text = truncate(text, e.cfg.MaxEmbedChars)

	vector, err := e.llm.Embeddings(ctx, e.cfg.EmbeddingModel, text)
	if err != nil {
		slog.Warn("embedding failed", "model", e.cfg.EmbeddingModel, "error", err)
		return nil
	}
	if len(vector) == 0 {
		return nil
	}
	return &models.Embedding{Vector: vector, Model: e.cfg.EmbeddingModel}
}

// truncate cuts text to at most max bytes without splitting a UTF-8 rune.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}

func buildPrompt(text, userContext string) string {
	var b strings.Builder
	b.WriteString("You are a precise content analyst. Analyze the following web page text and respond with a single JSON object with these fields:\n")
	b.WriteString(`  "type": the main category of the content (one short phrase),` + "\n")
	b.WriteString(`  "topics": a list of up to 5 specific topics covered,` + "\n")
	b.WriteString(`  "entities": a list of notable people, organizations, products or places, each as {"name": ..., "type": ...},` + "\n")
	b.WriteString(`  "summary": a 2-3 sentence summary of the content,` + "\n")
	b.WriteString(`  "tags": a list of up to 8 short lowercase tags.` + "\n")
	b.WriteString("Respond with JSON only, no prose.\n\n")
	if userContext != "" {
		b.WriteString("The user saved this page with the note: ")
		b.WriteString(userContext)
		b.WriteString("\nTake the note into account when classifying.\n\n")
	}
	b.WriteString("Text:\n")
	b.WriteString(text)
	return b.String()
}
