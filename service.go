package silo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/silobot/silo/models"
)

// Save outcome statuses.
const (
	StatusSaved       = "saved"
	StatusContextOnly = "context_only"
	StatusUnreachable = "unreachable"
)

// Store is the persistence surface the save flow needs.
type Store interface {
	UpsertUser(ctx context.Context, userID int64, username string) error
	UpsertLink(ctx context.Context, link models.LinkUpsert) (int64, error)
	UpdateLinkDetails(ctx context.Context, linkID int64, details models.LinkDetails) error
	UpsertLinkMetadata(ctx context.Context, linkID int64, meta models.Metadata) error
	AddLinkCategories(ctx context.Context, linkID int64, categories []string) error
	AddLinkEntities(ctx context.Context, linkID int64, entities []models.Entity) error
	RecordLinkSource(ctx context.Context, linkID, sharerID int64, platform string) error
	StoreLinkEmbedding(ctx context.Context, linkID int64, vector []float64, model string) error
}

// Analyzer enriches extracted text. Both methods degrade gracefully:
// Analyze returns a usable default on model failure and Embed returns nil.
type Analyzer interface {
	Analyze(ctx context.Context, text, userContext string) models.Analysis
	Embed(ctx context.Context, text string) *models.Embedding
}

// SaveReport summarises what happened to a saved URL.
type SaveReport struct {
	Status           string   `json:"status"`
	LinkID           int64    `json:"link_id"`
	Title            string   `json:"title,omitempty"`
	ResolvedURL      string   `json:"resolved_url,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	Categories       []string `json:"categories,omitempty"`
	WordCount        int      `json:"word_count"`
	ExtractionMethod string   `json:"extraction_method,omitempty"`
	UserContextUsed  bool     `json:"user_context_used"`
}

// Service ties the content pipeline, the AI enrichment layer and the store
// into the full save flow.
type Service struct {
	pipeline *Pipeline
	store    Store
	analyzer Analyzer
	platform string
}

func NewService(pipeline *Pipeline, store Store, analyzer Analyzer, platform string) *Service {
	return &Service{
		pipeline: pipeline,
		store:    store,
		analyzer: analyzer,
		platform: platform,
	}
}

// SaveLink runs the full save flow for one URL: fetch and extract the page,
// persist the link and its metadata, enrich with categories, entities, a
// summary and an embedding, and record who shared it. A note is the user's
// own comment on the link; it fills in for missing descriptions and, when
// the URL is unreachable, becomes the only saved content.
func (s *Service) SaveLink(ctx context.Context, userID int64, username, pageURL, note string) (*SaveReport, error) {
	if err := s.store.UpsertUser(ctx, userID, username); err != nil {
		return nil, fmt.Errorf("upserting user %d: %w", userID, err)
	}

	note = strings.TrimSpace(note)
	res := s.pipeline.Process(ctx, pageURL)
	if res == nil {
		return s.saveUnreachable(ctx, userID, pageURL, note)
	}

	description := res.Metadata.Description
	if description == "" {
		description = note
	}
	linkID, err := s.store.UpsertLink(ctx, models.LinkUpsert{
		UserID:      userID,
		URL:         pageURL,
		Title:       models.Nullable(res.Metadata.Title),
		Description: models.Nullable(description),
		Domain:      models.Nullable(res.Metadata.Domain),
	})
	if err != nil {
		return nil, fmt.Errorf("upserting link: %w", err)
	}

	details := models.LinkDetails{
		ScreenshotPath: models.Nullable(res.ScreenshotPath),
		ArchivedHTML:   models.Nullable(res.HTML),
	}
	if err := s.store.UpdateLinkDetails(ctx, linkID, details); err != nil {
		return nil, fmt.Errorf("updating link %d details: %w", linkID, err)
	}
	if err := s.store.UpsertLinkMetadata(ctx, linkID, res.Metadata); err != nil {
		return nil, fmt.Errorf("storing link %d metadata: %w", linkID, err)
	}

	report := &SaveReport{
		Status:           StatusSaved,
		LinkID:           linkID,
		Title:            res.Metadata.Title,
		ResolvedURL:      res.ResolvedURL,
		WordCount:        res.Metadata.WordCount,
		ExtractionMethod: res.ExtractionMethod,
		UserContextUsed:  note != "",
	}

	if res.Text != "" {
		if err := s.enrich(ctx, linkID, res.Text, note, report); err != nil {
			return nil, err
		}
	} else {
		summary := "No readable content found on this page."
		if note != "" {
			summary = "Saved with user context: " + note
		}
		if err := s.store.UpdateLinkDetails(ctx, linkID, models.LinkDetails{Summary: &summary}); err != nil {
			return nil, fmt.Errorf("storing link %d summary: %w", linkID, err)
		}
		report.Summary = summary
	}

	if err := s.store.RecordLinkSource(ctx, linkID, userID, s.platform); err != nil {
		return nil, fmt.Errorf("recording link %d source: %w", linkID, err)
	}

	linksSavedTotal.WithLabelValues(StatusSaved).Inc()
	slog.Info("link saved",
		"link_id", linkID,
		"user_id", userID,
		"method", res.ExtractionMethod,
		"words", res.Metadata.WordCount)
	return report, nil
}

func (s *Service) enrich(ctx context.Context, linkID int64, text, note string, report *SaveReport) error {
	analysis := s.analyzer.Analyze(ctx, text, note)

	if len(analysis.Categories) > 0 {
		if err := s.store.AddLinkCategories(ctx, linkID, analysis.Categories); err != nil {
			return fmt.Errorf("storing link %d categories: %w", linkID, err)
		}
	}
	if len(analysis.Entities) > 0 {
		if err := s.store.AddLinkEntities(ctx, linkID, analysis.Entities); err != nil {
			return fmt.Errorf("storing link %d entities: %w", linkID, err)
		}
	}
	if analysis.Summary != "" {
		if err := s.store.UpdateLinkDetails(ctx, linkID, models.LinkDetails{Summary: &analysis.Summary}); err != nil {
			return fmt.Errorf("storing link %d summary: %w", linkID, err)
		}
	}
	report.Summary = analysis.Summary
	report.Categories = analysis.Categories

	if emb := s.analyzer.Embed(ctx, text); emb != nil {
		if err := s.store.StoreLinkEmbedding(ctx, linkID, emb.Vector, emb.Model); err != nil {
			return fmt.Errorf("storing link %d embedding: %w", linkID, err)
		}
	}
	return nil
}

// saveUnreachable persists what it can for a URL that could not be fetched.
// With a user note the link is saved with the note as its content; without
// one the link row is still created so the URL is not lost.
func (s *Service) saveUnreachable(ctx context.Context, userID int64, pageURL, note string) (*SaveReport, error) {
	upsert := models.LinkUpsert{UserID: userID, URL: pageURL}
	status := StatusUnreachable
	var summary string
	if note != "" {
		status = StatusContextOnly
		summary = "Saved with user context: " + note
		upsert.Description = &note
	}

	linkID, err := s.store.UpsertLink(ctx, upsert)
	if err != nil {
		return nil, fmt.Errorf("upserting unreachable link: %w", err)
	}
	if summary != "" {
		if err := s.store.UpdateLinkDetails(ctx, linkID, models.LinkDetails{Summary: &summary}); err != nil {
			return nil, fmt.Errorf("storing link %d summary: %w", linkID, err)
		}
	}
	if err := s.store.RecordLinkSource(ctx, linkID, userID, s.platform); err != nil {
		return nil, fmt.Errorf("recording link %d source: %w", linkID, err)
	}

	linksSavedTotal.WithLabelValues(status).Inc()
	slog.Warn("link unreachable, saved without content", "link_id", linkID, "url", pageURL, "has_context", note != "")
	return &SaveReport{
		Status:          status,
		LinkID:          linkID,
		Summary:         summary,
		UserContextUsed: note != "",
	}, nil
}
