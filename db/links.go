package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/silobot/silo/models"
)

// UpsertUser creates a user row or refreshes its username
func (db *DB) UpsertUser(ctx context.Context, userID int64, username string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (user_id, username)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (user_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, users.username)
	`, userID, username)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// UpsertLink creates a link or refreshes an existing one for the same
// user and URL, never overwriting stored values with NULL
func (db *DB) UpsertLink(ctx context.Context, link models.LinkUpsert) (int64, error) {
	var linkID int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO links (user_id, url, title, description, domain)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, url) DO UPDATE SET
			title = COALESCE(EXCLUDED.title, links.title),
			description = COALESCE(EXCLUDED.description, links.description),
			domain = COALESCE(EXCLUDED.domain, links.domain),
			updated_at = CURRENT_TIMESTAMP
		RETURNING link_id
	`, link.UserID, link.URL, link.Title, link.Description, link.Domain).Scan(&linkID)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert link: %w", err)
	}
	return linkID, nil
}

// UpdateLinkDetails sets only the link columns present in details
func (db *DB) UpdateLinkDetails(ctx context.Context, linkID int64, details models.LinkDetails) error {
	assignments := []string{}
	args := []any{}

	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("title", details.Title)
	add("description", details.Description)
	add("domain", details.Domain)
	add("screenshot_path", details.ScreenshotPath)
	add("archived_html", details.ArchivedHTML)
	add("ai_summary", details.Summary)

	if len(assignments) == 0 {
		return nil
	}
	assignments = append(assignments, "updated_at = CURRENT_TIMESTAMP")

	args = append(args, linkID)
	query := fmt.Sprintf("UPDATE links SET %s WHERE link_id = $%d",
		strings.Join(assignments, ", "), len(args))

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update link details: %w", err)
	}
	return nil
}

// UpsertLinkMetadata stores the extracted page metadata for a link
func (db *DB) UpsertLinkMetadata(ctx context.Context, linkID int64, meta models.Metadata) error {
	// Publish dates arrive in whatever format the page used; unparseable
	// ones are stored as NULL rather than failing the save
	var publishDate sql.NullTime
	if meta.PublishDate != "" {
		if t, err := dateparse.ParseAny(meta.PublishDate); err == nil {
			publishDate = sql.NullTime{Time: t, Valid: true}
		}
	}

	wordCount := sql.NullInt64{Int64: int64(meta.WordCount), Valid: meta.WordCount > 0}
	readTime := sql.NullInt64{Int64: int64(meta.ReadTime), Valid: meta.ReadTime > 0}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO link_metadata (link_id, author, publish_date, favicon_url, content_type,
			read_time_minutes, canonical_url, language, word_count)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		ON CONFLICT (link_id) DO UPDATE SET
			author = COALESCE(EXCLUDED.author, link_metadata.author),
			publish_date = COALESCE(EXCLUDED.publish_date, link_metadata.publish_date),
			favicon_url = COALESCE(EXCLUDED.favicon_url, link_metadata.favicon_url),
			content_type = COALESCE(EXCLUDED.content_type, link_metadata.content_type),
			read_time_minutes = COALESCE(EXCLUDED.read_time_minutes, link_metadata.read_time_minutes),
			canonical_url = COALESCE(EXCLUDED.canonical_url, link_metadata.canonical_url),
			language = COALESCE(EXCLUDED.language, link_metadata.language),
			word_count = COALESCE(EXCLUDED.word_count, link_metadata.word_count),
			extracted_at = CURRENT_TIMESTAMP
	`, linkID, meta.Author, publishDate, meta.Favicon, meta.ContentType,
		readTime, meta.CanonicalURL, meta.Language, wordCount)
	if err != nil {
		return fmt.Errorf("failed to upsert link metadata: %w", err)
	}
	return nil
}

// AddLinkCategories attaches categories to a link, ignoring duplicates
func (db *DB) AddLinkCategories(ctx context.Context, linkID int64, categories []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, category := range categories {
			category = strings.TrimSpace(category)
			if category == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO link_categories (link_id, category)
				VALUES ($1, $2)
				ON CONFLICT (link_id, category) DO NOTHING
			`, linkID, category); err != nil {
				return fmt.Errorf("failed to add category %q: %w", category, err)
			}
		}
		return nil
	})
}

// AddLinkEntities attaches extracted entities to a link, ignoring duplicates
func (db *DB) AddLinkEntities(ctx context.Context, linkID int64, entities []models.Entity) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, entity := range entities {
			name := strings.TrimSpace(entity.Name)
			if name == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO link_entities (link_id, entity_name, entity_type)
				VALUES ($1, $2, NULLIF($3, ''))
				ON CONFLICT (link_id, entity_name) DO NOTHING
			`, linkID, name, entity.Type); err != nil {
				return fmt.Errorf("failed to add entity %q: %w", name, err)
			}
		}
		return nil
	})
}

// RecordLinkSource records who shared the link and from which platform.
// Sources are append-only; re-sharing the same link adds a new row
func (db *DB) RecordLinkSource(ctx context.Context, linkID, sharerID int64, platform string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO link_sources (link_id, sharer_id, platform)
		VALUES ($1, $2, NULLIF($3, ''))
	`, linkID, sharerID, platform)
	if err != nil {
		return fmt.Errorf("failed to record link source: %w", err)
	}
	return nil
}

// AddLinkSnapshot records an archive snapshot location for a link
func (db *DB) AddLinkSnapshot(ctx context.Context, linkID int64, snapshotURL, snapshotType string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO link_snapshots (link_id, snapshot_url, snapshot_type)
		VALUES ($1, $2, $3)
	`, linkID, snapshotURL, snapshotType)
	if err != nil {
		return fmt.Errorf("failed to add link snapshot: %w", err)
	}
	return nil
}

// StoreLinkEmbedding replaces the embedding vector stored for a link
func (db *DB) StoreLinkEmbedding(ctx context.Context, linkID int64, vector []float64, model string) error {
	payload, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO link_embeddings (link_id, embedding, model)
		VALUES ($1, $2, $3)
		ON CONFLICT (link_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			created_at = CURRENT_TIMESTAMP
	`, linkID, payload, model)
	if err != nil {
		return fmt.Errorf("failed to store link embedding: %w", err)
	}
	return nil
}
