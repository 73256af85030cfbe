package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/silobot/silo/models"
)

// linkColumns is the shared projection for link result rows. Categories
// and entities are aggregated inline so a result page costs one query
const linkColumns = `
	l.link_id,
	l.url,
	COALESCE(l.title, l.url),
	COALESCE(l.description, ''),
	COALESCE(l.ai_summary, ''),
	COALESCE(l.domain, ''),
	l.created_at,
	ARRAY(SELECT c.category FROM link_categories c WHERE c.link_id = l.link_id ORDER BY c.category),
	ARRAY(SELECT e.entity_name FROM link_entities e WHERE e.link_id = l.link_id ORDER BY e.entity_name)
`

func scanLink(scanner interface{ Scan(...any) error }) (models.Link, error) {
	var link models.Link
	err := scanner.Scan(
		&link.ID,
		&link.URL,
		&link.Title,
		&link.Description,
		&link.Summary,
		&link.Domain,
		&link.CreatedAt,
		pq.Array(&link.Categories),
		pq.Array(&link.Entities),
	)
	return link, err
}

func collectLinks(rows *sql.Rows) ([]models.Link, error) {
	defer rows.Close()
	var links []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// GetRecentLinks returns the user's most recently saved links
func (db *DB) GetRecentLinks(ctx context.Context, userID int64, limit int) ([]models.Link, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+linkColumns+`
		FROM links l
		WHERE l.user_id = $1
		ORDER BY l.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent links: %w", err)
	}
	return collectLinks(rows)
}

// SearchLinks finds a user's links matching the query. Full-text search
// over title and description runs first; when it finds nothing the search
// widens to substring matches over title, description, summary, categories
// and entities
func (db *DB) SearchLinks(ctx context.Context, userID int64, query string, limit int) ([]models.Link, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+linkColumns+`
		FROM links l
		WHERE l.user_id = $1
		  AND to_tsvector('english', COALESCE(l.title, '') || ' ' || COALESCE(l.description, ''))
		      @@ plainto_tsquery('english', $2)
		ORDER BY ts_rank_cd(
			to_tsvector('english', COALESCE(l.title, '') || ' ' || COALESCE(l.description, '')),
			plainto_tsquery('english', $2)
		) DESC, l.created_at DESC
		LIMIT $3
	`, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run full-text search: %w", err)
	}
	links, err := collectLinks(rows)
	if err != nil {
		return nil, err
	}
	if len(links) > 0 {
		return links, nil
	}
	return db.searchLinksLike(ctx, userID, query, limit)
}

func (db *DB) searchLinksLike(ctx context.Context, userID int64, query string, limit int) ([]models.Link, error) {
	pattern := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+linkColumns+`
		FROM links l
		WHERE l.user_id = $1 AND (
			l.title ILIKE $2
			OR l.description ILIKE $2
			OR l.ai_summary ILIKE $2
			OR EXISTS (SELECT 1 FROM link_categories c WHERE c.link_id = l.link_id AND c.category ILIKE $2)
			OR EXISTS (SELECT 1 FROM link_entities e WHERE e.link_id = l.link_id AND e.entity_name ILIKE $2)
		)
		ORDER BY l.created_at DESC
		LIMIT $3
	`, userID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run substring search: %w", err)
	}
	return collectLinks(rows)
}

// GetLinkByID returns a single link owned by the user
func (db *DB) GetLinkByID(ctx context.Context, userID, linkID int64) (*models.Link, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+linkColumns+`
		FROM links l
		WHERE l.user_id = $1 AND l.link_id = $2
	`, userID, linkID)
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return &link, nil
}

// GetLinkStats summarises a user's saved links
func (db *DB) GetLinkStats(ctx context.Context, userID int64) (*models.Stats, error) {
	stats := &models.Stats{}

	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(created_at)
		FROM links
		WHERE user_id = $1
	`, userID).Scan(&stats.TotalLinks, &stats.LastSavedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}

	stats.TopCategories, err = db.topCounts(ctx, `
		SELECT c.category, COUNT(*)
		FROM link_categories c
		JOIN links l ON l.link_id = c.link_id
		WHERE l.user_id = $1
		GROUP BY c.category
		ORDER BY COUNT(*) DESC, c.category
		LIMIT 5
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query top categories: %w", err)
	}

	stats.TopDomains, err = db.topCounts(ctx, `
		SELECT l.domain, COUNT(*)
		FROM links l
		WHERE l.user_id = $1 AND l.domain IS NOT NULL
		GROUP BY l.domain
		ORDER BY COUNT(*) DESC, l.domain
		LIMIT 5
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query top domains: %w", err)
	}

	return stats, nil
}

func (db *DB) topCounts(ctx context.Context, query string, userID int64) ([]models.StatCount, error) {
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.StatCount
	for rows.Next() {
		var c models.StatCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetLinksForExport returns every link a user has saved with the full
// metadata needed for an export file
func (db *DB) GetLinksForExport(ctx context.Context, userID int64) ([]models.ExportRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+linkColumns+`,
			l.updated_at,
			COALESCE(m.author, ''),
			m.publish_date,
			COALESCE(m.read_time_minutes, 0),
			COALESCE(m.content_type, ''),
			ARRAY(SELECT s.snapshot_url FROM link_snapshots s WHERE s.link_id = l.link_id ORDER BY s.created_at)
		FROM links l
		LEFT JOIN link_metadata m ON m.link_id = l.link_id
		WHERE l.user_id = $1
		ORDER BY l.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links for export: %w", err)
	}
	defer rows.Close()

	var out []models.ExportRow
	for rows.Next() {
		var row models.ExportRow
		err := rows.Scan(
			&row.ID,
			&row.URL,
			&row.Title,
			&row.Description,
			&row.Summary,
			&row.Domain,
			&row.CreatedAt,
			pq.Array(&row.Categories),
			pq.Array(&row.Entities),
			&row.UpdatedAt,
			&row.Author,
			&row.PublishDate,
			&row.ReadTime,
			&row.ContentType,
			pq.Array(&row.Snapshots),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CreateCollection creates a named collection for a user, returning the
// existing collection's ID when the name is already taken
func (db *DB) CreateCollection(ctx context.Context, userID int64, name string, isPublic bool) (int64, error) {
	var collectionID int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO link_collections (user_id, name, is_public)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, name) DO UPDATE SET
			is_public = EXCLUDED.is_public
		RETURNING collection_id
	`, userID, name, isPublic).Scan(&collectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}
	return collectionID, nil
}

// AddLinkToCollection places a link in a collection, ignoring duplicates
func (db *DB) AddLinkToCollection(ctx context.Context, collectionID, linkID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO collection_links (collection_id, link_id)
		VALUES ($1, $2)
		ON CONFLICT (collection_id, link_id) DO NOTHING
	`, collectionID, linkID)
	if err != nil {
		return fmt.Errorf("failed to add link to collection: %w", err)
	}
	return nil
}

// ListCollections returns a user's collections
func (db *DB) ListCollections(ctx context.Context, userID int64) ([]models.Collection, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT collection_id, user_id, name, is_public
		FROM link_collections
		WHERE user_id = $1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []models.Collection
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.IsPublic); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}
