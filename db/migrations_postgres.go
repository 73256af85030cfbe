package db

// postgresMigrations contains the full schema history. Later migrations
// use ADD COLUMN IF NOT EXISTS so they stay safe to re-run against
// databases created before the migration framework existed.
var postgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_users_table",
		Up: `
			CREATE TABLE IF NOT EXISTS users (
				user_id BIGINT PRIMARY KEY,
				username TEXT,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
		`,
		Down: `DROP TABLE IF EXISTS users;`,
	},
	{
		Version: 2,
		Name:    "create_links_table",
		Up: `
			CREATE TABLE IF NOT EXISTS links (
				link_id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
				url TEXT NOT NULL,
				title TEXT,
				description TEXT,
				domain TEXT,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (user_id, url)
			);
			CREATE INDEX IF NOT EXISTS idx_links_user_created ON links(user_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_links_domain ON links(domain);
		`,
		Down: `DROP TABLE IF EXISTS links;`,
	},
	{
		Version: 3,
		Name:    "create_link_metadata_table",
		Up: `
			CREATE TABLE IF NOT EXISTS link_metadata (
				link_id BIGINT PRIMARY KEY REFERENCES links(link_id) ON DELETE CASCADE,
				author TEXT,
				publish_date TIMESTAMP,
				favicon_url TEXT,
				content_type TEXT,
				read_time_minutes INTEGER,
				extracted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
		`,
		Down: `DROP TABLE IF EXISTS link_metadata;`,
	},
	{
		Version: 4,
		Name:    "create_categorization_tables",
		Up: `
			CREATE TABLE IF NOT EXISTS link_categories (
				category_id BIGSERIAL PRIMARY KEY,
				link_id BIGINT NOT NULL REFERENCES links(link_id) ON DELETE CASCADE,
				category TEXT NOT NULL,
				UNIQUE (link_id, category)
			);
			CREATE INDEX IF NOT EXISTS idx_link_categories_category ON link_categories(category);

			CREATE TABLE IF NOT EXISTS link_entities (
				entity_id BIGSERIAL PRIMARY KEY,
				link_id BIGINT NOT NULL REFERENCES links(link_id) ON DELETE CASCADE,
				entity_name TEXT NOT NULL,
				entity_type TEXT,
				UNIQUE (link_id, entity_name)
			);
			CREATE INDEX IF NOT EXISTS idx_link_entities_name ON link_entities(entity_name);
		`,
		Down: `
			DROP TABLE IF EXISTS link_entities;
			DROP TABLE IF EXISTS link_categories;
		`,
	},
	{
		Version: 5,
		Name:    "create_link_sources_table",
		Up: `
			CREATE TABLE IF NOT EXISTS link_sources (
				source_id BIGSERIAL PRIMARY KEY,
				link_id BIGINT NOT NULL REFERENCES links(link_id) ON DELETE CASCADE,
				sharer_id BIGINT,
				platform TEXT,
				shared_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
		`,
		Down: `DROP TABLE IF EXISTS link_sources;`,
	},
	{
		Version: 6,
		Name:    "create_link_embeddings_table",
		Up: `
			CREATE TABLE IF NOT EXISTS link_embeddings (
				link_id BIGINT PRIMARY KEY REFERENCES links(link_id) ON DELETE CASCADE,
				embedding JSONB NOT NULL,
				model TEXT,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
		`,
		Down: `DROP TABLE IF EXISTS link_embeddings;`,
	},
	{
		Version: 7,
		Name:    "create_link_snapshots_table",
		Up: `
			CREATE TABLE IF NOT EXISTS link_snapshots (
				snapshot_id BIGSERIAL PRIMARY KEY,
				link_id BIGINT NOT NULL REFERENCES links(link_id) ON DELETE CASCADE,
				snapshot_url TEXT NOT NULL,
				snapshot_type TEXT NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
		`,
		Down: `DROP TABLE IF EXISTS link_snapshots;`,
	},
	{
		Version: 8,
		Name:    "create_collections_tables",
		Up: `
			CREATE TABLE IF NOT EXISTS link_collections (
				collection_id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				is_public BOOLEAN DEFAULT FALSE,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (user_id, name)
			);

			CREATE TABLE IF NOT EXISTS collection_links (
				collection_id BIGINT NOT NULL REFERENCES link_collections(collection_id) ON DELETE CASCADE,
				link_id BIGINT NOT NULL REFERENCES links(link_id) ON DELETE CASCADE,
				added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (collection_id, link_id)
			);
		`,
		Down: `
			DROP TABLE IF EXISTS collection_links;
			DROP TABLE IF EXISTS link_collections;
		`,
	},
	{
		Version: 9,
		Name:    "add_content_columns_to_links",
		Up: `
			ALTER TABLE links ADD COLUMN IF NOT EXISTS screenshot_path TEXT;
			ALTER TABLE links ADD COLUMN IF NOT EXISTS archived_html TEXT;
			ALTER TABLE links ADD COLUMN IF NOT EXISTS ai_summary TEXT;
		`,
		Down: `
			ALTER TABLE links DROP COLUMN IF EXISTS ai_summary;
			ALTER TABLE links DROP COLUMN IF EXISTS archived_html;
			ALTER TABLE links DROP COLUMN IF EXISTS screenshot_path;
		`,
	},
	{
		Version: 10,
		Name:    "add_extended_metadata_columns",
		Up: `
			ALTER TABLE link_metadata ADD COLUMN IF NOT EXISTS canonical_url TEXT;
			ALTER TABLE link_metadata ADD COLUMN IF NOT EXISTS language TEXT;
			ALTER TABLE link_metadata ADD COLUMN IF NOT EXISTS word_count INTEGER;
		`,
		Down: `
			ALTER TABLE link_metadata DROP COLUMN IF EXISTS word_count;
			ALTER TABLE link_metadata DROP COLUMN IF EXISTS language;
			ALTER TABLE link_metadata DROP COLUMN IF EXISTS canonical_url;
		`,
	},
	{
		Version: 11,
		Name:    "add_links_fulltext_index",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_links_fts ON links
			USING GIN (to_tsvector('english', COALESCE(title, '') || ' ' || COALESCE(description, '')));
		`,
		Down: `DROP INDEX IF EXISTS idx_links_fts;`,
	},
}
