package models

import "time"

// Metadata holds the structured fields extracted from a page's HTML.
// Empty strings mean "not present"; the persistence layer maps them to NULL
// so re-processing never overwrites a known value with an absent one.
type Metadata struct {
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Author       string `json:"author,omitempty"`
	PublishDate  string `json:"publish_date,omitempty"` // raw page value, parsed on persist
	Favicon      string `json:"favicon,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Language     string `json:"language,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	CanonicalURL string `json:"canonical_url,omitempty"`
	WordCount    int    `json:"word_count"`
	ReadTime     int    `json:"read_time,omitempty"` // minutes, 0 when there is no text
}

// Entity is a named entity extracted by the analysis model.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Analysis is the normalized output of AI content analysis.
type Analysis struct {
	Category   string   `json:"category,omitempty"`
	Categories []string `json:"categories"`
	Topics     []string `json:"topics"`
	Entities   []Entity `json:"entities"`
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
}

// Embedding is a vector representation of a link's text.
type Embedding struct {
	Vector []float64 `json:"vector"`
	Model  string    `json:"model"`
}

// LinkUpsert carries the fields for inserting or merging a link row.
// Nil pointers mean "absent" and never overwrite an existing value.
type LinkUpsert struct {
	UserID      int64
	URL         string
	Title       *string
	Description *string
	Domain      *string
}

// LinkDetails carries optional column updates for an existing link row.
type LinkDetails struct {
	Title          *string
	Description    *string
	Domain         *string
	ScreenshotPath *string
	ArchivedHTML   *string
	Summary        *string
}

// Link is the read model returned by recent/search/lookup queries.
type Link struct {
	ID          int64     `json:"link_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Categories  []string  `json:"categories,omitempty"`
	Entities    []string  `json:"entities,omitempty"`
}

// ExportRow is one row of the full export listing.
type ExportRow struct {
	Link
	UpdatedAt   time.Time  `json:"updated_at"`
	Author      string     `json:"author,omitempty"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	ReadTime    int        `json:"read_time,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Snapshots   []string   `json:"snapshots,omitempty"`
}

// StatCount is a (name, count) aggregate used in stats listings.
type StatCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats aggregates a user's saved-link totals.
type Stats struct {
	TotalLinks    int         `json:"total_links"`
	TopCategories []StatCount `json:"top_categories"`
	TopDomains    []StatCount `json:"top_domains"`
	LastSavedAt   *time.Time  `json:"last_saved_at,omitempty"`
}

// Collection is a user-defined named grouping of links.
type Collection struct {
	ID       int64  `json:"collection_id"`
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	IsPublic bool   `json:"is_public"`
}

// Nullable returns a pointer to s, or nil when s is empty. It bridges the
// "empty means absent" extraction output and merge-on-upsert storage.
func Nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
