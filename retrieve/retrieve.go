// Package retrieve turns free-form natural language queries into ranked
// link results. It runs several database search passes of decreasing
// specificity, merges the candidates, filters by any temporal phrase in
// the query and scores each link against the query before ranking.
package retrieve

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/silobot/silo/models"
)

// Searcher is the database surface retrieval needs.
type Searcher interface {
	SearchLinks(ctx context.Context, userID int64, query string, limit int) ([]models.Link, error)
	GetRecentLinks(ctx context.Context, userID int64, limit int) ([]models.Link, error)
}

// Config tunes the retrieval passes. The zero value is usable.
type Config struct {
	// MaxWordPasses caps how many single words the word pass searches.
	MaxWordPasses int
	// MinWordLength is the shortest word the word pass will search for.
	MinWordLength int
	// WordPassLimit is the per-word result limit in the word pass.
	WordPassLimit int
	// PassMultiplier widens the earlier passes so scoring has candidates
	// to choose from.
	PassMultiplier int
}

func (c *Config) applyDefaults() {
	if c.MaxWordPasses == 0 {
		c.MaxWordPasses = 3
	}
	if c.MinWordLength == 0 {
		c.MinWordLength = 4
	}
	if c.WordPassLimit == 0 {
		c.WordPassLimit = 5
	}
	if c.PassMultiplier == 0 {
		c.PassMultiplier = 2
	}
}

// Scoring weights for ranking candidates against the query.
const (
	titleWordScore      = 3
	summaryWordScore    = 2
	categoryWordScore   = 2
	entityMatchScore    = 5
	verbatimPhraseScore = 10
)

var (
	stopWords = map[string]bool{
		"the": true, "and": true, "about": true, "please": true,
		"show": true, "find": true, "me": true, "for": true,
		"that": true, "this": true, "what": true, "was": true,
		"were": true, "is": true, "are": true, "be": true,
		"a": true, "an": true, "to": true, "on": true, "in": true,
	}
	temporalWords = map[string]bool{
		"today": true, "yesterday": true,
		"week": true, "month": true, "year": true,
		"recent": true, "latest": true, "last": true,
	}

	entityPattern  = regexp.MustCompile(`(?i)(?:from|by|with|shared by)\s+([A-Za-z0-9][A-Za-z0-9_-]*)`)
	lastNPattern   = regexp.MustCompile(`(?i)last\s+(\d+)\s+(day|week)s?`)
	nonWordPattern = regexp.MustCompile(`[^a-zA-Z0-9\s]+`)
)

type Retriever struct {
	searcher Searcher
	cfg      Config
	now      func() time.Time
}

func New(searcher Searcher, cfg Config) *Retriever {
	cfg.applyDefaults()
	return &Retriever{searcher: searcher, cfg: cfg, now: time.Now}
}

// FindLinks answers a natural language query with the user's best-matching
// links, most relevant first. An empty query returns nothing; a purely
// temporal query ("show me recent links") returns the newest links.
func (r *Retriever) FindLinks(ctx context.Context, userID int64, query string, limit int) ([]models.Link, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	lower := strings.ToLower(query)
	if strings.Contains(lower, "recent") || strings.Contains(lower, "latest") {
		links, err := r.searcher.GetRecentLinks(ctx, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("fetching recent links: %w", err)
		}
		return links, nil
	}

	since := r.temporalBound(lower)
	entities := extractEntities(query)

	candidates, err := r.gather(ctx, userID, query, entities, limit)
	if err != nil {
		return nil, err
	}

	if since != nil {
		filtered := candidates[:0]
		for _, link := range candidates {
			if !link.CreatedAt.Before(*since) {
				filtered = append(filtered, link)
			}
		}
		candidates = filtered
	}

	scored := make([]scoredLink, len(candidates))
	for i, link := range candidates {
		scored[i] = scoredLink{link: link, score: scoreLink(link, query, entities)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]models.Link, len(scored))
	for i, s := range scored {
		out[i] = s.link
	}
	return out, nil
}

type scoredLink struct {
	link  models.Link
	score int
}

// gather runs the search passes and merges their results, deduplicating
// by URL so later, broader passes never displace an earlier hit.
func (r *Retriever) gather(ctx context.Context, userID int64, query string, entities []string, limit int) ([]models.Link, error) {
	seen := map[string]bool{}
	var merged []models.Link
	absorb := func(links []models.Link) {
		for _, link := range links {
			if seen[link.URL] {
				continue
			}
			seen[link.URL] = true
			merged = append(merged, link)
		}
	}

	// Pass 1: the raw query, widened so scoring has candidates.
	links, err := r.searcher.SearchLinks(ctx, userID, query, limit*r.cfg.PassMultiplier)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	absorb(links)

	// Pass 2: the query stripped of filler and temporal phrasing, with
	// any extracted entity names appended, skipped when that leaves the
	// query unchanged.
	cleaned := cleanQuery(query)
	terms := cleaned
	if len(entities) > 0 {
		terms = strings.TrimSpace(terms + " " + strings.Join(entities, " "))
	}
	if terms != "" && !strings.EqualFold(terms, query) {
		links, err = r.searcher.SearchLinks(ctx, userID, terms, limit*r.cfg.PassMultiplier)
		if err != nil {
			return nil, fmt.Errorf("searching %q: %w", terms, err)
		}
		absorb(links)
	}

	// Pass 3: individual meaningful words, longest first. Only worth
	// running for multi-word queries.
	words := meaningfulWords(cleaned)
	if len(words) >= 2 {
		if len(words) > r.cfg.MaxWordPasses {
			words = words[:r.cfg.MaxWordPasses]
		}
		for _, word := range words {
			if len(word) < r.cfg.MinWordLength {
				continue
			}
			links, err = r.searcher.SearchLinks(ctx, userID, word, r.cfg.WordPassLimit)
			if err != nil {
				return nil, fmt.Errorf("searching %q: %w", word, err)
			}
			absorb(links)
		}
	}

	return merged, nil
}

// temporalBound parses a temporal phrase out of the lowercased query and
// returns the earliest creation time that still matches, or nil when the
// query has no temporal phrase.
func (r *Retriever) temporalBound(lower string) *time.Time {
	now := r.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if m := lastNPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			days := n
			if strings.HasPrefix(m[2], "week") {
				days = n * 7
			}
			bound := now.AddDate(0, 0, -days)
			return &bound
		}
	}

	switch {
	case strings.Contains(lower, "today"):
		return &midnight
	case strings.Contains(lower, "yesterday"):
		bound := midnight.AddDate(0, 0, -1)
		return &bound
	case strings.Contains(lower, "last week"):
		bound := now.AddDate(0, 0, -7)
		return &bound
	case strings.Contains(lower, "last month"):
		bound := now.AddDate(0, 0, -30)
		return &bound
	case strings.Contains(lower, "last year"):
		bound := now.AddDate(0, 0, -365)
		return &bound
	}
	return nil
}

// extractEntities pulls names out of phrases like "from Alice" or
// "shared by bob", preserving their original case.
func extractEntities(query string) []string {
	var entities []string
	for _, m := range entityPattern.FindAllStringSubmatch(query, -1) {
		entities = append(entities, m[1])
	}
	return entities
}

// cleanQuery strips punctuation, filler words and temporal phrasing,
// leaving the content-bearing terms.
func cleanQuery(query string) string {
	query = nonWordPattern.ReplaceAllString(query, " ")
	var kept []string
	for _, word := range strings.Fields(query) {
		lower := strings.ToLower(word)
		if stopWords[lower] || temporalWords[lower] {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// meaningfulWords returns the distinct words worth searching on their own,
// longest first so the most specific terms get searched within the pass cap.
func meaningfulWords(cleaned string) []string {
	seen := map[string]bool{}
	var words []string
	for _, word := range strings.Fields(strings.ToLower(cleaned)) {
		if len(word) < 3 || seen[word] {
			continue
		}
		seen[word] = true
		words = append(words, word)
	}
	sort.SliceStable(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	return words
}

// scoreLink rates how well a link matches the query. Each distinct query
// word counts once per field: word overlap in the title counts most, then
// the summary and categories; entity names and a verbatim occurrence of
// the whole query are strong signals.
func scoreLink(link models.Link, query string, entities []string) int {
	queryWords := wordSet(query)

	title := strings.ToLower(link.Title)
	summary := strings.ToLower(link.Summary)
	if summary == "" {
		summary = strings.ToLower(link.Description)
	}
	categories := strings.ToLower(strings.Join(link.Categories, " "))

	score := overlap(queryWords, wordSet(title)) * titleWordScore
	score += overlap(queryWords, wordSet(summary)) * summaryWordScore
	score += overlap(queryWords, wordSet(categories)) * categoryWordScore

	for _, entity := range entities {
		needle := strings.ToLower(entity)
		if strings.Contains(title, needle) || strings.Contains(summary, needle) {
			score += entityMatchScore
		}
		for _, e := range link.Entities {
			if strings.Contains(strings.ToLower(e), needle) {
				score += entityMatchScore
				break
			}
		}
	}

	phrase := strings.ToLower(strings.TrimSpace(query))
	if phrase != "" && (strings.Contains(title, phrase) || strings.Contains(summary, phrase)) {
		score += verbatimPhraseScore
	}
	return score
}

// wordSet lowercases the text and returns its distinct words with
// surrounding punctuation trimmed.
func wordSet(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?:;")
		if w != "" {
			words[w] = true
		}
	}
	return words
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}
