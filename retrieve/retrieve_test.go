package retrieve

import (
	"context"
	"testing"
	"time"

	"github.com/silobot/silo/models"
)

type fakeSearcher struct {
	links       []models.Link
	recent      []models.Link
	queries     []string
	recentCalls int
}

func (f *fakeSearcher) SearchLinks(ctx context.Context, userID int64, query string, limit int) ([]models.Link, error) {
	f.queries = append(f.queries, query)
	return f.links, nil
}

func (f *fakeSearcher) GetRecentLinks(ctx context.Context, userID int64, limit int) ([]models.Link, error) {
	f.recentCalls++
	return f.recent, nil
}

func link(id int64, title, summary string, age time.Duration) models.Link {
	return models.Link{
		ID:        id,
		URL:       title,
		Title:     title,
		Summary:   summary,
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func TestFindLinksEmptyQuery(t *testing.T) {
	searcher := &fakeSearcher{}
	r := New(searcher, Config{})

	links, err := r.FindLinks(context.Background(), 1, "   ", 10)
	if err != nil {
		t.Fatalf("FindLinks: %v", err)
	}
	if links != nil {
		t.Errorf("expected no results, got %v", links)
	}
	if len(searcher.queries) != 0 || searcher.recentCalls != 0 {
		t.Error("expected no searcher calls for empty query")
	}
}

func TestFindLinksRecentShortCircuit(t *testing.T) {
	searcher := &fakeSearcher{recent: []models.Link{link(1, "Newest", "", time.Hour)}}
	r := New(searcher, Config{})

	links, err := r.FindLinks(context.Background(), 1, "show me my recent links", 10)
	if err != nil {
		t.Fatalf("FindLinks: %v", err)
	}
	if searcher.recentCalls != 1 {
		t.Errorf("recent calls = %d, want 1", searcher.recentCalls)
	}
	if len(searcher.queries) != 0 {
		t.Errorf("expected no search passes, got %v", searcher.queries)
	}
	if len(links) != 1 || links[0].Title != "Newest" {
		t.Errorf("links = %v", links)
	}
}

func TestFindLinksTemporalFilter(t *testing.T) {
	fresh := link(1, "rust article", "notes on rust", 24*time.Hour)
	stale := link(2, "old rust article", "notes on rust", 240*time.Hour)
	searcher := &fakeSearcher{links: []models.Link{fresh, stale}}
	r := New(searcher, Config{})

	links, err := r.FindLinks(context.Background(), 1, "rust articles saved last week", 10)
	if err != nil {
		t.Fatalf("FindLinks: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected stale link filtered out, got %v", links)
	}
	if links[0].ID != fresh.ID {
		t.Errorf("kept link %d, want %d", links[0].ID, fresh.ID)
	}
}

func TestFindLinksLastNDays(t *testing.T) {
	fresh := link(1, "go talk", "", 24*time.Hour)
	stale := link(2, "go talk older", "", 5*24*time.Hour)
	searcher := &fakeSearcher{links: []models.Link{fresh, stale}}
	r := New(searcher, Config{})

	links, err := r.FindLinks(context.Background(), 1, "go talks saved last 3 days", 10)
	if err != nil {
		t.Fatalf("FindLinks: %v", err)
	}
	if len(links) != 1 || links[0].ID != fresh.ID {
		t.Errorf("links = %v", links)
	}
}

func TestFindLinksScoringRanksTitleMatchesFirst(t *testing.T) {
	match := link(1, "Understanding Rust Ownership", "a deep dive into rust ownership", time.Hour)
	noise := link(2, "Pasta Recipes", "cooking at home", time.Hour)
	searcher := &fakeSearcher{links: []models.Link{noise, match}}
	r := New(searcher, Config{})

	links, err := r.FindLinks(context.Background(), 1, "rust ownership", 10)
	if err != nil {
		t.Fatalf("FindLinks: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("links = %v", links)
	}
	if links[0].ID != match.ID {
		t.Errorf("expected title match ranked first, got %v", links)
	}
}

func TestFindLinksLimit(t *testing.T) {
	searcher := &fakeSearcher{links: []models.Link{
		link(1, "a", "", time.Hour),
		link(2, "b", "", time.Hour),
		link(3, "c", "", time.Hour),
	}}
	r := New(searcher, Config{})

	links, err := r.FindLinks(context.Background(), 1, "anything", 2)
	if err != nil {
		t.Fatalf("FindLinks: %v", err)
	}
	if len(links) != 2 {
		t.Errorf("expected results capped at 2, got %d", len(links))
	}
}

func TestFindLinksEntityBoost(t *testing.T) {
	fromAlice := link(1, "Database tips", "an article alice shared", time.Hour)
	other := link(2, "Database tips two", "another article", time.Hour)
	searcher := &fakeSearcher{links: []models.Link{other, fromAlice}}
	r := New(searcher, Config{})

	links, err := r.FindLinks(context.Background(), 1, "database article from alice", 10)
	if err != nil {
		t.Fatalf("FindLinks: %v", err)
	}
	if len(links) == 0 || links[0].ID != fromAlice.ID {
		t.Errorf("expected entity match ranked first, got %v", links)
	}
}

func TestScoreLinkCountsEachQueryWordOnce(t *testing.T) {
	repeated := models.Link{Title: "Rust tips for Rust lovers"}

	// One title match (3) plus the verbatim phrase bonus (10); the second
	// "Rust" in the title must not score again.
	if got := scoreLink(repeated, "rust", nil); got != 13 {
		t.Errorf("scoreLink = %d, want 13", got)
	}
	// A duplicated query word scores the same as a single one.
	if got := scoreLink(repeated, "rust rust", nil); got != 3 {
		t.Errorf("scoreLink with repeated query word = %d, want 3", got)
	}
}

func TestGatherFoldsEntitiesIntoSecondPass(t *testing.T) {
	searcher := &fakeSearcher{}
	r := New(searcher, Config{})

	if _, err := r.FindLinks(context.Background(), 1, "database article from alice", 10); err != nil {
		t.Fatalf("FindLinks: %v", err)
	}
	if len(searcher.queries) < 2 {
		t.Fatalf("queries = %v, want raw pass then combined terms pass", searcher.queries)
	}
	if searcher.queries[0] != "database article from alice" {
		t.Errorf("first pass = %q, want the raw query", searcher.queries[0])
	}
	if searcher.queries[1] != "database article from alice alice" {
		t.Errorf("second pass = %q, want cleaned terms with entity appended", searcher.queries[1])
	}
}

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"links from Alice about databases", []string{"Alice"}},
		{"that post shared by bob_42", []string{"bob_42"}},
		{"rust ownership", nil},
	}

	for _, tt := range tests {
		got := extractEntities(tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("extractEntities(%q) = %v, want %v", tt.query, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("extractEntities(%q)[%d] = %q, want %q", tt.query, i, got[i], tt.want[i])
			}
		}
	}
}

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"please show me articles about rust", "articles rust"},
		{"what was that post from yesterday?", "post from"},
		{"kubernetes", "kubernetes"},
	}

	for _, tt := range tests {
		if got := cleanQuery(tt.query); got != tt.want {
			t.Errorf("cleanQuery(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestMeaningfulWordsOrdering(t *testing.T) {
	words := meaningfulWords("api deployments kubernetes")
	if len(words) != 3 {
		t.Fatalf("words = %v", words)
	}
	if words[0] != "deployments" || words[1] != "kubernetes" || words[2] != "api" {
		t.Errorf("expected longest words first, got %v", words)
	}
}

func TestTemporalBoundToday(t *testing.T) {
	r := New(&fakeSearcher{}, Config{})
	r.now = func() time.Time {
		return time.Date(2026, 8, 30, 15, 30, 0, 0, time.UTC)
	}

	bound := r.temporalBound("what did i save today")
	if bound == nil {
		t.Fatal("expected a bound for today")
	}
	want := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	if !bound.Equal(want) {
		t.Errorf("bound = %v, want %v", bound, want)
	}
}

func TestTemporalBoundLastWeekAnchoredAtNow(t *testing.T) {
	r := New(&fakeSearcher{}, Config{})
	now := time.Date(2026, 8, 30, 15, 30, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	bound := r.temporalBound("articles saved last week")
	if bound == nil {
		t.Fatal("expected a bound for last week")
	}
	if want := now.AddDate(0, 0, -7); !bound.Equal(want) {
		t.Errorf("bound = %v, want %v", bound, want)
	}

	bound = r.temporalBound("last 3 days")
	if bound == nil {
		t.Fatal("expected a bound for last 3 days")
	}
	if want := now.AddDate(0, 0, -3); !bound.Equal(want) {
		t.Errorf("bound = %v, want %v", bound, want)
	}
}

func TestTemporalBoundNone(t *testing.T) {
	r := New(&fakeSearcher{}, Config{})
	for _, query := range []string{"rust ownership", "plans for tonight", "this week in go"} {
		if bound := r.temporalBound(query); bound != nil {
			t.Errorf("temporalBound(%q) = %v, want nil", query, bound)
		}
	}
}
