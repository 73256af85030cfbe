package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/silobot/silo"
	"github.com/silobot/silo/models"
)

type fakeSaver struct {
	report *silo.SaveReport
	err    error
	gotURL string
}

func (f *fakeSaver) SaveLink(ctx context.Context, userID int64, username, pageURL, note string) (*silo.SaveReport, error) {
	f.gotURL = pageURL
	return f.report, f.err
}

type fakeFinder struct {
	links []models.Link
}

func (f *fakeFinder) FindLinks(ctx context.Context, userID int64, query string, limit int) ([]models.Link, error) {
	return f.links, nil
}

type fakeArchiver struct {
	snapshot string
}

func (f *fakeArchiver) Archive(ctx context.Context, linkID int64, pageURL string) (string, error) {
	return f.snapshot, nil
}

type fakeLibrary struct {
	recent []models.Link
	link   *models.Link
	stats  *models.Stats
}

func (f *fakeLibrary) GetRecentLinks(ctx context.Context, userID int64, limit int) ([]models.Link, error) {
	return f.recent, nil
}

func (f *fakeLibrary) GetLinkByID(ctx context.Context, userID, linkID int64) (*models.Link, error) {
	return f.link, nil
}

func (f *fakeLibrary) GetLinkStats(ctx context.Context, userID int64) (*models.Stats, error) {
	return f.stats, nil
}

func (f *fakeLibrary) GetLinksForExport(ctx context.Context, userID int64) ([]models.ExportRow, error) {
	return nil, nil
}

func (f *fakeLibrary) CreateCollection(ctx context.Context, userID int64, name string, isPublic bool) (int64, error) {
	return 11, nil
}

func (f *fakeLibrary) AddLinkToCollection(ctx context.Context, collectionID, linkID int64) error {
	return nil
}

func (f *fakeLibrary) ListCollections(ctx context.Context, userID int64) ([]models.Collection, error) {
	return nil, nil
}

func newTestServer(deps Deps) *Server {
	if deps.Saver == nil {
		deps.Saver = &fakeSaver{}
	}
	if deps.Finder == nil {
		deps.Finder = &fakeFinder{}
	}
	if deps.Archiver == nil {
		deps.Archiver = &fakeArchiver{}
	}
	if deps.Library == nil {
		deps.Library = &fakeLibrary{}
	}
	return NewServer(DefaultConfig(), deps)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(newTestServer(Deps{}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status field = %v", resp["status"])
	}
}

func TestSaveLinkValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing url", `{"user_id": 1}`, http.StatusBadRequest},
		{"missing user", `{"url": "https://example.com"}`, http.StatusBadRequest},
		{"bad scheme", `{"user_id": 1, "url": "ftp://example.com"}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
		{"valid", `{"user_id": 1, "url": "https://example.com"}`, http.StatusOK},
	}

	saver := &fakeSaver{report: &silo.SaveReport{Status: silo.StatusSaved, LinkID: 3}}
	s := newTestServer(Deps{Saver: saver})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/api/links", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestSaveLinkMethodNotAllowed(t *testing.T) {
	rec := doRequest(newTestServer(Deps{}), http.MethodGet, "/api/links", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSaveLinkResponse(t *testing.T) {
	saver := &fakeSaver{report: &silo.SaveReport{Status: silo.StatusSaved, LinkID: 9, Title: "T"}}
	s := newTestServer(Deps{Saver: saver})

	rec := doRequest(s, http.MethodPost, "/api/links", `{"user_id": 1, "url": "https://example.com/a"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if saver.gotURL != "https://example.com/a" {
		t.Errorf("saver got url %q", saver.gotURL)
	}

	var report silo.SaveReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if report.LinkID != 9 || report.Status != silo.StatusSaved {
		t.Errorf("report = %+v", report)
	}
}

func TestSearchRequiresQueryAndUser(t *testing.T) {
	s := newTestServer(Deps{})

	if rec := doRequest(s, http.MethodGet, "/api/links/search?user_id=1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/api/links/search?q=rust", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing user_id: status = %d", rec.Code)
	}
}

func TestSearchReturnsLinks(t *testing.T) {
	finder := &fakeFinder{links: []models.Link{{ID: 1, Title: "Rust Book"}}}
	s := newTestServer(Deps{Finder: finder})

	rec := doRequest(s, http.MethodGet, "/api/links/search?user_id=1&q=rust", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Count int           `json:"count"`
		Links []models.Link `json:"links"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 || len(resp.Links) != 1 || resp.Links[0].Title != "Rust Book" {
		t.Errorf("response = %+v", resp)
	}
}

func TestGetLinkNotFound(t *testing.T) {
	s := newTestServer(Deps{Library: &fakeLibrary{}})
	rec := doRequest(s, http.MethodGet, "/api/links/99?user_id=1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestGetLinkBadID(t *testing.T) {
	s := newTestServer(Deps{})
	rec := doRequest(s, http.MethodGet, "/api/links/abc?user_id=1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestArchiveValidation(t *testing.T) {
	s := newTestServer(Deps{Archiver: &fakeArchiver{snapshot: "https://web.archive.org/web/1/x"}})

	rec := doRequest(s, http.MethodPost, "/api/archive", `{"link_id": 0}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}

	rec = doRequest(s, http.MethodPost, "/api/archive", `{"link_id": 5, "url": "https://example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Archived bool   `json:"archived"`
		Snapshot string `json:"snapshot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Archived || resp.Snapshot == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateCollection(t *testing.T) {
	s := newTestServer(Deps{})

	rec := doRequest(s, http.MethodPost, "/api/collections", `{"user_id": 1, "name": "reading list"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doRequest(s, http.MethodPost, "/api/collections", `{"user_id": 1, "name": "  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank name: status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(Deps{})
	rec := doRequest(s, http.MethodOptions, "/api/links", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS headers on preflight")
	}
}
