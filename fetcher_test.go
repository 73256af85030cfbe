package silo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(5 * time.Second)
}

func TestFetchReturnsPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><head><title>Hello</title></head><body>content</body></html>"))
	}))
	defer server.Close()

	result := newTestFetcher().Fetch(context.Background(), server.URL)
	if result == nil {
		t.Fatal("expected a result, got nil")
	}
	if !strings.Contains(result.HTML, "<title>Hello</title>") {
		t.Errorf("expected HTML to contain title, got %q", result.HTML)
	}
	if result.FinalURL != server.URL {
		t.Errorf("expected final URL %q, got %q", server.URL, result.FinalURL)
	}
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	newTestFetcher().Fetch(context.Background(), server.URL)
	if !strings.Contains(gotUA, "Mozilla") {
		t.Errorf("expected browser-like User-Agent, got %q", gotUA)
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if result := newTestFetcher().Fetch(context.Background(), server.URL); result != nil {
		t.Errorf("expected nil for 404 response, got %+v", result)
	}
}

func TestFetchUnreachableHost(t *testing.T) {
	if result := newTestFetcher().Fetch(context.Background(), "http://127.0.0.1:1"); result != nil {
		t.Errorf("expected nil for unreachable host, got %+v", result)
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>moved</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result := newTestFetcher().Fetch(context.Background(), server.URL+"/old")
	if result == nil {
		t.Fatal("expected a result, got nil")
	}
	if !strings.HasSuffix(result.FinalURL, "/new") {
		t.Errorf("expected final URL to end with /new, got %q", result.FinalURL)
	}
}

func TestFetchNonHTMLContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	result := newTestFetcher().Fetch(context.Background(), server.URL)
	if result == nil {
		t.Fatal("expected a result, got nil")
	}
	if result.HTML != "" {
		t.Errorf("expected empty HTML for non-HTML content type, got %q", result.HTML)
	}
	if result.ContentType != "application/pdf" {
		t.Errorf("expected content type preserved, got %q", result.ContentType)
	}
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	// "café" in Windows-1252: the é is the single byte 0xE9
	body := []byte{'c', 'a', 'f', 0xE9}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		w.Write(body)
	}))
	defer server.Close()

	result := newTestFetcher().Fetch(context.Background(), server.URL)
	if result == nil {
		t.Fatal("expected a result, got nil")
	}
	if result.HTML != "café" {
		t.Errorf("expected decoded %q, got %q", "café", result.HTML)
	}
}

func TestFetchPrefersMetaCharsetOverLatin1Default(t *testing.T) {
	// Header claims Latin-1 (a common server default) but the page
	// declares Windows-1252 itself
	body := append([]byte(`<html><head><meta charset="windows-1252"></head><body>`), 0xE9)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write(body)
	}))
	defer server.Close()

	result := newTestFetcher().Fetch(context.Background(), server.URL)
	if result == nil {
		t.Fatal("expected a result, got nil")
	}
	if !strings.Contains(result.HTML, "é") {
		t.Errorf("expected meta charset decode to yield é, got %q", result.HTML)
	}
}

func TestDecodeBodyInvalidUTF8Fallback(t *testing.T) {
	decoded := decodeBody([]byte{'o', 'k', 0xFF, 0xFE}, "text/html", "http://example.com")
	if !strings.HasPrefix(decoded, "ok") {
		t.Errorf("expected decoded text to keep valid prefix, got %q", decoded)
	}
	if !strings.Contains(decoded, "�") {
		t.Errorf("expected invalid bytes replaced, got %q", decoded)
	}
}

func TestCharsetFromMeta(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"html5 meta", `<meta charset="windows-1255">`, "windows-1255"},
		{"unquoted", `<meta charset=utf-8>`, "utf-8"},
		{"http-equiv", `<meta http-equiv="Content-Type" content="text/html; charset=shift_jis">`, "shift_jis"},
		{"none", `<html><body>plain</body></html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := charsetFromMeta([]byte(tt.body)); got != tt.want {
				t.Errorf("charsetFromMeta(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
