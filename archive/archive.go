// Package archive preserves saved links against link rot. It tries the
// Internet Archive's Wayback Machine first and falls back to storing a
// local HTML snapshot of the page.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/silobot/silo"
	"github.com/silobot/silo/models"
)

const (
	DefaultWaybackEndpoint = "https://web.archive.org/save/"
	waybackHost            = "https://web.archive.org"
)

// Store is the persistence surface archiving needs.
type Store interface {
	AddLinkSnapshot(ctx context.Context, linkID int64, snapshotURL, snapshotType string) error
	UpdateLinkDetails(ctx context.Context, linkID int64, details models.LinkDetails) error
}

// ContentSource re-fetches a page when a local snapshot is needed.
type ContentSource interface {
	Process(ctx context.Context, pageURL string) *silo.Result
}

// SnapshotStore writes snapshot HTML to durable storage and returns its path.
type SnapshotStore interface {
	SaveSnapshot(linkID int64, title, html string) (string, error)
}

type Archiver struct {
	endpoint string
	client   *http.Client
	store    Store
	source   ContentSource
	files    SnapshotStore
}

func New(endpoint string, store Store, source ContentSource, files SnapshotStore) *Archiver {
	if endpoint == "" {
		endpoint = DefaultWaybackEndpoint
	}
	return &Archiver{
		endpoint: endpoint,
		store:    store,
		source:   source,
		files:    files,
		client: &http.Client{
			Timeout: 20 * time.Second,
			// The Wayback Machine answers the save request itself; its
			// redirect chain is not worth following.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Archive preserves a link. It returns the snapshot location: a Wayback
// URL when the Internet Archive accepted the page, otherwise the path of
// a locally stored HTML snapshot. An empty location with a nil error means
// the page could not be preserved at all.
func (a *Archiver) Archive(ctx context.Context, linkID int64, pageURL string) (string, error) {
	if wayback := a.saveToWayback(ctx, pageURL); wayback != "" {
		if err := a.store.AddLinkSnapshot(ctx, linkID, wayback, "wayback"); err != nil {
			return "", fmt.Errorf("recording wayback snapshot for link %d: %w", linkID, err)
		}
		slog.Info("link archived to wayback", "link_id", linkID, "snapshot", wayback)
		return wayback, nil
	}
	return a.saveLocal(ctx, linkID, pageURL)
}

// saveToWayback submits the URL to the Wayback Machine and returns the
// snapshot URL on success, "" on any failure.
func (a *Archiver) saveToWayback(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+pageURL, nil)
	if err != nil {
		return ""
	}

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Warn("wayback save failed", "url", pageURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		slog.Warn("wayback rejected save", "url", pageURL, "status", resp.StatusCode)
		return ""
	}

	loc := resp.Header.Get("Content-Location")
	if loc == "" {
		return ""
	}
	if strings.HasPrefix(loc, "/") {
		loc = waybackHost + loc
	}
	return loc
}

// saveLocal re-fetches the page and stores its HTML as a local snapshot.
func (a *Archiver) saveLocal(ctx context.Context, linkID int64, pageURL string) (string, error) {
	res := a.source.Process(ctx, pageURL)
	if res == nil || res.HTML == "" {
		slog.Warn("page not archivable", "link_id", linkID, "url", pageURL)
		return "", nil
	}

	path, err := a.files.SaveSnapshot(linkID, res.Metadata.Title, res.HTML)
	if err != nil {
		return "", fmt.Errorf("writing snapshot for link %d: %w", linkID, err)
	}
	if err := a.store.UpdateLinkDetails(ctx, linkID, models.LinkDetails{ArchivedHTML: &res.HTML}); err != nil {
		return "", fmt.Errorf("storing archived html for link %d: %w", linkID, err)
	}
	if err := a.store.AddLinkSnapshot(ctx, linkID, path, "local"); err != nil {
		return "", fmt.Errorf("recording local snapshot for link %d: %w", linkID, err)
	}

	slog.Info("link archived locally", "link_id", linkID, "snapshot", path)
	return path, nil
}
