package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultSearchLimit = 10

// SaveLinkRequest represents a save link request
type SaveLinkRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	URL      string `json:"url"`
	Note     string `json:"note"`
}

// handleSaveLink ingests a shared URL through the full save flow
func (s *Server) handleSaveLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SaveLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.UserID == 0 {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		respondError(w, http.StatusBadRequest, "url must be http or https")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	report, err := s.deps.Saver.SaveLink(ctx, req.UserID, req.Username, req.URL, req.Note)
	if err != nil {
		slog.Error("save failed", "url", req.URL, "user_id", req.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save link")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// handleSearch answers a natural language query over the user's links
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := queryLimit(r)

	links, err := s.deps.Finder.FindLinks(r.Context(), userID, query, limit)
	if err != nil {
		slog.Error("search failed", "query", query, "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query": query,
		"count": len(links),
		"links": links,
	})
}

// handleRecent returns the user's most recently saved links
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	links, err := s.deps.Library.GetRecentLinks(r.Context(), userID, queryLimit(r))
	if err != nil {
		slog.Error("recent links failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(links),
		"links": links,
	})
}

// handleLink returns a single link owned by the user
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/links/")
	linkID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid link id")
		return
	}
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	link, err := s.deps.Library.GetLinkByID(r.Context(), userID, linkID)
	if err != nil {
		slog.Error("get link failed", "link_id", linkID, "error", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if link == nil {
		respondError(w, http.StatusNotFound, "link not found")
		return
	}

	respondJSON(w, http.StatusOK, link)
}

// handleStats summarises the user's saved links
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	stats, err := s.deps.Library.GetLinkStats(r.Context(), userID)
	if err != nil {
		slog.Error("stats failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// handleExport returns every saved link with full metadata
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	rows, err := s.deps.Library.GetLinksForExport(r.Context(), userID)
	if err != nil {
		slog.Error("export failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rows),
		"links": rows,
	})
}

// ArchiveRequest represents an archive request
type ArchiveRequest struct {
	LinkID int64  `json:"link_id"`
	URL    string `json:"url"`
}

// handleArchive preserves a saved link in the Wayback Machine or as a
// local snapshot
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LinkID == 0 || req.URL == "" {
		respondError(w, http.StatusBadRequest, "link_id and url are required")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	snapshot, err := s.deps.Archiver.Archive(ctx, req.LinkID, req.URL)
	if err != nil {
		slog.Error("archive failed", "link_id", req.LinkID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to archive link")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"link_id":  req.LinkID,
		"snapshot": snapshot,
		"archived": snapshot != "",
	})
}

// CollectionRequest represents a create collection request
type CollectionRequest struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	IsPublic bool   `json:"is_public"`
}

// handleCollections creates or lists a user's collections
func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID, ok := queryUserID(w, r)
		if !ok {
			return
		}
		collections, err := s.deps.Library.ListCollections(r.Context(), userID)
		if err != nil {
			slog.Error("list collections failed", "user_id", userID, "error", err)
			respondError(w, http.StatusInternalServerError, "database error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"count":       len(collections),
			"collections": collections,
		})

	case http.MethodPost:
		var req CollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == 0 || strings.TrimSpace(req.Name) == "" {
			respondError(w, http.StatusBadRequest, "user_id and name are required")
			return
		}
		collectionID, err := s.deps.Library.CreateCollection(r.Context(), req.UserID, strings.TrimSpace(req.Name), req.IsPublic)
		if err != nil {
			slog.Error("create collection failed", "user_id", req.UserID, "error", err)
			respondError(w, http.StatusInternalServerError, "database error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"collection_id": collectionID,
			"name":          strings.TrimSpace(req.Name),
		})

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// CollectionLinkRequest represents an add-link-to-collection request
type CollectionLinkRequest struct {
	CollectionID int64 `json:"collection_id"`
	LinkID       int64 `json:"link_id"`
}

// handleCollectionLinks places a saved link in a collection
func (s *Server) handleCollectionLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CollectionLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CollectionID == 0 || req.LinkID == 0 {
		respondError(w, http.StatusBadRequest, "collection_id and link_id are required")
		return
	}

	if err := s.deps.Library.AddLinkToCollection(r.Context(), req.CollectionID, req.LinkID); err != nil {
		slog.Error("add link to collection failed", "collection_id", req.CollectionID, "link_id", req.LinkID, "error", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"collection_id": req.CollectionID,
		"link_id":       req.LinkID,
	})
}

func queryUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID == 0 {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return 0, false
	}
	return userID, true
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		return defaultSearchLimit
	}
	return limit
}

// requestContext caps slow save and archive work well under the server's
// write timeout
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 4*time.Minute)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

