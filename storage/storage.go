package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/silobot/silo/slug"
)

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage handles filesystem storage for screenshots and page snapshots.
// When a mirror is attached, every written file is also uploaded to
// S3-compatible object storage on a best effort basis.
type Storage struct {
	config Config
	mirror *S3Mirror
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{
		config: config,
	}, nil
}

// SetMirror attaches an S3 mirror for uploaded copies of written files
func (s *Storage) SetMirror(mirror *S3Mirror) {
	s.mirror = mirror
}

// SaveScreenshot saves a rendered page screenshot
// Returns the relative file path from the base storage directory
func (s *Storage) SaveScreenshot(data []byte, contentType string) (string, error) {
	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".png" // Default extension
	}

	// Generate directory structure: screenshots/YYYY/MM/
	now := time.Now()
	year := fmt.Sprintf("%04d", now.Year())
	month := fmt.Sprintf("%02d", int(now.Month()))

	dirPath := filepath.Join(s.config.BasePath, "screenshots", year, month)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	filename := fmt.Sprintf("rendered_%s%s", uuid.New().String(), ext)
	filePath := filepath.Join(dirPath, filename)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot file: %w", err)
	}

	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}

	s.mirrorUpload(relPath, data, contentType)
	return relPath, nil
}

// SaveSnapshot saves an archived HTML snapshot for a link
// Returns the relative file path from the base storage directory
func (s *Storage) SaveSnapshot(linkID int64, title, html string) (string, error) {
	dirPath := filepath.Join(s.config.BasePath, "snapshots")
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filename := fmt.Sprintf("link_%d_%d", linkID, time.Now().Unix())
	if titleSlug := slug.Generate(title); titleSlug != "" {
		filename += "_" + titleSlug
	}
	filename += ".html"
	filePath := filepath.Join(dirPath, filename)

	if err := os.WriteFile(filePath, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot file: %w", err)
	}

	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}

	s.mirrorUpload(relPath, []byte(html), "text/html; charset=utf-8")
	return relPath, nil
}

// ReadSnapshot reads a stored snapshot from the filesystem
func (s *Storage) ReadSnapshot(relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.config.BasePath, relPath))
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return string(data), nil
}

// GetFullPath returns the full filesystem path for a relative path
func (s *Storage) GetFullPath(relPath string) string {
	return filepath.Join(s.config.BasePath, relPath)
}

// mirrorUpload copies a written file to the S3 mirror. The local write is
// the source of truth; upload failures are logged and swallowed
func (s *Storage) mirrorUpload(relPath string, data []byte, contentType string) {
	if s.mirror == nil {
		return
	}
	key := strings.ReplaceAll(relPath, "\\", "/")
	if err := s.mirror.Save(context.Background(), key, data, contentType); err != nil {
		slog.Warn("failed to mirror file to S3", "key", key, "error", err)
	}
}

// extensionFromContentType returns the file extension for a content type
func extensionFromContentType(contentType string) string {
	// Normalize content type (remove charset, etc.)
	contentType = strings.ToLower(strings.Split(contentType, ";")[0])
	contentType = strings.TrimSpace(contentType)

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
