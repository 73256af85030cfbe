package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/silobot/silo"
	"github.com/silobot/silo/api"
	"github.com/silobot/silo/archive"
	"github.com/silobot/silo/db"
	"github.com/silobot/silo/enrich"
	"github.com/silobot/silo/ollama"
	"github.com/silobot/silo/retrieve"
	"github.com/silobot/silo/storage"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ollamaVision adapts the Ollama client to the pipeline's OCR interface
// by pinning the vision model
type ollamaVision struct {
	client *ollama.Client
	model  string
}

func (v *ollamaVision) ExtractImageText(ctx context.Context, imageBase64, mimeType string) (string, error) {
	return v.client.ExtractImageText(ctx, v.model, imageBase64, mimeType)
}

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("silo service initializing", "version", "1.0.0")

	// Default values
	defaultPort := getEnv("PORT", "8080")
	defaultStoragePath := getEnv("STORAGE_BASE_PATH", "./storage")
	defaultOllamaURL := getEnv("OLLAMA_URL", ollama.DefaultBaseURL)
	defaultOllamaModel := getEnv("OLLAMA_MODEL", ollama.DefaultModel)
	defaultFallbackModel := getEnv("OLLAMA_FALLBACK_MODEL", defaultOllamaModel)
	defaultVisionModel := getEnv("OLLAMA_VISION_MODEL", defaultOllamaModel) // Default to same as text model if not specified
	defaultEmbeddingModel := getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text")
	defaultRendererURL := getEnv("RENDERER_URL", "")
	defaultRendererAPIKey := getEnv("RENDERER_API_KEY", "")
	defaultMinWords := getEnv("RENDERER_MIN_WORDS", "50")
	defaultWayback := getEnv("WAYBACK_ENDPOINT", archive.DefaultWaybackEndpoint)
	defaultPlatform := getEnv("SOURCE_PLATFORM", "telegram")

	minWords, err := strconv.Atoi(defaultMinWords)
	if err != nil || minWords < 0 {
		logger.Warn("invalid RENDERER_MIN_WORDS value, using default", "provided", defaultMinWords, "default", 50)
		minWords = 50
	}

	// Command-line flags (override environment variables)
	port := flag.String("port", defaultPort, "Server port")
	ollamaURL := flag.String("ollama-url", defaultOllamaURL, "Ollama base URL")
	ollamaModel := flag.String("ollama-model", defaultOllamaModel, "Ollama model for content analysis")
	fallbackModel := flag.String("ollama-fallback-model", defaultFallbackModel, "Ollama model retried when analysis fails")
	visionModel := flag.String("ollama-vision-model", defaultVisionModel, "Ollama model for screenshot OCR")
	embeddingModel := flag.String("ollama-embedding-model", defaultEmbeddingModel, "Ollama model for embeddings")
	rendererURL := flag.String("renderer-url", defaultRendererURL, "Headless renderer endpoint (empty disables rendering)")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	disableOCR := flag.Bool("disable-screenshot-ocr", false, "Disable screenshot OCR on sparse pages")
	flag.Parse()

	// PostgreSQL database configuration (required)
	dbHost := getEnv("DB_HOST", "")
	if dbHost == "" {
		logger.Error("DB_HOST environment variable is required")
		os.Exit(1)
	}

	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "silo")
	dbPassword := getEnv("DB_PASSWORD", "silo_dev_pass")
	dbName := getEnv("DB_NAME", "silo")

	database, err := db.New(db.Config{
		DSN: fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbHost, dbPort, dbUser, dbPassword, dbName),
	})
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("using PostgreSQL database", "host", dbHost, "port", dbPort, "database", dbName)

	files, err := storage.New(storage.Config{BasePath: defaultStoragePath})
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Optional S3 mirror for screenshots and snapshots
	if bucket := getEnv("S3_BUCKET", ""); bucket != "" {
		mirror, err := storage.NewS3Mirror(context.Background(), storage.S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          bucket,
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "") == "true",
		})
		if err != nil {
			logger.Warn("failed to initialize S3 mirror, continuing without it", "error", err)
		} else {
			files.SetMirror(mirror)
			logger.Info("S3 mirror initialized", "bucket", bucket)
		}
	}

	llm := ollama.New(*ollamaURL, 2*time.Minute)

	var ocr silo.OCRClient
	if !*disableOCR {
		ocr = &ollamaVision{client: llm, model: *visionModel}
	}

	fetcher := silo.NewFetcher(12 * time.Second)
	renderer := silo.NewRenderClient(*rendererURL, defaultRendererAPIKey, 25*time.Second)
	pipeline := silo.NewPipeline(fetcher, renderer, ocr, files, minWords)

	enricher := enrich.New(llm, enrich.Config{
		Model:          *ollamaModel,
		FallbackModel:  *fallbackModel,
		EmbeddingModel: *embeddingModel,
	})

	service := silo.NewService(pipeline, database, enricher, defaultPlatform)
	archiver := archive.New(defaultWayback, database, pipeline, files)
	retriever := retrieve.New(database, retrieve.Config{})

	server := api.NewServer(api.Config{
		Addr:        ":" + *port,
		CORSEnabled: !*disableCORS,
	}, api.Deps{
		Saver:    service,
		Finder:   retriever,
		Archiver: archiver,
		Library:  database,
	})

	// Start server in a goroutine
	go func() {
		logger.Info("silo service starting",
			"port", *port,
			"database_host", dbHost,
			"database_name", dbName,
			"storage_path", defaultStoragePath,
			"ollama_url", *ollamaURL,
			"ollama_model", *ollamaModel,
			"ollama_vision_model", *visionModel,
			"ollama_embedding_model", *embeddingModel,
			"renderer_url", *rendererURL,
			"screenshot_ocr_enabled", !*disableOCR,
		)

		if err := server.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
