package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/vkotlyarov/alyosha/common/version"
	"github.com/vkotlyarov/alyosha/internal/alyosha/app"
	"github.com/vkotlyarov/alyosha/internal/alyosha/compose"
	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
	"github.com/vkotlyarov/alyosha/internal/alyosha/history"
	"github.com/vkotlyarov/alyosha/internal/alyosha/intent"
	"github.com/vkotlyarov/alyosha/internal/alyosha/llm"
	"github.com/vkotlyarov/alyosha/internal/alyosha/matrix"
	"github.com/vkotlyarov/alyosha/internal/alyosha/memory"
	"github.com/vkotlyarov/alyosha/internal/alyosha/mood"
	"github.com/vkotlyarov/alyosha/internal/alyosha/observability"
	"github.com/vkotlyarov/alyosha/internal/alyosha/store"
	"github.com/vkotlyarov/alyosha/internal/alyosha/style"
	"github.com/vkotlyarov/alyosha/internal/alyosha/timefacts"
	"github.com/vkotlyarov/alyosha/internal/alyosha/weather"
)

func main() {
	fmt.Printf("Alyosha Companion Bot\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	observability.Setup(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "json"))
	logger := slog.Default()

	// Required transport settings.
	homeserver := getEnv("MATRIX_HOMESERVER", "")
	userID := getEnv("MATRIX_USER_ID", "")
	accessToken := getEnv("MATRIX_ACCESS_TOKEN", "")
	if homeserver == "" {
		fatal("MATRIX_HOMESERVER is required")
	}
	if userID == "" {
		fatal("MATRIX_USER_ID is required")
	}
	if accessToken == "" {
		fatal("MATRIX_ACCESS_TOKEN is required")
	}

	// Style/vocabulary configuration: built-in defaults, optionally
	// overlaid from a YAML file.
	cfg := config.Default()
	if path := getEnv("CONFIG_PATH", ""); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fatal(fmt.Sprintf("load config %s: %v", path, err))
		}
		cfg = loaded
	}

	db, err := store.Open(getEnv("DATABASE_PATH", "./alyosha.db"))
	if err != nil {
		fatal(fmt.Sprintf("open database: %v", err))
	}
	defer db.Close()

	provider := llm.NewOpenAIProvider(llm.Config{
		APIKey:  getEnv("LLM_API_KEY", ""),
		BaseURL: getEnv("LLM_BASE_URL", ""),
		Model:   getEnv("LLM_MODEL", ""),
	})

	mem, err := buildMemory(db, cfg, logger)
	if err != nil {
		fatal(fmt.Sprintf("build memory store: %v", err))
	}

	var source weather.Source
	if key := getEnv("OPENWEATHER_API_KEY", ""); key != "" {
		source = weather.NewOpenWeatherClient(weather.ClientConfig{APIKey: key}, cfg.Weather, logger)
	} else {
		logger.Warn("OPENWEATHER_API_KEY not set, weather branches will degrade")
	}

	clock := timefacts.Clock{}
	hist := history.New(db.DB(), history.Settings{
		Style:     cfg.DefaultStyle,
		AutoStyle: cfg.AutoStyle,
		TTSVoice:  getEnv("TTS_VOICE", "alena"),
	}, logger)

	client, err := matrix.New(&matrix.Config{
		Homeserver:  homeserver,
		UserID:      userID,
		AccessToken: accessToken,
		SyncStore:   matrix.NewDBSyncStore(db.DB()),
	})
	if err != nil {
		fatal(fmt.Sprintf("create matrix client: %v", err))
	}

	limit, _ := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", ""))
	pipeline := app.New(cfg, hist, mem,
		style.New(cfg, provider, logger),
		intent.New(cfg, provider, logger),
		mood.New(cfg, provider, logger),
		compose.New(cfg, provider, mem, source, clock, nil, logger),
		client, app.Options{
			Limiter: llm.NewRateLimiter(limit, time.Minute),
			Logger:  logger,
		})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = client.Start(ctx, func(ctx context.Context, in app.Inbound) {
		// Each turn runs in its own goroutine; the app serializes turns
		// per conversation internally.
		go func() {
			if err := pipeline.HandleMessage(ctx, in); err != nil {
				logger.Error("turn failed", "contact", in.Contact, "error", err)
			}
		}()
	})
	if err != nil {
		fatal(fmt.Sprintf("start matrix client: %v", err))
	}
	logger.Info("alyosha started", "homeserver", homeserver, "user", userID)

	<-ctx.Done()
	logger.Info("shutting down")
	client.Stop()
}

// buildMemory wires the vector memory: embedder (noop unless an API key is
// configured) behind a cache, over the SQLite or chromem backend.
func buildMemory(db *store.Store, cfg *config.Config, logger *slog.Logger) (memory.Store, error) {
	var embedder memory.Embedder = memory.NoopEmbedder{}
	if key := getEnv("EMBEDDING_API_KEY", ""); key != "" {
		base := memory.NewOpenAIEmbedder(memory.OpenAIEmbedderConfig{
			APIKey:  key,
			BaseURL: getEnv("EMBEDDING_BASE_URL", ""),
			Model:   getEnv("EMBEDDING_MODEL", ""),
		})
		cached, err := memory.NewCachedEmbedder(base, 4096)
		if err != nil {
			return nil, err
		}
		embedder = cached
	} else {
		logger.Warn("EMBEDDING_API_KEY not set, long-term memory disabled")
	}

	if getEnv("MEMORY_BACKEND", "sqlite") == "chromem" {
		return memory.NewChromemStore(embedder, cfg.Memory, logger), nil
	}
	return memory.NewSQLiteStore(db.DB(), embedder, cfg.Memory, logger), nil
}

func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	os.Exit(1)
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
