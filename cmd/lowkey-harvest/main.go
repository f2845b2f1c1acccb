package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/custodia-labs/lowkey/internal/adapters/driven/auth"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/reddit"
	"github.com/custodia-labs/lowkey/internal/adapters/driving/cli"
	"github.com/custodia-labs/lowkey/internal/app"
	"github.com/custodia-labs/lowkey/internal/core/domain"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	// Hashing a key needs nothing else
	hasher := auth.NewAdapter(getEnv("JWT_SECRET", ""))

	if len(os.Args) > 1 && (os.Args[1] == "token" || os.Args[1] == "version" || os.Args[1] == "help") {
		cli.SetServices(nil, nil, hasher)
		return execute(ctx)
	}

	infra, err := app.Setup(ctx, app.Config{
		HarvestConfigPath: getEnv("HARVEST_CONFIG", ""),
		OutputDir:         getEnv("OUTPUT_DIR", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SQLitePath:        getEnv("SQLITE_PATH", ""),
		Generation:        generationSettings(),
		RequireGeneration: runsHarvest(os.Args[1:]),
		Reddit: reddit.Config{
			UserAgent:  getEnv("REDDIT_USER_AGENT", ""),
			MaxRetries: getEnvInt("REDDIT_MAX_RETRIES", 2),
		},
		Logger: slog.Default(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer infra.Close()

	cli.SetServices(infra.Harvester(), infra.Services, hasher)
	return execute(ctx)
}

func execute(ctx context.Context) int {
	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

// runsHarvest reports whether the arguments start a harvest, which cannot
// run without a model. show and the usage text only read files.
func runsHarvest(args []string) bool {
	for _, arg := range args {
		switch {
		case arg == "--all", arg == "--test", arg == "--city", strings.HasPrefix(arg, "--city="):
			return true
		}
	}
	return false
}

func generationSettings() domain.GenerationSettings {
	provider := domain.GenerationProvider(getEnv("GENERATION_PROVIDER", string(domain.GenerationProviderGemini)))

	settings := domain.GenerationSettings{
		Provider: provider,
		Model:    getEnv("GENERATION_MODEL", ""),
	}
	switch provider {
	case domain.GenerationProviderGemini:
		settings.APIKey = getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", ""))
		settings.BaseURL = getEnv("GEMINI_BASE_URL", "")
	default:
		settings.APIKey = getEnv("OPENAI_API_KEY", "")
		settings.BaseURL = getEnv("OPENAI_BASE_URL", "")
	}
	return settings
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
