package main

// @title           Lowkey API
// @version         1.0
// @description     Place recommendation backend. Streams grounded chat answers and runs Reddit harvests in the background.

// @contact.name   Lowkey
// @contact.url    https://github.com/custodia-labs/lowkey/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/custodia-labs/lowkey/docs"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/auth"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/config"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/memory"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/lowkey/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/lowkey/internal/adapters/driven/queue/redis"
	"github.com/custodia-labs/lowkey/internal/adapters/driven/reddit"
	redisadapter "github.com/custodia-labs/lowkey/internal/adapters/driven/redis"
	"github.com/custodia-labs/lowkey/internal/adapters/driving/http"
	"github.com/custodia-labs/lowkey/internal/app"
	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
	"github.com/custodia-labs/lowkey/internal/core/ports/driving"
	"github.com/custodia-labs/lowkey/internal/core/services"
	"github.com/custodia-labs/lowkey/internal/worker"
)

var version = "dev"

func main() {
	// Get run mode from environment (RUN_MODE) or command line arg
	mode := getEnv("RUN_MODE", "all")
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Printf("lowkey %s starting in %s mode", version, mode)

	// Configuration from environment
	jwtSecret := getEnv("JWT_SECRET", "development-secret-change-in-production")
	adminKeyHash := getEnv("ADMIN_KEY_HASH", "")
	tokenTTL := time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour
	port := getEnvInt("PORT", 8000)
	harvestConfigPath := getEnv("HARVEST_CONFIG", "")

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Driven adapters (infrastructure) =====
	infra, err := app.Setup(ctx, app.Config{
		HarvestConfigPath: harvestConfigPath,
		OutputDir:         getEnv("OUTPUT_DIR", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SQLitePath:        getEnv("SQLITE_PATH", ""),
		Generation:        generationSettings(),
		Reddit: reddit.Config{
			UserAgent:  getEnv("REDDIT_USER_AGENT", ""),
			MaxRetries: getEnvInt("REDDIT_MAX_RETRIES", 2),
		},
		Logger: slog.Default(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer infra.Close()

	// Live reload of the harvest config file
	if harvestConfigPath != "" {
		watcher := config.NewWatcher(config.WatcherConfig{
			Path:    harvestConfigPath,
			Applier: infra.Services,
			Logger:  slog.Default(),
		})
		if err := watcher.Start(ctx); err != nil {
			log.Printf("Warning: harvest config watcher disabled: %v", err)
		}
	}

	// ===== Task Queue (Redis, then PostgreSQL, otherwise in-process) =====
	var taskQueue driven.TaskQueue
	switch {
	case infra.Redis != nil:
		taskQueue, err = redisqueue.NewQueue(ctx, infra.Redis, fmt.Sprintf("worker-%d", os.Getpid()))
		if err != nil {
			log.Fatalf("Failed to create task queue: %v", err)
		}
		log.Println("Using Redis task queue")
	case infra.DB != nil:
		taskQueue = postgresqueue.NewQueue(infra.DB.DB)
		log.Println("Using PostgreSQL task queue")
	default:
		taskQueue = memory.NewQueue()
		log.Println("Using in-process task queue")
	}
	defer taskQueue.Close()

	// Services (core business logic)
	authService := services.NewAuthService(auth.NewAdapter(jwtSecret), adminKeyHash, tokenTTL)
	if adminKeyHash == "" {
		log.Println("ADMIN_KEY_HASH not set, admin endpoints are disabled")
	}

	var chatService driving.ChatService
	if infra.Streamer != nil {
		chatService = services.NewChatService(services.ChatServiceConfig{
			Streamer: infra.Streamer,
			Logger:   slog.Default(),
		})
	} else {
		log.Println("No generation provider configured, chat is disabled")
	}

	harvestJobs := services.NewHarvestJobs(taskQueue, infra.Services, slog.Default())
	harvester := infra.Harvester()

	// Readiness checks
	dependencies := map[string]http.Pinger{"queue": taskQueue}
	if infra.Redis != nil {
		dependencies["redis"] = redisadapter.NewLock(infra.Redis)
	}
	if infra.DB != nil {
		dependencies["postgres"] = infra.DB
	}

	// Create scheduler for worker mode (if enabled)
	schedulerEnabled := getEnvBool("SCHEDULER_ENABLED", true)
	schedulerLockRequired := getEnvBool("SCHEDULER_LOCK_REQUIRED", true)
	interval := time.Duration(getEnvInt("HARVEST_INTERVAL_HOURS", 24)) * time.Hour

	var scheduler driving.Scheduler
	if schedulerEnabled {
		var scheduleStore driven.ScheduleStore
		if infra.DB != nil {
			scheduleStore = postgres.NewSchedulerStore(infra.DB)
		}
		scheduler = services.NewScheduler(services.SchedulerConfig{
			TaskQueue:    taskQueue,
			Lock:         infra.Lock,
			Store:        scheduleStore,
			Schedules:    domain.DefaultSchedule(interval),
			Logger:       slog.Default(),
			LockRequired: schedulerLockRequired,
		})
		log.Printf("Scheduler enabled (interval=%s, lock_required=%t)", interval, schedulerLockRequired)
	} else {
		log.Println("Scheduler disabled via SCHEDULER_ENABLED=false")
	}

	switch mode {
	case "api":
		// API-only mode: HTTP server, no worker
		runAPI(port, authService, chatService, harvestJobs, dependencies)

	case "worker":
		// Worker-only mode: Task processing, scheduler, no HTTP server
		runWorkerMode(ctx, taskQueue, harvester, scheduler)

	case "all":
		// Combined mode: Run both API and Worker
		go runWorkerMode(ctx, taskQueue, harvester, scheduler)
		runAPI(port, authService, chatService, harvestJobs, dependencies)

	default:
		log.Fatalf("Unknown mode: %s (use: api, worker, or all)", mode)
	}
}

// generationSettings picks the model backend. Gemini is the default and
// accepts either GEMINI_API_KEY or GOOGLE_API_KEY.
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

func runAPI(
	port int,
	authService driving.AuthService,
	chatService driving.ChatService,
	harvestJobs driving.HarvestJobs,
	dependencies map[string]http.Pinger,
) {
	cfg := http.DefaultConfig()
	cfg.Host = "0.0.0.0"
	cfg.Port = port
	cfg.Version = version
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	server := http.NewServer(cfg, authService, chatService, harvestJobs, dependencies)

	log.Printf("API server starting on :%d", port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runWorkerMode starts the worker and scheduler.
// It processes harvest tasks from the queue and runs scheduled harvests.
func runWorkerMode(
	ctx context.Context,
	taskQueue driven.TaskQueue,
	harvester driving.Harvester,
	scheduler driving.Scheduler,
) {
	log.Println("Starting worker mode...")

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      taskQueue,
		Harvester:      harvester,
		Scheduler:      scheduler,
		Logger:         slog.Default(),
		Concurrency:    getEnvInt("WORKER_CONCURRENCY", 2),
		DequeueTimeout: getEnvInt("WORKER_DEQUEUE_TIMEOUT", 5),
	})

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker started, processing tasks...")
	log.Println("Worker handles:")
	log.Println("  - harvest_city: Harvest a single city")
	log.Println("  - harvest_all: Harvest all configured cities")

	// Wait for context cancellation
	<-ctx.Done()

	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
}

// Helper functions

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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
