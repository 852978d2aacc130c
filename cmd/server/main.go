package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"poetica-backend/internal/agent"
	"poetica-backend/internal/collection"
	"poetica-backend/internal/config"
	"poetica-backend/internal/database"
	"poetica-backend/internal/events"
	"poetica-backend/internal/handlers"
	"poetica-backend/internal/logger"
	"poetica-backend/internal/middleware"
	"poetica-backend/internal/repository"
	"poetica-backend/internal/router"
	"poetica-backend/internal/services"
	"poetica-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, OutputPath: cfg.LogOutput})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()
	log := zl.Sugar()

	log.Info("🚀 Starting Poetica Backend...")
	log.Info("✓ Environment variables loaded")

	// ──── Step 2: Initialize Redis Clients ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		log.Info("✓ Redis connected")
	} else {
		log.Info("✓ No REDIS_URL, session updates stay in this process")
	}

	// ──── Step 3: Initialize Saved Poem Storage ────
	var kv repository.KV
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := database.NewPostgresPool(cfg.DatabaseURL, int32(cfg.DBMaxConns))
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		if err := database.RunMigrations(pool, cfg.MigrationsDir, zl); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		kv = repository.NewPostgresKV(pool)
		log.Info("✓ PostgreSQL connected, migrations applied")
	case "file":
		fileKV, err := repository.NewFileKV(cfg.StoragePath)
		if err != nil {
			log.Fatalf("✗ File storage unavailable: %v", err)
		}
		kv = fileKV
		log.Infof("✓ File storage at %s", cfg.StoragePath)
	default:
		kv = repository.NewRedisKV(redisClients.Store)
		log.Info("✓ Redis storage selected")
	}
	library := collection.NewLibrary(kv, cfg.StoreKeyPrefix, zl)

	// ──── Step 4: Initialize Agent ────
	registry := agent.NewRegistry(cfg.AgentTimeout)
	switch cfg.AgentProvider {
	case "gemini":
		gemini, err := agent.NewGeminiAgent(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, zl)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer gemini.Close()
		registry.Register(cfg.AgentID, gemini)
	case "openai":
		openai, err := agent.NewOpenAIAgent(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		if err != nil {
			log.Fatalf("✗ OpenAI client initialization failed: %v", err)
		}
		registry.Register(cfg.AgentID, openai)
	default:
		registry.Register(cfg.AgentID, &agent.MockAgent{})
	}
	log.Infof("✓ Agent %q ready (%s)", cfg.AgentID, cfg.AgentProvider)

	// ──── Step 5: Start WebSocket Hub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	var (
		wsHub     *websocket.Hub
		publisher events.Publisher
	)
	if redisClients != nil {
		wsHub = websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL, zl)
		publisher = events.NewRedisPublisher(redisClients.Store, zl)
	} else {
		wsHub = websocket.NewHub(nil, jwtAuth, cfg.FrontendURL, zl)
		publisher = wsHub
	}
	log.Info("✓ WebSocket hub started")

	// ──── Step 6: Start Generation Workers ────
	poemService := services.NewPoemService(registry, cfg.AgentID, library, publisher, cfg.WorkerCount, zl)
	poemService.Start()
	log.Infof("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		middleware.NewRateLimiter(cfg.GenerateRatePerMinute, cfg.GenerateRatePerMinute),
		handlers.NewSessionHandler(jwtAuth, zl),
		handlers.NewPoemHandler(poemService, zl),
		handlers.NewLibraryHandler(library, poemService, publisher, zl),
		wsHub.HandleWebSocket,
		cfg.FrontendURL,
		zl,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AgentTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		poemService.Stop()
	}()

	log.Infof("✓ Poetica Backend ready on http://localhost:%s", cfg.Port)
	log.Infof("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Infof("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-stopped
	zl.Info("server stopped", zap.String("port", cfg.Port))
}
