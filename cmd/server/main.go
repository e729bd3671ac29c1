package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemchat-backend/internal/api"
	"gemchat-backend/internal/blobstore"
	"gemchat-backend/internal/config"
	"gemchat-backend/internal/crypto"
	"gemchat-backend/internal/genai"
	"gemchat-backend/internal/handlers"
	"gemchat-backend/internal/services"
	"gemchat-backend/internal/store/postgres"
)

func main() {
	log.Println("Starting GemChat Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize Database Connection Pool and run migrations
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := postgres.NewPool(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
	}
	defer dbpool.Close()
	log.Println("Database connection pool established and pinged successfully.")

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("FATAL: Failed to run database migrations: %v", err)
	}
	log.Println("Database migrations applied.")

	// 3. Initialize Dependencies (Store, Services, Handlers)
	pgStore := postgres.NewPostgresStore(dbpool)
	log.Println("Postgres store initialized.")

	// --- Create AEAD Cipher for Encryption ---
	aead, err := crypto.NewAESGCM(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("FATAL: Failed to create AES-GCM cipher: %v", err)
	}
	log.Println("AES-GCM cipher initialized.")

	// --- Initialize Generative API Client ---
	httpClient := &http.Client{Timeout: 120 * time.Second}

	var bearer genai.BearerSource
	if cfg.ServiceAccount.Configured() {
		ts, err := genai.NewTokenSource(cfg.ServiceAccount.Email, cfg.ServiceAccount.PrivateKeyPEM, cfg.ServiceAccount.TokenEndpoint, httpClient)
		if err != nil {
			log.Fatalf("FATAL: Failed to create service-account token source: %v", err)
		}
		bearer = ts
		log.Println("Service-account token source initialized.")
	}

	genaiClient := genai.NewClient(cfg.GenAIEndpoint, cfg.GenAIAPIKey, bearer, httpClient)
	invoker := genai.NewInvoker(genaiClient, cfg.GenAIDefaultModel)
	log.Printf("Generative API client initialized (default model: %s).", cfg.GenAIDefaultModel)

	// --- Initialize Blob Storage Uploader ---
	buckets := append([]string{cfg.StorageBucket}, cfg.FallbackBuckets...)
	probes := blobstore.NewProbeCache(5 * time.Minute)
	uploader := blobstore.NewUploader(cfg.StorageEndpoint, buckets, httpClient, probes)
	log.Printf("Blob storage uploader initialized (%d bucket(s)).", len(buckets))

	// --- Initialize Services ---
	authService := services.NewAuthService(pgStore, cfg)
	log.Println("AuthService initialized.")
	conversationService := services.NewConversationService(pgStore)
	log.Println("ConversationService initialized.")
	settingsService := services.NewSettingsService(pgStore, aead, cfg.GenAIDefaultModel)
	log.Println("SettingsService initialized.")
	chatService := services.NewChatService(conversationService, settingsService, invoker, uploader, nil)
	log.Println("ChatService initialized.")

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	generateHandler := handlers.NewGenerateHandler(chatService)
	conversationHandler := handlers.NewConversationHandlers(conversationService, chatService)
	settingsHandler := handlers.NewSettingsHandlers(settingsService)
	uploadHandler := handlers.NewUploadHandlers(chatService)
	log.Println("Handlers initialized.")

	// 4. Setup Router & Inject Dependencies
	routerDeps := api.RouterDependencies{
		AuthHandler:         authHandler,
		GenerateHandler:     generateHandler,
		ConversationHandler: conversationHandler,
		SettingsHandler:     settingsHandler,
		UploadHandler:       uploadHandler,
		Config:              cfg,
	}
	router := api.NewRouter(routerDeps)
	log.Println("HTTP router configured.")

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// Production hardening: Set timeouts to avoid Slowloris attacks
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel to listen for OS signals for graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	// Run server in a goroutine so it doesn't block
	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	// Wait for interrupt signal
	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
		log.Fatal("Forcing shutdown due to error.")
	}

	log.Println("Server shutdown complete.")
}
