package config

import (
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	HTTPPort        string
	TokenExpiration time.Duration
	EncryptionKey   []byte // Raw key bytes (32 for AES-256)

	// Generative API
	GenAIEndpoint     string // Base URL of the generative API
	GenAIAPIKey       string // Static API key (alternative to the service account below)
	GenAIDefaultModel string
	ServiceAccount    ServiceAccount

	// Blob storage
	StorageEndpoint string   // Base URL of the blob storage API
	StorageBucket   string   // Primary bucket
	FallbackBuckets []string // Tried in order after the primary

	AllowedOrigins []string
}

// ServiceAccount holds the credentials for the JWT-assertion token exchange.
// Either both Email and the key are set, or neither (in which case
// GenAIAPIKey must be set).
type ServiceAccount struct {
	Email         string
	PrivateKeyPEM []byte
	TokenEndpoint string
}

// Configured reports whether the service account credentials are present.
func (sa ServiceAccount) Configured() bool {
	return sa.Email != "" && len(sa.PrivateKeyPEM) > 0
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
// Missing required credentials are fatal: the server cannot run without a
// database, a JWT secret, and some way to authenticate to the generative API.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file (useful for development)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
	}

	port := getEnv("HTTP_PORT", "8080")
	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("FATAL: JWT_SECRET environment variable is not set.")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		log.Fatal("FATAL: DATABASE_URL environment variable is not set.")
	}

	tokenExpStr := getEnv("JWT_EXPIRATION_HOURS", "24")
	tokenExpHours, err := strconv.Atoi(tokenExpStr)
	if err != nil {
		log.Printf("Warning: Invalid JWT_EXPIRATION_HOURS '%s', using default 24h. Error: %v", tokenExpStr, err)
		tokenExpHours = 24
	}

	// Encryption key for sealing stored per-user API-key overrides
	// (MUST be 64 hex characters for 32 bytes).
	encryptionKeyHex := getEnv("ENCRYPTION_KEY", "")
	if encryptionKeyHex == "" {
		log.Fatal("FATAL: ENCRYPTION_KEY environment variable is not set.")
	}
	encryptionKeyBytes, err := hex.DecodeString(encryptionKeyHex)
	if err != nil {
		log.Fatalf("FATAL: Failed to decode ENCRYPTION_KEY from hex: %v", err)
	}
	if len(encryptionKeyBytes) != 32 {
		log.Fatalf("FATAL: ENCRYPTION_KEY must be 32 bytes (64 hex characters) long, got %d bytes", len(encryptionKeyBytes))
	}

	sa := ServiceAccount{
		Email:         getEnv("GENAI_SA_EMAIL", ""),
		TokenEndpoint: getEnv("GENAI_TOKEN_ENDPOINT", "https://oauth2.googleapis.com/token"),
	}
	if keyPath := getEnv("GENAI_SA_KEY_FILE", ""); keyPath != "" {
		keyBytes, err := os.ReadFile(keyPath)
		if err != nil {
			log.Fatalf("FATAL: Failed to read GENAI_SA_KEY_FILE %s: %v", keyPath, err)
		}
		sa.PrivateKeyPEM = keyBytes
	}

	apiKey := getEnv("GENAI_API_KEY", "")
	if apiKey == "" && !sa.Configured() {
		log.Fatal("FATAL: Either GENAI_API_KEY or GENAI_SA_EMAIL + GENAI_SA_KEY_FILE must be set.")
	}

	storageBucket := getEnv("STORAGE_BUCKET", "")
	if storageBucket == "" {
		log.Fatal("FATAL: STORAGE_BUCKET environment variable is not set.")
	}

	cfg := &Config{
		HTTPPort:          port,
		JWTSecret:         jwtSecret,
		DatabaseURL:       dbURL,
		TokenExpiration:   time.Hour * time.Duration(tokenExpHours),
		EncryptionKey:     encryptionKeyBytes,
		GenAIEndpoint:     getEnv("GENAI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
		GenAIAPIKey:       apiKey,
		GenAIDefaultModel: getEnv("GENAI_DEFAULT_MODEL", "gemini-2.0-flash"),
		ServiceAccount:    sa,
		StorageEndpoint:   getEnv("STORAGE_ENDPOINT", "https://firebasestorage.googleapis.com/v0"),
		StorageBucket:     storageBucket,
		FallbackBuckets:   splitList(getEnv("STORAGE_FALLBACK_BUCKETS", "")),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, TokenExp=%s, Model=%s, Bucket=%s (+%d fallbacks)",
		cfg.HTTPPort, cfg.TokenExpiration, cfg.GenAIDefaultModel, cfg.StorageBucket, len(cfg.FallbackBuckets))

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// splitList splits a comma-separated env value, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
