// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	// SecretKey is the AES-256 key for token encryption at rest. Nil disables
	// encryption, which is only acceptable for local development.
	SecretKey []byte

	ScanInterval time.Duration
	ScanPageSize int
	ScanWorkers  int
	CallTimeout  time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string

	// PostConnectRedirect is where the browser is sent after a completed
	// connect flow. Defaults to "/".
	PostConnectRedirect string

	OpenAIAPIKey string
	OpenAIModel  string

	// AutoSendDefault is the auto-send preference applied to newly connected
	// mailboxes. Existing accounts keep their stored preference.
	AutoSendDefault bool
}

// HasGoogleCredentials returns true when the OAuth client ID and secret are
// both set. Without them the connect flow cannot run, but already-connected
// accounts with valid tokens can still be scanned.
func (c *Config) HasGoogleCredentials() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. ERNESCO_OPENAI_API_KEY is required. ERNESCO_SECRET_KEY, when set,
// must be a base64-encoded 32-byte value. Optional variables with defaults:
// ERNESCO_LISTEN_ADDR (127.0.0.1:8080), ERNESCO_DB_PATH (ernesco.db),
// ERNESCO_SCAN_INTERVAL (2m), ERNESCO_SCAN_PAGE_SIZE (10),
// ERNESCO_SCAN_WORKERS (4), ERNESCO_CALL_TIMEOUT (30s),
// ERNESCO_OPENAI_MODEL (gpt-4o-mini), ERNESCO_AUTO_SEND (true).
func Load() (*Config, error) {
	apiKey := os.Getenv("ERNESCO_OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ERNESCO_OPENAI_API_KEY is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("ERNESCO_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "ernesco.db"
	if v, ok := os.LookupEnv("ERNESCO_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("ERNESCO_SECRET_KEY"); ok && v != "" {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("ERNESCO_SECRET_KEY is not valid base64: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("ERNESCO_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	scanInterval := 2 * time.Minute
	if v, ok := os.LookupEnv("ERNESCO_SCAN_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ERNESCO_SCAN_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("ERNESCO_SCAN_INTERVAL must be positive, got %q", v)
		}
		scanInterval = parsed
	}

	scanPageSize := 10
	if v, ok := os.LookupEnv("ERNESCO_SCAN_PAGE_SIZE"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("ERNESCO_SCAN_PAGE_SIZE must be a positive integer, got %q", v)
		}
		scanPageSize = parsed
	}

	scanWorkers := 4
	if v, ok := os.LookupEnv("ERNESCO_SCAN_WORKERS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("ERNESCO_SCAN_WORKERS must be a positive integer, got %q", v)
		}
		scanWorkers = parsed
	}

	callTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("ERNESCO_CALL_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ERNESCO_CALL_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("ERNESCO_CALL_TIMEOUT must be positive, got %q", v)
		}
		callTimeout = parsed
	}

	redirectURL := os.Getenv("ERNESCO_OAUTH_REDIRECT_URL")
	if redirectURL == "" {
		redirectURL = "http://" + listenAddr + "/auth/google/callback"
	}

	postConnect := "/"
	if v, ok := os.LookupEnv("ERNESCO_POST_CONNECT_REDIRECT"); ok && v != "" {
		postConnect = v
	}

	model := "gpt-4o-mini"
	if v, ok := os.LookupEnv("ERNESCO_OPENAI_MODEL"); ok && v != "" {
		model = v
	}

	autoSend := true
	if v, ok := os.LookupEnv("ERNESCO_AUTO_SEND"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ERNESCO_AUTO_SEND must be a boolean, got %q", v)
		}
		autoSend = parsed
	}

	return &Config{
		ListenAddr:          listenAddr,
		DBPath:              dbPath,
		SecretKey:           secretKey,
		ScanInterval:        scanInterval,
		ScanPageSize:        scanPageSize,
		ScanWorkers:         scanWorkers,
		CallTimeout:         callTimeout,
		GoogleClientID:      os.Getenv("ERNESCO_GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  os.Getenv("ERNESCO_GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURL:    redirectURL,
		PostConnectRedirect: postConnect,
		OpenAIAPIKey:        apiKey,
		OpenAIModel:         model,
		AutoSendDefault:     autoSend,
	}, nil
}
