package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice command service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Boundary authentication. Either a matching bearer token or the spoken
	// PIN ("pin is <pin>" at the start of the command text) is sufficient.
	BearerToken string
	VoicePIN    string

	// Fixed-grammar trigger phrase, matched case-insensitively.
	SecretPhrase string
	DefaultTab   string

	SessionMaxAge        time.Duration
	SessionSweepInterval time.Duration
	MaxHistoryLength     int

	PriceMin        float64
	PriceMax        float64
	AllowedStatuses []string

	// AIEnabled is the single switch components branch on; when false the
	// oracle is forced to mock mode regardless of ARA_ORACLE_MODE.
	AIEnabled       bool
	OracleMode      string
	GeminiAPIKey    string
	GeminiModel     string
	OracleHTTPURL   string
	OracleModel     string
	OracleTimeout   time.Duration
	OracleMaxTokens int

	SheetsMode    string
	SheetsBaseURL string
	SheetsAPIKey  string
	SheetsTimeout time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "aravoice"),
		AllowAnyOrigin:       false,
		BearerToken:          stringsTrimSpace("ARA_BEARER_TOKEN"),
		VoicePIN:             stringsTrimSpace("ARA_VOICE_PIN"),
		SecretPhrase:         envOrDefault("ARA_SECRET_PHRASE", "hey ara"),
		DefaultTab:           envOrDefault("ARA_DEFAULT_TAB", "groceries"),
		SessionMaxAge:        30 * time.Minute,
		SessionSweepInterval: time.Minute,
		MaxHistoryLength:     50,
		PriceMin:             0.01,
		PriceMax:             1_000_000,
		AIEnabled:            true,
		OracleMode:           envOrDefault("ARA_ORACLE_MODE", "auto"),
		GeminiAPIKey:         stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:          envOrDefault("ARA_GEMINI_MODEL", "gemini-2.0-flash"),
		OracleHTTPURL:        stringsTrimSpace("ARA_ORACLE_HTTP_URL"),
		OracleModel:          envOrDefault("ARA_ORACLE_MODEL", "gpt-4o-mini"),
		OracleTimeout:        15 * time.Second,
		OracleMaxTokens:      512,
		SheetsMode:           envOrDefault("ARA_SHEETS_MODE", "auto"),
		SheetsBaseURL:        stringsTrimSpace("ARA_SHEETS_BASE_URL"),
		SheetsAPIKey:         stringsTrimSpace("ARA_SHEETS_API_KEY"),
		SheetsTimeout:        10 * time.Second,
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:      15 * time.Second,
	}

	if raw := stringsTrimSpace("ARA_ALLOWED_STATUSES"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				cfg.AllowedStatuses = append(cfg.AllowedStatuses, s)
			}
		}
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionMaxAge, err = durationFromEnv("ARA_SESSION_MAX_AGE", cfg.SessionMaxAge)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionSweepInterval, err = durationFromEnv("ARA_SESSION_SWEEP_INTERVAL", cfg.SessionSweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.OracleTimeout, err = durationFromEnv("ARA_ORACLE_TIMEOUT", cfg.OracleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SheetsTimeout, err = durationFromEnv("ARA_SHEETS_TIMEOUT", cfg.SheetsTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxHistoryLength, err = intFromEnv("ARA_MAX_HISTORY_LENGTH", cfg.MaxHistoryLength)
	if err != nil {
		return Config{}, err
	}
	cfg.OracleMaxTokens, err = intFromEnv("ARA_ORACLE_MAX_TOKENS", cfg.OracleMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.PriceMin, err = floatFromEnv("ARA_PRICE_MIN", cfg.PriceMin)
	if err != nil {
		return Config{}, err
	}
	cfg.PriceMax, err = floatFromEnv("ARA_PRICE_MAX", cfg.PriceMax)
	if err != nil {
		return Config{}, err
	}
	cfg.AIEnabled, err = boolFromEnv("ARA_AI_ENABLED", cfg.AIEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.SecretPhrase) == "" {
		return Config{}, fmt.Errorf("ARA_SECRET_PHRASE must not be empty")
	}
	if cfg.SessionMaxAge < 5*time.Second {
		return Config{}, fmt.Errorf("ARA_SESSION_MAX_AGE must be at least 5s")
	}
	if cfg.SessionSweepInterval <= 0 {
		return Config{}, fmt.Errorf("ARA_SESSION_SWEEP_INTERVAL must be positive")
	}
	if cfg.MaxHistoryLength <= 0 {
		return Config{}, fmt.Errorf("ARA_MAX_HISTORY_LENGTH must be positive")
	}
	if cfg.OracleMaxTokens <= 0 {
		return Config{}, fmt.Errorf("ARA_ORACLE_MAX_TOKENS must be positive")
	}
	if cfg.PriceMin <= 0 || cfg.PriceMax <= cfg.PriceMin {
		return Config{}, fmt.Errorf("price range invalid: ARA_PRICE_MIN=%v ARA_PRICE_MAX=%v", cfg.PriceMin, cfg.PriceMax)
	}
	if cfg.VoicePIN != "" {
		if _, err := strconv.Atoi(cfg.VoicePIN); err != nil {
			return Config{}, fmt.Errorf("ARA_VOICE_PIN must be numeric")
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
