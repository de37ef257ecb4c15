// Package config loads the assistant's settings from environment variables.
// Every key has a default; Load normalizes the values and rejects
// combinations the server cannot start with.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig configures the Gemini adapter.
type LLMConfig struct {
	APIKey      string        // GEMINI_API_KEY
	Model       string        // GEMINI_MODEL
	Timeout     time.Duration // LLM_TIMEOUT
	Temperature float64       // LLM_TEMPERATURE
	MaxTokens   int           // LLM_MAX_OUTPUT_TOKENS
}

// ShoppingConfig configures product search.
type ShoppingConfig struct {
	SerpAPIKey  string        // SERP_API_KEY; empty selects the local catalog
	Timeout     time.Duration // SEARCH_TIMEOUT
	MaxResults  int           // SEARCH_MAX_RESULTS
	Country     string        // SHOPPING_GL
	Language    string        // SHOPPING_HL
	CatalogPath string        // CATALOG_PATH; empty uses the built-in items
}

// StoreConfig selects and tunes the conversation store.
type StoreConfig struct {
	Driver         string // STORE_DRIVER: sqlite|memory|redis
	RedisURL       string // REDIS_URL
	HistoryCeiling int    // HISTORY_CEILING
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Persistence
	DBPath string
	Store  StoreConfig

	// Providers
	LLM           LLMConfig
	Shopping      ShoppingConfig
	MaxQueryRunes int // MAX_QUERY_RUNES

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DBPath: getenv("DB_PATH", "app.db"),
		Store: StoreConfig{
			Driver:         strings.ToLower(getenv("STORE_DRIVER", StoreSQLite)),
			RedisURL:       getenv("REDIS_URL", "redis://localhost:6379/0"),
			HistoryCeiling: getint("HISTORY_CEILING", 18),
		},

		LLM: LLMConfig{
			APIKey:      getenv("GEMINI_API_KEY", ""),
			Model:       getenv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout:     getdur("LLM_TIMEOUT", 30*time.Second),
			Temperature: getfloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:   getint("LLM_MAX_OUTPUT_TOKENS", 1024),
		},
		Shopping: ShoppingConfig{
			SerpAPIKey:  getenv("SERP_API_KEY", ""),
			Timeout:     getdur("SEARCH_TIMEOUT", 8*time.Second),
			MaxResults:  getint("SEARCH_MAX_RESULTS", 9),
			Country:     strings.ToLower(getenv("SHOPPING_GL", "us")),
			Language:    getenv("SHOPPING_HL", "en"),
			CatalogPath: getenv("CATALOG_PATH", ""),
		},

		MaxQueryRunes: getint("MAX_QUERY_RUNES", 4000),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "shopping-assistant"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if tag, err := language.Parse(cfg.Shopping.Language); err == nil {
		base, _ := tag.Base()
		cfg.Shopping.Language = base.String()
	} else {
		return cfg, fmt.Errorf("SHOPPING_HL must be a language tag: %w", err)
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	switch cfg.Store.Driver {
	case StoreSQLite:
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case StoreRedis:
		if strings.TrimSpace(cfg.Store.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL must not be empty when STORE_DRIVER=redis")
		}
	case StoreMemory:
	default:
		return cfg, errors.New("STORE_DRIVER must be one of: sqlite, memory, redis")
	}
	if cfg.Store.HistoryCeiling < 2 {
		return cfg, errors.New("HISTORY_CEILING must be >= 2")
	}
	if cfg.LLM.Timeout <= 0 || cfg.Shopping.Timeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT and SEARCH_TIMEOUT must be positive durations")
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		return cfg, errors.New("GEMINI_MODEL must not be empty")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return cfg, errors.New("LLM_TEMPERATURE must be in [0,2]")
	}
	if cfg.Shopping.MaxResults < 1 {
		return cfg, errors.New("SEARCH_MAX_RESULTS must be >= 1")
	}
	if len(cfg.Shopping.Country) != 2 {
		return cfg, errors.New("SHOPPING_GL must be a two-letter country code")
	}
	if cfg.MaxQueryRunes < 1 {
		return cfg, errors.New("MAX_QUERY_RUNES must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// UsesCatalog reports whether product search runs against the local catalog.
func (c Config) UsesCatalog() bool {
	return strings.TrimSpace(c.Shopping.SerpAPIKey) == ""
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
