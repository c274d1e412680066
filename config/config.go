package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"udaay-be/models"
	"udaay-be/validation"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret = "udaay-dev-secret"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Port string
	Env  string

	MongoURI      string
	MongoDatabase string

	RedisAddress    string
	RedisPassword   string
	RateLimitPrefix string
	DailyLimit      int

	JWTSecret string
	ClientURL string

	GeminiAPIKey    string
	GeminiModel     string
	GoogleProjectID string
	GoogleLocation  string

	AIBackendURL      string
	InternalJWTSecret string
	InternalJWTIssuer string
	InternalJWTTTL    time.Duration

	ProviderTimeout      time.Duration
	HeuristicEnabled     bool
	VisionConfidence     validation.ConfidenceTable
	ClassifierConfidence validation.ConfidenceTable
	CategoryKeywords     validation.KeywordTable

	GoogleMapsAPIKey string

	MinIOEndpoint       string
	MinIOPublicEndpoint string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOBucket         string
	MinIOUseSSL         bool

	RabbitMQURL      string
	RabbitMQExchange string
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads the configuration from the environment. Call godotenv.Load first.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 strings.ToLower(getEnv("GO_ENV", EnvDevelopment)),
		MongoURI:            os.Getenv("MONGODB_URI"),
		MongoDatabase:       getEnv("MONGODB_DATABASE", "udaay"),
		RedisAddress:        os.Getenv("REDIS_ADDRESS"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RateLimitPrefix:     getEnv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue_limit"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		ClientURL:           getEnv("CLIENT_URL", "http://localhost:3000"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GoogleProjectID:     os.Getenv("GOOGLE_CLOUD_PROJECT_ID"),
		GoogleLocation:      getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
		AIBackendURL:        os.Getenv("AI_BACKEND_URL"),
		InternalJWTSecret:   os.Getenv("INTERNAL_JWT_SECRET"),
		InternalJWTIssuer:   getEnv("INTERNAL_JWT_ISSUER", validation.DefaultClassifierIssuer),
		GoogleMapsAPIKey:    os.Getenv("GOOGLE_MAPS_API_KEY"),
		MinIOEndpoint:       os.Getenv("MINIO_ENDPOINT"),
		MinIOPublicEndpoint: os.Getenv("MINIO_PUBLIC_ENDPOINT"),
		MinIOAccessKey:      getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:      getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucket:         getEnv("MINIO_BUCKET_NAME", "issue-images"),
		RabbitMQURL:         os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange:    getEnv("RABBITMQ_EXCHANGE", "udaay.issues"),
	}

	var err error
	if cfg.DailyLimit, err = getInt("ISSUE_DAILY_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.InternalJWTTTL, err = getDuration("INTERNAL_JWT_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getDuration("PROVIDER_TIMEOUT", validation.DefaultProviderTimeout); err != nil {
		return nil, err
	}
	if cfg.HeuristicEnabled, err = getBool("HEURISTIC_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.MinIOUseSSL, err = getBool("MINIO_USE_SSL", false); err != nil {
		return nil, err
	}
	if cfg.VisionConfidence, err = ParseConfidenceTable(os.Getenv("VISION_PRIORITY_CONFIDENCE"), validation.DefaultVisionConfidence); err != nil {
		return nil, goerr.Wrap(err, "invalid VISION_PRIORITY_CONFIDENCE")
	}
	if cfg.ClassifierConfidence, err = ParseConfidenceTable(os.Getenv("CLASSIFIER_PRIORITY_CONFIDENCE"), validation.DefaultClassifierConfidence); err != nil {
		return nil, goerr.Wrap(err, "invalid CLASSIFIER_PRIORITY_CONFIDENCE")
	}
	if cfg.CategoryKeywords, err = ParseKeywordTable(os.Getenv("CATEGORY_KEYWORDS")); err != nil {
		return nil, goerr.Wrap(err, "invalid CATEGORY_KEYWORDS")
	}

	if cfg.IsProduction() {
		if cfg.MongoURI == "" {
			return nil, goerr.New("Please define the MONGODB_URI environment variable")
		}
		if cfg.JWTSecret == "" {
			return nil, goerr.New("Please define the JWT_SECRET environment variable")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

// ParseConfidenceTable reads "high=0.9,medium=0.75,low=0.6". An empty string yields fallback.
func ParseConfidenceTable(raw string, fallback validation.ConfidenceTable) (validation.ConfidenceTable, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	table := validation.ConfidenceTable{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, goerr.New("malformed confidence entry", goerr.V("entry", pair))
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || score < 0 || score > 1 {
			return nil, goerr.New("confidence must be a number in [0,1]", goerr.V("entry", pair))
		}
		table[key] = score
	}
	return table, nil
}

// ParseKeywordTable reads "pothole=roads,leak=water". Order is kept. An empty string
// yields the default table.
func ParseKeywordTable(raw string) (validation.KeywordTable, error) {
	if strings.TrimSpace(raw) == "" {
		return validation.DefaultCategoryKeywords, nil
	}
	var table validation.KeywordTable
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, goerr.New("malformed keyword entry", goerr.V("entry", pair))
		}
		category, valid := models.ParseCategory(value)
		if !valid {
			return nil, goerr.New("unknown category", goerr.V("entry", pair))
		}
		table = append(table, validation.KeywordCategory{Keyword: key, Category: category})
	}
	return table, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, goerr.Wrap(err, "invalid integer", goerr.V("key", key), goerr.V("value", raw))
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, goerr.Wrap(err, "invalid boolean", goerr.V("key", key), goerr.V("value", raw))
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, goerr.Wrap(err, "invalid duration", goerr.V("key", key), goerr.V("value", raw))
	}
	return v, nil
}
