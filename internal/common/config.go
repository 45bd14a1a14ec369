package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/tender-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Text     TextConfig
	Queue    QueueConfig
	Archive  ArchiveConfig
	Inbox    InboxConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Env      string // "production" hides internal error details
	LogLevel string
}

// IsProduction reports whether the service runs in production mode.
func (a AppConfig) IsProduction() bool {
	env := strings.ToLower(a.Env)
	return env == "production" || env == "prod"
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	GRPCAddr        string // empty disables the gRPC health endpoint
	CORSOrigins     []string
	MaxUploadBytes  int64
	RateLimitRPS    float64 // per client IP on /api, 0 disables
	ProcessingMode  constants.ProcessingMode
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds document store configuration
type DatabaseConfig struct {
	Driver              string // postgres | sqlite | firestore | memory
	DSN                 string
	SQLitePath          string
	FirestoreProject    string
	FirestoreCollection string
	MaxConns            int32
	MinConns            int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	DialTimeout         time.Duration
	StatementTimeout    time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider          string // openai | gemini
	APIKey            string
	BaseURL           string
	Model             string
	VertexProject     string
	VertexRegion      string
	Temperature       float32
	MaxOutputTokens   int
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int // paces sequential provider calls, 0 disables
	ChunkSize         int
	ChunkOverlap      int
}

// TextConfig holds PDF text extraction configuration
type TextConfig struct {
	Pdftotext string
	TempDir   string
}

// QueueConfig holds background worker configuration
type QueueConfig struct {
	Workers    int
	Size       int
	JobTimeout time.Duration
}

// ArchiveConfig holds original-upload archive configuration
type ArchiveConfig struct {
	Bucket string // empty disables archiving
	Prefix string
}

// InboxConfig holds the watched drop-folder configuration
type InboxConfig struct {
	Dir      string // empty disables the inbox
	Debounce time.Duration
}

const (
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
	DriverMemory    = "memory"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI))
	defaultModel := "gpt-4o-mini"
	modelKey := "OPENAI_MODEL"
	if provider == ProviderGemini {
		defaultModel = "gemini-2.0-flash"
		modelKey = "GEMINI_MODEL"
	}

	return &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			GRPCAddr:        getEnv("GRPC_ADDR", ""),
			CORSOrigins:     getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_MB", 25)) << 20,
			RateLimitRPS:    float64(getEnvAsFloat32("API_RATE_LIMIT_RPS", 10)),
			ProcessingMode:  constants.ProcessingMode(strings.ToLower(getEnv("PROCESSING_MODE", string(constants.ModeAsync)))),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:              strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
			DSN:                 getEnv("DB_URL", ""),
			SQLitePath:          getEnv("SQLITE_PATH", "tender.db"),
			FirestoreProject:    getEnv("FIRESTORE_PROJECT", ""),
			FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "documents"),
			MaxConns:            getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:            getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:     getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:     getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:         getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout:    getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		LLM: LLMConfig{
			Provider:          provider,
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			BaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:             getEnv(modelKey, defaultModel),
			VertexProject:     getEnv("VERTEX_PROJECT", ""),
			VertexRegion:      getEnv("VERTEX_REGION", "us-central1"),
			Temperature:       getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			MaxOutputTokens:   getEnvAsInt("LLM_MAX_OUTPUT_TOKENS", 4096),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
			MaxRetries:        getEnvAsInt("LLM_MAX_RETRIES", 2),
			RequestsPerMinute: getEnvAsInt("LLM_REQUESTS_PER_MINUTE", 4),
			ChunkSize:         getEnvAsInt("LLM_CHUNK_SIZE", 24000),
			ChunkOverlap:      getEnvAsInt("LLM_CHUNK_OVERLAP", 600),
		},
		Text: TextConfig{
			Pdftotext: getEnv("PDFTOTEXT_BIN", "pdftotext"),
			TempDir:   getEnv("UPLOAD_TMP_DIR", os.TempDir()),
		},
		Queue: QueueConfig{
			Workers:    getEnvAsInt("QUEUE_WORKERS", 1),
			Size:       getEnvAsInt("QUEUE_SIZE", 64),
			JobTimeout: getEnvAsDuration("QUEUE_JOB_TIMEOUT", 10*time.Minute),
		},
		Archive: ArchiveConfig{
			Bucket: getEnv("ARCHIVE_BUCKET", ""),
			Prefix: getEnv("ARCHIVE_PREFIX", "uploads"),
		},
		Inbox: InboxConfig{
			Dir:      getEnv("INBOX_DIR", ""),
			Debounce: getEnvAsDuration("INBOX_DEBOUNCE", 2*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()

	v.Field("PORT", c.Server.Port, Required)
	v.Field("MAX_UPLOAD_MB", c.Server.MaxUploadBytes, Positive)
	v.Field("PROCESSING_MODE", string(c.Server.ProcessingMode), OneOf(string(constants.ModeSync), string(constants.ModeAsync)))

	v.Field("STORE_DRIVER", c.Database.Driver, OneOf(DriverPostgres, DriverSQLite, DriverFirestore, DriverMemory))
	switch c.Database.Driver {
	case DriverPostgres:
		v.Field("DB_URL", c.Database.DSN, Required)
	case DriverSQLite:
		v.Field("SQLITE_PATH", c.Database.SQLitePath, Required)
	case DriverFirestore:
		v.Field("FIRESTORE_PROJECT", c.Database.FirestoreProject, Required)
	}

	v.Field("LLM_PROVIDER", c.LLM.Provider, OneOf(ProviderOpenAI, ProviderGemini))
	switch c.LLM.Provider {
	case ProviderOpenAI:
		v.Field("OPENAI_API_KEY", c.LLM.APIKey, Required)
	case ProviderGemini:
		v.Field("VERTEX_PROJECT", c.LLM.VertexProject, Required)
		v.Field("VERTEX_REGION", c.LLM.VertexRegion, Required)
	}
	v.Field("LLM_CHUNK_SIZE", c.LLM.ChunkSize, Positive)
	v.Check(c.LLM.ChunkOverlap >= 0 && c.LLM.ChunkOverlap < c.LLM.ChunkSize, "LLM_CHUNK_OVERLAP", "must be >= 0 and smaller than LLM_CHUNK_SIZE")
	v.Check(c.LLM.RequestsPerMinute >= 0, "LLM_REQUESTS_PER_MINUTE", "must not be negative")
	v.Field("QUEUE_WORKERS", c.Queue.Workers, Positive)

	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
