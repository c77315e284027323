package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	JWT      JWTConfig
	Deepgram DeepgramConfig
	Groq     GroqConfig
	Pipeline PipelineConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string   `envconfig:"PORT" default:"8080"`
	Host            string   `envconfig:"HOST" default:"0.0.0.0"`
	Environment     string   `envconfig:"ENVIRONMENT" default:"development"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout int      `envconfig:"SHUTDOWN_TIMEOUT" default:"10"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"audio_sphere"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`

	// Transcribed-event stream settings
	Stream  string `envconfig:"REDIS_EVENT_STREAM" default:"audio:transcribed"`
	Group   string `envconfig:"REDIS_EVENT_GROUP" default:"summary-workers"`
	Workers int    `envconfig:"REDIS_EVENT_WORKERS" default:"2"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"STORAGE_BUCKET" default:"audio-uploads"`
	UseSSL          bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	AccessSecret string `envconfig:"JWT_ACCESS_SECRET" default:"your-access-secret-change-in-production"`
	AccessExpiry string `envconfig:"JWT_ACCESS_EXPIRY" default:"15m"`
}

// DeepgramConfig holds speech provider configuration
type DeepgramConfig struct {
	APIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	APIURL string `envconfig:"DEEPGRAM_API_URL" default:"https://api.deepgram.com"`

	// CallbackURL is the public URL of the transcription webhook endpoint,
	// passed to the provider at dispatch time.
	CallbackURL string `envconfig:"DEEPGRAM_CALLBACK_URL" default:""`

	// WebhookSecret is the shared secret the provider echoes in the
	// dg-token header on callback requests.
	WebhookSecret string `envconfig:"DEEPGRAM_WEBHOOK_SECRET" default:""`
}

// GroqConfig holds text-generation provider configuration
type GroqConfig struct {
	APIKey  string `envconfig:"GROQ_API_KEY" default:""`
	BaseURL string `envconfig:"GROQ_API_URL" default:"https://api.groq.com"`
	Model   string `envconfig:"GROQ_MODEL" default:"llama-3.1-70b-versatile"`
}

// PipelineConfig holds pipeline wiring configuration
type PipelineConfig struct {
	// DispatchURL is where the upload gateway fires its hand-off request.
	// Defaults to the local dispatch endpoint when empty.
	DispatchURL string `envconfig:"PIPELINE_DISPATCH_URL" default:""`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.Pipeline.DispatchURL == "" {
		cfg.Pipeline.DispatchURL = fmt.Sprintf("http://127.0.0.1:%s/v1/transcriptions/dispatch", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Environment == "production" {
		if c.Deepgram.WebhookSecret == "" {
			return fmt.Errorf("DEEPGRAM_WEBHOOK_SECRET is required in production")
		}
		if c.JWT.AccessSecret == "your-access-secret-change-in-production" {
			return fmt.Errorf("JWT_ACCESS_SECRET must be set in production")
		}
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
