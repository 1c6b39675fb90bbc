package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultJWTSecret is only accepted when ENV is dev.
const DefaultJWTSecret = "change-me"

var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set outside the dev environment")

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPass     string
	DBName     string
	ServerPort string
	RedisURL   string
	Env        string
	RedisTTL   time.Duration
	// FrontendURL is a comma separated list of allowed CORS origins.
	FrontendURL string

	JWTSecret string
	JWTTTL    time.Duration

	LLMAPIKey         string
	LLMBaseURL        string
	LLMChatModel      string
	LLMTitleModel     string
	LLMTemperature    float32
	LLMTimeout        time.Duration
	TitleTimeout      time.Duration
	ChatContextWindow int
	RateLimitQPS      int

	MinioURL       string
	MinioPublicURL string
	MinioUser      string
	MinioPassword  string
	MinioBucket    string
	MaxFileSize    int64
}

func LoadConfig() Config {
	return Config{
		DBHost:     getEnv("DB_HOST", "postgres"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPass:     getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "echoflow"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		RedisURL:   getEnv("REDIS_URL", "redis:6379"),
		Env:        getEnv("ENV", "dev"),
		RedisTTL:   getEnvAsDuration("REDIS_TTL", 5*time.Minute),

		FrontendURL: getEnv("FRONTEND_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTTTL:    getEnvAsDuration("JWT_TTL", 72*time.Hour),

		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		LLMBaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMChatModel:      getEnv("LLM_CHAT_MODEL", "gpt-4o-mini"),
		LLMTitleModel:     getEnv("LLM_TITLE_MODEL", "gpt-4o-mini"),
		LLMTemperature:    getEnvAsFloat32("LLM_TEMPERATURE", 0.5),
		LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		TitleTimeout:      getEnvAsDuration("TITLE_TIMEOUT", 20*time.Second),
		ChatContextWindow: getEnvAsInt("CHAT_CONTEXT_WINDOW", 10),
		RateLimitQPS:      getEnvAsInt("RATE_LIMIT_QPS", 1),

		MinioURL:       getEnv("MINIO_URL", "localhost:9000"),
		MinioPublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		MinioUser:      getEnv("MINIO_USER", "minioadmin"),
		MinioPassword:  getEnv("MINIO_PASSWORD", "minioadmin"),
		MinioBucket:    getEnv("MINIO_BUCKET", "echoflow-avatars"),
		MaxFileSize:    getEnvAsInt64("MAX_FILE_SIZE", 2*1024*1024), // 2MB default
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsFloat32(key string, fallback float32) float32 {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(v)
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return fallback
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort,
	)
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// Validate rejects settings that are only safe for local development.
func (c *Config) Validate() error {
	if !c.IsDev() && (c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret) {
		return ErrInsecureJWTSecret
	}
	return nil
}
