package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	Auth      AuthConfig
	Admission AdmissionConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the shared counter store configuration. An empty Addr
// selects the in-process store instead of Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// AuthConfig holds token authentication configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// AdmissionConfig holds the admission-control knobs. The numeric rate
// limits themselves live in the policy file (or the built-in table when
// PolicyFile is empty); these are the pipeline's operating parameters.
type AdmissionConfig struct {
	PolicyFile          string
	BurstWindow         time.Duration
	BlockThreshold      string // threat level at which a verdict denies
	FailedLoginLimit    int
	FailedLoginWindow   time.Duration
	ErrorRateThreshold  float64
	ErrorRateWindow     time.Duration
	ErrorRateMinSamples int
	DenyRetryAfter      time.Duration
	BlockDuration       time.Duration
	AuthPathPrefix      string
	SuspiciousRanges    []string
	SweepInterval       time.Duration
	SkipPaths           []string // exact paths that bypass admission
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "palmistry"),
			Password:        getEnv("DB_PASSWORD", "palmistry"),
			Name:            getEnv("DB_NAME", "palmistry"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),
		},
		Admission: AdmissionConfig{
			PolicyFile:          getEnv("ADMISSION_POLICY_FILE", ""),
			BurstWindow:         getEnvDuration("ADMISSION_BURST_WINDOW", 10*time.Second),
			BlockThreshold:      getEnv("ADMISSION_BLOCK_THRESHOLD", "critical"),
			FailedLoginLimit:    getEnvInt("ADMISSION_FAILED_LOGIN_LIMIT", 10),
			FailedLoginWindow:   getEnvDuration("ADMISSION_FAILED_LOGIN_WINDOW", 15*time.Minute),
			ErrorRateThreshold:  getEnvFloat("ADMISSION_ERROR_RATE_THRESHOLD", 0.5),
			ErrorRateWindow:     getEnvDuration("ADMISSION_ERROR_RATE_WINDOW", 5*time.Minute),
			ErrorRateMinSamples: getEnvInt("ADMISSION_ERROR_RATE_MIN_SAMPLES", 20),
			DenyRetryAfter:      getEnvDuration("ADMISSION_DENY_RETRY_AFTER", time.Minute),
			BlockDuration:       getEnvDuration("ADMISSION_BLOCK_DURATION", 15*time.Minute),
			AuthPathPrefix:      getEnv("ADMISSION_AUTH_PATH_PREFIX", "/api/v1/auth"),
			SuspiciousRanges:    getEnvSlice("ADMISSION_SUSPICIOUS_RANGES", nil),
			SweepInterval:       getEnvDuration("ADMISSION_SWEEP_INTERVAL", time.Minute),
			SkipPaths:           getEnvSlice("ADMISSION_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := []string{}
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}
