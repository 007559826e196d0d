package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	SIS       SISConfig
	GPS       GPSConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB),
// used to append visit/action lifecycle events.
type KurrentDBConfig struct {
	// Host is the KurrentDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// SISConfig holds configuration for the district Student Information
// System import adapter (legacy MSSQL database holding the school roster).
type SISConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	SchoolTable  string
	PollInterval time.Duration
}

// GPSConfig holds the thresholds the GPS reading validator applies.
type GPSConfig struct {
	// MaxAccuracyMeters disqualifies a reading outright
	MaxAccuracyMeters float64
	// WarnAccuracyMeters accepts the reading but attaches a warning
	WarnAccuracyMeters float64
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "fieldops"),
			Password: getEnv("DB_PASSWORD", "fieldops"),
			Database: getEnv("DB_NAME", "fieldops"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		SIS: SISConfig{
			Enabled:      getEnvBool("SIS_ENABLED", false),
			Host:         getEnv("SIS_DB_HOST", "localhost"),
			Port:         getEnvInt("SIS_DB_PORT", 1433),
			User:         getEnv("SIS_DB_USER", "sa"),
			Password:     getEnv("SIS_DB_PASSWORD", ""),
			Database:     getEnv("SIS_DB_NAME", "district"),
			SSLMode:      getEnv("SIS_DB_SSLMODE", "disable"),
			SchoolTable:  getEnv("SIS_SCHOOL_TABLE", "dbo.Schools"),
			PollInterval: getEnvDuration("SIS_POLL_INTERVAL", 15*time.Minute),
		},
		GPS: GPSConfig{
			MaxAccuracyMeters:  getEnvFloat("GPS_MAX_ACCURACY_M", 500),
			WarnAccuracyMeters: getEnvFloat("GPS_WARN_ACCURACY_M", 100),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
