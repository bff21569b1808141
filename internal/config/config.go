package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Payroll  PayrollConfig
	CORS     CORSConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// PayrollConfig holds calculation defaults and the special bucket codes.
// Bucket codes name client records in the time source; they are resolved
// to ids at the start of every calculation pass.
type PayrollConfig struct {
	ToleranceHours         decimal.Decimal
	ActivityThreshold      decimal.Decimal
	HoursPerDay            decimal.Decimal
	TimeOffBucketCode      string
	InternalWorkBucketCode string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Payroll configuration
	tolerance, err := getEnvDecimal("PAYROLL_TOLERANCE_HOURS", "0.5")
	if err != nil {
		return nil, err
	}
	threshold, err := getEnvDecimal("PAYROLL_ACTIVITY_THRESHOLD", "70")
	if err != nil {
		return nil, err
	}
	hoursPerDay, err := getEnvDecimal("PAYROLL_HOURS_PER_DAY", "8")
	if err != nil {
		return nil, err
	}

	config.Payroll = PayrollConfig{
		ToleranceHours:         tolerance,
		ActivityThreshold:      threshold,
		HoursPerDay:            hoursPerDay,
		TimeOffBucketCode:      getEnv("PAYROLL_TIME_OFF_BUCKET", "PTO"),
		InternalWorkBucketCode: getEnv("PAYROLL_INTERNAL_WORK_BUCKET", "INTERNAL"),
	}

	config.CORS = CORSConfig{
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Payroll.ToleranceHours.IsNegative() {
		return fmt.Errorf("PAYROLL_TOLERANCE_HOURS must be non-negative")
	}
	if c.Payroll.ActivityThreshold.IsNegative() || c.Payroll.ActivityThreshold.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("PAYROLL_ACTIVITY_THRESHOLD must be between 0 and 100")
	}
	if !c.Payroll.HoursPerDay.IsPositive() {
		return fmt.Errorf("PAYROLL_HOURS_PER_DAY must be positive")
	}
	if strings.TrimSpace(c.Payroll.TimeOffBucketCode) == "" {
		return fmt.Errorf("PAYROLL_TIME_OFF_BUCKET is required")
	}
	if strings.TrimSpace(c.Payroll.InternalWorkBucketCode) == "" {
		return fmt.Errorf("PAYROLL_INTERNAL_WORK_BUCKET is required")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env, fallback string) []string {
	value := getEnv(env, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func getEnvDecimal(key, fallback string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(getEnv(key, fallback))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
