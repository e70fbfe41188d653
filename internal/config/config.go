package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration (audit trail only)
	Database DatabaseConfig

	// Marketplace platform API configuration
	Marketplace MarketplaceConfig

	// Availability plan editor configuration
	Availability AvailabilityConfig

	// Booking lifecycle configuration
	Booking BookingConfig

	// Line item configuration
	Pricing PricingConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// MarketplaceConfig holds credentials and endpoints of the marketplace platform
type MarketplaceConfig struct {
	BaseURL                 string
	ClientID                string // Marketplace API client (user + trusted calls)
	ClientSecret            string // Required for trusted token exchange
	IntegrationClientID     string // Integration API client (profile updates)
	IntegrationClientSecret string
	HTTPTimeout             time.Duration
}

// AvailabilityConfig holds the process-wide availability editor settings.
// Every value here is passed explicitly into the availability components.
type AvailabilityConfig struct {
	CandidateStart   string // First hour label offered, e.g. "00:00"
	CandidateEnd     string // Last hour label offered, e.g. "23:00"
	Durations        []int  // Duration options in hours shown to hosts
	DefaultStartTime string // Default range used to seed empty days
	DefaultEndTime   string
	Timezone         string // Fallback plan timezone
}

// BookingConfig holds booking lifecycle settings
type BookingConfig struct {
	RefundWindowDays int
}

// PricingConfig holds line item settings
type PricingConfig struct {
	FirstBookingDiscountPercent int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRequestLog   bool
	EnableAuditLog     bool
	AuditRetentionDays int
}

var hourLabelPattern = regexp.MustCompile(`^([01]\d|2[0-3]):00$`)

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := LoadUnvalidated()

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadUnvalidated reads the configuration without checking it. Tools that only need
// part of it validate that part themselves.
func LoadUnvalidated() *Config {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Marketplace: MarketplaceConfig{
			BaseURL:                 getEnv("MARKETPLACE_API_BASE_URL", "https://flex-api.sharetribe.com"),
			ClientID:                getEnv("MARKETPLACE_CLIENT_ID", ""),
			ClientSecret:            getEnv("MARKETPLACE_CLIENT_SECRET", ""),
			IntegrationClientID:     getEnv("MARKETPLACE_INTEGRATION_CLIENT_ID", ""),
			IntegrationClientSecret: getEnv("MARKETPLACE_INTEGRATION_CLIENT_SECRET", ""),
			HTTPTimeout:             time.Duration(getEnvAsInt("MARKETPLACE_HTTP_TIMEOUT", 30)) * time.Second,
		},
		Availability: AvailabilityConfig{
			CandidateStart:   getEnv("AVAILABILITY_CANDIDATE_START", "00:00"),
			CandidateEnd:     getEnv("AVAILABILITY_CANDIDATE_END", "23:00"),
			Durations:        getEnvAsIntSlice("AVAILABILITY_DURATIONS", []int{1, 2, 3, 4}),
			DefaultStartTime: getEnv("AVAILABILITY_DEFAULT_START", "00:00"),
			DefaultEndTime:   getEnv("AVAILABILITY_DEFAULT_END", "23:00"),
			Timezone:         getEnv("AVAILABILITY_TIMEZONE", "Etc/UTC"),
		},
		Booking: BookingConfig{
			RefundWindowDays: getEnvAsInt("BOOKING_REFUND_WINDOW_DAYS", 2),
		},
		Pricing: PricingConfig{
			FirstBookingDiscountPercent: getEnvAsInt("PRICING_FIRST_BOOKING_DISCOUNT_PERCENT", 0),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			EnableRequestLog:   getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:     getEnvAsBool("ENABLE_AUDIT_LOGGING", false),
			AuditRetentionDays: getEnvAsInt("AUDIT_RETENTION_DAYS", 90),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Marketplace.BaseURL == "" {
		return fmt.Errorf("MARKETPLACE_API_BASE_URL is required")
	}
	if c.Marketplace.ClientID == "" || c.Marketplace.ClientSecret == "" {
		return fmt.Errorf("MARKETPLACE_CLIENT_ID and MARKETPLACE_CLIENT_SECRET are required")
	}
	if c.Marketplace.IntegrationClientID == "" || c.Marketplace.IntegrationClientSecret == "" {
		return fmt.Errorf("MARKETPLACE_INTEGRATION_CLIENT_ID and MARKETPLACE_INTEGRATION_CLIENT_SECRET are required")
	}

	if err := c.Availability.Validate(); err != nil {
		return err
	}

	if c.Booking.RefundWindowDays < 0 {
		return fmt.Errorf("BOOKING_REFUND_WINDOW_DAYS must not be negative")
	}

	if c.Pricing.FirstBookingDiscountPercent < 0 || c.Pricing.FirstBookingDiscountPercent > 100 {
		return fmt.Errorf("PRICING_FIRST_BOOKING_DISCOUNT_PERCENT must be between 0 and 100")
	}

	// The audit trail is the only thing this service persists
	if c.Security.EnableAuditLog && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_AUDIT_LOGGING is true")
	}

	return nil
}

// Validate checks the availability settings. Durations of zero hours are rejected here
// so the slot filter never has to.
func (a AvailabilityConfig) Validate() error {
	for _, label := range []string{a.CandidateStart, a.CandidateEnd, a.DefaultStartTime, a.DefaultEndTime} {
		if !hourLabelPattern.MatchString(label) {
			return fmt.Errorf("invalid hour label %q (expected HH:00)", label)
		}
	}
	if a.CandidateStart > a.CandidateEnd {
		return fmt.Errorf("AVAILABILITY_CANDIDATE_START must not be after AVAILABILITY_CANDIDATE_END")
	}
	if a.DefaultStartTime >= a.DefaultEndTime {
		return fmt.Errorf("AVAILABILITY_DEFAULT_START must be before AVAILABILITY_DEFAULT_END")
	}

	if len(a.Durations) == 0 {
		return fmt.Errorf("AVAILABILITY_DURATIONS must list at least one duration")
	}
	for _, d := range a.Durations {
		if d <= 0 || d > 23 {
			return fmt.Errorf("invalid duration %d (must be between 1 and 23 hours)", d)
		}
	}

	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("invalid AVAILABILITY_TIMEZONE %q: %w", a.Timezone, err)
	}

	return nil
}

// AllowsDuration reports whether d is one of the configured duration options
func (a AvailabilityConfig) AllowsDuration(d int) bool {
	for _, allowed := range a.Durations {
		if allowed == d {
			return true
		}
	}
	return false
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// getEnvAsIntSlice parses a comma-separated list of integers. Unparseable entries
// are kept as 0 so Validate reports them instead of silently dropping them.
func getEnvAsIntSlice(key string, defaultValue []int) []int {
	parts := getEnvAsSlice(key, nil)
	if len(parts) == 0 {
		return defaultValue
	}
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		value, err := strconv.Atoi(p)
		if err != nil {
			log.Printf("Invalid integer %q in %s", p, key)
		}
		result = append(result, value)
	}
	return result
}
