package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	SupabaseJWTSecret  string
	CORSAllowedOrigins []string
	ShopID             string
	ShopTimezone       string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Event delivery: "log", "sqs" or "kafka"
	EventTransport     string
	EventsQueueURL     string
	KafkaBrokers       []string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	PublicRateLimitRPS   float64
	PublicRateLimitBurst int

	// Scheduling rules
	MinBookingLeadTime    time.Duration
	MaxBookingAdvanceDays int
	SlotInterval          time.Duration
	DefaultBufferMinutes  int
	LunchBreakStart       string
	LunchBreakEnd         string
	MinAppointmentMinutes int
	MaxAppointmentMinutes int
	MaxDaysToCheck        int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		ShopID:             getEnv("SHOP_ID", "main"),
		ShopTimezone:       getEnv("SHOP_TIMEZONE", "UTC"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EventTransport:     strings.ToLower(strings.TrimSpace(getEnv("EVENT_TRANSPORT", "log"))),
		EventsQueueURL:     getEnv("EVENTS_QUEUE_URL", ""),
		KafkaBrokers:       getEnvAsList("KAFKA_BROKERS", nil),
		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 50),

		PublicRateLimitRPS:   getEnvAsFloat("PUBLIC_RATE_LIMIT_RPS", 2),
		PublicRateLimitBurst: getEnvAsInt("PUBLIC_RATE_LIMIT_BURST", 10),

		MinBookingLeadTime:    getEnvAsDuration("MIN_BOOKING_LEAD_TIME", time.Hour),
		MaxBookingAdvanceDays: getEnvAsInt("MAX_BOOKING_ADVANCE_DAYS", 90),
		SlotInterval:          getEnvAsDuration("SLOT_INTERVAL", 30*time.Minute),
		DefaultBufferMinutes:  getEnvAsInt("DEFAULT_BUFFER_MINUTES", 15),
		LunchBreakStart:       getEnv("LUNCH_BREAK_START", "12:00"),
		LunchBreakEnd:         getEnv("LUNCH_BREAK_END", "13:00"),
		MinAppointmentMinutes: getEnvAsInt("MIN_APPOINTMENT_MINUTES", 30),
		MaxAppointmentMinutes: getEnvAsInt("MAX_APPOINTMENT_MINUTES", 480),
		MaxDaysToCheck:        getEnvAsInt("MAX_DAYS_TO_CHECK", 30),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
