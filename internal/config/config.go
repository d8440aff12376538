package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// InsecureSecretKey is used when SECRET_KEY is unset. Never rely on it outside development.
const InsecureSecretKey = "your_secret_key"

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Session signing and storage
	SecretKey         string
	SessionBackend    string
	SessionTTL        time.Duration
	SessionCookieName string
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool

	// Record store
	StoreBackend       string
	DoctorsTable       string
	PatientsTable      string
	AppointmentsTable  string
	PrescriptionsTable string
	AutoCreateTables   bool

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Booking notifications
	NotifyProvider string
	SNSTopicARN    string
	NotifyQueueURL string
	NotifyWorkers  int
	NotifyBuffer   int
	NotifyTimeout  time.Duration

	// Email notification providers
	SESFromEmail      string
	SendGridAPIKey    string
	SendGridFromEmail string
	EmailFromName     string

	// Credential endpoint throttling
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SecretKey:         getEnv("SECRET_KEY", InsecureSecretKey),
		SessionBackend:    strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionTTL:        getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "medtrack_session"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),

		StoreBackend:       strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "dynamodb"))),
		DoctorsTable:       getEnv("DOCTORS_TABLE", "MedTrackDoctors"),
		PatientsTable:      getEnv("PATIENTS_TABLE", "MedTrackPatients"),
		AppointmentsTable:  getEnv("APPOINTMENTS_TABLE", "MedTrackAppointments"),
		PrescriptionsTable: getEnv("PRESCRIPTIONS_TABLE", "MedTrackPrescriptions"),
		AutoCreateTables:   getEnvAsBool("AUTO_CREATE_TABLES", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		NotifyProvider: strings.ToLower(strings.TrimSpace(getEnv("NOTIFY_PROVIDER", "auto"))),
		SNSTopicARN:    getEnv("SNS_TOPIC_ARN", ""),
		NotifyQueueURL: getEnv("NOTIFY_QUEUE_URL", ""),
		NotifyWorkers:  getEnvAsInt("NOTIFY_WORKERS", 2),
		NotifyBuffer:   getEnvAsInt("NOTIFY_BUFFER", 64),
		NotifyTimeout:  getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),

		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "MedTrack"),

		AuthRateLimitRPS:   getEnvAsFloat("AUTH_RATE_LIMIT_RPS", 1),
		AuthRateLimitBurst: getEnvAsInt("AUTH_RATE_LIMIT_BURST", 10),
	}
}

// UsesInsecureSecret reports whether the signing key is the built-in fallback.
func (c *Config) UsesInsecureSecret() bool {
	return c.SecretKey == InsecureSecretKey
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ResolvedNotifyProvider maps "auto" to a concrete provider: sns when a topic is
// configured, otherwise log.
func (c *Config) ResolvedNotifyProvider() string {
	if c.NotifyProvider != "" && c.NotifyProvider != "auto" {
		return c.NotifyProvider
	}
	if strings.TrimSpace(c.SNSTopicARN) != "" {
		return "sns"
	}
	return "log"
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
