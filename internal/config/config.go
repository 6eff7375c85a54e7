package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Dialogue ceilings and timers. These are design constants with env
	// overrides for load tests; see the defaults in Load.
	CallDurationCeiling time.Duration
	HoldDurationCeiling time.Duration
	ListenTimeout       time.Duration
	HoldPause           time.Duration
	RetryShortDelay     time.Duration
	RetryDefaultDelay   time.Duration
	MaxDeclines         int
	SessionIdleTTL      time.Duration

	SMSProvider              string
	TelnyxAPIKey             string
	TelnyxMessagingProfileID string
	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioFromNumber         string

	GoogleMapsAPIKey string

	AWSRegion        string
	BedrockModelID   string
	GeminiAPIKey     string
	GeminiModelID    string
	FallbackDisabled bool

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	UseRedisStore bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		CallDurationCeiling: getEnvAsDuration("CALL_DURATION_CEILING", 3*time.Minute),
		HoldDurationCeiling: getEnvAsDuration("HOLD_DURATION_CEILING", 90*time.Second),
		ListenTimeout:       getEnvAsDuration("LISTEN_TIMEOUT", 5*time.Second),
		HoldPause:           getEnvAsDuration("HOLD_PAUSE", 15*time.Second),
		RetryShortDelay:     getEnvAsDuration("RETRY_SHORT_DELAY", 5*time.Minute),
		RetryDefaultDelay:   getEnvAsDuration("RETRY_DEFAULT_DELAY", 15*time.Minute),
		MaxDeclines:         getEnvAsInt("MAX_DECLINES", 3),
		SessionIdleTTL:      getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),

		SMSProvider:              strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "auto"))),
		TelnyxAPIKey:             getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingProfileID: getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		TwilioAccountSID:         getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:          getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:         getEnv("TWILIO_FROM_NUMBER", ""),

		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),

		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		FallbackDisabled: getEnvAsBool("FALLBACK_DISABLED", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		UseRedisStore: getEnvAsBool("USE_REDIS_STORE", false),
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
