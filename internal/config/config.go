package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	// Civil calendar used for day/month bucketing. Fixed offset, no DST
	// adjustment (intentional for Brazil post-2019).
	UTCOffsetMinutes int
	TimezoneLabel    string

	// Office window used by the response-time calculator.
	BusinessHoursStart string
	BusinessHoursEnd   string

	// Substrings in message tool_data marking an automation-sent reply.
	AutomationMarkers []string

	// Response cycles slower than this are treated as abandoned threads.
	ResponseDiscardMinutes int

	// Bounds for the day-by-day trend window.
	TrendMinDays int
	TrendMaxDays int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:                    getEnv("ENV", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		UTCOffsetMinutes:       getEnvAsInt("UTC_OFFSET_MINUTES", -180),
		TimezoneLabel:          getEnv("TIMEZONE_LABEL", "America/Sao_Paulo"),
		BusinessHoursStart:     getEnv("BUSINESS_HOURS_START", "08:00"),
		BusinessHoursEnd:       getEnv("BUSINESS_HOURS_END", "18:00"),
		AutomationMarkers:      getEnvAsList("AUTOMATION_MARKERS", []string{"automation", "macro", "funnel", "pause"}),
		ResponseDiscardMinutes: getEnvAsInt("RESPONSE_DISCARD_MINUTES", 1440),
		TrendMinDays:           getEnvAsInt("TREND_MIN_DAYS", 7),
		TrendMaxDays:           getEnvAsInt("TREND_MAX_DAYS", 14),
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

// getEnvAsList retrieves a comma-separated environment variable or returns a default value
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(p)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
