package env

import "os"

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// LogFormat reports the configured log encoding, "json" unless overridden.
func LogFormat() string {
	return Get("MARKETREPORTS_LOG_FORMAT", "json")
}
