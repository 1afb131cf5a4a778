// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the engagement service.
type Config struct {
	Port                 string
	DatabaseURL          string
	RedisURL             string
	MonitoringUserID     string // internal recipient copied on every acceptance event
	SweepIntervalMinutes int    // how often the notification outbox sweeper fires
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	monitoringID := os.Getenv("MONITORING_USER_ID")
	if monitoringID == "" {
		return nil, fmt.Errorf("MONITORING_USER_ID is required")
	}

	interval := 5
	if s := os.Getenv("NOTIFY_SWEEP_INTERVAL_MINUTES"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("NOTIFY_SWEEP_INTERVAL_MINUTES must be a positive integer, got %q", s)
		}
		interval = v
	}

	port := os.Getenv("ENGAGEMENT_PORT")
	if port == "" {
		port = "8083"
	}

	return &Config{
		Port:                 port,
		DatabaseURL:          dbURL,
		RedisURL:             redisURL,
		MonitoringUserID:     monitoringID,
		SweepIntervalMinutes: interval,
	}, nil
}
