package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for startup checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Resolved pairing requests older than this are deleted by the cleanup job.
const PairingRequestRetention = 90 * 24 * time.Hour

// Default rate limiting
const DefaultRateLimitPerMin = 60

// Session validation bounds
const (
	MinSessionDurationMinutes = 15
	MaxSessionDurationMinutes = 480
	MaxScheduleAdvanceDays    = 365
	MinRatingValue            = 1
	MaxRatingValue            = 10
)
