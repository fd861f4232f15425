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

// Database ping timeout for start-up and health checks
const DBPingTimeout = 5 * time.Second

const (
	RedisConnectTimeout = 5 * time.Second
	MigrateTimeout      = 30 * time.Second
)

// Background job intervals
const CleanupJobInterval = time.Hour

// Conversation settings
const (
	// SegmentGap is the idle time after which an inbound message starts a
	// fresh conversational segment.
	SegmentGap = 10 * time.Minute
	// SessionLockWait bounds how long a request waits for another request
	// on the same user to finish.
	SessionLockWait = 15 * time.Second
)

// Outbound collaborator timeouts
const (
	AssistantTimeout = 15 * time.Second
	MessagingTimeout = 10 * time.Second
	PaymentTimeout   = 15 * time.Second
	SMSTimeout       = 10 * time.Second
)

// Confirmation code length for transaction confirm/appeal
const ConfirmationCodeLength = 6
