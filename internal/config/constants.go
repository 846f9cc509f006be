package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	OAuthHTTPTimeout      = 10 * time.Second
	ServerShutdownTimeout = 30 * time.Second
	ServerReadTimeout     = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days

	// One-time token lifetimes
	DefaultStateTTL           = 10 * time.Minute
	DefaultMobileTokenTTL     = 5 * time.Minute
	DefaultTokenSweepInterval = time.Minute

	// Rate limiter entries idle this long are evicted
	RateLimiterIdleTTL = 10 * time.Minute
)

// Size and threshold constants
const (
	DefaultMaxUploadBytes     = 10 << 20 // 10 MiB
	DefaultSkinRatioThreshold = 0.4
	DefaultInspectMaxPixels   = 40_000_000
	DefaultRateLimitPerMinute = 20
	DefaultRateLimitBurst     = 5

	// Listing defaults for GET /issues
	DefaultIssueListLimit = 100
	MaxIssueListLimit     = 500

	// CommunityFeedLimit caps GET /safety/community
	CommunityFeedLimit = 50
)

// Session configuration constants
const (
	// Session settings
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	// Session name
	SessionName = "campusfix-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data: https:; media-src 'self' blob: data:;"
)
