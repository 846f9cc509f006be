// Package config handles application configuration loading from YAML and environment variables.
package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "campusfix/internal/utils"

	"gopkg.in/yaml.v3"
)

// Media backends selectable through features.media_backend
const (
	MediaBackendLocal    = "local"
	MediaBackendExternal = "external"
)

// Token cache backends selectable through token_cache.backend
const (
	TokenCacheMemory = "memory"
	TokenCacheRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// OAuth providers, keyed by provider name in the API (google, github)
	OAuth OAuthConfig `json:"oauth" yaml:"oauth"`

	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Features FeaturesConfig `json:"features" yaml:"features"`

	Media      MediaConfig      `json:"media" yaml:"media"`
	Inspection InspectionConfig `json:"inspection" yaml:"inspection"`
	TokenCache TokenCacheConfig `json:"token_cache" yaml:"token_cache"`
	RateLimit  RateLimitConfig  `json:"rate_limit" yaml:"rate_limit"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Email Configuration
	Email EmailConfig `json:"email" yaml:"email"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	// FrontendURL is where web logins land after the OAuth callback.
	FrontendURL string `json:"frontend_url" yaml:"frontend_url"`
	// BaseURL is the public URL of this backend, used to build OAuth redirect URLs.
	BaseURL string `json:"base_url" yaml:"base_url"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honoured.
	// Empty means the peer address is always the client IP.
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
}

// OAuthProviderConfig holds the client credentials for one identity provider
type OAuthProviderConfig struct {
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	// RedirectURL defaults to {server.base_url}/auth/callback/{provider}
	RedirectURL string `json:"redirect_url" yaml:"redirect_url"`
}

// Enabled reports whether the provider has credentials configured
func (p OAuthProviderConfig) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != ""
}

// OAuthConfig lists the supported identity providers
type OAuthConfig struct {
	Google OAuthProviderConfig `json:"google" yaml:"google"`
	GitHub OAuthProviderConfig `json:"github" yaml:"github"`
}

// AuthConfig represents authentication-related configuration
type AuthConfig struct {
	// AdminEmails may review safety reports and change their status
	AdminEmails []string `json:"admin_emails" yaml:"admin_emails"`
	// MobileRedirectURL receives ?token= after a mobile login, e.g. campusfix://auth
	MobileRedirectURL string        `json:"mobile_redirect_url" yaml:"mobile_redirect_url"`
	StateTTL          time.Duration `json:"state_ttl" yaml:"state_ttl"`
	MobileTokenTTL    time.Duration `json:"mobile_token_ttl" yaml:"mobile_token_ttl"`
}

// FeaturesConfig holds the deployment-variant switches
type FeaturesConfig struct {
	RequireAuthForIssues bool   `json:"require_auth_for_issues" yaml:"require_auth_for_issues"`
	MediaBackend         string `json:"media_backend" yaml:"media_backend"`
}

// MediaConfig configures where uploaded photos go
type MediaConfig struct {
	LocalDir       string              `json:"local_dir" yaml:"local_dir"`
	LocalURLPrefix string              `json:"local_url_prefix" yaml:"local_url_prefix"`
	MaxUploadBytes int64               `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	External       ExternalMediaConfig `json:"external" yaml:"external"`
}

// ExternalMediaConfig configures the S3 compatible object store
type ExternalMediaConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl"`
	Region          string `json:"region" yaml:"region"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	SafetyBucket    string `json:"safety_bucket" yaml:"safety_bucket"`
	PublicURL       string `json:"public_url" yaml:"public_url"`
}

// InspectionConfig tunes the skin-tone heuristic applied to safety media
type InspectionConfig struct {
	SkinRatioThreshold float64 `json:"skin_ratio_threshold" yaml:"skin_ratio_threshold"`
	// MaxPixels refuses images whose declared width*height is larger
	MaxPixels int64 `json:"max_pixels" yaml:"max_pixels"`
}

// TokenCacheConfig selects the one-time token cache backend
type TokenCacheConfig struct {
	Backend       string           `json:"backend" yaml:"backend"`
	SweepInterval time.Duration    `json:"sweep_interval" yaml:"sweep_interval"`
	Redis         RedisCacheConfig `json:"redis" yaml:"redis"`
}

// RedisCacheConfig holds connection settings for the redis token cache
type RedisCacheConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// RateLimitConfig throttles anonymous write endpoints per client IP
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int `json:"burst" yaml:"burst"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "campusfix-backend"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
}

// EmailConfig represents email/SMTP configuration
type EmailConfig struct {
	SMTP    SMTPConfig `json:"smtp" yaml:"smtp"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
}

// SMTPConfig represents SMTP server configuration
type SMTPConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	FromAddress string `json:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" yaml:"from_name"`
}

// IsAdmin reports whether the e-mail is on the admin allow-list.
// Comparison is case-insensitive and ignores surrounding whitespace.
func (c *Config) IsAdmin(email string) bool {
	normalized := contextutils.NormalizeEmail(email)
	if normalized == "" {
		return false
	}
	for _, admin := range c.Auth.AdminEmails {
		if contextutils.NormalizeEmail(admin) == normalized {
			return true
		}
	}
	return false
}

// OAuthProvider returns the credentials for a provider name and whether it is enabled
func (c *Config) OAuthProvider(name string) (OAuthProviderConfig, bool) {
	var p OAuthProviderConfig
	switch strings.ToLower(name) {
	case "google":
		p = c.OAuth.Google
	case "github":
		p = c.OAuth.GitHub
	default:
		return p, false
	}
	return p, p.Enabled()
}

// OAuthRedirectURL returns the callback URL registered with the provider
func (c *Config) OAuthRedirectURL(name string) string {
	if p, _ := c.OAuthProvider(name); p.RedirectURL != "" {
		return p.RedirectURL
	}
	return strings.TrimRight(c.Server.BaseURL, "/") + "/auth/callback/" + strings.ToLower(name)
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	// Load config from YAML file
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.applyDefaults()

	// Override with environment variables
	config.overrideFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Default returns a configuration populated only with defaults
func Default() *Config {
	c := baseConfig()
	c.applyDefaults()
	return c
}

// baseConfig holds the defaults whose zero value is meaningful, so YAML
// is decoded on top of it instead of being patched afterwards.
func baseConfig() *Config {
	return &Config{
		Features: FeaturesConfig{RequireAuthForIssues: true},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: DefaultRateLimitPerMinute,
			Burst:             DefaultRateLimitBurst,
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.FrontendURL == "" {
		c.Server.FrontendURL = "http://localhost:3000"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:" + c.Server.Port
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
	if c.Auth.StateTTL == 0 {
		c.Auth.StateTTL = DefaultStateTTL
	}
	if c.Auth.MobileTokenTTL == 0 {
		c.Auth.MobileTokenTTL = DefaultMobileTokenTTL
	}
	if c.Auth.MobileRedirectURL == "" {
		c.Auth.MobileRedirectURL = "campusfix://auth"
	}
	if c.Features.MediaBackend == "" {
		c.Features.MediaBackend = MediaBackendLocal
	}
	if c.Media.LocalDir == "" {
		c.Media.LocalDir = "static/images"
	}
	if c.Media.LocalURLPrefix == "" {
		c.Media.LocalURLPrefix = "/static/images"
	}
	if c.Media.MaxUploadBytes == 0 {
		c.Media.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Inspection.SkinRatioThreshold == 0 {
		c.Inspection.SkinRatioThreshold = DefaultSkinRatioThreshold
	}
	if c.Inspection.MaxPixels == 0 {
		c.Inspection.MaxPixels = DefaultInspectMaxPixels
	}
	if c.TokenCache.Backend == "" {
		c.TokenCache.Backend = TokenCacheMemory
	}
	if c.TokenCache.SweepInterval == 0 {
		c.TokenCache.SweepInterval = DefaultTokenSweepInterval
	}
	if c.TokenCache.Redis.Prefix == "" {
		c.TokenCache.Redis.Prefix = "campusfix:token:"
	}
	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = "campusfix-backend"
	}
	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
	if c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
	if c.Email.SMTP.Port == 0 {
		c.Email.SMTP.Port = 587
	}
}

// Validate checks the values that cannot be fixed up with defaults
func (c *Config) Validate() error {
	for _, email := range c.Auth.AdminEmails {
		if !contextutils.IsValidEmail(strings.TrimSpace(email)) {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid admin email %q", email)
		}
	}

	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "server.trusted_proxies entry %q is not an IP or CIDR", proxy)
		}
	}

	switch c.Features.MediaBackend {
	case MediaBackendLocal:
	case MediaBackendExternal:
		if c.Media.External.Endpoint == "" || c.Media.External.Bucket == "" {
			return contextutils.WrapError(contextutils.ErrMissingRequired, "media.external.endpoint and media.external.bucket are required for the external media backend")
		}
	default:
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown media backend %q", c.Features.MediaBackend)
	}

	switch c.TokenCache.Backend {
	case TokenCacheMemory:
	case TokenCacheRedis:
		if c.TokenCache.Redis.Addr == "" {
			return contextutils.WrapError(contextutils.ErrMissingRequired, "token_cache.redis.addr is required for the redis token cache")
		}
	default:
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown token cache backend %q", c.TokenCache.Backend)
	}

	if c.Inspection.SkinRatioThreshold < 0 || c.Inspection.SkinRatioThreshold > 1 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "inspection.skin_ratio_threshold must be within [0, 1], got %v", c.Inspection.SkinRatioThreshold)
	}
	if c.Inspection.MaxPixels < 0 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "inspection.max_pixels must not be negative, got %d", c.Inspection.MaxPixels)
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "rate_limit values must not be negative")
	}

	return nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		// Get the yaml tag for the field
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.Split(yamlTag, ",")[0]

		// Convert yaml tag to environment variable name
		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		// Durations accept Go syntax ("10m") as well as plain seconds
		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				} else if secs, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(int64(time.Duration(secs) * time.Second))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if uintVal, err := strconv.ParseUint(envVal, 10, 64); err == nil {
					field.SetUint(uintVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like CORS_ORIGINS or AUTH_ADMIN_EMAILS)
				if field.Type().Elem().Kind() == reflect.String {
					parts := strings.Split(envVal, ",")
					slice := make([]string, 0, len(parts))
					for _, p := range parts {
						if p = strings.TrimSpace(p); p != "" {
							slice = append(slice, p)
						}
					}
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			// Recursively process nested structs with the field name as prefix
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			// Handle pointer to struct
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by CAMPUSFIX_CONFIG_FILE or config.yaml
func loadConfigWithOverrides() (result0 *Config, err error) {
	// Try to load from environment variable first
	if envPath := os.Getenv("CAMPUSFIX_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	// If no environment variable is set, try default config.yaml
	config, err := loadConfigFromFile("config.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return baseConfig(), nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := baseConfig()
	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, err
	}

	return config, nil
}
