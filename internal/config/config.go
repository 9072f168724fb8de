// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Media    MediaConfig
	Blob     BlobConfig
	Portal   PortalConfig
	Session  SessionConfig
	Analysis AnalysisConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, analyses can be slow)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-analysis requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// AnalysisTimeout bounds an analyze request, video frames included (default: 10m)
	AnalysisTimeout time.Duration `env:"SERVER_ANALYSIS_TIMEOUT" default:"10m"`
}

// ProviderConfig holds generative model settings.
type ProviderConfig struct {
	// APIKey authenticates against the Gemini API. Analyses fail without it.
	APIKey string `env:"GOOGLE_API_KEY" envAlt:"GEMINI_API_KEY"`

	// BaseURL is the API root (default: https://generativelanguage.googleapis.com)
	BaseURL string `env:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`

	// Model is tried first (default: gemini-1.5-flash)
	Model string `env:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// Fallbacks are tried in order when a model is not found
	Fallbacks []string `env:"GEMINI_FALLBACK_MODELS" default:"gemini-2.0-flash-lite,gemini-2.0-flash"`

	// Temperature is the sampling temperature (default: 0.2)
	Temperature float64 `env:"GEMINI_TEMPERATURE" default:"0.2"`

	// MaxOutputTokens caps the answer length (default: 800)
	MaxOutputTokens int `env:"GEMINI_MAX_OUTPUT_TOKENS" default:"800"`

	// MaxConcurrent is how many model requests may be in flight (default: 2)
	MaxConcurrent int `env:"GEMINI_MAX_CONCURRENT" default:"2"`

	// MaxAttempts is how often a rate-limited request is tried (default: 3)
	MaxAttempts int `env:"GEMINI_MAX_ATTEMPTS" default:"3"`

	// RetryDelay is the wait after a 429 (default: 30s)
	RetryDelay time.Duration `env:"GEMINI_RETRY_DELAY" default:"30s"`
}

// MediaConfig holds upload and media preparation settings.
type MediaConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 100MB)
	MaxFileSize int64 `env:"MEDIA_MAX_FILE_SIZE" default:"104857600"`

	// FrameCount is how many frames are sampled from a video (default: 5)
	FrameCount int `env:"MEDIA_FRAME_COUNT" default:"5"`

	// ImageMaxWidth is the width images are scaled down to (default: 768)
	ImageMaxWidth int `env:"MEDIA_IMAGE_MAX_WIDTH" default:"768"`

	// ImageQuality is the JPEG re-encode quality (default: 60)
	ImageQuality int `env:"MEDIA_IMAGE_QUALITY" default:"60"`

	// AutoCrop trims near-white borders before scaling (default: false)
	AutoCrop bool `env:"MEDIA_AUTO_CROP" default:"false"`

	// FFmpegPath and FFprobePath locate the sampling binaries (default: from PATH)
	FFmpegPath  string `env:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" default:"ffprobe"`
}

// BlobConfig selects and configures temporary media storage.
type BlobConfig struct {
	// Backend is local or cloudinary (default: local)
	Backend string `env:"BLOB_BACKEND" default:"local"`

	// Dir is where the local backend writes files (default: ./data/blobs)
	Dir string `env:"BLOB_DIR" default:"./data/blobs"`

	// MaxAge is how long local blobs are kept (default: 24h)
	MaxAge time.Duration `env:"BLOB_MAX_AGE" default:"24h"`

	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`

	// CloudinaryFolder is the upload folder (default: gemini-temp)
	CloudinaryFolder string `env:"CLOUDINARY_FOLDER" default:"gemini-temp"`
}

// PortalConfig holds the downstream portal database settings. Syncs are
// only logged when URL is empty.
type PortalConfig struct {
	URL string `env:"PORTAL_DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"PORTAL_DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"PORTAL_DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"PORTAL_DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"PORTAL_DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SessionConfig holds in-memory session settings.
type SessionConfig struct {
	// TTL is how long an idle session is kept (default: 1h)
	TTL time.Duration `env:"SESSION_TTL" default:"1h"`

	// MaxSessions caps live sessions (default: 1000)
	MaxSessions int `env:"SESSION_MAX" default:"1000"`

	// CleanupInterval is how often expired sessions and blobs are swept (default: 5m)
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" default:"5m"`
}

// AnalysisConfig bounds concurrent analyses.
type AnalysisConfig struct {
	// MaxConcurrent is the maximum number of parallel analyses (default: 2)
	MaxConcurrent int `env:"ANALYSIS_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for an analysis slot (default: 30s)
	MaxWaitTime time.Duration `env:"ANALYSIS_MAX_WAIT_TIME" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// AnalyzeLimit is requests per minute for the analyze endpoint (default: 10)
	AnalyzeLimit int `env:"RATE_LIMIT_ANALYZE" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
