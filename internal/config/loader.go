package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.AnalysisTimeout <= 0 {
		errs = append(errs, "SERVER_ANALYSIS_TIMEOUT must be positive")
	}

	// Provider validation
	if c.Provider.Model == "" {
		errs = append(errs, "GEMINI_MODEL must not be empty")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("GEMINI_TEMPERATURE (%g) must be 0-2", c.Provider.Temperature))
	}
	if c.Provider.MaxConcurrent <= 0 {
		errs = append(errs, "GEMINI_MAX_CONCURRENT must be positive")
	}
	if c.Provider.MaxAttempts <= 0 {
		errs = append(errs, "GEMINI_MAX_ATTEMPTS must be positive")
	}
	if c.Provider.RetryDelay < 0 {
		errs = append(errs, "GEMINI_RETRY_DELAY must be non-negative")
	}

	// Media validation
	if c.Media.MaxFileSize <= 0 {
		errs = append(errs, "MEDIA_MAX_FILE_SIZE must be positive")
	}
	if c.Media.FrameCount <= 0 {
		errs = append(errs, "MEDIA_FRAME_COUNT must be positive")
	}
	if c.Media.ImageMaxWidth <= 0 {
		errs = append(errs, "MEDIA_IMAGE_MAX_WIDTH must be positive")
	}
	if c.Media.ImageQuality < 1 || c.Media.ImageQuality > 100 {
		errs = append(errs, fmt.Sprintf("MEDIA_IMAGE_QUALITY (%d) must be 1-100", c.Media.ImageQuality))
	}

	// Blob validation
	switch strings.ToLower(c.Blob.Backend) {
	case "local":
		if c.Blob.Dir == "" {
			errs = append(errs, "BLOB_DIR is required for the local backend")
		}
	case "cloudinary":
		if c.Blob.CloudinaryCloudName == "" || c.Blob.CloudinaryAPIKey == "" || c.Blob.CloudinaryAPISecret == "" {
			errs = append(errs, "CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for the cloudinary backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("BLOB_BACKEND (%q) must be one of: local, cloudinary", c.Blob.Backend))
	}

	// Portal validation
	if c.Portal.URL != "" {
		if c.Portal.MaxConns < c.Portal.MinConns {
			errs = append(errs, fmt.Sprintf("PORTAL_DB_MAX_CONNS (%d) must be >= PORTAL_DB_MIN_CONNS (%d)",
				c.Portal.MaxConns, c.Portal.MinConns))
		}
		if c.Portal.MaxConns <= 0 {
			errs = append(errs, "PORTAL_DB_MAX_CONNS must be positive")
		}
	}

	// Session validation
	if c.Session.TTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		errs = append(errs, "SESSION_MAX must be positive")
	}
	if c.Session.CleanupInterval <= 0 {
		errs = append(errs, "SESSION_CLEANUP_INTERVAL must be positive")
	}

	// Analysis validation
	if c.Analysis.MaxConcurrent <= 0 {
		errs = append(errs, "ANALYSIS_MAX_CONCURRENT must be positive")
	}
	if c.Analysis.MaxWaitTime <= 0 {
		errs = append(errs, "ANALYSIS_MAX_WAIT_TIME must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// API keys, secrets and database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Provider: {APIKey: %s, Model: %q, Fallbacks: %v, MaxConcurrent: %d}, ",
		mask(c.Provider.APIKey), c.Provider.Model, c.Provider.Fallbacks, c.Provider.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Media: {MaxFileSize: %d, FrameCount: %d, ImageMaxWidth: %d}, ",
		c.Media.MaxFileSize, c.Media.FrameCount, c.Media.ImageMaxWidth))
	b.WriteString(fmt.Sprintf("Blob: {Backend: %q, CloudinaryAPISecret: %s}, ",
		c.Blob.Backend, mask(c.Blob.CloudinaryAPISecret)))
	b.WriteString(fmt.Sprintf("Portal: {URL: %s}, ", mask(c.Portal.URL)))
	b.WriteString(fmt.Sprintf("Analysis: {MaxConcurrent: %d}, ", c.Analysis.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
