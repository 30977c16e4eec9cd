package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

// Credential variables, checked in order after SQLASSIST_INFERENCE_API_KEY.
var credentialKeys = []string{"HUGGINGFACE_API_KEY", "HUGGINGFACE_API_TOKEN"}

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Inference     InferenceConfig
	Conversion    ConversionConfig
	Session       SessionConfig
	History       HistoryConfig
	Library       LibraryConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
}

type InferenceConfig struct {
	Backend           string
	TextBaseURL       string
	ChatBaseURL       string
	APIToken          string
	Model             string
	MaxNewTokens      int
	Temperature       float64
	RepetitionPenalty float64
	Timeout           time.Duration
}

type ConversionConfig struct {
	RequireSchema bool
}

type SessionConfig struct {
	CookieName   string
	IdleTTL      time.Duration
	CookieSecure bool
}

type HistoryConfig struct {
	Enabled         bool
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	ListLimit       int
}

type LibraryConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

// BaseURL returns the endpoint root for the selected backend.
func (c InferenceConfig) BaseURL() string {
	if strings.EqualFold(c.Backend, "chat") {
		return c.ChatBaseURL
	}
	return c.TextBaseURL
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLASSIST_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLASSIST_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "SQLASSIST_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SQLASSIST_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SQLASSIST_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SQLASSIST_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SQLASSIST_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyInt64(lookup, "SQLASSIST_HTTP_MAX_BODY_BYTES", &cfg.HTTP.MaxBodyBytes) },
		func() error { return applyString(lookup, "SQLASSIST_INFERENCE_BACKEND", &cfg.Inference.Backend) },
		func() error { return applyString(lookup, "SQLASSIST_INFERENCE_TEXT_BASE_URL", &cfg.Inference.TextBaseURL) },
		func() error { return applyString(lookup, "SQLASSIST_INFERENCE_CHAT_BASE_URL", &cfg.Inference.ChatBaseURL) },
		func() error { return applyString(lookup, "SQLASSIST_INFERENCE_MODEL", &cfg.Inference.Model) },
		func() error { return applyInt(lookup, "SQLASSIST_INFERENCE_MAX_NEW_TOKENS", &cfg.Inference.MaxNewTokens) },
		func() error { return applyFloat(lookup, "SQLASSIST_INFERENCE_TEMPERATURE", &cfg.Inference.Temperature) },
		func() error {
			return applyFloat(lookup, "SQLASSIST_INFERENCE_REPETITION_PENALTY", &cfg.Inference.RepetitionPenalty)
		},
		func() error { return applyDuration(lookup, "SQLASSIST_INFERENCE_TIMEOUT", &cfg.Inference.Timeout) },
		func() error { return applyBool(lookup, "SQLASSIST_REQUIRE_SCHEMA", &cfg.Conversion.RequireSchema) },
		func() error { return applyString(lookup, "SQLASSIST_SESSION_COOKIE", &cfg.Session.CookieName) },
		func() error { return applyDuration(lookup, "SQLASSIST_SESSION_IDLE_TTL", &cfg.Session.IdleTTL) },
		func() error { return applyBool(lookup, "SQLASSIST_SESSION_COOKIE_SECURE", &cfg.Session.CookieSecure) },
		func() error { return applyBool(lookup, "SQLASSIST_HISTORY_ENABLED", &cfg.History.Enabled) },
		func() error { return applyString(lookup, "SQLASSIST_HISTORY_DSN", &cfg.History.DSN) },
		func() error { return applyInt(lookup, "SQLASSIST_HISTORY_MAX_OPEN_CONNS", &cfg.History.MaxOpenConns) },
		func() error { return applyInt(lookup, "SQLASSIST_HISTORY_MAX_IDLE_CONNS", &cfg.History.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "SQLASSIST_HISTORY_CONN_MAX_IDLE_TIME", &cfg.History.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "SQLASSIST_HISTORY_CONN_MAX_LIFETIME", &cfg.History.ConnMaxLifetime)
		},
		func() error { return applyInt(lookup, "SQLASSIST_HISTORY_LIST_LIMIT", &cfg.History.ListLimit) },
		func() error { return applyBool(lookup, "SQLASSIST_LIBRARY_ENABLED", &cfg.Library.Enabled) },
		func() error { return applyString(lookup, "SQLASSIST_LIBRARY_ENDPOINT", &cfg.Library.Endpoint) },
		func() error { return applyString(lookup, "SQLASSIST_LIBRARY_REGION", &cfg.Library.Region) },
		func() error { return applyString(lookup, "SQLASSIST_LIBRARY_BUCKET", &cfg.Library.Bucket) },
		func() error { return applyString(lookup, "SQLASSIST_LIBRARY_ACCESS_KEY", &cfg.Library.AccessKeyID) },
		func() error { return applyString(lookup, "SQLASSIST_LIBRARY_SECRET_KEY", &cfg.Library.SecretAccessKey) },
		func() error { return applyBool(lookup, "SQLASSIST_LIBRARY_USE_SSL", &cfg.Library.UseSSL) },
		func() error { return applyString(lookup, "SQLASSIST_LIBRARY_PREFIX", &cfg.Library.Prefix) },
		func() error {
			return applyBool(lookup, "SQLASSIST_LIBRARY_AUTO_CREATE_BUCKET", &cfg.Library.AutoCreateBucket)
		},
		func() error { return applyBool(lookup, "SQLASSIST_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SQLASSIST_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "SQLASSIST_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "SQLASSIST_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Inference.APIToken = lookupCredential(lookup)
	cfg.Inference.Backend = strings.ToLower(cfg.Inference.Backend)

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.Inference.Backend {
	case "text", "chat":
	default:
		return Config{}, fmt.Errorf("invalid SQLASSIST_INFERENCE_BACKEND: %q", cfg.Inference.Backend)
	}
	if cfg.History.Enabled && cfg.History.DSN == "" {
		return Config{}, fmt.Errorf("SQLASSIST_HISTORY_DSN is required when history is enabled")
	}
	if cfg.Library.Enabled && cfg.Library.Bucket == "" {
		return Config{}, fmt.Errorf("SQLASSIST_LIBRARY_BUCKET is required when the schema library is enabled")
	}
	return cfg, nil
}

// lookupCredential returns the inference token; a missing token is not a
// load error, conversions report it instead.
func lookupCredential(lookup LookupFunc) string {
	if raw, ok := lookup("SQLASSIST_INFERENCE_API_KEY"); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw)
	}
	for _, key := range credentialKeys {
		if raw, ok := lookup(key); ok && strings.TrimSpace(raw) != "" {
			return strings.TrimSpace(raw)
		}
	}
	return ""
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlassist-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Inference: InferenceConfig{
			Backend:           "text",
			TextBaseURL:       "https://api-inference.huggingface.co",
			ChatBaseURL:       "https://router.huggingface.co",
			Model:             "",
			MaxNewTokens:      200,
			Temperature:       0.3,
			RepetitionPenalty: 1.2,
			Timeout:           30 * time.Second,
		},
		Conversion: ConversionConfig{
			RequireSchema: true,
		},
		Session: SessionConfig{
			CookieName:   "sqlassist_session",
			IdleTTL:      2 * time.Hour,
			CookieSecure: false,
		},
		History: HistoryConfig{
			Enabled:         false,
			DSN:             "",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			ListLimit:       50,
		},
		Library: LibraryConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "sqlassist-schemas",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Session.CookieSecure = true
		cfg.Library.UseSSL = true
		cfg.Library.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
