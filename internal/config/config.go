// Package config provides configuration loading and validation for the
// provider search binaries. It uses koanf to merge an optional YAML file
// with environment variables; environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Corpus sources.
const (
	CorpusSourceFile     = "file"
	CorpusSourcePostgres = "postgres"
	CorpusSourceS3       = "s3"
)

// Tracing exporters.
const (
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config holds all configuration values for the API server and indexer.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Personas
	PersonaDir    string `koanf:"persona_dir"`
	WatchPersonas bool   `koanf:"watch_personas"`

	// Corpus and index
	CorpusSource   string `koanf:"corpus_source"` // file, postgres or s3
	CorpusPath     string `koanf:"corpus_path"`
	DatabaseURL    string `koanf:"database_url"`
	ProvidersTable string `koanf:"providers_table"`
	IndexDir       string `koanf:"index_dir"`

	// R2 (Cloudflare Object Storage, S3 compatible) corpus object
	R2BucketName      string `koanf:"r2_bucket_name"`
	R2ObjectKey       string `koanf:"r2_object_key"`
	R2AccessKeyID     string `koanf:"r2_access_key_id"`
	R2SecretAccessKey string `koanf:"r2_secret_access_key"`
	R2Endpoint        string `koanf:"r2_endpoint"`

	// Search
	RetrievalTimeoutMS int `koanf:"retrieval_timeout_ms"`
	CandidatePool      int `koanf:"candidate_pool"`
	ReviewCeiling      int `koanf:"review_ceiling"`
	ExplainTopN        int `koanf:"explain_top_n"`

	// Rate limiting; RedisURL empty means in-memory limits per replica.
	RedisURL                 string `koanf:"redis_url"`
	SearchRateLimitPerMinute int    `koanf:"search_rate_limit_per_minute"` // 0 disables
	// TrustProxyHeaders keys limits on X-Forwarded-For / X-Real-IP. Enable
	// only behind a proxy that overwrites them.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`

	// Admin authentication; admin routes are disabled without a secret.
	AdminJWTSecret         string `koanf:"admin_jwt_secret"`
	AdminJWTPreviousSecret string `koanf:"admin_jwt_previous_secret"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrInvalidInteger         = errors.New("must be a valid integer")
	ErrInvalidPort            = errors.New("PORT must be between 1 and 65535")
	ErrMissingPersonaDir      = errors.New("PERSONA_DIR is required")
	ErrMissingIndexDir        = errors.New("INDEX_DIR is required")
	ErrInvalidCorpusSource    = errors.New("CORPUS_SOURCE must be one of file, postgres, s3")
	ErrMissingCorpusPath      = errors.New("CORPUS_PATH is required when CORPUS_SOURCE=file")
	ErrMissingDatabaseURL     = errors.New("DATABASE_URL is required when CORPUS_SOURCE=postgres")
	ErrMissingR2BucketName    = errors.New("R2_BUCKET_NAME is required")
	ErrMissingR2ObjectKey     = errors.New("R2_OBJECT_KEY is required")
	ErrMissingR2AccessKeyID   = errors.New("R2_ACCESS_KEY_ID is required")
	ErrMissingR2SecretKey     = errors.New("R2_SECRET_ACCESS_KEY is required")
	ErrMissingR2Endpoint      = errors.New("R2_ENDPOINT is required")
	ErrInvalidTimeout         = errors.New("RETRIEVAL_TIMEOUT_MS must be positive")
	ErrInvalidCandidatePool   = errors.New("CANDIDATE_POOL must be positive")
	ErrInvalidReviewCeiling   = errors.New("REVIEW_CEILING must be positive")
	ErrInvalidExplainTopN     = errors.New("EXPLAIN_TOP_N must not be negative")
	ErrInvalidRateLimit       = errors.New("SEARCH_RATE_LIMIT_PER_MINUTE must not be negative")
	ErrWeakAdminSecret        = errors.New("ADMIN_JWT_SECRET must be at least 32 characters")
	ErrInvalidTracingExporter = errors.New("TRACING_EXPORTER must be otlp-http or otlp-grpc")
	ErrInvalidSampleRate      = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
)

// MinAdminSecretLength is the shortest accepted admin JWT secret.
const MinAdminSecretLength = 32

// Default values for non-secret configuration.
const (
	DefaultPort                     = 8080
	DefaultEnv                      = "development"
	DefaultPersonaDir               = "config/personas"
	DefaultCorpusSource             = CorpusSourceFile
	DefaultCorpusPath               = "data/providers.jsonl"
	DefaultProvidersTable           = "providers"
	DefaultIndexDir                 = "data/index"
	DefaultRetrievalTimeoutMS       = 2000
	DefaultCandidatePool            = 100
	DefaultReviewCeiling            = 1000
	DefaultExplainTopN              = 5
	DefaultSearchRateLimitPerMinute = 60
	DefaultTracingExporter          = ExporterOTLPHTTP
	DefaultTracingSampleRate        = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	intValue := func(envKeys []string, koanfKey string, def int) int {
		v, err := getEnvIntOrDefaultMulti(envKeys, k, koanfKey, def)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}
	boolValue := func(envKey, koanfKey string) bool {
		v, err := getEnvBoolOrKoanf(envKey, k, koanfKey)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}

	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k, "tracing_sample_rate", DefaultTracingSampleRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port: intValue([]string{"PROVIDER_SEARCH_PORT", "PORT"}, "port", DefaultPort),
		Env:  getEnvOrDefaultMulti([]string{"PROVIDER_SEARCH_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),

		PersonaDir:    getEnvOrDefault("PERSONA_DIR", k.String("persona_dir"), DefaultPersonaDir),
		WatchPersonas: boolValue("WATCH_PERSONAS", "watch_personas"),

		CorpusSource:   strings.ToLower(getEnvOrDefault("CORPUS_SOURCE", k.String("corpus_source"), DefaultCorpusSource)),
		CorpusPath:     getEnvOrDefault("CORPUS_PATH", k.String("corpus_path"), DefaultCorpusPath),
		DatabaseURL:    getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		ProvidersTable: getEnvOrDefault("PROVIDERS_TABLE", k.String("providers_table"), DefaultProvidersTable),
		IndexDir:       getEnvOrDefault("INDEX_DIR", k.String("index_dir"), DefaultIndexDir),

		R2BucketName:      getEnvOrKoanf("R2_BUCKET_NAME", k, "r2_bucket_name"),
		R2ObjectKey:       getEnvOrKoanf("R2_OBJECT_KEY", k, "r2_object_key"),
		R2AccessKeyID:     getEnvOrKoanf("R2_ACCESS_KEY_ID", k, "r2_access_key_id"),
		R2SecretAccessKey: getEnvOrKoanf("R2_SECRET_ACCESS_KEY", k, "r2_secret_access_key"),
		R2Endpoint:        getEnvOrKoanf("R2_ENDPOINT", k, "r2_endpoint"),

		RetrievalTimeoutMS: intValue([]string{"RETRIEVAL_TIMEOUT_MS"}, "retrieval_timeout_ms", DefaultRetrievalTimeoutMS),
		CandidatePool:      intValue([]string{"CANDIDATE_POOL"}, "candidate_pool", DefaultCandidatePool),
		ReviewCeiling:      intValue([]string{"REVIEW_CEILING"}, "review_ceiling", DefaultReviewCeiling),
		ExplainTopN:        intValue([]string{"EXPLAIN_TOP_N"}, "explain_top_n", DefaultExplainTopN),

		RedisURL:                 getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		SearchRateLimitPerMinute: intValue([]string{"SEARCH_RATE_LIMIT_PER_MINUTE"}, "search_rate_limit_per_minute", DefaultSearchRateLimitPerMinute),
		TrustProxyHeaders:        boolValue("TRUST_PROXY_HEADERS", "trust_proxy_headers"),

		AdminJWTSecret:         getEnvOrKoanf("ADMIN_JWT_SECRET", k, "admin_jwt_secret"),
		AdminJWTPreviousSecret: getEnvOrKoanf("ADMIN_JWT_PREVIOUS_SECRET", k, "admin_jwt_previous_secret"),

		CORSAllowedOrigins: getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),

		TracingEnabled:    boolValue("TRACING_ENABLED", "tracing_enabled"),
		TracingExporter:   getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:      getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingSampleRate: sampleRate,
		TracingInsecure:   boolValue("TRACING_INSECURE", "tracing_insecure"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// RetrievalTimeout returns RetrievalTimeoutMS as a duration.
func (c *Config) RetrievalTimeout() time.Duration {
	return time.Duration(c.RetrievalTimeoutMS) * time.Millisecond
}

// AdminEnabled reports whether admin routes should be mounted.
func (c *Config) AdminEnabled() bool {
	return c.AdminJWTSecret != ""
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	return getEnvOrDefaultMulti([]string{envKey}, koanfVal, defaultVal)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order,
// then the koanf key, then the default. An explicit 0 in the file is kept.
// Returns an error if an environment variable is set but cannot be parsed.
func getEnvIntOrDefaultMulti(envKeys []string, k *koanf.Koanf, koanfKey string, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				return defaultVal, fmt.Errorf("%s %w", key, ErrInvalidInteger)
			}
			return i, nil
		}
	}
	if k.Exists(koanfKey) {
		return k.Int(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set,
// otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return defaultVal, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvBoolOrKoanf parses common boolean spellings from the environment,
// falling back to the koanf value.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) (bool, error) {
	val := os.Getenv(envKey)
	if val == "" {
		return k.Bool(koanfKey), nil
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s must be a boolean, got %q", envKey, val)
}

// getEnvListOrKoanf reads a comma-separated environment variable or a YAML list.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	var raw []string
	if val := os.Getenv(envKey); val != "" {
		raw = strings.Split(val, ",")
	} else {
		raw = k.Strings(koanfKey)
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks that all required configuration values are present and in range.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.PersonaDir == "" {
		errs = append(errs, ErrMissingPersonaDir)
	}
	if c.IndexDir == "" {
		errs = append(errs, ErrMissingIndexDir)
	}

	switch c.CorpusSource {
	case CorpusSourceFile:
		if c.CorpusPath == "" {
			errs = append(errs, ErrMissingCorpusPath)
		}
	case CorpusSourcePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	case CorpusSourceS3:
		errs = append(errs, c.validateR2()...)
	default:
		errs = append(errs, ErrInvalidCorpusSource)
	}

	if c.RetrievalTimeoutMS <= 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if c.CandidatePool <= 0 {
		errs = append(errs, ErrInvalidCandidatePool)
	}
	if c.ReviewCeiling <= 0 {
		errs = append(errs, ErrInvalidReviewCeiling)
	}
	if c.ExplainTopN < 0 {
		errs = append(errs, ErrInvalidExplainTopN)
	}
	if c.SearchRateLimitPerMinute < 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}

	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < MinAdminSecretLength {
		errs = append(errs, ErrWeakAdminSecret)
	}

	if c.TracingEnabled && c.TracingExporter != ExporterOTLPHTTP && c.TracingExporter != ExporterOTLPGRPC {
		errs = append(errs, ErrInvalidTracingExporter)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}

	return errs
}

// validateR2 checks the R2 object settings used by the s3 source.
func (c *Config) validateR2() []error {
	var errs []error
	if c.R2BucketName == "" {
		errs = append(errs, ErrMissingR2BucketName)
	}
	if c.R2ObjectKey == "" {
		errs = append(errs, ErrMissingR2ObjectKey)
	}
	if c.R2AccessKeyID == "" {
		errs = append(errs, ErrMissingR2AccessKeyID)
	}
	if c.R2SecretAccessKey == "" {
		errs = append(errs, ErrMissingR2SecretKey)
	}
	if c.R2Endpoint == "" {
		errs = append(errs, ErrMissingR2Endpoint)
	}
	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                         strconv.Itoa(c.Port),
		"env":                          c.Env,
		"persona_dir":                  c.PersonaDir,
		"watch_personas":               strconv.FormatBool(c.WatchPersonas),
		"corpus_source":                c.CorpusSource,
		"corpus_path":                  c.CorpusPath,
		"database_url":                 maskDatabaseURL(c.DatabaseURL),
		"providers_table":              c.ProvidersTable,
		"index_dir":                    c.IndexDir,
		"r2_bucket_name":               c.R2BucketName,
		"r2_object_key":                c.R2ObjectKey,
		"r2_access_key_id":             maskSecret(c.R2AccessKeyID),
		"r2_secret_access_key":         maskSecret(c.R2SecretAccessKey),
		"r2_endpoint":                  c.R2Endpoint,
		"retrieval_timeout_ms":         strconv.Itoa(c.RetrievalTimeoutMS),
		"candidate_pool":               strconv.Itoa(c.CandidatePool),
		"review_ceiling":               strconv.Itoa(c.ReviewCeiling),
		"explain_top_n":                strconv.Itoa(c.ExplainTopN),
		"redis_url":                    maskDatabaseURL(c.RedisURL),
		"search_rate_limit_per_minute": strconv.Itoa(c.SearchRateLimitPerMinute),
		"trust_proxy_headers":          strconv.FormatBool(c.TrustProxyHeaders),
		"admin_jwt_secret":             maskSecret(c.AdminJWTSecret),
		"admin_jwt_previous_secret":    maskSecret(c.AdminJWTPreviousSecret),
		"cors_allowed_origins":         strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":              strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":             c.TracingExporter,
		"otlp_endpoint":                c.OTLPEndpoint,
		"tracing_sample_rate":          strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL
// (postgres://, postgresql://, redis://).
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.LastIndex(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
