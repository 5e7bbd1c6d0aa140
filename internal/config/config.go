package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/reposync/admin-backend/internal/directory"
)

const defaultGroupTemplates = "system_admin:system_admin:jc_system_admin;" +
	"repository_admin:repository_admin:jc_{repository_id}_admin;" +
	"community_admin:community_admin:jc_{repository_id}_community_admin;" +
	"contributor:contributor:jc_{repository_id}_contributor;" +
	"user_defined::jc_{repository_id}_group_{user_defined_id}"

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string
	RedisURL    string

	DirectoryBaseURL            string
	DirectoryAPIToken           string
	DirectoryTimeout            time.Duration
	DirectoryGroupTemplates     string
	DirectoryRoleOrder          []string
	DirectoryTimezone           string
	DirectoryMaxGroupNameLength int

	SearchCacheTTL time.Duration
	ReconcileCron  string
	ImportMaxRows  int

	RetentionCron       string
	AuditRetentionDays  int
	ImportRetentionDays int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	JWTIssuer        string
	JWTAudience      string
	JWTSigningSecret string
	JWTGroupsClaim   string

	APIRateLimitPerMin int
	CORSAllowedOrigins []string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:         env,
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		DirectoryBaseURL:            os.Getenv("DIRECTORY_BASE_URL"),
		DirectoryAPIToken:           os.Getenv("DIRECTORY_API_TOKEN"),
		DirectoryGroupTemplates:     getEnv("DIRECTORY_GROUP_TEMPLATES", defaultGroupTemplates),
		DirectoryRoleOrder:          splitCSV(getEnv("DIRECTORY_ROLE_ORDER", "system_admin,repository_admin,community_admin,contributor,general_user")),
		DirectoryTimezone:           getEnv("DIRECTORY_TIMEZONE", "Asia/Tokyo"),
		DirectoryMaxGroupNameLength: getEnvInt("DIRECTORY_MAX_GROUP_NAME_LENGTH", 128),

		ReconcileCron: getEnv("RECONCILE_CRON", "0 */6 * * *"),
		ImportMaxRows: getEnvInt("IMPORT_MAX_ROWS", 10000),

		RetentionCron:       getEnv("RETENTION_CRON", "30 3 * * *"),
		AuditRetentionDays:  getEnvInt("AUDIT_RETENTION_DAYS", 90),
		ImportRetentionDays: getEnvInt("IMPORT_RETENTION_DAYS", 30),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "reposync-imports"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		JWTIssuer:        getEnv("JWT_ISSUER", "reposync-admin-backend"),
		JWTAudience:      getEnv("JWT_AUDIENCE", "reposync-admin-backend-api"),
		JWTSigningSecret: os.Getenv("JWT_SIGNING_SECRET"),
		JWTGroupsClaim:   getEnv("JWT_GROUPS_CLAIM", "memberOf"),

		APIRateLimitPerMin: getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "reposync-admin-backend"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	directoryTimeout, err := time.ParseDuration(getEnv("DIRECTORY_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("parse DIRECTORY_TIMEOUT: %w", err)
	}
	cfg.DirectoryTimeout = directoryTimeout

	cacheTTL, err := time.ParseDuration(getEnv("SEARCH_CACHE_TTL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("parse SEARCH_CACHE_TTL: %w", err)
	}
	cfg.SearchCacheTTL = cacheTTL

	metricsInterval, err := time.ParseDuration(getEnv("OTEL_METRICS_EXPORT_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("parse OTEL_METRICS_EXPORT_INTERVAL: %w", err)
	}
	cfg.OTELMetricsExportInterval = metricsInterval

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DirectoryConfig builds the group naming configuration from the raw
// template string. Entries are semicolon separated, each one
// "kind:role:template"; an empty role marks the user-defined kind.
func (c *Config) DirectoryConfig() (*directory.Config, error) {
	kinds, err := parseGroupTemplates(c.DirectoryGroupTemplates)
	if err != nil {
		return nil, err
	}
	roles := make([]directory.Role, 0, len(c.DirectoryRoleOrder))
	for _, name := range c.DirectoryRoleOrder {
		role, ok := directory.ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("DIRECTORY_ROLE_ORDER: unknown role %q", name)
		}
		roles = append(roles, role)
	}
	return directory.NewConfig(kinds,
		directory.WithRoleOrder(roles),
		directory.WithMaxIdentifierLength(c.DirectoryMaxGroupNameLength),
		directory.WithTimezone(c.DirectoryTimezone),
	)
}

func parseGroupTemplates(raw string) ([]directory.KindTemplate, error) {
	entries := strings.Split(raw, ";")
	kinds := make([]directory.KindTemplate, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("DIRECTORY_GROUP_TEMPLATES: entry %q must be kind:role:template", entry)
		}
		kt := directory.KindTemplate{
			Kind:     directory.GroupKind(strings.TrimSpace(parts[0])),
			Template: strings.TrimSpace(parts[2]),
		}
		if roleName := strings.TrimSpace(parts[1]); roleName != "" {
			role, ok := directory.ParseRole(roleName)
			if !ok {
				return nil, fmt.Errorf("DIRECTORY_GROUP_TEMPLATES: entry %q: unknown role %q", entry, roleName)
			}
			kt.Role = role
			kt.HasRole = true
		}
		kinds = append(kinds, kt)
	}
	if len(kinds) == 0 {
		return nil, errors.New("DIRECTORY_GROUP_TEMPLATES: no entries")
	}
	return kinds, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		errs = append(errs, "REDIS_URL is required")
	}
	if c.DirectoryBaseURL == "" {
		errs = append(errs, "DIRECTORY_BASE_URL is required")
	}
	if c.DirectoryAPIToken == "" {
		errs = append(errs, "DIRECTORY_API_TOKEN is required")
	}
	if c.DirectoryTimeout <= 0 {
		errs = append(errs, "DIRECTORY_TIMEOUT must be > 0")
	}
	if c.DirectoryMaxGroupNameLength <= 0 {
		errs = append(errs, "DIRECTORY_MAX_GROUP_NAME_LENGTH must be > 0")
	}
	if _, err := c.DirectoryConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(c.JWTSigningSecret) < 32 {
		errs = append(errs, "JWT_SIGNING_SECRET must be at least 32 chars")
	}
	if c.JWTGroupsClaim == "" {
		errs = append(errs, "JWT_GROUPS_CLAIM is required")
	}
	if c.SearchCacheTTL <= 0 {
		errs = append(errs, "SEARCH_CACHE_TTL must be > 0")
	}
	if c.ReconcileCron == "" {
		errs = append(errs, "RECONCILE_CRON is required")
	}
	if c.ImportMaxRows <= 0 {
		errs = append(errs, "IMPORT_MAX_ROWS must be > 0")
	}
	if c.RetentionCron == "" {
		errs = append(errs, "RETENTION_CRON is required")
	}
	if c.AuditRetentionDays < 0 || c.ImportRetentionDays < 0 {
		errs = append(errs, "retention days must be >= 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
