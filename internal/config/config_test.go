package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Env:                         "development",
		HTTPPort:                    "8080",
		DatabaseURL:                 "postgres://x",
		RedisURL:                    "redis://localhost:6379/0",
		DirectoryBaseURL:            "https://directory.example.com/scim/v2",
		DirectoryAPIToken:           "token",
		DirectoryTimeout:            15 * time.Second,
		DirectoryGroupTemplates:     defaultGroupTemplates,
		DirectoryRoleOrder:          []string{"system_admin", "repository_admin", "community_admin", "contributor", "general_user"},
		DirectoryTimezone:           "Asia/Tokyo",
		DirectoryMaxGroupNameLength: 128,
		SearchCacheTTL:              time.Minute,
		ReconcileCron:               "0 */6 * * *",
		ImportMaxRows:               10000,
		JWTIssuer:                   "reposync-admin-backend",
		JWTAudience:                 "reposync-admin-backend-api",
		JWTSigningSecret:            "abcdefghijklmnopqrstuvwxyz123456",
		JWTGroupsClaim:              "memberOf",
		APIRateLimitPerMin:          120,
		OTELExporterOTLPEndpoint:    "localhost:4317",
		OTELTraceSamplingRatio:      1.0,
		OTELMetricsExportInterval:   10 * time.Second,
		OTELLogLevel:                "info",
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}
}

func TestValidateCollectsMissingRequiredSettings(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.DirectoryBaseURL = ""
	cfg.JWTSigningSecret = "short"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"DATABASE_URL", "DIRECTORY_BASE_URL", "JWT_SIGNING_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in error, got %v", want, err)
		}
	}
}

func TestValidateRejectsMalformedGroupTemplates(t *testing.T) {
	cfg := validConfig()
	cfg.DirectoryGroupTemplates = "system_admin=jc_system_admin"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected group template parse error")
	}
}

func TestDirectoryConfigParsesDefaultTemplates(t *testing.T) {
	dir, err := validConfig().DirectoryConfig()
	if err != nil {
		t.Fatalf("DirectoryConfig: %v", err)
	}
	if got := dir.RepositoryGroupPrefix("backend"); got != "jc_backend_" {
		t.Fatalf("unexpected repository prefix %q", got)
	}
}

func TestDirectoryConfigRejectsUnknownRole(t *testing.T) {
	cfg := validConfig()
	cfg.DirectoryRoleOrder = []string{"system_admin", "owner"}
	if _, err := cfg.DirectoryConfig(); err == nil {
		t.Fatal("expected unknown role error")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("DIRECTORY_BASE_URL", "https://directory.example.com/scim/v2")
	t.Setenv("DIRECTORY_API_TOKEN", "token")
	t.Setenv("JWT_SIGNING_SECRET", "abcdefghijklmnopqrstuvwxyz123456")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("unexpected port %q", cfg.HTTPPort)
	}
	if cfg.SearchCacheTTL != time.Minute {
		t.Fatalf("unexpected cache TTL %v", cfg.SearchCacheTTL)
	}
	if cfg.JWTGroupsClaim != "memberOf" {
		t.Fatalf("unexpected groups claim %q", cfg.JWTGroupsClaim)
	}
	if cfg.DirectoryTimezone != "Asia/Tokyo" {
		t.Fatalf("unexpected timezone %q", cfg.DirectoryTimezone)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("DIRECTORY_BASE_URL", "https://directory.example.com/scim/v2")
	t.Setenv("DIRECTORY_API_TOKEN", "token")
	t.Setenv("JWT_SIGNING_SECRET", "abcdefghijklmnopqrstuvwxyz123456")
	t.Setenv("SEARCH_CACHE_TTL", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected duration parse error")
	}
}
