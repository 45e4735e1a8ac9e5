// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the agent auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetJWTRefreshSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetEnv() string
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetClaimCheckInterval() time.Duration
	GetSLACheckInterval() time.Duration
	GetNightReleaseInterval() time.Duration
	GetAlarmInterval() time.Duration
	GetCapacityReconcileInterval() time.Duration
}

// RoutingConfig provides the lead routing and escalation parameters.
type RoutingConfig interface {
	GetMaxEscalationRounds() int
	GetDefaultClaimWindow() time.Duration
	GetSLAFirstActionWindow() time.Duration
	GetExpiredLeadBatchSize() int
	GetMaxAlarmLevel() int
	GetNightHoldStartHour() int
	GetNightHoldEndHour() int
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketLeadAttachments() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                        string
	HTTPAddr                   string
	DatabaseURL                string
	JWTAccessSecret            string
	JWTRefreshSecret           string
	AccessTokenTTL             time.Duration
	RefreshTokenTTL            time.Duration
	CORSAllowAll               bool
	CORSOrigins                []string
	CORSAllowCreds             bool
	AppBaseURL                 string
	EmailEnabled               bool
	BrevoAPIKey                string
	SMTPHost                   string
	SMTPPort                   int
	SMTPUsername               string
	SMTPPassword               string
	EmailFromName              string
	EmailFromAddress           string
	RedisURL                   string
	RedisTLSInsecure           bool
	AsynqQueueName             string
	AsynqConcurrency           int
	ClaimCheckInterval         time.Duration
	SLACheckInterval           time.Duration
	NightReleaseInterval       time.Duration
	AlarmInterval              time.Duration
	CapacityReconcileInterval  time.Duration
	MaxEscalationRounds        int
	DefaultClaimWindow         time.Duration
	SLAFirstActionWindow       time.Duration
	ExpiredLeadBatchSize       int
	MaxAlarmLevel              int
	NightHoldStartHour         int
	NightHoldEndHour           int
	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinIOMaxFileSize           int64
	MinioBucketLeadAttachments string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// AuthServiceConfig implementation
func (c *Config) GetJWTRefreshSecret() string       { return c.JWTRefreshSecret }
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// HTTPConfig implementation
func (c *Config) GetEnv() string           { return c.Env }
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                    { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool              { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string              { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int               { return c.AsynqConcurrency }
func (c *Config) GetClaimCheckInterval() time.Duration   { return c.ClaimCheckInterval }
func (c *Config) GetSLACheckInterval() time.Duration     { return c.SLACheckInterval }
func (c *Config) GetNightReleaseInterval() time.Duration { return c.NightReleaseInterval }
func (c *Config) GetAlarmInterval() time.Duration        { return c.AlarmInterval }
func (c *Config) GetCapacityReconcileInterval() time.Duration {
	return c.CapacityReconcileInterval
}

// RoutingConfig implementation
func (c *Config) GetMaxEscalationRounds() int            { return c.MaxEscalationRounds }
func (c *Config) GetDefaultClaimWindow() time.Duration   { return c.DefaultClaimWindow }
func (c *Config) GetSLAFirstActionWindow() time.Duration { return c.SLAFirstActionWindow }
func (c *Config) GetExpiredLeadBatchSize() int           { return c.ExpiredLeadBatchSize }
func (c *Config) GetMaxAlarmLevel() int                  { return c.MaxAlarmLevel }
func (c *Config) GetNightHoldStartHour() int             { return c.NightHoldStartHour }
func (c *Config) GetNightHoldEndHour() int               { return c.NightHoldEndHour }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketLeadAttachments() string {
	return c.MinioBucketLeadAttachments
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// =============================================================================
// Loading
// =============================================================================

// Load reads configuration from environment variables (optionally via .env).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	brevoAPIKey := getEnv("BREVO_API_KEY", "")
	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                        getEnv("APP_ENV", "development"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		JWTAccessSecret:            getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret:           getEnv("JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:             mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		RefreshTokenTTL:            mustDuration(getEnv("JWT_REFRESH_TTL", "720h")),
		CORSAllowAll:               corsAllowAll,
		CORSOrigins:                corsOrigins,
		CORSAllowCreds:             strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:                 getEnv("APP_BASE_URL", "http://localhost:5173"),
		EmailEnabled:               emailEnabled && (brevoAPIKey != "" || smtpHost != ""),
		BrevoAPIKey:                brevoAPIKey,
		SMTPHost:                   smtpHost,
		SMTPPort:                   mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:               getEnv("SMTP_USERNAME", ""),
		SMTPPassword:               getEnv("SMTP_PASSWORD", ""),
		EmailFromName:              getEnv("EMAIL_FROM_NAME", "CRM Alerts"),
		EmailFromAddress:           getEnv("EMAIL_FROM_ADDRESS", ""),
		RedisURL:                   getEnv("REDIS_URL", ""),
		RedisTLSInsecure:           strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:             getEnv("ASYNQ_QUEUE", "crm"),
		AsynqConcurrency:           mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ClaimCheckInterval:         mustDuration(getEnv("CLAIM_CHECK_INTERVAL", "1m")),
		SLACheckInterval:           mustDuration(getEnv("SLA_CHECK_INTERVAL", "5m")),
		NightReleaseInterval:       mustDuration(getEnv("NIGHT_RELEASE_INTERVAL", "15m")),
		AlarmInterval:              mustDuration(getEnv("ALARM_INTERVAL", "1m")),
		CapacityReconcileInterval:  mustDuration(getEnv("CAPACITY_RECONCILE_INTERVAL", "1h")),
		MaxEscalationRounds:        mustInt(getEnv("MAX_ESCALATION_ROUNDS", "3")),
		DefaultClaimWindow:         mustDuration(getEnv("CLAIM_WINDOW", "15m")),
		SLAFirstActionWindow:       mustDuration(getEnv("SLA_FIRST_ACTION_WINDOW", "10m")),
		ExpiredLeadBatchSize:       mustInt(getEnv("EXPIRED_LEAD_BATCH_SIZE", "50")),
		MaxAlarmLevel:              mustInt(getEnv("MAX_ALARM_LEVEL", "4")),
		NightHoldStartHour:         mustInt(getEnv("NIGHT_HOLD_START_HOUR", "22")),
		NightHoldEndHour:           mustInt(getEnv("NIGHT_HOLD_END_HOUR", "8")),
		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:           mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "52428800")),
		MinioBucketLeadAttachments: getEnv("MINIO_BUCKET_LEAD_ATTACHMENTS", "lead-attachments"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if cfg.MaxEscalationRounds < 1 {
		return nil, fmt.Errorf("MAX_ESCALATION_ROUNDS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func mustDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func mustInt64(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
