package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	Cache       CacheConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Archive     ArchiveConfig
	Listing     ListingConfig
	Cron        CronConfig
	Attachments AttachmentsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig toggles the redis backed cache.
type CacheConfig struct {
	Enabled bool
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ArchiveConfig governs the soft-delete retention window and the purge pipeline.
type ArchiveConfig struct {
	RetentionDays int
	StatsCacheTTL time.Duration
	PurgeBatch    int
	BackupDir     string
}

// ListingConfig bounds paginated case listings.
type ListingConfig struct {
	PageSize     int
	MaxPageSize  int
	SearchFields []string
}

// CronConfig configures the external purge trigger and the secret it presents.
type CronConfig struct {
	Secret    string
	Schedule  string
	TargetURL string
	Timeout   time.Duration
}

// AttachmentsConfig controls case attachment storage & validation.
type AttachmentsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	CleanupWorkers   int
	CleanupRetries   int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{Enabled: v.GetBool("ENABLE_CACHE")}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("JWT_REFRESH_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	retention := v.GetInt("ARCHIVE_RETENTION_DAYS")
	if retention <= 0 {
		retention = 60
	}
	batch := v.GetInt("PURGE_BATCH_SIZE")
	if batch <= 0 {
		batch = 100
	}
	cfg.Archive = ArchiveConfig{
		RetentionDays: retention,
		StatsCacheTTL: parseDuration(v.GetString("ARCHIVE_STATS_CACHE_TTL"), time.Minute),
		PurgeBatch:    batch,
		BackupDir:     v.GetString("BACKUP_DIR"),
	}

	pageSize := v.GetInt("CASES_PAGE_SIZE")
	if pageSize <= 0 {
		pageSize = 50
	}
	maxPageSize := v.GetInt("CASES_MAX_PAGE_SIZE")
	if maxPageSize < pageSize {
		maxPageSize = pageSize
	}
	cfg.Listing = ListingConfig{
		PageSize:     pageSize,
		MaxPageSize:  maxPageSize,
		SearchFields: splitAndTrim(v.GetString("CASES_SEARCH_FIELDS")),
	}

	cfg.Cron = CronConfig{
		Secret:    v.GetString("CRON_SECRET"),
		Schedule:  v.GetString("CRON_SCHEDULE"),
		TargetURL: v.GetString("CRON_TARGET_URL"),
		Timeout:   parseDuration(v.GetString("CRON_TIMEOUT"), 5*time.Minute),
	}

	maxAttachmentSize := v.GetInt64("ATTACHMENTS_MAX_FILE_SIZE")
	if maxAttachmentSize <= 0 {
		maxAttachmentSize = 10 * 1024 * 1024
	}
	cfg.Attachments = AttachmentsConfig{
		StorageDir:       v.GetString("ATTACHMENTS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("ATTACHMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("ATTACHMENTS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxAttachmentSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("ATTACHMENTS_ALLOWED_MIME_TYPES")),
		CleanupWorkers:   v.GetInt("ATTACHMENTS_CLEANUP_WORKERS"),
		CleanupRetries:   v.GetInt("ATTACHMENTS_CLEANUP_RETRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "watch_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_CACHE", false)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_REFRESH_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "watch-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ARCHIVE_RETENTION_DAYS", 60)
	v.SetDefault("ARCHIVE_STATS_CACHE_TTL", "1m")
	v.SetDefault("PURGE_BATCH_SIZE", 100)
	v.SetDefault("BACKUP_DIR", "./instance/archives")

	v.SetDefault("CASES_PAGE_SIZE", 50)
	v.SetDefault("CASES_MAX_PAGE_SIZE", 100)
	v.SetDefault("CASES_SEARCH_FIELDS", "name")

	v.SetDefault("CRON_SECRET", "dev_cron_secret")
	v.SetDefault("CRON_SCHEDULE", "0 3 * * *")
	v.SetDefault("CRON_TARGET_URL", "http://localhost:8080/cron/purge-old-cases")
	v.SetDefault("CRON_TIMEOUT", "5m")

	v.SetDefault("ATTACHMENTS_STORAGE_DIR", "./instance/uploads")
	v.SetDefault("ATTACHMENTS_SIGNED_URL_SECRET", "dev_attachments_secret")
	v.SetDefault("ATTACHMENTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("ATTACHMENTS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("ATTACHMENTS_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png,application/vnd.openxmlformats-officedocument.wordprocessingml.document,application/msword,text/plain")
	v.SetDefault("ATTACHMENTS_CLEANUP_WORKERS", 1)
	v.SetDefault("ATTACHMENTS_CLEANUP_RETRIES", 3)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
