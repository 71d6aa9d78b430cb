package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 60, cfg.Archive.RetentionDays)
	assert.Equal(t, 100, cfg.Archive.PurgeBatch)
	assert.Equal(t, time.Minute, cfg.Archive.StatsCacheTTL)
	assert.Equal(t, 50, cfg.Listing.PageSize)
	assert.Equal(t, 100, cfg.Listing.MaxPageSize)
	assert.Equal(t, []string{"name"}, cfg.Listing.SearchFields)
	assert.Equal(t, int64(10*1024*1024), cfg.Attachments.MaxFileSizeBytes)
	assert.Contains(t, cfg.Attachments.AllowedMIMEs, "application/pdf")
}

func TestFromViperOverridesAndFallbacks(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ARCHIVE_RETENTION_DAYS", 0)
	v.Set("CASES_PAGE_SIZE", 25)
	v.Set("CASES_MAX_PAGE_SIZE", 10)
	v.Set("CASES_SEARCH_FIELDS", "name, offense ,")
	v.Set("JWT_EXPIRATION", "not-a-duration")

	cfg := fromViper(v)
	assert.Equal(t, 60, cfg.Archive.RetentionDays)
	assert.Equal(t, 25, cfg.Listing.PageSize)
	assert.Equal(t, 25, cfg.Listing.MaxPageSize)
	assert.Equal(t, []string{"name", "offense"}, cfg.Listing.SearchFields)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}
