package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CRAWLER_START_URL", "https://example.com/list")

	cfg := LoadConfig()

	assert.Equal(t, "https://example.com/list", cfg.StartURL)
	assert.Equal(t, "Brazil", cfg.Region)
	assert.Equal(t, "output_Brazil.csv", cfg.OutputPath)
	assert.Equal(t, 10, cfg.MaxPages)
	assert.Equal(t, 1000, cfg.MaxRecords)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "networkidle", cfg.WaitCondition)
	assert.Equal(t, []string{"url"}, cfg.IdentityFields)
	assert.Equal(t, "browser", cfg.FetchEngine)
	assert.Equal(t, FailureSkip, cfg.OnPageFailure)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, "tr", cfg.RowSelector)
	assert.True(t, cfg.BrowserHeadless)
	assert.Equal(t, "memory", cfg.DedupBackend)
	assert.False(t, cfg.PublishEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CRAWLER_START_URL", "  https://example.com  ")
	t.Setenv("CRAWLER_REGION", "Chile")
	t.Setenv("CRAWLER_MAX_PAGES", "3")
	t.Setenv("CRAWLER_IDENTITY_FIELDS", "symbol, name ,")
	t.Setenv("CRAWLER_ON_PAGE_FAILURE", "abort")
	t.Setenv("BROWSER_HEADLESS", "false")

	cfg := LoadConfig()

	assert.Equal(t, "https://example.com", cfg.StartURL)
	assert.Equal(t, "output_Chile.csv", cfg.OutputPath)
	assert.Equal(t, 3, cfg.MaxPages)
	assert.Equal(t, []string{"symbol", "name"}, cfg.IdentityFields)
	assert.Equal(t, FailureAbort, cfg.OnPageFailure)
	assert.False(t, cfg.BrowserHeadless)
}

func TestValidate(t *testing.T) {
	t.Setenv("CRAWLER_START_URL", "https://example.com")
	base := LoadConfig()
	require.NoError(t, base.Validate())

	missing := base
	missing.StartURL = ""
	assert.Error(t, missing.Validate())

	badRetries := base
	badRetries.MaxRetries = 0
	assert.Error(t, badRetries.Validate())

	badPolicy := base
	badPolicy.OnPageFailure = "panic"
	assert.Error(t, badPolicy.Validate())

	badEngine := base
	badEngine.FetchEngine = "carrier-pigeon"
	assert.Error(t, badEngine.Validate())

	noIdentity := base
	noIdentity.IdentityFields = nil
	assert.Error(t, noIdentity.Validate())
}
