package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, defaultGraphQLURL, cfg.GraphQLURL)
	assert.Equal(t, defaultUA, cfg.UserAgent)
	assert.Equal(t, int64(defaultRegionID), cfg.RegionID)
	assert.Equal(t, defaultRequestDelayMS, cfg.RequestDelayMS)
	assert.Empty(t, cfg.Cookie)
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	want := appConfig{
		BaseURL:        "https://example.test",
		GraphQLURL:     "https://gql.example.test/",
		Cookie:         "_session=xyz",
		UserAgent:      "test-agent",
		RegionID:       42,
		RequestDelayMS: 250,
	}

	require.NoError(t, saveConfig(path, want))

	got, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cookie":"  _session=abc  "}`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "_session=abc", cfg.Cookie, "cookie is trimmed")
	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, defaultUA, cfg.UserAgent)
	assert.Equal(t, defaultRequestDelayMS, cfg.RequestDelayMS)
}

func TestLoadConfigTrimsTrailingSlash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"base_url":"https://example.test/"}`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", cfg.BaseURL)
}
