package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	defaultUA         = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	defaultBaseURL    = "https://www.strava.com"
	defaultGraphQLURL = "https://graphql.strava.com/"

	// defaultRegionID is the tile-endpoint region identifier. Override with
	// --region or config if the platform assigns a different one.
	defaultRegionID = 34576447

	// defaultRequestDelayMS is the pause before every remote request.
	defaultRequestDelayMS = 1000
)

// appConfig holds the application configuration.
type appConfig struct {
	BaseURL        string `json:"base_url"`
	GraphQLURL     string `json:"graphql_url"`
	Cookie         string `json:"cookie"`
	UserAgent      string `json:"user_agent"`
	RegionID       int64  `json:"region_id,omitempty"`
	RequestDelayMS int    `json:"request_delay_ms,omitempty"`
}

func defaultConfig() appConfig {
	return appConfig{
		BaseURL:        defaultBaseURL,
		GraphQLURL:     defaultGraphQLURL,
		UserAgent:      defaultUA,
		RegionID:       defaultRegionID,
		RequestDelayMS: defaultRequestDelayMS,
	}
}

// loadConfig loads configuration from the specified path. A missing file is
// not an error: defaults are returned and the file is created on first save.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultConfig()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return appConfig{}, fmt.Errorf("stat config: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), koanfjson.Parser()); err != nil {
		return appConfig{}, fmt.Errorf("load config: %w", err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return appConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Cookie = strings.TrimSpace(cfg.Cookie)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.GraphQLURL = strings.TrimSpace(cfg.GraphQLURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = defaultGraphQLURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUA
	}
	if cfg.RegionID <= 0 {
		cfg.RegionID = defaultRegionID
	}
	if cfg.RequestDelayMS <= 0 {
		cfg.RequestDelayMS = defaultRequestDelayMS
	}
	return cfg, nil
}

// saveConfig writes configuration to the specified path.
func saveConfig(path string, cfg appConfig) error {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUA
	}

	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	b = append(b, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
