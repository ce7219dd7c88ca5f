package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dgduncan/wheretogo/ticketmaster"
)

const (
	backendLocal    = "local"
	backendPostgres = "postgres"
	backendDynamoDB = "dynamodb"
	backendNone     = "none"

	apiKeyEnv = "TICKETMASTER_API_KEY"
)

type cacheConfig struct {
	// Backend is one of local, postgres, dynamodb or none.
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`

	PostgresDSN string `yaml:"postgres_dsn"`

	DynamoDBTable string `yaml:"dynamodb_table"`
	Region        string `yaml:"region"`
	CreateTable   bool   `yaml:"create_table"`
}

type config struct {
	APIKey  string              `yaml:"api_key"`
	BaseURL string              `yaml:"base_url"`
	Query   map[string][]string `yaml:"query"`
	Listen  string              `yaml:"listen"`
	Cache   cacheConfig         `yaml:"cache"`
}

func defaultConfig() *config {
	return &config{
		BaseURL: ticketmaster.DefaultBaseURL,
		Listen:  "127.0.0.1:8080",
		Cache: cacheConfig{
			Backend: backendLocal,
			TTL:     time.Hour,
		},
	}
}

func (c *config) normalize() {
	if c.BaseURL == "" {
		c.BaseURL = ticketmaster.DefaultBaseURL
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = backendLocal
	}
}

func (c *config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("no api key: set api_key or %s", apiKeyEnv)
	}

	switch c.Cache.Backend {
	case backendLocal, backendNone, backendDynamoDB:
	case backendPostgres:
		if c.Cache.PostgresDSN == "" {
			return errors.New("postgres cache needs cache.postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	return nil
}

// loadConfig reads the YAML file at path. An empty path yields the
// defaults.
func loadConfig(path string) (*config, error) {
	if path == "" {
		return defaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.normalize()

	return cfg, nil
}

// loadEnv reads the given dotenv files (.env when none are given) into the
// process environment and applies it to cfg. A missing file is not an
// error. Variables already set in the environment win over the files.
func loadEnv(cfg *config, files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env: %w", err)
	}

	if key := os.Getenv(apiKeyEnv); key != "" {
		cfg.APIKey = key
	}

	return nil
}
