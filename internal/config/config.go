package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spendlens/spendlens-engine/internal/models"
)

// Config captures the settings required to boot the investigation engine.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Fetcher      FetcherConfig      `yaml:"fetcher"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Detection    DetectionConfig    `yaml:"detection"`
	Intent       IntentConfig       `yaml:"intent"`
	Registry     RegistryConfig     `yaml:"registry"`
	Store        StoreConfig        `yaml:"store"`
	Notify       NotifyConfig       `yaml:"notify"`
	Logging      LoggingConfig      `yaml:"logging"`
	Cache        CacheConfig        `yaml:"cache"`
	Profiles     ProfilesConfig     `yaml:"profiles"`
}

// ServerConfig controls the ops gRPC listener and metrics endpoint.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// FetcherConfig configures access to the spending-records API.
type FetcherConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	RecordsPath string        `yaml:"recordsPath"`
	APIKey      string        `yaml:"apiKey"`
	Timeout     time.Duration `yaml:"timeout"`
	RecordsTTL  time.Duration `yaml:"recordsTTL"`
}

// OrchestratorConfig bounds investigation execution.
type OrchestratorConfig struct {
	StepTimeout          time.Duration `yaml:"stepTimeout"`
	OverallTimeout       time.Duration `yaml:"overallTimeout"`
	AcceptanceThreshold  float64       `yaml:"acceptanceThreshold"`
	MinViableConfidence  float64       `yaml:"minViableConfidence"`
	MaxReflectionPasses  int           `yaml:"maxReflectionPasses"`
	GlobalConcurrencyCap int           `yaml:"globalConcurrencyCap"`
}

// DetectionConfig mirrors models.DetectionConfig for YAML loading.
type DetectionConfig = models.DetectionConfig

// IntentConfig tunes the intent router.
type IntentConfig struct {
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
}

// RegistryConfig bounds the agent pool.
type RegistryConfig struct {
	MaxPerCapability int           `yaml:"maxPerCapability"`
	AcquireTimeout   time.Duration `yaml:"acquireTimeout"`
}

// StoreConfig locates the investigation database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig controls the terminal-event sink.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhookURL"`
	Timeout    time.Duration `yaml:"timeout"`
	Buffer     int           `yaml:"buffer"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls the Valkey/Redis-backed record cache.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// ProfilesConfig points at an optional detector-profile pack.
type ProfilesConfig struct {
	Path string `yaml:"path"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SPENDLENS_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2114",
			GracefulTimeout: 10 * time.Second,
		},
		Fetcher: FetcherConfig{
			RecordsPath: "/api/v1/spending/records",
			Timeout:     10 * time.Second,
			RecordsTTL:  5 * time.Minute,
		},
		Orchestrator: OrchestratorConfig{
			StepTimeout:          15 * time.Second,
			OverallTimeout:       2 * time.Minute,
			AcceptanceThreshold:  0.8,
			MinViableConfidence:  0.5,
			MaxReflectionPasses:  2,
			GlobalConcurrencyCap: 16,
		},
		Detection: models.DefaultDetectionConfig(),
		Intent:    IntentConfig{ConfidenceThreshold: 0.6},
		Registry: RegistryConfig{
			MaxPerCapability: 4,
			AcquireTimeout:   5 * time.Second,
		},
		Store:  StoreConfig{Path: "spendlens.db"},
		Notify: NotifyConfig{Timeout: 5 * time.Second, Buffer: 64},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		Profiles: ProfilesConfig{Path: "configs/profiles/default.yaml"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPENDLENS_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SPENDLENS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SPENDLENS_FETCHER_BASE_URL"); v != "" {
		cfg.Fetcher.BaseURL = v
	}
	if v := os.Getenv("SPENDLENS_FETCHER_API_KEY"); v != "" {
		cfg.Fetcher.APIKey = v
	}
	if v := os.Getenv("SPENDLENS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SPENDLENS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SPENDLENS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SPENDLENS_NOTIFY_WEBHOOK"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("SPENDLENS_PROFILES_PATH"); v != "" {
		cfg.Profiles.Path = v
	}
	if v := os.Getenv("SPENDLENS_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SPENDLENS_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("SPENDLENS_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("SPENDLENS_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("SPENDLENS_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("SPENDLENS_OVERALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.OverallTimeout = d
		}
	}
	if v := os.Getenv("SPENDLENS_STEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.StepTimeout = d
		}
	}
	if v := os.Getenv("SPENDLENS_GLOBAL_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Orchestrator.GlobalConcurrencyCap = n
		}
	}
}
