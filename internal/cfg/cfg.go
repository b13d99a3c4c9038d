// Package cfg loads service configuration from a YAML file selected by
// CONFIG_FILE, with environment-variable overrides and a validation pass.
// Without a config file every setting falls back to environment variables
// and defaults.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	ModelDir       string
	ModelBaseURL   string
	Attribution    bool
	ListenPort     int
	MetricsPort    int
	DashboardPort  int
	DataPath       string
	RequestTimeout time.Duration
	FetchTimeout   time.Duration
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Models struct {
		Dir         string `yaml:"dir"`
		BaseURL     string `yaml:"baseURL"`
		Attribution *bool  `yaml:"attribution"`
	} `yaml:"models"`

	Server struct {
		ListenPort     int    `yaml:"listenPort"`
		MetricsPort    int    `yaml:"metricsPort"`
		DashboardPort  int    `yaml:"dashboardPort"`
		RequestTimeout string `yaml:"requestTimeout"`
	} `yaml:"server"`

	System struct {
		DataPath     string `yaml:"dataPath"`
		FetchTimeout string `yaml:"fetchTimeout"`
	} `yaml:"system"`
}

// Load resolves settings from CONFIG_FILE when set, falling back to the
// environment otherwise.
func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	requestTimeout, err := time.ParseDuration(config.Server.RequestTimeout)
	if err != nil {
		requestTimeout = 5 * time.Second
	}
	fetchTimeout, err := time.ParseDuration(config.System.FetchTimeout)
	if err != nil {
		fetchTimeout = 30 * time.Second
	}

	attribution := true
	if config.Models.Attribution != nil {
		attribution = *config.Models.Attribution
	}

	settings := Settings{
		ModelDir:       getEnvOrDefault("MODEL_DIR", config.Models.Dir),
		ModelBaseURL:   getEnvOrDefault("MODEL_BASE_URL", config.Models.BaseURL),
		Attribution:    getBoolFromEnvOrConfig("ATTRIBUTION", attribution),
		ListenPort:     getIntFromEnvOrConfig("LISTEN_PORT", config.Server.ListenPort),
		MetricsPort:    getIntFromEnvOrConfig("METRICS_PORT", config.Server.MetricsPort),
		DashboardPort:  getIntFromEnvOrConfig("DASHBOARD_PORT", config.Server.DashboardPort),
		DataPath:       getEnvOrDefault("DATA_PATH", config.System.DataPath),
		RequestTimeout: requestTimeout,
		FetchTimeout:   fetchTimeout,
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelDir:       getEnvOrDefault("MODEL_DIR", "models"),
		ModelBaseURL:   os.Getenv("MODEL_BASE_URL"), // optional
		Attribution:    getBoolOrDefault("ATTRIBUTION", true),
		ListenPort:     getIntOrDefault("LISTEN_PORT", 8080),
		MetricsPort:    getIntOrDefault("METRICS_PORT", 9090),
		DashboardPort:  getIntOrDefault("DASHBOARD_PORT", 0),
		DataPath:       os.Getenv("DATA_PATH"), // optional
		RequestTimeout: getDurationOrDefault("REQUEST_TIMEOUT", 5*time.Second),
		FetchTimeout:   getDurationOrDefault("FETCH_TIMEOUT", 30*time.Second),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func applyDefaults(s *Settings) {
	if s.ModelDir == "" {
		s.ModelDir = "models"
	}
	if s.ListenPort == 0 {
		s.ListenPort = 8080
	}
	if s.MetricsPort == 0 {
		s.MetricsPort = 9090
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return configValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs range checks on the resolved configuration.
func validateSettings(s *Settings) error {
	if s.ModelDir == "" {
		return fmt.Errorf("model directory cannot be empty")
	}
	if s.ListenPort < 1 || s.ListenPort > 65535 {
		return fmt.Errorf("listen port must be between 1 and 65535, got %d", s.ListenPort)
	}
	if s.MetricsPort < 1024 || s.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", s.MetricsPort)
	}
	if s.MetricsPort == s.ListenPort {
		return fmt.Errorf("metrics port must differ from listen port, both are %d", s.ListenPort)
	}
	if s.DashboardPort != 0 && (s.DashboardPort < 1024 || s.DashboardPort > 65535) {
		return fmt.Errorf("dashboard port must be 0 (disabled) or between 1024 and 65535, got %d", s.DashboardPort)
	}
	if s.RequestTimeout < 100*time.Millisecond || s.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", s.RequestTimeout)
	}
	if s.FetchTimeout < time.Second || s.FetchTimeout > 10*time.Minute {
		return fmt.Errorf("fetch timeout must be between 1s and 10m, got %v", s.FetchTimeout)
	}
	return nil
}
