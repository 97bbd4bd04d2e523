package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"explainprof/internal/common"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	Kind         string
	VariableType string
	Variables    []string
	Groups       []string
	Span         float64
	Center       bool
	RandomSeed   *int64

	ProfilePaths []string
	ProfileURL   string
	HTTPTimeout  time.Duration

	OutputPath string
	DataPath   string
	FacetNcol  int

	MetricsPort int
	LogLevel    string
}

type ConfigFile struct {
	Explanation struct {
		Kind         string   `yaml:"kind"`
		VariableType string   `yaml:"variableType"`
		Variables    []string `yaml:"variables"`
		Groups       []string `yaml:"groups"`
		Span         float64  `yaml:"span"`
		Center       *bool    `yaml:"center"`
		RandomSeed   *int64   `yaml:"randomSeed"`
	} `yaml:"explanation"`

	Input struct {
		Paths       []string `yaml:"paths"`
		URL         string   `yaml:"url"`
		HTTPTimeout string   `yaml:"httpTimeout"`
	} `yaml:"input"`

	Output struct {
		Path      string `yaml:"path"`
		DataPath  string `yaml:"dataPath"`
		FacetNcol int    `yaml:"facetNcol"`
	} `yaml:"output"`

	System struct {
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
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

	httpTimeout, err := time.ParseDuration(config.Input.HTTPTimeout)
	if err != nil {
		httpTimeout = 5 * time.Second
	}

	center := true
	if config.Explanation.Center != nil {
		center = *config.Explanation.Center
	}

	span := config.Explanation.Span
	if span == 0 {
		span = common.DefaultSpan
	}

	settings := Settings{
		Kind:         getEnvOrDefault(common.EnvProfileKind, orDefault(config.Explanation.Kind, "partial")),
		VariableType: getEnvOrDefault(common.EnvVariableType, orDefault(config.Explanation.VariableType, "numerical")),
		Variables:    splitOrDefault(os.Getenv(common.EnvVariables), config.Explanation.Variables),
		Groups:       splitOrDefault(os.Getenv(common.EnvGroups), config.Explanation.Groups),
		Span:         getFloatOrDefault(common.EnvSpan, span),
		Center:       getBoolOrDefault(common.EnvCenter, center),
		RandomSeed:   seedFromEnvOrConfig(config.Explanation.RandomSeed),
		ProfilePaths: config.Input.Paths,
		ProfileURL:   getEnvOrDefault(common.EnvProfileURL, config.Input.URL),
		HTTPTimeout:  getDurationOrDefault(common.EnvHTTPTimeout, httpTimeout),
		OutputPath:   getEnvOrDefault(common.EnvOutputPath, orDefault(config.Output.Path, common.DefaultOutputPath)),
		DataPath:     getEnvOrDefault(common.EnvDataPath, config.Output.DataPath),
		FacetNcol:    getIntOrDefault(common.EnvFacetNcol, orDefaultInt(config.Output.FacetNcol, common.DefaultFacetNcol)),
		MetricsPort:  getIntOrDefault(common.EnvMetricsPort, config.System.MetricsPort),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, "info")),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Kind:         getEnvOrDefault(common.EnvProfileKind, "partial"),
		VariableType: getEnvOrDefault(common.EnvVariableType, "numerical"),
		Variables:    splitOrDefault(os.Getenv(common.EnvVariables), nil),
		Groups:       splitOrDefault(os.Getenv(common.EnvGroups), nil),
		Span:         getFloatOrDefault(common.EnvSpan, common.DefaultSpan),
		Center:       getBoolOrDefault(common.EnvCenter, true),
		RandomSeed:   seedFromEnvOrConfig(nil),
		ProfileURL:   os.Getenv(common.EnvProfileURL),
		HTTPTimeout:  getDurationOrDefault(common.EnvHTTPTimeout, 5*time.Second),
		OutputPath:   getEnvOrDefault(common.EnvOutputPath, common.DefaultOutputPath),
		DataPath:     os.Getenv(common.EnvDataPath), // optional
		FacetNcol:    getIntOrDefault(common.EnvFacetNcol, common.DefaultFacetNcol),
		MetricsPort:  getIntOrDefault(common.EnvMetricsPort, 0),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, "info"),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
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

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func seedFromEnvOrConfig(configValue *int64) *int64 {
	if v := os.Getenv(common.EnvRandomSeed); v != "" {
		if s, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &s
		}
	}
	return configValue
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orDefaultInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	switch settings.Kind {
	case "partial", "conditional", "accumulated":
	default:
		return fmt.Errorf("profile kind must be partial, conditional or accumulated, got %q", settings.Kind)
	}

	switch settings.VariableType {
	case "numerical", "categorical":
	default:
		return fmt.Errorf("variable type must be numerical or categorical, got %q", settings.VariableType)
	}

	if settings.Span <= 0 || settings.Span > 1 {
		return fmt.Errorf("span must be between 0 and 1, got %g", settings.Span)
	}

	if settings.FacetNcol <= 0 || settings.FacetNcol > 10 {
		return fmt.Errorf("facet column count must be between 1 and 10, got %d", settings.FacetNcol)
	}

	if settings.HTTPTimeout < time.Second || settings.HTTPTimeout > time.Minute {
		return fmt.Errorf("HTTP timeout must be between 1s and 1m, got %v", settings.HTTPTimeout)
	}

	if settings.MetricsPort != 0 && (settings.MetricsPort < 1024 || settings.MetricsPort > 65535) {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}

	if settings.OutputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}

	return nil
}
