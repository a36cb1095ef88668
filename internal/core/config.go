package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire groktime configuration.
type Config struct {
	Rules     RulesConfig     `yaml:"rules"`
	Output    OutputConfig    `yaml:"output"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Journal   JournalConfig   `yaml:"journal"`
	Bus       BusConfig       `yaml:"bus"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RulesConfig locates the pattern store.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig locates the output JSON file.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// SynthesisConfig controls how new rules are accepted.
type SynthesisConfig struct {
	Enabled bool `yaml:"enabled"`
	Strict  bool `yaml:"strict"` // structural lint before a candidate is tested
}

// OracleConfig holds the pattern synthesis provider settings.
type OracleConfig struct {
	Provider          string        `yaml:"provider"` // "openai" or "gemini"
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"api_base_url"`
	APIKeys           []string      `yaml:"api_keys"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxOutputTokens   int           `yaml:"max_output_tokens"`
}

// JournalConfig holds the synthesis journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// BusConfig holds NATS record publishing settings.
type BusConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Embedded      bool   `yaml:"embedded"`
	DataDir       string `yaml:"data_dir"`
	Port          int    `yaml:"port"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// MetricsConfig enables the end-of-run counter summary.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config that works without a config file.
func DefaultConfig() *Config {
	return &Config{
		Rules:  RulesConfig{Path: "patterns.json"},
		Output: OutputConfig{Path: "out.json"},
		Synthesis: SynthesisConfig{
			Enabled: true,
			Strict:  true,
		},
		Oracle: OracleConfig{
			Provider:          "openai",
			Model:             "gpt-5-nano",
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
			MaxOutputTokens:   1024,
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "groktime.db",
		},
		Bus: BusConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			Embedded:      false,
			DataDir:       "./data/nats",
			Port:          4222,
			SubjectPrefix: "groktime",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if p := os.Getenv("GROKTIME_ORACLE_PROVIDER"); p != "" {
		cfg.Oracle.Provider = p
	}
	cfg.Oracle.Provider = strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail late in a run.
func (c *Config) Validate() error {
	switch c.Oracle.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("oracle.provider %q: must be openai or gemini", c.Oracle.Provider)
	}
	if c.Rules.Path == "" {
		return fmt.Errorf("rules.path must not be empty")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive")
	}
	return nil
}

// LogLevel returns the lower-cased log level string.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Logging.Level)
}
