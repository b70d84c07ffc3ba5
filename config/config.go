package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Path to the sqlite data file
	DBPath  string `yaml:"db_path"`
	LogMode string `yaml:"log_mode"`

	Report  ReportConfig  `yaml:"report"`
	Journal JournalConfig `yaml:"journal"`
}

// ReportConfig controls the usage chart
type ReportConfig struct {
	Path   string `yaml:"path"`
	Days   int    `yaml:"days"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// JournalConfig controls the raft write journal
type JournalConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	NodeID   string `yaml:"node_id"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DBPath:  "filaments.db",
		LogMode: "dev",
		Report: ReportConfig{
			Path:   "filament_usage_report.png",
			Days:   365,
			Width:  1200,
			Height: 600,
		},
		Journal: JournalConfig{
			Dir:      "filament-journal",
			NodeID:   "filament-1",
			LogLevel: "ERROR",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file and the
// environment, in that order. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DBPath = getEnv("FILAMENT_DB", c.DBPath)
	c.LogMode = getEnv("FILAMENT_LOG_MODE", c.LogMode)
	c.Report.Path = getEnv("FILAMENT_REPORT_PATH", c.Report.Path)
	c.Report.Days = getEnvInt("FILAMENT_REPORT_DAYS", c.Report.Days)
	c.Journal.Enabled = getEnvBool("FILAMENT_JOURNAL", c.Journal.Enabled)
	c.Journal.Dir = getEnv("FILAMENT_JOURNAL_DIR", c.Journal.Dir)
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Report.Days <= 0 {
		return fmt.Errorf("report days must be positive, got %d", c.Report.Days)
	}
	if c.Report.Width <= 0 || c.Report.Height <= 0 {
		return fmt.Errorf("report size must be positive, got %dx%d", c.Report.Width, c.Report.Height)
	}
	if c.Journal.Enabled && (c.Journal.Dir == "" || c.Journal.NodeID == "") {
		return fmt.Errorf("journal dir and node id are required when the journal is enabled")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
