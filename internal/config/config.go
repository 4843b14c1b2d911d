// Package config loads server and CLI settings: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"probe-go/internal/service"
)

// DefaultPath is read when PROBE_CONFIG is unset.
const DefaultPath = "probe.yaml"

type Config struct {
	Port              string                   `yaml:"port"`
	AllowedOrigins    []string                 `yaml:"allowed_origins"`
	UploadDir         string                   `yaml:"upload_dir"`
	MaxUploadSize     int64                    `yaml:"max_upload_size"`
	DefaultConfidence float64                  `yaml:"default_confidence"`
	HoursPerMonth     float64                  `yaml:"hours_per_month"`
	SizeColumn        string                   `yaml:"size_column"`
	EffortColumn      string                   `yaml:"effort_column"`
	Database          service.DataSourceConfig `yaml:"database"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:              "8001",
		AllowedOrigins:    []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		UploadDir:         "./uploads",
		MaxUploadSize:     10 << 20,
		DefaultConfidence: 0.95,
		HoursPerMonth:     140,
		SizeColumn:        "LOCs Totales",
		EffortColumn:      "Tiempo Real",
		Database: service.DataSourceConfig{
			Type:    "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

// Load applies the file at path (PROBE_CONFIG or DefaultPath when empty) and
// the environment on top of Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PROBE_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}
	if err := loadFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise surface as request errors.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if math.IsNaN(c.DefaultConfidence) || c.DefaultConfidence <= 0 || c.DefaultConfidence >= 1 {
		return fmt.Errorf("default_confidence %v must be in (0,1)", c.DefaultConfidence)
	}
	if math.IsNaN(c.HoursPerMonth) || math.IsInf(c.HoursPerMonth, 0) || c.HoursPerMonth <= 0 {
		return fmt.Errorf("hours_per_month %v must be positive and finite", c.HoursPerMonth)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max_upload_size %d must be positive", c.MaxUploadSize)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("PROBE_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("PROBE_UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("PROBE_SIZE_COLUMN"); v != "" {
		cfg.SizeColumn = v
	}
	if v := os.Getenv("PROBE_EFFORT_COLUMN"); v != "" {
		cfg.EffortColumn = v
	}
	if v := os.Getenv("PROBE_MAX_UPLOAD_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PROBE_MAX_UPLOAD_SIZE: %w", err)
		}
		cfg.MaxUploadSize = n
	}
	if v := os.Getenv("PROBE_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PROBE_CONFIDENCE: %w", err)
		}
		cfg.DefaultConfidence = f
	}
	if v := os.Getenv("PROBE_HOURS_PER_MONTH"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PROBE_HOURS_PER_MONTH: %w", err)
		}
		cfg.HoursPerMonth = f
	}

	// Database
	if v := os.Getenv("PROBE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PROBE_DB_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PROBE_DB_PORT: %w", err)
		}
		cfg.Database.Port = n
	}
	if v := os.Getenv("PROBE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PROBE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PROBE_DB_NAME"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("PROBE_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
