package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type APIConfig struct {
	Addr        string        `json:"addr" yaml:"addr"`
	DataFile    string        `json:"data_file" yaml:"data_file"`
	DatabaseURL string        `json:"database_url" yaml:"database_url"`
	StaticDir   string        `json:"static_dir" yaml:"static_dir"`
	CloseEvery  time.Duration `json:"-" yaml:"-"`

	// WorkerRunOnce makes fridge-worker perform a single close attempt and
	// exit instead of ticking.
	WorkerRunOnce bool `json:"-" yaml:"-"`

	// CloseEveryRaw holds the file-level duration string; env and file both
	// feed CloseEvery after parsing.
	CloseEveryRaw string `json:"close_every,omitempty" yaml:"close_every,omitempty"`
}

type CLIConfig struct {
	APIBaseURL string
}

// LoadAPIFromEnv builds the server/worker configuration. Order of precedence:
// built-in defaults, then an optional YAML/JSON file named by FRIDGE_CONFIG,
// then environment variables. A .env file in the working directory is loaded
// first when present.
func LoadAPIFromEnv() (APIConfig, error) {
	_ = godotenv.Load()

	cfg := APIConfig{
		Addr:       ":8080",
		DataFile:   filepath.Join("data", "leaderboard.json"),
		StaticDir:  "static",
		CloseEvery: time.Hour,
	}

	if path := strings.TrimSpace(os.Getenv("FRIDGE_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if addr := strings.TrimSpace(os.Getenv("PORT")); addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
		cfg.Addr = addr
	} else if addr := strings.TrimSpace(os.Getenv("FRIDGE_API_ADDR")); addr != "" {
		cfg.Addr = addr
	}
	if v := strings.TrimSpace(os.Getenv("FRIDGE_DATA_FILE")); v != "" {
		cfg.DataFile = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FRIDGE_STATIC_DIR")); v != "" {
		cfg.StaticDir = v
	}
	cfg.CloseEvery = envDurationDefault("FRIDGE_CLOSE_EVERY", cfg.CloseEvery)
	cfg.WorkerRunOnce = envBoolDefault("FRIDGE_WORKER_RUN_ONCE", false)

	if cfg.DataFile == "" && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("either a data file or DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	_ = godotenv.Load()
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("FRG_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

// loadFile merges a YAML or JSON config file into cfg, chosen by extension.
func loadFile(path string, cfg *APIConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("parse json config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config extension: %s", path)
	}
	if cfg.CloseEveryRaw != "" {
		d, err := time.ParseDuration(cfg.CloseEveryRaw)
		if err != nil {
			return fmt.Errorf("parse close_every: %w", err)
		}
		cfg.CloseEvery = d
	}
	return nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
