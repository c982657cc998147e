package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	Address      string        `yaml:"address"`
	DatabasePath string        `yaml:"database_path"`
	BaseURL      string        `yaml:"base_url"`
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	WebDist      string        `yaml:"web_dist"`
	Log          LogConfig     `yaml:"log"`
	Admin        AdminConfig   `yaml:"admin"`
	Storage      StorageConfig `yaml:"storage"`
	Chat         ChatConfig    `yaml:"chat"`
	Reaper       ReaperConfig  `yaml:"reaper"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// AdminConfig is the console account seeded on first start.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// StorageConfig selects where uploaded files go.
type StorageConfig struct {
	Driver     string    `yaml:"driver"` // local or oss
	LocalDir   string    `yaml:"local_dir"`
	PublicBase string    `yaml:"public_base"`
	MaxBytes   int64     `yaml:"max_bytes"`
	OSS        OSSConfig `yaml:"oss"`
}

// OSSConfig holds Aliyun OSS credentials.
type OSSConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Bucket          string `yaml:"bucket"`
}

// ChatConfig points at an OpenAI-compatible chat completions endpoint.
// An empty Endpoint disables the assistant.
type ChatConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxHistory     int           `yaml:"max_history"`
	CatalogContext int           `yaml:"catalog_context"`
}

// ReaperConfig schedules hard deletion of soft-deleted resources.
type ReaperConfig struct {
	Schedule  string        `yaml:"schedule"`
	Retention time.Duration `yaml:"retention"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Address:      ":8080",
		DatabasePath: "kbase.db",
		BaseURL:      "http://localhost:8080",
		TokenTTL:     24 * time.Hour,
		WebDist:      "./web/dist",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Admin: AdminConfig{
			Email:    "admin@kbase.local",
			Password: "changeme",
		},
		Storage: StorageConfig{
			Driver:   "local",
			LocalDir: "./data/files",
			MaxBytes: 50 << 20,
		},
		Chat: ChatConfig{
			Model:          "gpt-4o-mini",
			Timeout:        30 * time.Second,
			MaxHistory:     20,
			CatalogContext: 50,
		},
		Reaper: ReaperConfig{
			Schedule:  "15 3 * * *",
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file and environment overrides, in that order.
// An empty path falls back to KBASE_CONFIG.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("KBASE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Address, "KBASE_ADDRESS")
	if port := getEnv("PORT"); port != "" {
		cfg.Address = ":" + port
	}
	setString(&cfg.DatabasePath, "KBASE_DB_PATH")
	setString(&cfg.BaseURL, "KBASE_BASE_URL")
	setString(&cfg.JWTSecret, "KBASE_JWT_SECRET")
	setDuration(&cfg.TokenTTL, "KBASE_TOKEN_TTL")
	setString(&cfg.WebDist, "KBASE_WEB_DIST")
	setString(&cfg.Log.Level, "KBASE_LOG_LEVEL")
	setString(&cfg.Log.Format, "KBASE_LOG_FORMAT")
	setString(&cfg.Admin.Email, "KBASE_ADMIN_EMAIL")
	setString(&cfg.Admin.Password, "KBASE_ADMIN_PASSWORD")

	setString(&cfg.Storage.Driver, "KBASE_STORAGE_DRIVER")
	setString(&cfg.Storage.LocalDir, "KBASE_STORAGE_DIR")
	setString(&cfg.Storage.PublicBase, "ALI_OSS_PUBLIC_BASE")
	setInt64(&cfg.Storage.MaxBytes, "KBASE_UPLOAD_MAX_BYTES")
	setString(&cfg.Storage.OSS.Endpoint, "ALI_OSS_ENDPOINT")
	setString(&cfg.Storage.OSS.AccessKeyID, "ALI_OSS_ACCESS_KEY")
	setString(&cfg.Storage.OSS.AccessKeySecret, "ALI_OSS_SECRET_KEY")
	setString(&cfg.Storage.OSS.Bucket, "ALI_OSS_BUCKET")

	setString(&cfg.Chat.Endpoint, "KBASE_CHAT_ENDPOINT")
	setString(&cfg.Chat.APIKey, "KBASE_CHAT_API_KEY")
	setString(&cfg.Chat.Model, "KBASE_CHAT_MODEL")
	setDuration(&cfg.Chat.Timeout, "KBASE_CHAT_TIMEOUT")

	setString(&cfg.Reaper.Schedule, "KBASE_REAPER_SCHEDULE")
	setDuration(&cfg.Reaper.Retention, "KBASE_REAPER_RETENTION")
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir is required for the local driver"))
		}
	case "oss":
		o := c.Storage.OSS
		if o.Endpoint == "" || o.AccessKeyID == "" || o.AccessKeySecret == "" || o.Bucket == "" {
			errs = append(errs, errors.New("storage.oss requires endpoint, access_key_id, access_key_secret and bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be local or oss, got %q", c.Storage.Driver))
	}
	if c.Storage.MaxBytes <= 0 {
		errs = append(errs, errors.New("storage.max_bytes must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func setString(dst *string, key string) {
	if v := getEnv(key); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) {
	if v := getEnv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := getEnv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
