// Package config loads runtime settings from defaults, an optional .env file,
// an optional YAML file and DAYPLAN_* environment variables, in that order.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

type Config struct {
	LLM      LLM      `yaml:"llm" mapstructure:"llm"`
	Maps     Maps     `yaml:"maps" mapstructure:"maps"`
	Calendar Calendar `yaml:"calendar" mapstructure:"calendar"`
	Storage  Storage  `yaml:"storage" mapstructure:"storage"`
	Planner  Planner  `yaml:"planner" mapstructure:"planner"`
	Log      Log      `yaml:"log" mapstructure:"log"`
}

// LLM selects the language model backend.
type LLM struct {
	Provider       string  `yaml:"provider" mapstructure:"provider"`
	Model          string  `yaml:"model" mapstructure:"model"`
	APIKey         string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	Binary         string  `yaml:"binary,omitempty" mapstructure:"binary"`
}

func (l LLM) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

type Maps struct {
	APIKey          string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	CacheSize       int    `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

func (m Maps) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLMinutes) * time.Minute
}

type Calendar struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	TokenFile       string `yaml:"token_file" mapstructure:"token_file"`
	Name            string `yaml:"name" mapstructure:"name"`
}

type Storage struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
	DSN    string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

type Planner struct {
	HorizonDays            int    `yaml:"horizon_days" mapstructure:"horizon_days"`
	HomeAddress            string `yaml:"home_address" mapstructure:"home_address"`
	TransportMode          string `yaml:"transport_mode" mapstructure:"transport_mode"`
	DayStart               string `yaml:"day_start" mapstructure:"day_start"`
	DayEnd                 string `yaml:"day_end" mapstructure:"day_end"`
	LocationTimeoutSeconds int    `yaml:"location_timeout_seconds" mapstructure:"location_timeout_seconds"`
	AutosaveDelayMillis    int    `yaml:"autosave_delay_ms" mapstructure:"autosave_delay_ms"`
	SchedulerBuffer        int    `yaml:"scheduler_buffer" mapstructure:"scheduler_buffer"`
}

func (p Planner) LocationTimeout() time.Duration {
	return time.Duration(p.LocationTimeoutSeconds) * time.Second
}

func (p Planner) AutosaveDelay() time.Duration {
	return time.Duration(p.AutosaveDelayMillis) * time.Millisecond
}

type Log struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const (
	ProviderGemini    = "gemini"
	ProviderClaudeCLI = "claude-cli"
	ProviderNone      = "none"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"
	DriverMemory   = "memory"
)

func Default() Config {
	return Config{
		LLM: LLM{
			Provider:       ProviderGemini,
			Model:          "gemini-2.5-flash",
			Temperature:    0.2,
			MaxTokens:      4096,
			TimeoutSeconds: 60,
			Binary:         "claude",
		},
		Maps: Maps{
			CacheSize:       256,
			CacheTTLMinutes: 30,
		},
		Calendar: Calendar{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			Name:            "primary",
		},
		Storage: Storage{
			Driver: DriverSQLite,
			Path:   "dayplan.db",
		},
		Planner: Planner{
			HorizonDays:            60,
			HomeAddress:            "",
			TransportMode:          "driving",
			DayStart:               "8:00 AM",
			DayEnd:                 "10:00 PM",
			LocationTimeoutSeconds: 5,
			AutosaveDelayMillis:    500,
			SchedulerBuffer:        64,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. envFile and path are optional; a missing
// file is skipped, a malformed one is an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return cfg, apperr.Wrapf(apperr.KindConfiguration, "config.Load", err, "read %s", envFile)
			}
		}
	}

	if path != "" {
		if err := loadFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return cfg, apperr.Wrapf(apperr.KindConfiguration, "config.Load", err, "read %s", path)
		}
	}

	cfg = FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(cfg)
}

// FromEnv applies DAYPLAN_* overrides on top of base.
func FromEnv(base Config) Config {
	cfg := base
	if v, ok := getEnvString("DAYPLAN_LLM_PROVIDER"); ok {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v, ok := getEnvString("DAYPLAN_LLM_MODEL"); ok {
		cfg.LLM.Model = v
	}
	if v, ok := getEnvString("DAYPLAN_LLM_API_KEY"); ok {
		cfg.LLM.APIKey = v
	} else if v, ok := getEnvString("GEMINI_API_KEY"); ok && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v, ok := getEnvInt("DAYPLAN_LLM_TIMEOUT_SECONDS"); ok && v > 0 {
		cfg.LLM.TimeoutSeconds = v
	}
	if v, ok := getEnvInt("DAYPLAN_LLM_MAX_TOKENS"); ok && v > 0 {
		cfg.LLM.MaxTokens = v
	}
	if v, ok := getEnvString("DAYPLAN_MAPS_API_KEY"); ok {
		cfg.Maps.APIKey = v
	}
	if v, ok := getEnvInt("DAYPLAN_MAPS_CACHE_SIZE"); ok && v > 0 {
		cfg.Maps.CacheSize = v
	}
	if v, ok := getEnvInt("DAYPLAN_MAPS_CACHE_TTL_MINUTES"); ok && v > 0 {
		cfg.Maps.CacheTTLMinutes = v
	}
	if v, ok := getEnvBool("DAYPLAN_CALENDAR_ENABLED"); ok {
		cfg.Calendar.Enabled = v
	}
	if v, ok := getEnvString("DAYPLAN_CALENDAR_NAME"); ok {
		cfg.Calendar.Name = v
	}
	if v, ok := getEnvString("DAYPLAN_STORAGE_DRIVER"); ok {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvString("DAYPLAN_STORAGE_PATH"); ok {
		cfg.Storage.Path = v
	}
	if v, ok := getEnvString("DAYPLAN_STORAGE_DSN"); ok {
		cfg.Storage.DSN = v
	}
	if v, ok := getEnvInt("DAYPLAN_HORIZON_DAYS"); ok && v > 0 {
		cfg.Planner.HorizonDays = v
	}
	if v, ok := getEnvString("DAYPLAN_HOME_ADDRESS"); ok {
		cfg.Planner.HomeAddress = v
	}
	if v, ok := getEnvString("DAYPLAN_TRANSPORT_MODE"); ok {
		cfg.Planner.TransportMode = strings.ToLower(v)
	}
	if v, ok := getEnvInt("DAYPLAN_AUTOSAVE_MS"); ok && v >= 0 {
		cfg.Planner.AutosaveDelayMillis = v
	}
	if v, ok := getEnvInt("DAYPLAN_SCHEDULER_BUFFER"); ok && v > 0 {
		cfg.Planner.SchedulerBuffer = v
	}
	if v, ok := getEnvString("DAYPLAN_LOG_LEVEL"); ok {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvString("DAYPLAN_LOG_FORMAT"); ok {
		cfg.Log.Format = strings.ToLower(v)
	}
	return cfg
}

func (c Config) Validate() error {
	const op = "config.Validate"
	switch c.LLM.Provider {
	case ProviderGemini, ProviderClaudeCLI, ProviderNone:
	default:
		return apperr.New(apperr.KindConfiguration, op, fmt.Sprintf("unknown llm provider %q", c.LLM.Provider))
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverFile:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return apperr.New(apperr.KindConfiguration, op, "storage path is required for "+c.Storage.Driver)
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return apperr.New(apperr.KindConfiguration, op, "storage dsn is required for postgres")
		}
	case DriverMemory:
	default:
		return apperr.New(apperr.KindConfiguration, op, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Planner.HorizonDays <= 0 {
		return apperr.New(apperr.KindConfiguration, op, "planner horizon must be positive")
	}
	if _, _, err := timemath.ParseClock(c.Planner.DayStart); err != nil {
		return apperr.Wrapf(apperr.KindConfiguration, op, err, "day_start")
	}
	if _, _, err := timemath.ParseClock(c.Planner.DayEnd); err != nil {
		return apperr.Wrapf(apperr.KindConfiguration, op, err, "day_end")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return apperr.Wrap(apperr.KindConfiguration, op, err)
	}
	return nil
}

// Save writes cfg as YAML through a temp file and rename.
func Save(path string, cfg Config) error {
	payload, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// NewLogger builds the process logger described by l.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}
