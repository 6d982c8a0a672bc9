package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "./sensorguard.toml"

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Retention RetentionConfig `toml:"retention"`
	Notify    NotifyConfig    `toml:"notify"`
	Oracle    OracleConfig    `toml:"oracle"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	HTTPAddr string `toml:"http_addr"`
}

// DatabaseConfig uses a tagged union: Type decides which fields matter.
type DatabaseConfig struct {
	Type string `toml:"type"`           // "sqlite" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=sqlite
	Env  string `toml:"env"`            // "dev" | "prod"
}

type MonitorConfig struct {
	Interval           Duration `toml:"interval"`
	OracleTimeout      Duration `toml:"oracle_timeout"`
	HostAppID          string   `toml:"host_app_id"`
	MaxParallelQueries int      `toml:"max_parallel_queries"`
	Timezone           string   `toml:"timezone"` // IANA name or "Local"
}

type RetentionConfig struct {
	LogRetentionDays   int `toml:"log_retention_days"` // 0 = keep forever
	PruneIntervalHours int `toml:"prune_interval_hours"`
}

type NotifyConfig struct {
	URLs        []string `toml:"urls"`
	MinInterval Duration `toml:"min_interval"`
	Burst       int      `toml:"burst"`
	QueueSize   int      `toml:"queue_size"`
	Timeout     Duration `toml:"timeout"`
}

// OracleConfig uses a tagged union: Type decides which fields matter.
type OracleConfig struct {
	Type           string   `toml:"type"` // "adb" or "none"
	ADBPath        string   `toml:"adb_path,omitempty"`
	Serial         string   `toml:"serial,omitempty"`
	CommandTimeout Duration `toml:"command_timeout"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file,omitempty"`
}

// Duration is a time.Duration written as a string ("5s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() Config {
	return Config{
		Server: ServerConfig{HTTPAddr: "127.0.0.1:8787"},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./data/sensorguard.db",
			Env:  "dev",
		},
		Monitor: MonitorConfig{
			Interval:           Duration{5 * time.Second},
			OracleTimeout:      Duration{3 * time.Second},
			HostAppID:          "com.sensorguard",
			MaxParallelQueries: 4,
			Timezone:           "Local",
		},
		Retention: RetentionConfig{
			LogRetentionDays:   30,
			PruneIntervalHours: 6,
		},
		Notify: NotifyConfig{
			URLs:        []string{},
			MinInterval: Duration{10 * time.Second},
			Burst:       3,
			QueueSize:   64,
			Timeout:     Duration{10 * time.Second},
		},
		Oracle: OracleConfig{
			Type:           "adb",
			ADBPath:        "adb",
			CommandTimeout: Duration{3 * time.Second},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r on top of the defaults.
func (m *Manager) Read(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func (m *Manager) Write(w io.Writer, cfg Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Load reads path (a missing file means defaults), applies SENSORGUARD_*
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to open config file: %w", err)
		default:
			defer f.Close()
			m := &Manager{}
			if cfg, err = m.Read(f); err != nil {
				return Config{}, fmt.Errorf("reading config from %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for type sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database.type %q", c.Database.Type)
	}
	switch c.Oracle.Type {
	case "adb", "none":
	default:
		return fmt.Errorf("unknown oracle.type %q", c.Oracle.Type)
	}
	if c.Monitor.Interval.Duration <= 0 {
		return errors.New("monitor.interval must be positive")
	}
	if c.Monitor.OracleTimeout.Duration <= 0 {
		return errors.New("monitor.oracle_timeout must be positive")
	}
	if c.Retention.LogRetentionDays < 0 {
		return errors.New("retention.log_retention_days must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Monitor.Timezone; day buckets are computed in it.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Monitor.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("monitor.timezone: %w", err)
	}
	return loc, nil
}

func applyEnv(c *Config) {
	c.Server.HTTPAddr = getenvDefault("SENSORGUARD_HTTP_ADDR", c.Server.HTTPAddr)

	c.Database.Type = strings.ToLower(getenvDefault("SENSORGUARD_DB_TYPE", c.Database.Type))
	c.Database.Path = getenvDefault("SENSORGUARD_DB_PATH", c.Database.Path)
	env := strings.ToLower(getenvDefault("SENSORGUARD_ENV", c.Database.Env))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}
	c.Database.Env = env

	c.Monitor.Interval = getenvDuration("SENSORGUARD_INTERVAL", c.Monitor.Interval)
	c.Monitor.HostAppID = getenvDefault("SENSORGUARD_HOST_APP_ID", c.Monitor.HostAppID)
	c.Monitor.Timezone = getenvDefault("SENSORGUARD_TIMEZONE", c.Monitor.Timezone)

	c.Retention.LogRetentionDays = getenvInt("SENSORGUARD_LOG_RETENTION_DAYS", c.Retention.LogRetentionDays)
	c.Retention.PruneIntervalHours = getenvInt("SENSORGUARD_PRUNE_INTERVAL_HOURS", c.Retention.PruneIntervalHours)

	if urls := splitCSV(os.Getenv("SENSORGUARD_NOTIFY_URLS")); urls != nil {
		c.Notify.URLs = urls
	}

	c.Oracle.Type = strings.ToLower(getenvDefault("SENSORGUARD_ORACLE", c.Oracle.Type))
	c.Oracle.ADBPath = getenvDefault("SENSORGUARD_ADB_PATH", c.Oracle.ADBPath)
	c.Oracle.Serial = getenvDefault("SENSORGUARD_ADB_SERIAL", c.Oracle.Serial)

	c.Logging.Level = getenvDefault("SENSORGUARD_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getenvDefault("SENSORGUARD_LOG_FORMAT", c.Logging.Format)
	c.Logging.File = getenvDefault("SENSORGUARD_LOG_FILE", c.Logging.File)
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def Duration) Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return Duration{d}
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
