package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultPluginsPath    = "/Library/Application Support/Avid/Audio/Plug-Ins"
	DefaultReportsPath    = "~/Dropbox/Pro Tools Plugin Reports"
	DefaultReportsBackend = BackendLocal
	DefaultServerAddress  = "127.0.0.1:8765"
	DefaultUpdateRepo     = "eric-silverman/pro-tools-plugin-sync"

	DefaultScanIntervalSeconds = 3600
	DefaultDebounceSeconds     = 15
	DefaultScanWorkers         = 4

	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"

	envPrefix = "PLUGINSYNC"
)

// ErrConfigNotFound is returned when no config file exists and the
// environment does not name the machine either.
var ErrConfigNotFound = errors.New("config not found")

// Config stores all configuration of the application.
// The values are read by viper from the config file, a sibling .env file
// or PLUGINSYNC_* environment variables.
type Config struct {
	// Identity
	MachineName string `mapstructure:"machine_name" validate:"required"`

	// Paths
	PluginsPath string `mapstructure:"plugins_path" validate:"required"`
	ReportsPath string `mapstructure:"reports_path" validate:"required_if=ReportsBackend local"`

	// Report storage
	ReportsBackend     string `mapstructure:"reports_backend" validate:"oneof=local gcs postgres"`
	GCSBucket          string `mapstructure:"gcs_bucket" validate:"required_if=ReportsBackend gcs"`
	GCSPrefix          string `mapstructure:"gcs_prefix"`
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`
	DatabaseDSN        string `mapstructure:"database_dsn" validate:"required_if=ReportsBackend postgres"`

	// Scheduling
	ScanIntervalSeconds int  `mapstructure:"scan_interval_seconds" validate:"gt=0"`
	DebounceSeconds     int  `mapstructure:"debounce_seconds" validate:"gte=0"`
	HashBinaries        bool `mapstructure:"hash_binaries"`
	PruneDays           int  `mapstructure:"prune_days" validate:"gte=0"`
	ScanWorkers         int  `mapstructure:"scan_workers" validate:"gt=0"`

	// Server
	ServerAddress string `mapstructure:"server_address" validate:"required,hostname_port"`

	// Release checks
	UpdateRepo string `mapstructure:"update_repo" validate:"required,ownerrepo"`
}

// DefaultPath is where setup writes the config file.
func DefaultPath() string {
	return ExpandPath("~/.config/pt-plugin-sync/config.toml")
}

// Default returns a config for this machine with every default applied.
// An empty machineName falls back to the host name.
func Default(machineName string) *Config {
	if strings.TrimSpace(machineName) == "" {
		machineName, _ = os.Hostname()
	}
	return &Config{
		MachineName:         SanitizeMachineName(machineName),
		PluginsPath:         DefaultPluginsPath,
		ReportsPath:         ExpandPath(DefaultReportsPath),
		ReportsBackend:      DefaultReportsBackend,
		ScanIntervalSeconds: DefaultScanIntervalSeconds,
		DebounceSeconds:     DefaultDebounceSeconds,
		ScanWorkers:         DefaultScanWorkers,
		ServerAddress:       DefaultServerAddress,
		UpdateRepo:          DefaultUpdateRepo,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("machine_name", "")
	v.SetDefault("plugins_path", DefaultPluginsPath)
	v.SetDefault("reports_path", DefaultReportsPath)
	v.SetDefault("reports_backend", DefaultReportsBackend)
	v.SetDefault("gcs_bucket", "")
	v.SetDefault("gcs_prefix", "")
	v.SetDefault("gcs_credentials_file", "")
	v.SetDefault("database_dsn", "")
	v.SetDefault("scan_interval_seconds", DefaultScanIntervalSeconds)
	v.SetDefault("debounce_seconds", DefaultDebounceSeconds)
	v.SetDefault("hash_binaries", false)
	v.SetDefault("prune_days", 0)
	v.SetDefault("scan_workers", DefaultScanWorkers)
	v.SetDefault("server_address", DefaultServerAddress)
	v.SetDefault("update_repo", DefaultUpdateRepo)
}

// LoadConfig reads the config file at path (DefaultPath when empty),
// merges a .env file from the same directory and then the environment.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	v := viper.New()

	// 1. Set Defaults
	setDefaults(v)

	// 2. Read the config file if it exists
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		fileFound = false
	}

	// 3. Merge .env if it exists (overriding the config file)
	if err := mergeDotEnv(v, filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	// 4. Environment variables have the highest priority
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if !fileFound && v.GetString("machine_name") == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.Normalize()
	return &config, nil
}

func mergeDotEnv(v *viper.Viper, path string) error {
	handle, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer handle.Close()

	v.SetConfigType("env")
	if err := v.MergeConfig(handle); err != nil {
		return fmt.Errorf("failed to merge %s: %w", path, err)
	}
	return nil
}

// Normalize trims values, lowercases the backend, expands ~ in paths and
// sanitizes the machine name.
func (c *Config) Normalize() {
	c.MachineName = strings.TrimSpace(c.MachineName)
	if c.MachineName != "" {
		c.MachineName = SanitizeMachineName(c.MachineName)
	}
	c.ReportsBackend = strings.ToLower(strings.TrimSpace(c.ReportsBackend))
	if c.ReportsBackend == "" {
		c.ReportsBackend = DefaultReportsBackend
	}
	c.PluginsPath = ExpandPath(strings.TrimSpace(c.PluginsPath))
	c.ReportsPath = ExpandPath(strings.TrimSpace(c.ReportsPath))
	c.GCSCredentialsFile = ExpandPath(strings.TrimSpace(c.GCSCredentialsFile))
	c.GCSPrefix = strings.Trim(strings.TrimSpace(c.GCSPrefix), "/")
}

// Write saves cfg as TOML at path, creating the parent directory.
func Write(path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.Set("machine_name", cfg.MachineName)
	v.Set("plugins_path", cfg.PluginsPath)
	v.Set("reports_path", cfg.ReportsPath)
	v.Set("reports_backend", cfg.ReportsBackend)
	v.Set("scan_interval_seconds", cfg.ScanIntervalSeconds)
	v.Set("debounce_seconds", cfg.DebounceSeconds)
	v.Set("hash_binaries", cfg.HashBinaries)
	v.Set("prune_days", cfg.PruneDays)
	v.Set("scan_workers", cfg.ScanWorkers)
	v.Set("server_address", cfg.ServerAddress)
	v.Set("update_repo", cfg.UpdateRepo)
	switch cfg.ReportsBackend {
	case BackendGCS:
		v.Set("gcs_bucket", cfg.GCSBucket)
		if cfg.GCSPrefix != "" {
			v.Set("gcs_prefix", cfg.GCSPrefix)
		}
		if cfg.GCSCredentialsFile != "" {
			v.Set("gcs_credentials_file", cfg.GCSCredentialsFile)
		}
	case BackendPostgres:
		v.Set("database_dsn", cfg.DatabaseDSN)
	}

	v.SetConfigType("toml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// SanitizeMachineName makes name safe to use inside a file name.
func SanitizeMachineName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, string(os.PathSeparator), "-"))
	name = strings.ReplaceAll(name, "/", "-")
	if name == "" {
		return "unknown-machine"
	}
	return name
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
