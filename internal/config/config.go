// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mssp-monitor/internal/model"
)

// FalconConfig holds CrowdStrike API credentials.
type FalconConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BaseRegion   string `yaml:"base_region"`
}

// MonitorConfig holds scan loop settings.
type MonitorConfig struct {
	CheckInterval     time.Duration `yaml:"check_interval"`
	Cooldown          time.Duration `yaml:"cooldown"`
	ParentDisplayName string        `yaml:"parent_display_name"`
	PinnedCIDs        []string      `yaml:"pinned_cids"`
	LicenseThreshold  int           `yaml:"license_threshold"`
	FetchWorkers      int           `yaml:"fetch_workers"`
	StateFile         string        `yaml:"state_file"`
}

// InfluxDBConfig holds time-series sink settings.
type InfluxDBConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// PushgatewayConfig holds Prometheus Pushgateway sink settings.
type PushgatewayConfig struct {
	URL string `yaml:"url"`
	Job string `yaml:"job"`
}

// APIConfig holds the ops HTTP server settings.
type APIConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	Falcon      FalconConfig      `yaml:"falcon"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Pushgateway PushgatewayConfig `yaml:"pushgateway"`
	API         APIConfig         `yaml:"api"`
}

// LoadConfig reads the yaml config file, applies environment overrides for
// secrets, fills defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnv(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides secret-bearing fields from the environment so they
// can stay out of the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CS_CLIENT_ID"); v != "" {
		cfg.Falcon.ClientID = v
	}
	if v := os.Getenv("CS_CLIENT_SECRET"); v != "" {
		cfg.Falcon.ClientSecret = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("MONITOR_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Falcon.BaseRegion == "" {
		cfg.Falcon.BaseRegion = "us-2"
	}
	if cfg.Monitor.CheckInterval == 0 {
		cfg.Monitor.CheckInterval = time.Hour
	}
	if cfg.Monitor.Cooldown == 0 {
		cfg.Monitor.Cooldown = 60 * time.Second
	}
	if cfg.Monitor.ParentDisplayName == "" {
		cfg.Monitor.ParentDisplayName = "AISHIELD_HQ"
	}
	if cfg.Monitor.LicenseThreshold == 0 {
		cfg.Monitor.LicenseThreshold = 375
	}
	if cfg.Monitor.FetchWorkers == 0 {
		cfg.Monitor.FetchWorkers = 4
	}
	if cfg.Monitor.StateFile == "" {
		cfg.Monitor.StateFile = "/data/mssp_inventory.json"
	}
	if cfg.InfluxDB.URL == "" {
		cfg.InfluxDB.URL = "http://influxdb:8086"
	}
	if cfg.InfluxDB.Org == "" {
		cfg.InfluxDB.Org = "aishield"
	}
	if cfg.InfluxDB.Bucket == "" {
		cfg.InfluxDB.Bucket = "crowdstrike"
	}
	if cfg.Pushgateway.URL == "" {
		cfg.Pushgateway.URL = "http://prometheus-pushgateway:9091"
	}
	if cfg.Pushgateway.Job == "" {
		cfg.Pushgateway.Job = "mssp-monitor"
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Falcon.ClientID == "" {
		return fmt.Errorf("falcon.client_id is required")
	}
	if c.Falcon.ClientSecret == "" {
		return fmt.Errorf("falcon.client_secret is required")
	}
	if c.Monitor.CheckInterval <= 0 {
		return fmt.Errorf("monitor.check_interval must be positive")
	}
	if c.Monitor.LicenseThreshold <= 0 {
		return fmt.Errorf("monitor.license_threshold must be positive")
	}
	if c.Monitor.FetchWorkers < 1 {
		return fmt.Errorf("monitor.fetch_workers must be at least 1")
	}
	if c.InfluxDB.Token == "" {
		return fmt.Errorf("influxdb.token is required")
	}
	return nil
}

// PinnedSet returns the configured pinned CIDs as a normalized lookup set.
func (c *Config) PinnedSet() map[model.TenantID]struct{} {
	set := make(map[model.TenantID]struct{}, len(c.Monitor.PinnedCIDs))
	for _, cid := range c.Monitor.PinnedCIDs {
		if id := model.NormalizeID(cid); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
