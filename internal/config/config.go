package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr    string `yaml:"addr"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Messaging struct {
		Region string `yaml:"region"`

		WhatsApp struct {
			BaseURL       string `yaml:"base_url"`
			PhoneNumberID string `yaml:"phone_number_id"`
			AccessToken   string `yaml:"access_token"`
		} `yaml:"whatsapp"`

		Twilio struct {
			AccountSID string `yaml:"account_sid"`
			AuthToken  string `yaml:"auth_token"`
			FromNumber string `yaml:"from_number"`
		} `yaml:"twilio"`

		SendTimeoutSeconds int     `yaml:"send_timeout_seconds"`
		SendRatePerSecond  float64 `yaml:"send_rate_per_second"`
		SendBurst          int     `yaml:"send_burst"`
	} `yaml:"messaging"`

	Auth struct {
		// Mode selects the access checker wired at startup: "db" checks
		// staff membership, "allow_all" skips checks for local dev.
		Mode      string `yaml:"mode"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	RateLimit struct {
		// Backend is "memory" for single-process deployments or
		// "redis" when several instances must share counters.
		Backend string `yaml:"backend"`
	} `yaml:"rate_limit"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/mesaya.db"
	}
	if c.Messaging.Region == "" {
		c.Messaging.Region = "AR"
	}
	if c.Messaging.WhatsApp.BaseURL == "" {
		c.Messaging.WhatsApp.BaseURL = "https://graph.facebook.com/v21.0"
	}
	if c.Messaging.SendTimeoutSeconds <= 0 {
		c.Messaging.SendTimeoutSeconds = 8
	}
	if c.Messaging.SendRatePerSecond <= 0 {
		c.Messaging.SendRatePerSecond = 10
	}
	if c.Messaging.SendBurst <= 0 {
		c.Messaging.SendBurst = 20
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "db"
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
}

// SendTimeout bounds a single channel attempt.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Messaging.SendTimeoutSeconds) * time.Second
}

// BackupInterval returns the backup cadence, defaulting to daily.
func (c *BackupConfig) BackupInterval() time.Duration {
	if c.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.IntervalHours) * time.Hour
}
