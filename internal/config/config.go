// Package config loads wfkeeper settings from a YAML or JSON file and
// WFKEEPER_* environment variables, and validates them against an embedded
// CUE schema before handing out an immutable Config value.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/roach88/wfkeeper/internal/monitor"
)

// EnvPrefix is prepended to every environment override, so n8n.api_key
// becomes WFKEEPER_N8N_API_KEY.
const EnvPrefix = "WFKEEPER"

// Config holds the monitor settings.
type Config struct {
	N8N struct {
		URL    string `json:"url" yaml:"url"`
		APIKey string `json:"api_key" yaml:"api_key"`
	} `json:"n8n" yaml:"n8n"`
	Git struct {
		RepoPath string `json:"repo_path" yaml:"repo_path"`
		Remote   string `json:"remote" yaml:"remote"`
		Branch   string `json:"branch" yaml:"branch"`
	} `json:"git" yaml:"git"`
	Timeout    int `json:"timeout" yaml:"timeout"` // seconds
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	Schedule   struct {
		Enabled        bool          `json:"enabled" yaml:"enabled"`
		ProbeInterval  time.Duration `json:"probe_interval" yaml:"probe_interval"`
		BackupInterval time.Duration `json:"backup_interval" yaml:"backup_interval"`
		RunOnStartup   bool          `json:"run_on_startup" yaml:"run_on_startup"`
	} `json:"schedule" yaml:"schedule"`
	Notifications struct {
		Webhook struct {
			Enabled  bool   `json:"enabled" yaml:"enabled"`
			Platform string `json:"platform" yaml:"platform"`
			URL      string `json:"url" yaml:"url"`
		} `json:"webhook" yaml:"webhook"`
		BackupURL string `json:"backup_url" yaml:"backup_url"`
	} `json:"notifications" yaml:"notifications"`
	History struct {
		Path string `json:"path" yaml:"path"`
	} `json:"history" yaml:"history"`
	Status struct {
		Listen string `json:"listen" yaml:"listen"`
	} `json:"status" yaml:"status"`
	Log struct {
		File string `json:"file" yaml:"file"`
	} `json:"log" yaml:"log"`
}

// RequestTimeout returns the per-request n8n timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// MonitorSchedule returns the configured probe and backup cadence.
func (c Config) MonitorSchedule() monitor.Schedule {
	return monitor.Schedule{
		ProbeInterval:  c.Schedule.ProbeInterval,
		BackupInterval: c.Schedule.BackupInterval,
	}
}

var defaults = map[string]any{
	"n8n.url":                        "http://localhost:5678",
	"n8n.api_key":                    "",
	"git.repo_path":                  ".",
	"git.remote":                     "origin",
	"git.branch":                     "main",
	"timeout":                        10,
	"max_retries":                    3,
	"schedule.enabled":               true,
	"schedule.probe_interval":        monitor.DefaultProbeInterval.String(),
	"schedule.backup_interval":       monitor.DefaultBackupInterval.String(),
	"schedule.run_on_startup":        true,
	"notifications.webhook.enabled":  false,
	"notifications.webhook.platform": "generic",
	"notifications.webhook.url":      "",
	"notifications.backup_url":       "",
	"history.path":                   "",
	"status.listen":                  "",
	"log.file":                       "",
}

// Load reads the config file at path, or searches ./config.{yaml,json} and
// $HOME/.config/wfkeeper when path is empty. A missing file in the search
// path is fine; defaults and environment overrides still apply.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/wfkeeper")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.validate(v.ConfigFileUsed()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.N8N.URL = strings.TrimRight(strings.TrimSpace(c.N8N.URL), "/")
	c.N8N.APIKey = strings.TrimSpace(c.N8N.APIKey)
	c.Notifications.Webhook.Platform = strings.ToLower(strings.TrimSpace(c.Notifications.Webhook.Platform))
	c.Notifications.Webhook.URL = strings.TrimSpace(c.Notifications.Webhook.URL)
}

func (c Config) validate(file string) error {
	issues, err := checkSchema(c)
	if err != nil {
		return err
	}
	if c.Schedule.ProbeInterval > 0 && c.Schedule.BackupInterval > 0 {
		if err := c.MonitorSchedule().Validate(); err != nil {
			issues = append(issues, "schedule: "+err.Error())
		}
	}
	if len(issues) > 0 {
		return &ValidationError{File: file, Issues: issues}
	}
	return nil
}
