package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/wfkeeper/internal/monitor"
)

const sampleHeader = `# wfkeeper configuration.
# Every key can be overridden with an environment variable, for example
# WFKEEPER_N8N_API_KEY or WFKEEPER_NOTIFICATIONS_WEBHOOK_URL.
`

// Default returns the built-in settings with placeholder credentials.
func Default() Config {
	var c Config
	c.N8N.URL = "http://localhost:5678"
	c.N8N.APIKey = "replace-with-your-n8n-api-key"
	c.Git.RepoPath = "."
	c.Git.Remote = "origin"
	c.Git.Branch = "main"
	c.Timeout = 10
	c.MaxRetries = 3
	c.Schedule.Enabled = true
	c.Schedule.ProbeInterval = monitor.DefaultProbeInterval
	c.Schedule.BackupInterval = monitor.DefaultBackupInterval
	c.Schedule.RunOnStartup = true
	c.Notifications.Webhook.Platform = "generic"
	return c
}

// Sample renders Default as commented YAML.
func Sample() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(sampleHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return nil, fmt.Errorf("encode sample config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode sample config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteSample writes the sample config to path. An existing file is left
// alone unless force is set.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := Sample()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
