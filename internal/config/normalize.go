package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	envSecretKey     = "SPLINTARR_SECRET_KEY"
	envSecretKeyFile = "SPLINTARR_SECRET_KEY_FILE"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSecurity(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

// normalizeSecurity resolves the secret key with Docker-secret precedence:
// key file, then inline value, then environment.
func (c *Config) normalizeSecurity() error {
	if strings.TrimSpace(c.Security.SecretKeyFile) == "" {
		if value, ok := os.LookupEnv(envSecretKeyFile); ok {
			c.Security.SecretKeyFile = value
		}
	}
	if path := strings.TrimSpace(c.Security.SecretKeyFile); path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return fmt.Errorf("security.secret_key_file: %w", err)
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return fmt.Errorf("read security.secret_key_file: %w", err)
		}
		c.Security.SecretKeyFile = expanded
		c.Security.SecretKey = strings.TrimSpace(string(data))
		return nil
	}
	if strings.TrimSpace(c.Security.SecretKey) == "" {
		if value, ok := os.LookupEnv(envSecretKey); ok {
			c.Security.SecretKey = value
		}
	}
	c.Security.SecretKey = strings.TrimSpace(c.Security.SecretKey)
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
