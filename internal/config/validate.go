package config

import (
	"errors"
	"fmt"
	"sort"
)

const minSecretKeyLength = 32

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateFeedback(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.SecretKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("security.secret_key is required. Set %s or %s, or edit %s (create with 'splintarr config init')", envSecretKey, envSecretKeyFile, defaultPath)
	}
	if len(c.Security.SecretKey) < minSecretKeyLength {
		return fmt.Errorf("security.secret_key must be at least %d characters", minSecretKeyLength)
	}
	return nil
}

func (c *Config) validateFeedback() error {
	if err := ensurePositiveMap(map[string]int{
		"feedback.check_delay_minutes":     c.Feedback.CheckDelayMinutes,
		"feedback.request_timeout_seconds": c.Feedback.RequestTimeoutSeconds,
		"feedback.default_rate_limit":      c.Feedback.DefaultRateLimit,
		"notifications.request_timeout":    c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Feedback.MaxRetries < 0 || c.Feedback.MaxRetries > 10 {
		return errors.New("feedback.max_retries must be between 0 and 10")
	}
	if c.Feedback.ReconcileTimeoutSeconds < 0 {
		return errors.New("feedback.reconcile_timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation values must be >= 0")
	}
	if c.Logging.DedupWindowSeconds < 0 {
		return errors.New("logging.dedup_window_seconds must be >= 0")
	}
	if c.Logging.DedupThreshold < 0 {
		return errors.New("logging.dedup_threshold must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
