package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	if strings.TrimSpace(c.Remote.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/fieldsync/config.toml"
		}
		return fmt.Errorf("remote.base_url is required. Edit %s (create with 'fieldsync config init')", defaultPath)
	}
	if _, err := url.ParseRequestURI(c.Remote.BaseURL); err != nil {
		return fmt.Errorf("remote.base_url is not a valid URL: %w", err)
	}
	if c.Remote.RequestTimeout <= 0 {
		return errors.New("remote.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if strings.TrimSpace(c.Connectivity.ProbeURL) == "" {
		return errors.New("connectivity.probe_url must be set")
	}
	if _, err := url.ParseRequestURI(c.Connectivity.ProbeURL); err != nil {
		return fmt.Errorf("connectivity.probe_url is not a valid URL: %w", err)
	}
	if c.Connectivity.CheckInterval <= 0 {
		return errors.New("connectivity.check_interval must be positive")
	}
	if c.Connectivity.RequestTimeout <= 0 {
		return errors.New("connectivity.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}
	if c.Sync.FollowupDelayMS < 0 {
		return errors.New("sync.followup_delay_ms must not be negative")
	}
	if c.Sync.MaxAttempts <= 0 {
		return errors.New("sync.max_attempts must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
