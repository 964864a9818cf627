package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLobby(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateForDownload adds the checks that only matter when records are
// written, so that `majdl login` works without an output directory.
func (c *Config) ValidateForDownload() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set (use --output or MAJDL_OUTPUT_DIR)")
	}
	if c.Paths.RawDir != "" && c.Paths.RawDir == c.Paths.OutputDir {
		return errors.New("paths.raw_dir must differ from paths.output_dir")
	}
	return nil
}

func (c *Config) validateLobby() error {
	if err := validateHTTPURL("lobby.version_url", c.Lobby.VersionURL); err != nil {
		return err
	}
	if err := validateHTTPURL("lobby.config_url", c.Lobby.ConfigURL); err != nil {
		return err
	}
	if !strings.Contains(c.Lobby.ConfigURL, "{version}") {
		return errors.New("lobby.config_url must contain the {version} placeholder")
	}
	if err := validateHTTPURL("lobby.resource_url", c.Lobby.ResourceURL); err != nil {
		return err
	}
	if !strings.Contains(c.Lobby.ResourceURL, "{version}") {
		return errors.New("lobby.resource_url must contain the {version} placeholder")
	}
	if len(c.Lobby.CurrencyPlatforms) == 0 {
		return errors.New("lobby.currency_platforms must list at least one platform")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.PageSize < 1 {
		return errors.New("download.page_size must be positive")
	}
	if c.Download.Start < 0 {
		return errors.New("download.start must be non-negative")
	}
	if c.Download.HTTPTimeoutSeconds < 0 {
		return errors.New("download.http_timeout_seconds must be zero (no timeout) or positive")
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
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s must be set", field)
	}
	parsed, err := url.Parse(strings.ReplaceAll(raw, "{version}", "0"))
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", field)
	}
	return nil
}
