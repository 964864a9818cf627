package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLobby()
	c.normalizeDownload()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		if value, ok := os.LookupEnv("MAJDL_OUTPUT_DIR"); ok {
			c.Paths.OutputDir = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.MemoizeFile) == "" {
		if value, ok := os.LookupEnv("MAJDL_MEMOIZE_FILE"); ok {
			c.Paths.MemoizeFile = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Paths.SessionFile) == "" {
		c.Paths.SessionFile = defaultSessionFile
	}

	var err error
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.RawDir, err = expandPath(strings.TrimSpace(c.Paths.RawDir)); err != nil {
		return fmt.Errorf("paths.raw_dir: %w", err)
	}
	if c.Paths.MemoizeFile, err = expandPath(strings.TrimSpace(c.Paths.MemoizeFile)); err != nil {
		return fmt.Errorf("paths.memoize_file: %w", err)
	}
	if c.Paths.SessionFile, err = expandPath(strings.TrimSpace(c.Paths.SessionFile)); err != nil {
		return fmt.Errorf("paths.session_file: %w", err)
	}
	if c.Paths.SchemaFile, err = expandPath(strings.TrimSpace(c.Paths.SchemaFile)); err != nil {
		return fmt.Errorf("paths.schema_file: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLobby() {
	c.Lobby.VersionURL = strings.TrimSpace(c.Lobby.VersionURL)
	c.Lobby.ConfigURL = strings.TrimSpace(c.Lobby.ConfigURL)
	c.Lobby.ResourceURL = strings.TrimSpace(c.Lobby.ResourceURL)
	c.Lobby.Region = strings.TrimSpace(c.Lobby.Region)
	if c.Lobby.Region == "" {
		c.Lobby.Region = defaultRegion
	}
	c.Lobby.GatewayService = strings.TrimSpace(c.Lobby.GatewayService)
	if c.Lobby.GatewayService == "" {
		c.Lobby.GatewayService = defaultGatewayService
	}
	c.Lobby.DeviceType = strings.TrimSpace(c.Lobby.DeviceType)
	if c.Lobby.DeviceType == "" {
		c.Lobby.DeviceType = defaultDeviceType
	}
	c.Lobby.Browser = strings.TrimSpace(c.Lobby.Browser)
	if c.Lobby.Browser == "" {
		c.Lobby.Browser = defaultBrowser
	}
	if c.Lobby.PasswordHMACKey == "" {
		c.Lobby.PasswordHMACKey = defaultPasswordHMACKey
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.PageSize == 0 {
		c.Download.PageSize = defaultPageSize
	}
	if c.Download.Start == 0 {
		c.Download.Start = defaultStart
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
