package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations used by the downloader.
type Paths struct {
	OutputDir   string `toml:"output_dir"`
	RawDir      string `toml:"raw_dir"`
	MemoizeFile string `toml:"memoize_file"`
	SessionFile string `toml:"session_file"`
	SchemaFile  string `toml:"schema_file"`
	LogDir      string `toml:"log_dir"`
}

// Lobby contains service discovery and login settings for the game lobby.
type Lobby struct {
	VersionURL        string   `toml:"version_url"`
	ConfigURL         string   `toml:"config_url"`
	ResourceURL       string   `toml:"resource_url"`
	Region            string   `toml:"region"`
	GatewayService    string   `toml:"gateway_service"`
	DeviceType        string   `toml:"device_type"`
	Browser           string   `toml:"browser"`
	CurrencyPlatforms []uint32 `toml:"currency_platforms"`
	PasswordHMACKey   string   `toml:"password_hmac_key"`
}

// Download contains record listing and detail fetch settings.
type Download struct {
	PageSize           int `toml:"page_size"`
	Start              int `toml:"start"`
	HTTPTimeoutSeconds int `toml:"http_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for majdl.
//
// Configuration sections by subsystem:
//   - Paths: record output, raw dumps, memoization ledger, session file, schema
//   - Lobby: service discovery endpoints and login device profile
//   - Download: record list paging and detail fetch timeout
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Lobby    Lobby    `toml:"lobby"`
	Download Download `toml:"download"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("majdl.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// SetOutputDir overrides paths.output_dir, expanding the value like the file loader does.
func (c *Config) SetOutputDir(dir string) error {
	expanded, err := expandPath(strings.TrimSpace(dir))
	if err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	c.Paths.OutputDir = expanded
	return nil
}

// SetRawDir overrides paths.raw_dir.
func (c *Config) SetRawDir(dir string) error {
	expanded, err := expandPath(strings.TrimSpace(dir))
	if err != nil {
		return fmt.Errorf("raw dir: %w", err)
	}
	c.Paths.RawDir = expanded
	return nil
}

// SetMemoizeFile overrides paths.memoize_file.
func (c *Config) SetMemoizeFile(path string) error {
	expanded, err := expandPath(strings.TrimSpace(path))
	if err != nil {
		return fmt.Errorf("memoize file: %w", err)
	}
	c.Paths.MemoizeFile = expanded
	return nil
}

// EnsureDirectories creates the output directory, and the raw dump directory
// when one is configured.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.RawDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ConfigURLFor substitutes the client version into lobby.config_url.
func (c *Config) ConfigURLFor(version string) string {
	return strings.ReplaceAll(c.Lobby.ConfigURL, "{version}", version)
}
