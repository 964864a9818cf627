package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"majdl/internal/config"
	"majdl/internal/envelope"
	"majdl/internal/lobby"
	"majdl/internal/logging"
	"majdl/internal/lqproto"
)

type globalFlags struct {
	configPath   string
	outputDir    string
	rawDir       string
	memoizeFile  string
	noNewRecords bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if err := c.applyFlags(cfg); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// applyFlags lets command-line paths override the file and environment.
func (c *commandContext) applyFlags(cfg *config.Config) error {
	if strings.TrimSpace(c.flags.outputDir) != "" {
		if err := cfg.SetOutputDir(c.flags.outputDir); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.flags.rawDir) != "" {
		if err := cfg.SetRawDir(c.flags.rawDir); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.flags.memoizeFile) != "" {
		if err := cfg.SetMemoizeFile(c.flags.memoizeFile); err != nil {
			return err
		}
	}
	return nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logging: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) httpClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: time.Duration(cfg.Download.HTTPTimeoutSeconds) * time.Second}
}

// codec decodes against the fetched client schema when paths.schema_file
// exists, and against the compiled-in schema otherwise.
func (c *commandContext) codec(cfg *config.Config, logger *slog.Logger) (*envelope.Codec, error) {
	path := cfg.Paths.SchemaFile
	if path == "" {
		return envelope.NewCodec(nil, logger), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Info("using compiled-in schema",
			logging.String(logging.FieldEventType, "schema_bundled"),
			logging.String("schema_file", path),
			logging.String(logging.FieldErrorHint, "run majdl schema fetch to decode every client field"),
		)
		return envelope.NewCodec(nil, logger), nil
	}
	catalog, err := lqproto.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("client schema loaded",
		logging.String(logging.FieldEventType, "schema_loaded"),
		logging.String("schema_file", path),
		logging.Int("messages", len(catalog.Names())),
	)
	return envelope.NewCodec(catalog, logger), nil
}

// prompter returns a terminal prompter, or nil when stdin is not a terminal
// so authentication fails with a clear message instead of blocking.
func (c *commandContext) prompter(cmd *cobra.Command) lobby.Prompter {
	p := lobby.NewTerminalPrompter(os.Stdin, cmd.ErrOrStderr())
	if !p.Interactive() {
		return nil
	}
	return p
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
