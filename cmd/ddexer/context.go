package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ddexer/internal/config"
	"ddexer/internal/logging"
)

type commandContext struct {
	configFlag  *string
	envFileFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, envFileFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		envFileFlag: envFileFlag,
	}
}

// loadEnv reads KEY=value pairs into the process environment without
// overriding variables that are already set. A missing file is not an error.
func (c *commandContext) loadEnv() error {
	if c.envFileFlag == nil {
		return nil
	}
	path := strings.TrimSpace(*c.envFileFlag)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// commandLogger writes to the ddexer log file, and to stderr when verbose.
// Stdout stays reserved for command output.
func commandLogger(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	outputs := []string{filepath.Join(cfg.Paths.LogDir, "ddexer.log")}
	if verbose {
		outputs = append(outputs, "stderr")
	}
	return logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func requireSource(cfg *config.Config, name string) (config.Source, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if len(cfg.Sources) == 1 {
			return cfg.Sources[0], nil
		}
		return config.Source{}, errors.New("--source is required when more than one source is configured")
	}
	src, ok := cfg.SourceByName(name)
	if !ok {
		return config.Source{}, fmt.Errorf("unknown source %q", name)
	}
	return src, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
