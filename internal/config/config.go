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

// Paths contains directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	CacheDir string `toml:"cache_dir"`
}

// S3 holds object-store credentials for a delivery source.
type S3 struct {
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
}

// Enabled reports whether the source should be polled.
func (s S3) Enabled() bool {
	return strings.TrimSpace(s.Bucket) != ""
}

// SDK holds publishing credentials for a delivery source.
type SDK struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Endpoint  string `toml:"endpoint"`
	// UserID owns releases whose artists match no registered user.
	UserID string `toml:"user_id"`
}

// Source describes one delivery channel.
type Source struct {
	Name           string   `toml:"name"`
	LocalDir       string   `toml:"local_dir"`
	PlacementHosts []string `toml:"placement_hosts"`
	S3             S3       `toml:"s3"`
	SDK            SDK      `toml:"sdk"`
}

// Workflow contains loop timing in seconds.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	PublishInterval    int `toml:"publish_interval"`
	IdleInterval       int `toml:"idle_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ddexer.
//
// Configuration sections by subsystem:
//   - Paths: database, log, and asset cache directories
//   - Workflow: ingest and publish loop intervals
//   - Logging: log format and level
//   - Sources: delivery channels with object-store and SDK credentials
type Config struct {
	Paths    Paths    `toml:"paths"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
	Sources  []Source `toml:"sources"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ddexer/config.toml")
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

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ddexer.toml")
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

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "ddexer.db")
}

// SourceByName returns the named source, if configured.
func (c *Config) SourceByName(name string) (Source, bool) {
	name = strings.TrimSpace(name)
	for _, src := range c.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return Source{}, false
}

// SourceByAPIKey returns the first source publishing with the given SDK key.
func (c *Config) SourceByAPIKey(apiKey string) (Source, bool) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return Source{}, false
	}
	for _, src := range c.Sources {
		if src.SDK.APIKey == apiKey {
			return src, true
		}
	}
	return Source{}, false
}

// PolledSources returns the sources that carry object-store credentials.
func (c *Config) PolledSources() []Source {
	var out []Source
	for _, src := range c.Sources {
		if src.S3.Enabled() {
			out = append(out, src)
		}
	}
	return out
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

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "ddexer", "assets")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/ddexer/assets"
	}
	return filepath.Join(home, ".cache", "ddexer", "assets")
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
