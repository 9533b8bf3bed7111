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
	if err := c.normalizeSources(); err != nil {
		return err
	}
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
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSources() error {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Name = strings.TrimSpace(src.Name)
		envPrefix := "DDEXER_" + envToken(src.Name) + "_"

		src.S3.Bucket = strings.TrimSpace(src.S3.Bucket)
		src.S3.Endpoint = strings.TrimRight(strings.TrimSpace(src.S3.Endpoint), "/")
		src.S3.Region = strings.TrimSpace(src.S3.Region)
		if src.S3.Region == "" {
			src.S3.Region = defaultS3Region
		}
		src.S3.AccessKey = strings.TrimSpace(src.S3.AccessKey)
		if src.S3.AccessKey == "" {
			if value, ok := os.LookupEnv(envPrefix + "S3_ACCESS_KEY"); ok {
				src.S3.AccessKey = strings.TrimSpace(value)
			}
		}
		src.S3.SecretKey = strings.TrimSpace(src.S3.SecretKey)
		if src.S3.SecretKey == "" {
			if value, ok := os.LookupEnv(envPrefix + "S3_SECRET_KEY"); ok {
				src.S3.SecretKey = strings.TrimSpace(value)
			}
		}

		src.SDK.APIKey = strings.TrimSpace(src.SDK.APIKey)
		src.SDK.APISecret = strings.TrimSpace(src.SDK.APISecret)
		if src.SDK.APISecret == "" {
			if value, ok := os.LookupEnv(envPrefix + "SDK_API_SECRET"); ok {
				src.SDK.APISecret = strings.TrimSpace(value)
			}
		}
		src.SDK.Endpoint = strings.TrimRight(strings.TrimSpace(src.SDK.Endpoint), "/")
		if src.SDK.Endpoint == "" {
			if value, ok := os.LookupEnv("DDEXER_SDK_ENDPOINT"); ok {
				src.SDK.Endpoint = strings.TrimRight(strings.TrimSpace(value), "/")
			}
		}
		if src.SDK.Endpoint == "" {
			src.SDK.Endpoint = defaultSDKEndpoint
		}
		src.SDK.UserID = strings.TrimSpace(src.SDK.UserID)

		if strings.TrimSpace(src.LocalDir) != "" {
			var err error
			if src.LocalDir, err = expandPath(src.LocalDir); err != nil {
				return fmt.Errorf("sources[%s].local_dir: %w", src.Name, err)
			}
		}

		hosts := make([]string, 0, len(src.PlacementHosts))
		for _, host := range src.PlacementHosts {
			if host = strings.TrimRight(strings.TrimSpace(host), "/"); host != "" {
				hosts = append(hosts, host)
			}
		}
		src.PlacementHosts = hosts
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// envToken turns a source name into an environment variable fragment.
func envToken(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
