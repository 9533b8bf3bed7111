package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.publish_interval":     c.Workflow.PublishInterval,
		"workflow.idle_interval":        c.Workflow.IdleInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.IdleInterval < c.Workflow.PollInterval {
		return errors.New("workflow.idle_interval must be at least workflow.poll_interval")
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name must be set", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("sources[%d].name %q is duplicated", i, src.Name)
		}
		seen[src.Name] = struct{}{}

		if strings.TrimSpace(src.SDK.APIKey) == "" {
			return fmt.Errorf("sources[%s].sdk.api_key must be set", src.Name)
		}
		if src.S3.Enabled() {
			if src.S3.AccessKey == "" || src.S3.SecretKey == "" {
				return fmt.Errorf("sources[%s].s3 access_key and secret_key must be set when s3.bucket is set (or set DDEXER_%s_S3_ACCESS_KEY)", src.Name, envToken(src.Name))
			}
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
