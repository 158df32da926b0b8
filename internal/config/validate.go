package config

import (
	"errors"
	"fmt"
	"strings"
)

var supportedContainers = map[string]struct{}{
	"mkv":  {},
	"mp4":  {},
	"webm": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownloader(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateDownloader() error {
	if c.Downloader.Parallelism <= 0 {
		return fmt.Errorf("downloader.parallelism must be positive, got %d", c.Downloader.Parallelism)
	}
	if c.Downloader.MaxAttempts < 1 {
		return fmt.Errorf("downloader.max_attempts must be at least 1, got %d", c.Downloader.MaxAttempts)
	}
	if c.Downloader.RetryDelayMillis < 0 {
		return errors.New("downloader.retry_delay_ms must be non-negative")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.Parallelism <= 0 {
		return fmt.Errorf("encoder.parallelism must be positive, got %d", c.Encoder.Parallelism)
	}
	if _, ok := supportedContainers[c.Encoder.Container]; !ok {
		return fmt.Errorf("encoder.container: unsupported value %q (use mkv, mp4, or webm)", c.Encoder.Container)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
