package config

import (
	"fmt"
	"os"
	"strings"

	"reeler/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDownloader(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeLogging()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("REELER_WORK_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WorkDir = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownloader() error {
	c.Downloader.Binary = strings.TrimSpace(c.Downloader.Binary)
	if c.Downloader.Binary == "" {
		c.Downloader.Binary = defaultDownloaderBinary
	}
	if c.Downloader.MaxAttempts == 0 {
		c.Downloader.MaxAttempts = defaultDownloaderAttempts
	}
	c.Downloader.CookieFile = strings.TrimSpace(c.Downloader.CookieFile)
	if c.Downloader.CookieFile == "" {
		if value, ok := os.LookupEnv("REELER_COOKIE_FILE"); ok {
			c.Downloader.CookieFile = strings.TrimSpace(value)
		}
	}
	if c.Downloader.CookieFile != "" {
		var err error
		if c.Downloader.CookieFile, err = expandPath(c.Downloader.CookieFile); err != nil {
			return fmt.Errorf("downloader.cookie_file: %w", err)
		}
	}
	c.Downloader.SubtitleLanguages = language.NormalizeList(c.Downloader.SubtitleLanguages)
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Binary = strings.TrimSpace(c.Encoder.Binary)
	if c.Encoder.Binary == "" {
		c.Encoder.Binary = defaultEncoderBinary
	}
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	if c.Encoder.FFprobeBinary == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	c.Encoder.Container = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Encoder.Container)), ".")
	if c.Encoder.Container == "" {
		c.Encoder.Container = defaultContainer
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if value, ok := os.LookupEnv("REELER_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}
