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
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	c.normalizeConcurrency()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEngine() error {
	c.Engine.Backend = strings.ToLower(strings.TrimSpace(c.Engine.Backend))
	if c.Engine.Backend == "" {
		c.Engine.Backend = defaultBackend
	}
	c.Engine.FFmpegBinary = strings.TrimSpace(c.Engine.FFmpegBinary)
	if c.Engine.FFmpegBinary == "" {
		if value, ok := os.LookupEnv("CONVOY_FFMPEG"); ok && strings.TrimSpace(value) != "" {
			c.Engine.FFmpegBinary = strings.TrimSpace(value)
		} else {
			c.Engine.FFmpegBinary = defaultFFmpegBinary
		}
	}
	if strings.TrimSpace(c.Engine.StagingDir) == "" {
		c.Engine.StagingDir = defaultStagingDir
	}
	var err error
	if c.Engine.StagingDir, err = expandPath(strings.TrimSpace(c.Engine.StagingDir)); err != nil {
		return fmt.Errorf("engine.staging_dir: %w", err)
	}
	if c.Engine.StderrTailLines <= 0 {
		c.Engine.StderrTailLines = defaultStderrTailLines
	}
	return nil
}

func (c *Config) normalizeConcurrency() {
	if c.Concurrency.MaxJobs == 0 {
		c.Concurrency.MaxJobs = defaultMaxJobs
	}
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
	if c.Logging.ProgressBucket <= 0 {
		c.Logging.ProgressBucket = defaultProgressBucket
	}
	if c.Logging.ProgressIntervalSeconds < 0 {
		c.Logging.ProgressIntervalSeconds = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("CONVOY_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}
