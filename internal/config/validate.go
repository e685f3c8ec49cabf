package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateConcurrency(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateConcurrency() error {
	if c.Concurrency.MaxJobs <= 0 {
		return errors.New("concurrency.max_jobs must be positive")
	}
	return nil
}

func (c *Config) validateEngine() error {
	switch c.Engine.Backend {
	case BackendFFmpeg:
		if strings.TrimSpace(c.Engine.FFmpegBinary) == "" {
			return errors.New("engine.ffmpeg_binary must be set when engine.backend is ffmpeg")
		}
	case BackendDrapto:
		if strings.TrimSpace(c.Engine.StagingDir) == "" {
			return errors.New("engine.staging_dir must be set when engine.backend is drapto")
		}
	default:
		return fmt.Errorf("engine.backend: unsupported value %q (want %q or %q)", c.Engine.Backend, BackendFFmpeg, BackendDrapto)
	}
	if c.Engine.StderrTailLines <= 0 {
		return errors.New("engine.stderr_tail_lines must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.ProgressBucket > 100 {
		return errors.New("logging.progress_bucket must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be a full URL (e.g. https://ntfy.sh/convoy), got %q", topic)
		}
	}
	return nil
}
