// Package backend builds the configured engine backend.
package backend

import (
	"fmt"
	"log/slog"

	"convoy/internal/config"
	"convoy/internal/engine"
	"convoy/internal/services"
	"convoy/internal/services/drapto"
	"convoy/internal/services/ffmpeg"
)

// New returns the engine selected by cfg.Engine.Backend.
func New(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "select backend", "config required", nil)
	}
	switch cfg.Engine.Backend {
	case config.BackendFFmpeg, "":
		return ffmpeg.New(
			ffmpeg.WithBinary(cfg.Engine.FFmpegBinary),
			ffmpeg.WithHardwareAcceleration(cfg.Engine.HardwareAcceleration),
			ffmpeg.WithStderrTail(cfg.Engine.StderrTailLines),
			ffmpeg.WithLogger(logger),
		), nil
	case config.BackendDrapto:
		return drapto.NewLibrary(cfg.Engine.StagingDir, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "engine", "select backend", fmt.Sprintf("unsupported backend %q", cfg.Engine.Backend), nil)
	}
}
