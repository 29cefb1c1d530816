package config

import (
	"time"

	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/pkg/retry"
)

// Config is the complete engine configuration
type Config struct {
	Logging   LoggingConfig         `mapstructure:"logging"`
	Engine    EngineConfig          `mapstructure:"engine"`
	Export    ExportConfig          `mapstructure:"export"`
	Retry     RetryConfig           `mapstructure:"retry"`
	Mastering model.MasteringParams `mapstructure:"mastering"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// EngineConfig contains DSP and backend settings
type EngineConfig struct {
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	FFprobePath     string `mapstructure:"ffprobe_path"`
	Workers         int    `mapstructure:"workers"`
	ResampleQuality string `mapstructure:"resample_quality"`
}

// ExportConfig contains export defaults
type ExportConfig struct {
	Format     string `mapstructure:"format"`
	SampleRate int    `mapstructure:"sample_rate"`
	OutputDir  string `mapstructure:"output_dir"`
}

// RetryConfig controls MP3 backend retries
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ToRetry converts to the retry package's config
func (r RetryConfig) ToRetry() retry.Config {
	return retry.Config{
		MaxAttempts: r.MaxAttempts,
		Delay:       r.Delay,
		Multiplier:  r.Multiplier,
		MaxDelay:    r.MaxDelay,
	}
}
