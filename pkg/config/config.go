// Package config loads engine settings from defaults, an optional YAML file
// and MASTERFORGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shahzroux/masterforge/domain/model"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix is prepended to every environment override, e.g. MASTERFORGE_ENGINE_WORKERS
const EnvPrefix = "MASTERFORGE"

// DefaultConfigName is looked up in the working directory when no file is given
const DefaultConfigName = "masterforge"

var (
	validLevels    = []string{"debug", "info", "warn", "error"}
	validQualities = []string{"quick", "low", "medium", "high", "veryhigh"}
)

// Load reads configuration. An explicit configFile must exist; otherwise
// ./masterforge.yaml is used when present and defaults apply when it is not.
func Load(configFile string) (*Config, error) {
	v := New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return Unmarshal(v)
}

// New returns a viper instance with defaults and environment overrides wired
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Unmarshal decodes v into a validated Config
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with nothing overridden
func Default() *Config {
	cfg, err := Unmarshal(func() *viper.Viper {
		v := viper.New()
		setDefaults(v)
		return v
	}())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects unusable values and auto-corrects the recoverable ones
func (c *Config) Validate() error {
	var err error

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if !contains(validLevels, c.Logging.Level) {
		err = multierr.Append(err, pkgerrors.NewInvalidParameterError("logging.level", c.Logging.Level,
			"must be one of "+strings.Join(validLevels, ", ")))
	}

	if c.Engine.Workers <= 0 {
		c.Engine.Workers = runtime.GOMAXPROCS(0)
	}
	c.Engine.ResampleQuality = strings.ToLower(strings.TrimSpace(c.Engine.ResampleQuality))
	if !contains(validQualities, c.Engine.ResampleQuality) {
		err = multierr.Append(err, pkgerrors.NewInvalidParameterError("engine.resample_quality", c.Engine.ResampleQuality,
			"must be one of "+strings.Join(validQualities, ", ")))
	}

	if f, perr := model.ParseExportFormat(c.Export.Format); perr != nil {
		err = multierr.Append(err, pkgerrors.NewInvalidParameterError("export.format", c.Export.Format, perr.Error()))
	} else {
		c.Export.Format = string(f)
	}
	if c.Export.SampleRate < 8000 || c.Export.SampleRate > 384000 {
		err = multierr.Append(err, pkgerrors.NewInvalidParameterError("export.sample_rate", c.Export.SampleRate,
			"must be within 8000-384000 Hz"))
	} else if f := model.ExportFormat(c.Export.Format); !f.SupportsSampleRate(c.Export.SampleRate) {
		err = multierr.Append(err, pkgerrors.NewInvalidParameterError("export.sample_rate", c.Export.SampleRate,
			fmt.Sprintf("mp3 export needs one of %v Hz", model.MP3SampleRates)))
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.Multiplier < 1 {
		c.Retry.Multiplier = 1
	}

	return multierr.Append(err, c.Mastering.Validate())
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	// Engine defaults
	v.SetDefault("engine.ffmpeg_path", "")
	v.SetDefault("engine.ffprobe_path", "")
	v.SetDefault("engine.workers", runtime.GOMAXPROCS(0))
	v.SetDefault("engine.resample_quality", "high")

	// Export defaults
	v.SetDefault("export.format", string(model.FormatWAV16))
	v.SetDefault("export.sample_rate", model.DefaultExportSampleRate)
	v.SetDefault("export.output_dir", ".")

	// Retry defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", 500*time.Millisecond)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max_delay", 10*time.Second)

	// Mastering defaults
	p := model.DefaultMasteringParams()
	v.SetDefault("mastering.intensity", p.Intensity)
	v.SetDefault("mastering.eq_low", p.EQLow)
	v.SetDefault("mastering.eq_mid", p.EQMid)
	v.SetDefault("mastering.eq_high", p.EQHigh)
	v.SetDefault("mastering.compressor.threshold", p.Compressor.Threshold)
	v.SetDefault("mastering.compressor.ratio", p.Compressor.Ratio)
	v.SetDefault("mastering.compressor.attack_ms", p.Compressor.AttackMs)
	v.SetDefault("mastering.compressor.release_ms", p.Compressor.ReleaseMs)
	v.SetDefault("mastering.limiter_ceiling", p.LimiterCeiling)
	v.SetDefault("mastering.stereo_width", p.StereoWidth)
	v.SetDefault("mastering.multiband", p.Multiband)
	for name, b := range map[string]model.BandParams{"low": p.Low, "mid": p.Mid, "high": p.High} {
		v.SetDefault("mastering."+name+".threshold", b.Threshold)
		v.SetDefault("mastering."+name+".ratio", b.Ratio)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
