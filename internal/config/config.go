// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"firestige.xyz/synscope/internal/core"
	"firestige.xyz/synscope/internal/log"
	"firestige.xyz/synscope/internal/window"
)

// Config represents the configuration of one analysis run.
// Maps to the `synscope:` root key in YAML.
type Config struct {
	Input   string           `mapstructure:"input"`
	Filter  string           `mapstructure:"filter"` // tcpdump expression, empty = keep all IPv4
	Decoder DecoderConfig    `mapstructure:"decoder"`
	Window  WindowConfig     `mapstructure:"window"`
	Output  OutputConfig     `mapstructure:"output"`
	Plot    PlotConfig       `mapstructure:"plot"`
	Metrics MetricsConfig    `mapstructure:"metrics"`
	Report  ReportConfig     `mapstructure:"report"`
	Log     log.LoggerConfig `mapstructure:"log"`
}

// ─── Decoding ───

// DecoderConfig bounds what the capture reader accepts.
type DecoderConfig struct {
	MaxFrameSize datasize.ByteSize `mapstructure:"max_frame_size"` // network-layer bytes, e.g. "4KB"
}

// ─── Aggregation ───

// WindowConfig configures the sliding window.
type WindowConfig struct {
	Size      int              `mapstructure:"size"`
	FlagMatch window.FlagMatch `mapstructure:"flag_match"` // exact | mask
}

// ─── Outputs ───

// OutputConfig configures the series tables.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	Precision int    `mapstructure:"precision"`
}

// PlotConfig configures the external plotting command.
type PlotConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Command     string        `mapstructure:"command"`
	Script      string        `mapstructure:"script"`
	Subdivision int           `mapstructure:"subdivision"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MetricsConfig configures the Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // empty = disabled
}

// ReportConfig configures the YAML run summary.
type ReportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // empty = <output.dir>/summary.yaml
}

// ─── Loading ───

const rootKey = "synscope"

// configRoot is the top-level wrapper matching the YAML structure `synscope: ...`.
type configRoot struct {
	Synscope Config `mapstructure:"synscope"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"filter":           "filter",
	"max-frame-size":   "decoder.max_frame_size",
	"window":           "window.size",
	"flag-match":       "window.flag_match",
	"output":           "output.dir",
	"precision":        "output.precision",
	"plot":             "plot.enabled",
	"plot-command":     "plot.command",
	"plot-script":      "plot.script",
	"metrics-textfile": "metrics.textfile",
	"report":           "report.enabled",
	"log-level":        "log.level",
}

// Load loads configuration from an optional file and the given flags.
// The YAML file uses `synscope:` as root key; env vars use the SYNSCOPE_ prefix
// (e.g., SYNSCOPE_WINDOW_SIZE). Flags that were set explicitly win over both.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `synscope.` key prefix maps to `SYNSCOPE_` through the key replacer
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	var root configRoot
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&root, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Synscope

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file, env or flag is given.
func Default() (*Config, error) {
	return Load("", nil)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(rootKey+"."+key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// setDefaults sets default values for configuration.
// All keys use the "synscope." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Input defaults
	v.SetDefault("synscope.input", "")
	v.SetDefault("synscope.filter", "")
	v.SetDefault("synscope.decoder.max_frame_size", "4KB")

	// Aggregation defaults
	v.SetDefault("synscope.window.size", 100)
	v.SetDefault("synscope.window.flag_match", string(window.FlagMatchExact))

	// Output defaults
	v.SetDefault("synscope.output.dir", ".")
	v.SetDefault("synscope.output.precision", 6)
	v.SetDefault("synscope.plot.enabled", false)
	v.SetDefault("synscope.plot.command", "python3")
	v.SetDefault("synscope.plot.script", "")
	v.SetDefault("synscope.plot.subdivision", 2)
	v.SetDefault("synscope.plot.timeout", "30s")
	v.SetDefault("synscope.metrics.textfile", "")
	v.SetDefault("synscope.report.enabled", false)
	v.SetDefault("synscope.report.path", "")

	// Log defaults
	v.SetDefault("synscope.log.level", "info")
	v.SetDefault("synscope.log.pattern", log.DefaultPattern)
	v.SetDefault("synscope.log.time", log.DefaultTime)
	v.SetDefault("synscope.log.appender", log.AppenderStderr)
	v.SetDefault("synscope.log.file.enabled", false)
	v.SetDefault("synscope.log.file.filename", "synscope.log")
	v.SetDefault("synscope.log.file.max_size", 100)
	v.SetDefault("synscope.log.file.max_backups", 5)
	v.SetDefault("synscope.log.file.max_age", 30)
	v.SetDefault("synscope.log.file.compress", true)
}

const (
	minFrameSize = 20 // fixed IPv4 header
	maxFrameSize = 262144 - 14
	maxPrecision = 17
)

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Appender != log.AppenderStdout && cfg.Log.Appender != log.AppenderStderr {
		return fmt.Errorf("%w: invalid log appender: %s (must be stdout/stderr)", core.ErrConfigInvalid, cfg.Log.Appender)
	}

	// ── Decoder ──
	if cfg.Decoder.MaxFrameSize == 0 {
		cfg.Decoder.MaxFrameSize = 4 * datasize.KB
	}
	if cfg.Decoder.MaxFrameSize < minFrameSize || cfg.Decoder.MaxFrameSize > maxFrameSize {
		return fmt.Errorf("%w: decoder.max_frame_size %s out of range [%d, %d] bytes",
			core.ErrConfigInvalid, cfg.Decoder.MaxFrameSize.HumanReadable(), minFrameSize, maxFrameSize)
	}

	// ── Window ──
	if cfg.Window.Size < 1 {
		return fmt.Errorf("%w: window.size must be >= 1, got %d", core.ErrInvalidWindow, cfg.Window.Size)
	}
	match, err := window.ParseFlagMatch(string(cfg.Window.FlagMatch))
	if err != nil {
		return err
	}
	cfg.Window.FlagMatch = match

	// ── Outputs ──
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.Precision < 0 || cfg.Output.Precision > maxPrecision {
		return fmt.Errorf("%w: output.precision must be within [0, %d], got %d", core.ErrConfigInvalid, maxPrecision, cfg.Output.Precision)
	}

	if cfg.Plot.Subdivision <= 0 {
		cfg.Plot.Subdivision = 2
	}
	if cfg.Plot.Timeout <= 0 {
		cfg.Plot.Timeout = 30 * time.Second
	}
	if cfg.Plot.Enabled && cfg.Plot.Command == "" {
		return fmt.Errorf("%w: plot.command is required when plot.enabled=true", core.ErrConfigInvalid)
	}

	if cfg.Report.Enabled && cfg.Report.Path == "" {
		cfg.Report.Path = filepath.Join(cfg.Output.Dir, "summary.yaml")
	}

	return nil
}
