// Package config holds the tool's own settings: where the simulator lives,
// where run history is kept, and how plots are sized. Simulator keys live
// in keytree, not here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigName is the settings file searched for in the working
	// directory, with any extension viper understands.
	DefaultConfigName = "hydro"
	// EnvPrefix prefixes every settings environment variable.
	EnvPrefix = "HYDRO"
	// DefaultDBPath is the run history database.
	DefaultDBPath = "hydro-runs.db"
	// DefaultListen is the address the history server binds.
	DefaultListen = "localhost:8080"

	maxFileSize = 1 * 1024 * 1024
)

// Log levels accepted by log_level.
const (
	LogQuiet = "quiet"
	LogInfo  = "info"
	LogDebug = "debug"
)

// Plot formats accepted by plot.format.
const (
	FormatPNG  = "png"
	FormatHTML = "html"
)

// Settings are the tool settings after defaults, file, environment and
// flags have been merged.
type Settings struct {
	ParflowDir   string       `mapstructure:"parflow_dir"`
	WorkDir      string       `mapstructure:"work_dir"`
	DBPath       string       `mapstructure:"db_path"`
	MetricsFile  string       `mapstructure:"metrics_file"`
	LogLevel     string       `mapstructure:"log_level"`
	DryRun       bool         `mapstructure:"dry_run"`
	ExtraOutputs []string     `mapstructure:"extra_outputs"`
	Listen       string       `mapstructure:"listen"`
	Plot         PlotSettings `mapstructure:"plot"`
}

// PlotSettings size rendered figures. Width and Height are in inches.
type PlotSettings struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
	Format string  `mapstructure:"format"`
}

// NewViper returns a viper instance with defaults and environment binding.
// PARFLOW_DIR is honoured when HYDRO_PARFLOW_DIR is unset.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("parflow_dir", "")
	v.SetDefault("work_dir", ".")
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("metrics_file", "")
	v.SetDefault("log_level", LogInfo)
	v.SetDefault("dry_run", false)
	v.SetDefault("extra_outputs", []string{})
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("plot.width", 14.0)
	v.SetDefault("plot.height", 6.0)
	v.SetDefault("plot.format", FormatPNG)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("parflow_dir", EnvPrefix+"_PARFLOW_DIR", "PARFLOW_DIR")
	return v
}

// Load reads the settings file into v and returns the merged settings.
// With an empty path, a hydro.* file in the working directory is used if
// present.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		if err := checkFile(path); err != nil {
			return nil, err
		}
		v.SetConfigFile(filepath.Clean(path))
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

// checkFile validates the extension and size of an explicit settings file.
func checkFile(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		return fmt.Errorf("settings file must be .json, .yaml, .yml or .toml, got %q", ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat settings file: %w", err)
	}
	if info.Size() > maxFileSize {
		return fmt.Errorf("settings file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	return nil
}

// Validate checks that the settings values are usable.
func (s *Settings) Validate() error {
	switch s.LogLevel {
	case LogQuiet, LogInfo, LogDebug:
	default:
		return fmt.Errorf("log_level must be quiet, info or debug, got %q", s.LogLevel)
	}
	if s.Plot.Width <= 0 || s.Plot.Height <= 0 {
		return fmt.Errorf("plot size must be positive, got %gx%g", s.Plot.Width, s.Plot.Height)
	}
	switch s.Plot.Format {
	case FormatPNG, FormatHTML:
	default:
		return fmt.Errorf("plot.format must be png or html, got %q", s.Plot.Format)
	}
	if s.WorkDir == "" {
		return fmt.Errorf("work_dir must not be empty")
	}
	if s.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	return nil
}

// RequireParflowDir returns the simulator installation directory, or an
// error naming the settings that provide it.
func (s *Settings) RequireParflowDir() (string, error) {
	if s.ParflowDir == "" {
		return "", fmt.Errorf("simulator location unknown: set PARFLOW_DIR, %s_PARFLOW_DIR or parflow_dir", EnvPrefix)
	}
	return s.ParflowDir, nil
}

// Debug reports whether debug logging is enabled.
func (s *Settings) Debug() bool { return s.LogLevel == LogDebug }

// Quiet reports whether informational logging is muted.
func (s *Settings) Quiet() bool { return s.LogLevel == LogQuiet }
