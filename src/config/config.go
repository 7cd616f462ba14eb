package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "SCREEN_CONTROL"
	EnvPathEnvVar  = "SCREEN_CONTROL_ENV"
	DefaultLogFile = "screen_control_debug.log"
)

// ErrConfigInvalid is returned when thresholds, resolutions or retry bounds
// are out of range.
var ErrConfigInvalid = errors.New("invalid configuration")

// Resolution is a display size in pixels.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// ParseResolution parses "WIDTHxHEIGHT", e.g. "1920x1080".
func ParseResolution(s string) (Resolution, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return Resolution{}, fmt.Errorf("%w: resolution %q is not WIDTHxHEIGHT", ErrConfigInvalid, s)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil {
		return Resolution{}, fmt.Errorf("%w: resolution %q is not numeric", ErrConfigInvalid, s)
	}
	return Resolution{Width: w, Height: h}, nil
}

// EngineConfig is created once per engine and passed by value to every
// component. It is never mutated after Validate succeeds.
type EngineConfig struct {
	ConfidenceThreshold float64
	ReferenceResolution Resolution
	ActionDelay         time.Duration
	VerifyDelay         time.Duration
	MaxRetries          int
	FailSafeEnabled     bool
	PollInterval        time.Duration
	OCRLanguage         string
	Debug               bool
}

// DefaultEngineConfig mirrors the automation defaults of the original tool.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ConfidenceThreshold: 0.8,
		ReferenceResolution: Resolution{Width: 1920, Height: 1080},
		ActionDelay:         500 * time.Millisecond,
		VerifyDelay:         300 * time.Millisecond,
		MaxRetries:          3,
		FailSafeEnabled:     true,
		PollInterval:        200 * time.Millisecond,
		OCRLanguage:         "chi_sim+eng",
	}
}

// Validate checks the engine invariants.
func (c EngineConfig) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold %.3f not in (0,1]", ErrConfigInvalid, c.ConfidenceThreshold)
	}
	if c.ReferenceResolution.Width <= 0 || c.ReferenceResolution.Height <= 0 {
		return fmt.Errorf("%w: reference resolution %s", ErrConfigInvalid, c.ReferenceResolution)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries %d < 1", ErrConfigInvalid, c.MaxRetries)
	}
	if c.ActionDelay < 0 || c.VerifyDelay < 0 {
		return fmt.Errorf("%w: negative delay", ErrConfigInvalid)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrConfigInvalid)
	}
	return nil
}

// Languages splits the tesseract language spec ("chi_sim+eng").
func (c EngineConfig) Languages() []string {
	var langs []string
	for _, l := range strings.Split(c.OCRLanguage, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

type LoadOptions struct {
	// ConfigPath is an optional yaml/json file with automation/ocr/logging sections.
	ConfigPath          string
	ConfidenceOverride  float64
	OCRLanguageOverride string
	Debug               bool
}

type Config struct {
	Engine            EngineConfig
	EnableFileLogging bool
	LogFile           string
	LogLevel          string
	ConfigFile        string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order (lowest first):
	// 1) defaults
	// 2) config file (--config)
	// 3) .env next to the executable, else the file named by SCREEN_CONTROL_ENV
	// 4) process environment
	// 5) explicit overrides from opts
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	v := newViper()
	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
	}

	ref, err := ParseResolution(v.GetString("automation.reference_resolution"))
	if err != nil {
		return nil, err
	}

	engine := EngineConfig{
		ConfidenceThreshold: v.GetFloat64("automation.confidence_threshold"),
		ReferenceResolution: ref,
		ActionDelay:         seconds(v.GetFloat64("automation.action_delay")),
		VerifyDelay:         seconds(v.GetFloat64("automation.verify_delay")),
		MaxRetries:          v.GetInt("automation.max_retries"),
		FailSafeEnabled:     v.GetBool("automation.fail_safe"),
		PollInterval:        seconds(v.GetFloat64("automation.poll_interval")),
		OCRLanguage:         v.GetString("ocr.language"),
		Debug:               v.GetBool("debug") || opts.Debug,
	}
	if opts.ConfidenceOverride > 0 {
		engine.ConfidenceThreshold = opts.ConfidenceOverride
	}
	if lang := strings.TrimSpace(opts.OCRLanguageOverride); lang != "" {
		engine.OCRLanguage = lang
	}

	if err := engine.Validate(); err != nil {
		return nil, err
	}

	return &Config{
		Engine:            engine,
		EnableFileLogging: v.GetBool("logging.enable_file"),
		LogFile:           v.GetString("logging.file"),
		LogLevel:          v.GetString("logging.level"),
		ConfigFile:        v.ConfigFileUsed(),
	}, nil
}

func newViper() *viper.Viper {
	d := DefaultEngineConfig()
	v := viper.New()
	v.SetDefault("automation.confidence_threshold", d.ConfidenceThreshold)
	v.SetDefault("automation.reference_resolution", d.ReferenceResolution.String())
	v.SetDefault("automation.action_delay", d.ActionDelay.Seconds())
	v.SetDefault("automation.verify_delay", d.VerifyDelay.Seconds())
	v.SetDefault("automation.max_retries", d.MaxRetries)
	v.SetDefault("automation.fail_safe", d.FailSafeEnabled)
	v.SetDefault("automation.poll_interval", d.PollInterval.Seconds())
	v.SetDefault("ocr.language", d.OCRLanguage)
	v.SetDefault("logging.enable_file", false)
	v.SetDefault("logging.file", DefaultLogFile)
	v.SetDefault("logging.level", "info")
	v.SetDefault("debug", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}
