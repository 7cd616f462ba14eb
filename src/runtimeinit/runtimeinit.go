package runtimeinit

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"screen-control/src/config"
	"screen-control/src/logutil"
	"screen-control/src/ocr"
	"screen-control/src/screenshot"
)

// ErrDependencyMissing means a required external component, such as the
// display or the OCR engine and its language data, is not usable.
var ErrDependencyMissing = errors.New("dependency missing")

type Options struct {
	LoadOptions config.LoadOptions
	Verbose     bool
	// RequireDisplay checks that there is a screen to capture.
	RequireDisplay bool
	// RequireOCR checks that tesseract can load the configured languages.
	RequireOCR bool

	// Capturer and OCRCheck replace the real display and engine checks.
	Capturer screenshot.Capturer
	OCRCheck func(langs []string) (string, error)
}

type Runtime struct {
	Config *config.Config
	Logger *zap.Logger
}

// Bootstrap loads configuration, sets up logging and verifies the
// dependencies the caller asked for.
func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logutil.Setup(logutil.Options{
		Verbose:           opts.Verbose,
		EnableFileLogging: cfg.EnableFileLogging,
		File:              cfg.LogFile,
		Level:             cfg.LogLevel,
	})
	logger.Debug("configuration loaded",
		zap.String("config_file", cfg.ConfigFile),
		zap.Float64("confidence", cfg.Engine.ConfidenceThreshold),
		zap.Stringer("reference", cfg.Engine.ReferenceResolution),
		zap.Int("max_retries", cfg.Engine.MaxRetries),
		zap.Bool("fail_safe", cfg.Engine.FailSafeEnabled))

	enableDPIAwareness(logger)

	if opts.RequireDisplay {
		capturer := opts.Capturer
		if capturer == nil {
			capturer = screenshot.Display{}
		}
		bounds, err := capturer.Bounds()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDependencyMissing, err)
		}
		logger.Debug("display found", zap.Stringer("bounds", bounds))
	}

	if opts.RequireOCR {
		check := opts.OCRCheck
		if check == nil {
			check = ocr.Tesseract{}.Check
		}
		version, err := check(cfg.Engine.Languages())
		if err != nil {
			return nil, fmt.Errorf("%w: %w (install tesseract and the %q language data)", ErrDependencyMissing, err, cfg.Engine.OCRLanguage)
		}
		logger.Debug("ocr engine ready", zap.String("tesseract", version), zap.Strings("languages", cfg.Engine.Languages()))
	}

	return &Runtime{Config: cfg, Logger: logger}, nil
}
