package runtimeinit

import (
	"go.uber.org/zap"

	"screen-control/src/actuator"
	"screen-control/src/config"
	"screen-control/src/coords"
	"screen-control/src/locator"
	"screen-control/src/logutil"
	"screen-control/src/ocr"
	"screen-control/src/screenshot"
	"screen-control/src/sequencer"
	"screen-control/src/vision"
)

// Engine is one fully wired automation instance. Several engines with
// different configurations can coexist in a process.
type Engine struct {
	Config   config.EngineConfig
	Capturer screenshot.Capturer
	Text     *ocr.Locator
	Image    *vision.Locator
	Locator  *locator.Dispatcher
	Actuator *actuator.Actuator
	Watcher  *actuator.Watcher
	Runner   *sequencer.Runner
	Logger   *zap.Logger
}

// EngineOptions replaces the real devices; nil fields use the system ones.
type EngineOptions struct {
	Capturer screenshot.Capturer
	OCR      ocr.Engine
	Driver   actuator.Driver
	Events   actuator.EventSource
	DebugDir string
}

func NewEngine(cfg config.EngineConfig, logger *zap.Logger, opts EngineOptions) *Engine {
	logger = logutil.OrNop(logger)

	capturer := opts.Capturer
	if capturer == nil {
		capturer = screenshot.Display{}
	}
	engine := opts.OCR
	if engine == nil {
		engine = ocr.Tesseract{}
	}
	driver := opts.Driver
	if driver == nil {
		driver = actuator.Robotgo{}
	}

	textOpts := []ocr.Option{ocr.WithLogger(logger.Named("ocr"))}
	imageOpts := []vision.Option{vision.WithLogger(logger.Named("vision"))}
	if screenshot.DebugEnabled(cfg.Debug) {
		textOpts = append(textOpts, ocr.WithDebug(opts.DebugDir))
		imageOpts = append(imageOpts, vision.WithDebug(opts.DebugDir))
	}
	text := ocr.NewLocator(capturer, engine, cfg.Languages(), textOpts...)
	image := vision.NewLocator(capturer, imageOpts...)

	dispatcher := locator.New(locator.Config{
		Capturer:   capturer,
		Text:       text,
		Image:      image,
		Normalizer: coords.NewNormalizer(capturer, cfg.ReferenceResolution),
		Threshold:  cfg.ConfidenceThreshold,
		Logger:     logger.Named("locator"),
	})

	guard := actuator.NewGuard(cfg.FailSafeEnabled, driver.ScreenSize)
	act := actuator.New(driver, guard, actuator.WithLogger(logger.Named("actuator")))

	runner := sequencer.New(cfg, sequencer.Deps{
		Locator:  dispatcher,
		Actuator: act,
		Capturer: capturer,
		Logger:   logger.Named("sequencer"),
	})

	return &Engine{
		Config:   cfg,
		Capturer: capturer,
		Text:     text,
		Image:    image,
		Locator:  dispatcher,
		Actuator: act,
		Watcher:  actuator.NewWatcher(guard, opts.Events, logger.Named("failsafe")),
		Runner:   runner,
		Logger:   logger,
	}
}

// Start arms the asynchronous fail-safe watcher.
func (e *Engine) Start() { e.Watcher.Start() }

// Close stops the watcher.
func (e *Engine) Close() { e.Watcher.Stop() }
