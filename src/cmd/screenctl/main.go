package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"screen-control/src/clipboard"
	"screen-control/src/config"
	"screen-control/src/runtimeinit"
)

// errReported marks a failure whose JSON line has already been written.
var errReported = errors.New("failure reported")

type cliOptions struct {
	configPath string
	confidence float64
	lang       string
	verbose    bool
	debug      bool
}

// app holds the process streams and the devices every action runs against.
type app struct {
	opts     cliOptions
	stdout   io.Writer
	stderr   io.Writer
	devices  runtimeinit.EngineOptions
	ocrCheck func(langs []string) (string, error)
	copyText func(text string) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:   stdout,
		stderr:   stderr,
		devices:  runtimeinit.EngineOptions{DebugDir: "."},
		copyText: clipboard.Write,
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	return runWithArgs(normalizeLegacyArgs(os.Args), newApp(os.Stdout, os.Stderr))
}

// runWithArgs executes one action and returns the process exit code. Every
// invocation that runs an action writes exactly one JSON line to stdout.
func runWithArgs(args []string, a *app) int {
	if len(args) == 0 {
		args = []string{"screenctl"}
	}

	root := newRootCmd(a)
	root.SetArgs(args[1:])
	root.SetOut(a.stderr)
	root.SetErr(a.stderr)

	cmd, err := root.ExecuteC()
	if err == nil {
		return 0
	}
	if !errors.Is(err, errReported) {
		action := "unknown"
		if cmd != nil && cmd != root {
			action = cmd.Name()
		}
		a.emit(map[string]any{"status": "failed", "action": action, "message": err.Error()})
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screenctl",
		Short:         "Locate targets on screen and click or drag them",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("an action is required: click, drag, screenshot, find, read, run or changed")
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "Path to a yaml or json config file")
	flags.Float64Var(&a.opts.confidence, "confidence", 0, "Image match confidence threshold in (0,1] (default from config, 0.8)")
	flags.StringVar(&a.opts.lang, "lang", "", "Tesseract languages, e.g. chi_sim+eng (default from config)")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Verbose logs to stderr")
	flags.BoolVar(&a.opts.debug, "debug", false, "Save captured regions and log match scores")

	cmd.AddCommand(
		newClickCmd(a),
		newDragCmd(a),
		newScreenshotCmd(a),
		newFindCmd(a),
		newReadCmd(a),
		newRunCmd(a),
		newChangedCmd(a),
	)
	return cmd
}

func (a *app) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		ConfigPath:          a.opts.configPath,
		ConfidenceOverride:  a.opts.confidence,
		OCRLanguageOverride: a.opts.lang,
		Debug:               a.opts.debug,
	}
}

// emit writes v as a single JSON line.
func (a *app) emit(v map[string]any) {
	if err := json.NewEncoder(a.stdout).Encode(v); err != nil {
		fmt.Fprintf(a.stderr, "Error: failed to encode result: %v\n", err)
	}
}

// fail writes a failed result for action and returns errReported.
func (a *app) fail(action string, fields map[string]any, err error) error {
	out := map[string]any{"status": "failed", "action": action, "message": err.Error()}
	for k, v := range fields {
		out[k] = v
	}
	a.emit(out)
	if a.opts.verbose {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	return errReported
}

// legacyFlags lists the long flags also accepted with a single dash.
var legacyFlags = map[string]bool{
	"target": true, "method": true, "region": true, "button": true, "clicks": true,
	"interval": true, "units": true, "start": true, "end": true, "duration": true,
	"output": true, "copy": true, "file": true, "before": true, "after": true,
	"threshold": true, "confidence": true, "config": true, "lang": true,
	"verbose": true, "debug": true,
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		if legacyFlags[name] {
			normalized[i] = "-" + arg
		}
	}

	return normalized
}
