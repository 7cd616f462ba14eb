package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"screen-control/src/actuator"
	"screen-control/src/clipboard"
	"screen-control/src/ocr"
	"screen-control/src/runtimeinit"
	"screen-control/src/screenshot"
	"screen-control/src/sequencer"
	"screen-control/src/target"
	"screen-control/src/vision"
)

// locateFlags are shared by every action that resolves a target.
type locateFlags struct {
	method string
	region string
	units  string
}

func (f *locateFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.method, "method", "auto", "Locate method: auto, text, image or coord")
	cmd.Flags().StringVar(&f.region, "region", "", "Search region as left,top,width,height")
	cmd.Flags().StringVar(&f.units, "units", "auto", "Coordinate units: auto, ratio or pixel")
}

type parsedLocate struct {
	method target.Method
	region *screenshot.Region
	units  *target.Units
}

func (f *locateFlags) parse() (parsedLocate, error) {
	method, err := target.ParseMethod(f.method)
	if err != nil {
		return parsedLocate{}, err
	}
	region, err := screenshot.ParseRegion(f.region)
	if err != nil {
		return parsedLocate{}, err
	}
	p := parsedLocate{method: method, region: region}
	u, ok, err := target.ParseUnits(f.units)
	if err != nil {
		return parsedLocate{}, err
	}
	if ok {
		p.units = &u
	}
	return p, nil
}

// needsOCR reports whether raw would be located by text.
func needsOCR(method target.Method, raws ...string) bool {
	for _, raw := range raws {
		if raw == "" {
			continue
		}
		if t, err := target.Resolve(raw, method, nil); err == nil && t.Kind() == target.KindText {
			return true
		}
	}
	return false
}

// start bootstraps the runtime and wires an engine.
func (a *app) start(display, text bool) (*runtimeinit.Engine, error) {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:    a.loadOptions(),
		Verbose:        a.opts.verbose,
		RequireDisplay: display,
		RequireOCR:     text,
		Capturer:       a.devices.Capturer,
		OCRCheck:       a.ocrCheck,
	})
	if err != nil {
		return nil, err
	}
	return runtimeinit.NewEngine(rt.Config.Engine, rt.Logger, a.devices), nil
}

func location(data map[string]any, xKey, yKey string) []int {
	x, okX := data[xKey].(int)
	y, okY := data[yKey].(int)
	if !okX || !okY {
		return nil
	}
	return []int{x, y}
}

func newClickCmd(a *app) *cobra.Command {
	var (
		raw      string
		button   string
		clicks   int
		interval float64
		lf       locateFlags
	)
	cmd := &cobra.Command{
		Use:   "click",
		Short: "Locate a target and click it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{"target": raw}
			p, err := lf.parse()
			if err != nil {
				return a.fail("click", fields, err)
			}
			btn, err := actuator.ParseButton(button)
			if err != nil {
				return a.fail("click", fields, err)
			}
			e, err := a.start(true, needsOCR(p.method, raw))
			if err != nil {
				return a.fail("click", fields, err)
			}
			e.Start()
			defer e.Close()

			res := e.Runner.RunStep(sequencer.NewStep(sequencer.Click{
				Target:   raw,
				Method:   p.method,
				Units:    p.units,
				Region:   p.region,
				Button:   btn,
				Clicks:   clicks,
				Interval: seconds(interval),
			}))
			out := map[string]any{"status": res.Status(), "action": "click", "target": raw, "message": res.Message}
			if loc := location(res.Data, "x", "y"); loc != nil {
				out["location"] = loc
				out["method"] = res.Data["method"]
			}
			a.emit(out)
			if !res.Success {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&raw, "target", "", "Text, image path or x,y coordinate")
	cmd.Flags().StringVar(&button, "button", "left", "Mouse button: left, right or middle")
	cmd.Flags().IntVar(&clicks, "clicks", 1, "Number of clicks")
	cmd.Flags().Float64Var(&interval, "interval", 0, "Seconds between clicks")
	lf.bind(cmd)
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newDragCmd(a *app) *cobra.Command {
	var (
		start, end string
		duration   float64
		lf         locateFlags
	)
	cmd := &cobra.Command{
		Use:   "drag",
		Short: "Drag from one target to another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{"start": start, "end": end}
			p, err := lf.parse()
			if err != nil {
				return a.fail("drag", fields, err)
			}
			e, err := a.start(true, needsOCR(p.method, start, end))
			if err != nil {
				return a.fail("drag", fields, err)
			}
			e.Start()
			defer e.Close()

			res := e.Runner.RunStep(sequencer.NewStep(sequencer.Drag{
				Start:    start,
				End:      end,
				Method:   p.method,
				Units:    p.units,
				Region:   p.region,
				Duration: seconds(duration),
			}))
			a.emit(map[string]any{"status": res.Status(), "action": "drag", "start": start, "end": end, "message": res.Message})
			if !res.Success {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Start target")
	cmd.Flags().StringVar(&end, "end", "", "End target")
	cmd.Flags().Float64Var(&duration, "duration", 0.5, "Drag duration in seconds")
	lf.bind(cmd)
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newScreenshotCmd(a *app) *cobra.Command {
	var region, output string
	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Capture the screen or a region to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := screenshot.ParseRegion(region)
			if err != nil {
				return a.fail("screenshot", nil, err)
			}
			e, err := a.start(true, false)
			if err != nil {
				return a.fail("screenshot", nil, err)
			}
			res := e.Runner.RunStep(sequencer.NewStep(sequencer.Screenshot{Region: r, Output: output}))
			if !res.Success {
				return a.fail("screenshot", nil, errors.New(res.Message))
			}
			a.emit(map[string]any{"status": "success", "action": "screenshot", "path": res.Data["path"]})
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "Region as left,top,width,height")
	cmd.Flags().StringVar(&output, "output", sequencer.DefaultScreenshotOutput, "Output file (.png or .jpg)")
	return cmd
}

func newFindCmd(a *app) *cobra.Command {
	var (
		raw     string
		copyOut bool
		lf      locateFlags
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Locate a target and print its coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{"target": raw}
			p, err := lf.parse()
			if err != nil {
				return a.fail("find", fields, err)
			}
			e, err := a.start(true, needsOCR(p.method, raw))
			if err != nil {
				return a.fail("find", fields, err)
			}

			m, ok := e.Locator.LocateWithUnits(raw, p.method, p.units, p.region)
			if !ok {
				return a.fail("find", fields, fmt.Errorf("target not found: %s", raw))
			}
			if copyOut {
				a.copy(e, clipboard.Point(m.X, m.Y))
			}
			a.emit(map[string]any{
				"status":   "success",
				"action":   "find",
				"target":   raw,
				"location": []int{m.X, m.Y},
				"method":   m.Method.String(),
				"score":    m.Score,
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&raw, "target", "", "Text, image path or x,y coordinate")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "Copy x,y to the clipboard")
	lf.bind(cmd)
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newReadCmd(a *app) *cobra.Command {
	var (
		region  string
		copyOut bool
	)
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read the text in a region and parse the first number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := screenshot.ParseRegion(region)
			if err != nil {
				return a.fail("read", nil, err)
			}
			e, err := a.start(true, true)
			if err != nil {
				return a.fail("read", nil, err)
			}
			text, err := e.Text.ReadText(r)
			if err != nil {
				return a.fail("read", nil, err)
			}
			if copyOut {
				a.copy(e, text)
			}
			out := map[string]any{"status": "success", "action": "read", "text": text, "number": nil}
			if n, ok := ocr.ParseNumber(text); ok {
				out["number"] = n
			}
			a.emit(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "Region as left,top,width,height")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "Copy the text to the clipboard")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a yaml or json sequence file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := sequencer.LoadFile(file)
			if err != nil {
				return a.fail("sequence", nil, err)
			}
			text := false
			for _, s := range specs {
				if specNeedsOCR(s) {
					text = true
					break
				}
			}
			e, err := a.start(true, text)
			if err != nil {
				return a.fail("sequence", nil, err)
			}
			steps, err := e.Runner.Steps(specs)
			if err != nil {
				return a.fail("sequence", nil, err)
			}
			e.Start()
			defer e.Close()

			res := e.Runner.RunSequence(steps)
			a.emit(map[string]any{"status": res.Status(), "action": "sequence", "message": res.Message, "data": res.Data})
			if !res.Success {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Sequence file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func specNeedsOCR(s sequencer.Spec) bool {
	if s.Verify != nil && s.Verify.Element != "" {
		if vm, err := target.ParseMethod(s.Verify.Method); err == nil && needsOCR(vm, s.Verify.Element) {
			return true
		}
	}
	method, err := target.ParseMethod(s.Method)
	if err != nil {
		return false
	}
	switch s.Action {
	case "click":
		return needsOCR(method, s.Target)
	case "drag":
		return needsOCR(method, s.Start, s.End)
	case "verify":
		return needsOCR(method, s.Element, s.Target)
	default:
		return false
	}
}

func newChangedCmd(a *app) *cobra.Command {
	var (
		before, after string
		threshold     float64
	)
	cmd := &cobra.Command{
		Use:   "changed",
		Short: "Compare two screenshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, diff, err := vision.LoadAndCompare(before, after, threshold)
			if err != nil {
				return a.fail("changed", nil, err)
			}
			status := "success"
			if !changed {
				status = "failed"
			}
			a.emit(map[string]any{"status": status, "action": "changed", "changed": changed, "difference": diff, "threshold": threshold})
			if !changed {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "Screenshot taken before the action")
	cmd.Flags().StringVar(&after, "after", "", "Screenshot taken after the action")
	cmd.Flags().Float64Var(&threshold, "threshold", sequencer.DefaultChangeThreshold, "Relative difference that counts as a change")
	_ = cmd.MarkFlagRequired("before")
	_ = cmd.MarkFlagRequired("after")
	return cmd
}

// copy writes text to the clipboard; failures are logged only.
func (a *app) copy(e *runtimeinit.Engine, text string) {
	if err := a.copyText(text); err != nil {
		e.Logger.Warn("clipboard write failed", zap.Error(err))
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
