package sequencer

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"screen-control/src/actuator"
	"screen-control/src/screenshot"
	"screen-control/src/target"
)

// Spec is one step as written in a sequence file. JSON files decode too,
// since JSON is valid YAML.
type Spec struct {
	Action        string      `yaml:"action"`
	Target        string      `yaml:"target"`
	Element       string      `yaml:"element"`
	Method        string      `yaml:"method"`
	Units         string      `yaml:"units"`
	Region        string      `yaml:"region"`
	Button        string      `yaml:"button"`
	Clicks        int         `yaml:"clicks"`
	Interval      float64     `yaml:"interval"`
	Start         string      `yaml:"start"`
	End           string      `yaml:"end"`
	Duration      *float64    `yaml:"duration"`
	Seconds       *float64    `yaml:"seconds"`
	Timeout       float64     `yaml:"timeout"`
	Output        string      `yaml:"output"`
	StopOnFailure *bool       `yaml:"stop_on_failure"`
	Verify        *VerifySpec `yaml:"verify"`
}

// VerifySpec attaches a post-condition: either an element that must appear
// or a screen change beyond Threshold.
type VerifySpec struct {
	Element   string  `yaml:"element"`
	Method    string  `yaml:"method"`
	Region    string  `yaml:"region"`
	Timeout   float64 `yaml:"timeout"`
	Changed   bool    `yaml:"changed"`
	Threshold float64 `yaml:"threshold"`
}

type document struct {
	Steps []Spec `yaml:"steps"`
}

// Decode reads either a bare list of steps or a document with a steps key.
func Decode(data []byte) ([]Spec, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("sequence is empty")
	}

	var specs []Spec
	if err := yaml.Unmarshal(trimmed, &specs); err == nil {
		return specs, nil
	}
	var doc document
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sequence: %w", err)
	}
	if doc.Steps == nil {
		return nil, fmt.Errorf("sequence has no steps")
	}
	return doc.Steps, nil
}

func LoadFile(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence file: %w", err)
	}
	specs, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// Steps turns decoded specs into runnable steps bound to r.
func (r *Runner) Steps(specs []Spec) ([]Step, error) {
	steps := make([]Step, 0, len(specs))
	for i, s := range specs {
		step, err := r.step(s)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (r *Runner) step(s Spec) (Step, error) {
	method, err := target.ParseMethod(s.Method)
	if err != nil {
		return Step{}, err
	}
	region, err := screenshot.ParseRegion(s.Region)
	if err != nil {
		return Step{}, err
	}
	var units *target.Units
	if u, ok, err := target.ParseUnits(s.Units); err != nil {
		return Step{}, err
	} else if ok {
		units = &u
	}

	var action Action
	switch strings.ToLower(s.Action) {
	case "click":
		if s.Target == "" {
			return Step{}, fmt.Errorf("click needs a target")
		}
		button, err := actuator.ParseButton(s.Button)
		if err != nil {
			return Step{}, err
		}
		action = Click{
			Target:   s.Target,
			Method:   method,
			Units:    units,
			Region:   region,
			Button:   button,
			Clicks:   max(1, s.Clicks),
			Interval: seconds(s.Interval),
		}
	case "drag":
		if s.Start == "" || s.End == "" {
			return Step{}, fmt.Errorf("drag needs start and end")
		}
		action = Drag{
			Start:    s.Start,
			End:      s.End,
			Method:   method,
			Units:    units,
			Region:   region,
			Duration: secondsOr(s.Duration, DefaultDragDuration),
		}
	case "wait":
		d := s.Seconds
		if d == nil {
			d = s.Duration
		}
		action = Wait{Duration: secondsOr(d, DefaultWait)}
	case "verify":
		element := firstNonEmpty(s.Element, s.Target)
		if element == "" {
			return Step{}, fmt.Errorf("verify needs an element")
		}
		action = Verify{Target: element, Method: method, Region: region, Timeout: secondsOrZero(s.Timeout, DefaultVerifyTimeout)}
	case "screenshot":
		action = Screenshot{Region: region, Output: firstNonEmpty(s.Output, DefaultScreenshotOutput)}
	default:
		return Step{}, fmt.Errorf("unknown action %q", s.Action)
	}

	step := NewStep(action)
	if s.StopOnFailure != nil {
		step.StopOnFailure = *s.StopOnFailure
	}
	if s.Verify != nil {
		v, err := r.verifier(*s.Verify)
		if err != nil {
			return Step{}, err
		}
		step.Verifier = v
	}
	return step, nil
}

func (r *Runner) verifier(v VerifySpec) (Verifier, error) {
	region, err := screenshot.ParseRegion(v.Region)
	if err != nil {
		return nil, err
	}
	if v.Changed {
		threshold := v.Threshold
		if threshold <= 0 {
			threshold = DefaultChangeThreshold
		}
		return r.ScreenChanged(region, threshold), nil
	}
	if v.Element == "" {
		return nil, fmt.Errorf("verify needs an element or changed: true")
	}
	method, err := target.ParseMethod(v.Method)
	if err != nil {
		return nil, err
	}
	return r.ElementPresent(v.Element, method, region, secondsOrZero(v.Timeout, DefaultVerifyTimeout)), nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func secondsOr(s *float64, def time.Duration) time.Duration {
	if s == nil {
		return def
	}
	return seconds(*s)
}

func secondsOrZero(s float64, def time.Duration) time.Duration {
	if s <= 0 {
		return def
	}
	return seconds(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
