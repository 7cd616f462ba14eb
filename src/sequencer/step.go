package sequencer

import (
	"fmt"
	"time"

	"screen-control/src/actuator"
	"screen-control/src/screenshot"
	"screen-control/src/target"
)

const (
	DefaultDragDuration     = 500 * time.Millisecond
	DefaultWait             = time.Second
	DefaultVerifyTimeout    = 2 * time.Second
	DefaultScreenshotOutput = "screenshot.png"
	DefaultChangeThreshold  = 0.05
)

// Action is one of Click, Drag, Wait, Verify or Screenshot.
type Action interface {
	Name() string
}

type Click struct {
	Target   string
	Method   target.Method
	Units    *target.Units
	Region   *screenshot.Region
	Button   actuator.Button
	Clicks   int
	Interval time.Duration
}

func (Click) Name() string { return "click" }

type Drag struct {
	Start    string
	End      string
	Method   target.Method
	Units    *target.Units
	Region   *screenshot.Region
	Duration time.Duration
}

func (Drag) Name() string { return "drag" }

type Wait struct {
	Duration time.Duration
}

func (Wait) Name() string { return "wait" }

// Verify succeeds when Target can be located within Timeout.
type Verify struct {
	Target  string
	Method  target.Method
	Region  *screenshot.Region
	Timeout time.Duration
}

func (Verify) Name() string { return "verify" }

type Screenshot struct {
	Region *screenshot.Region
	Output string
}

func (Screenshot) Name() string { return "screenshot" }

// Step is an action plus its failure policy and optional post-condition.
type Step struct {
	Action        Action
	StopOnFailure bool
	Verifier      Verifier
}

// NewStep returns a step that stops the sequence when it fails.
func NewStep(a Action) Step {
	return Step{Action: a, StopOnFailure: true}
}

func (s Step) WithVerifier(v Verifier) Step {
	s.Verifier = v
	return s
}

// ContinueOnFailure lets the sequence proceed past this step's failure.
func (s Step) ContinueOnFailure() Step {
	s.StopOnFailure = false
	return s
}

func (s Step) name() string {
	if s.Action == nil {
		return "unknown"
	}
	return s.Action.Name()
}

func (s Step) String() string {
	switch a := s.Action.(type) {
	case Click:
		return fmt.Sprintf("click %s", a.Target)
	case Drag:
		return fmt.Sprintf("drag %s -> %s", a.Start, a.End)
	case Wait:
		return fmt.Sprintf("wait %s", a.Duration)
	case Verify:
		return fmt.Sprintf("verify %s", a.Target)
	case Screenshot:
		return fmt.Sprintf("screenshot %s", a.Output)
	default:
		return s.name()
	}
}
