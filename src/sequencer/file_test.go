package sequencer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-control/src/actuator"
	"screen-control/src/screenshot"
	"screen-control/src/target"
)

const roadSequence = `
steps:
  - action: click
    target: roads_icon
  - action: click
    target: "确定"
    method: text
    button: right
    clicks: 2
    interval: 0.1
    region: 0,0,800,600
    stop_on_failure: false
    verify:
      changed: true
  - action: drag
    start: "0.3,0.4"
    end: "0.7,0.6"
    units: ratio
  - action: wait
    duration: 1.5
  - action: verify
    element: road_built_indicator
    timeout: 3
  - action: screenshot
`

func TestDecodeYAML(t *testing.T) {
	specs, err := Decode([]byte(roadSequence))
	require.NoError(t, err)
	require.Len(t, specs, 6)

	f := newFixture(nil, nil)
	steps, err := f.runner.Steps(specs)
	require.NoError(t, err)

	assert.Equal(t, NewStep(Click{Target: "roads_icon", Method: target.MethodAuto, Button: actuator.Left, Clicks: 1}), steps[0])

	click := steps[1].Action.(Click)
	assert.Equal(t, target.MethodText, click.Method)
	assert.Equal(t, actuator.Right, click.Button)
	assert.Equal(t, 2, click.Clicks)
	assert.Equal(t, 100*time.Millisecond, click.Interval)
	assert.Equal(t, &screenshot.Region{Width: 800, Height: 600}, click.Region)
	assert.False(t, steps[1].StopOnFailure)
	assert.IsType(t, &screenChanged{}, steps[1].Verifier)

	drag := steps[2].Action.(Drag)
	require.NotNil(t, drag.Units)
	assert.Equal(t, target.UnitsRatio, *drag.Units)
	assert.Equal(t, DefaultDragDuration, drag.Duration)

	assert.Equal(t, Wait{Duration: 1500 * time.Millisecond}, steps[3].Action)
	assert.Equal(t, Verify{Target: "road_built_indicator", Method: target.MethodAuto, Timeout: 3 * time.Second}, steps[4].Action)
	assert.Equal(t, Screenshot{Output: DefaultScreenshotOutput}, steps[5].Action)
	assert.True(t, steps[5].StopOnFailure)
}

func TestDecodeJSONList(t *testing.T) {
	data := `[
  {"action": "click", "target": "highway_tool"},
  {"action": "wait"},
  {"action": "drag", "start": "100,100", "end": "400,300", "duration": 0.8}
]`
	specs, err := Decode([]byte(data))
	require.NoError(t, err)

	f := newFixture(nil, nil)
	steps, err := f.runner.Steps(specs)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, Wait{Duration: DefaultWait}, steps[1].Action)
	assert.Equal(t, 800*time.Millisecond, steps[2].Action.(Drag).Duration)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("  "))
	assert.Error(t, err)

	_, err = Decode([]byte("name: nothing"))
	assert.Error(t, err)

	f := newFixture(nil, nil)
	for _, bad := range []Spec{
		{Action: "hover"},
		{Action: "click"},
		{Action: "click", Target: "x", Button: "thumb"},
		{Action: "drag", Start: "1,1"},
		{Action: "verify"},
		{Action: "click", Target: "x", Method: "ocr"},
		{Action: "click", Target: "x", Region: "1,2"},
		{Action: "click", Target: "x", Verify: &VerifySpec{}},
	} {
		_, err := f.runner.Steps([]Spec{bad})
		assert.Error(t, err, "%+v", bad)
	}
}

func TestLoadFileRunsSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- action: click\n  target: OK\n- action: wait\n  seconds: 0.25\n"), 0600))

	specs, err := LoadFile(path)
	require.NoError(t, err)

	f := newFixture(map[string]int{"OK": 0}, nil)
	steps, err := f.runner.Steps(specs)
	require.NoError(t, err)

	res := f.runner.RunSequence(steps)
	require.True(t, res.Success, res.Message)
	assert.Len(t, res.Results(), 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
