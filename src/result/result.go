// Package result defines the value every primitive and sequence returns.
// Failure is always reported through a Result, never a panic.
package result

import (
	"encoding/json"
	"fmt"
)

type Result struct {
	Success bool           `json:"success"`
	Action  string         `json:"action"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func Succeeded(action, message string, data map[string]any) Result {
	return Result{Success: true, Action: action, Message: message, Data: ensure(data)}
}

func Failed(action, message string, data map[string]any) Result {
	return Result{Success: false, Action: action, Message: message, Data: ensure(data)}
}

// Failedf is Failed with a formatted message and no data.
func Failedf(action, format string, args ...any) Result {
	return Failed(action, fmt.Sprintf(format, args...), nil)
}

// Status maps Success onto the CLI's "success"/"failed" strings.
func (r Result) Status() string {
	if r.Success {
		return "success"
	}
	return "failed"
}

// Int reads an integer entry from Data.
func (r Result) Int(key string) (int, bool) {
	v, ok := r.Data[key].(int)
	return v, ok
}

// Results reads the per-step results of an aggregate.
func (r Result) Results() []Result {
	v, _ := r.Data["results"].([]Result)
	return v
}

func (r Result) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%s: %s", r.Action, r.Message)
	}
	return string(b)
}

func ensure(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}
