package actuator

import "testing"

func TestRobotgoButton(t *testing.T) {
	tests := []struct {
		in   Button
		want string
	}{
		{Left, "left"},
		{Right, "right"},
		{Middle, "center"},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			if got := robotgoButton(tt.in); got != tt.want {
				t.Errorf("robotgoButton(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
