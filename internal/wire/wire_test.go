package wire

import (
	"testing"

	"github.com/keyd-go/keyd/internal/keymap"
)

func TestIsMouseButton(t *testing.T) {
	cases := []struct {
		code keymap.Keycode
		want bool
	}{
		{0x110, true},  // BTN_LEFT
		{0x117, true},  // BTN_TASK
		{0x100, true},  // BTN_0
		{0x109, true},  // BTN_9
		{30, false},    // KEY_A
		{0x10a, false}, // just past the BTN_0..BTN_9 range
	}
	for _, c := range cases {
		if got := IsMouseButton(c.code); got != c.want {
			t.Errorf("IsMouseButton(0x%x) = %v, want %v", c.code, got, c.want)
		}
	}
}
