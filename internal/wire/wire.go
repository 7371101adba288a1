// Package wire defines the host input subsystem's event record,
// independent of any particular evdev binding, so the core engine can
// be unit tested without a real device.
package wire

import "github.com/keyd-go/keyd/internal/keymap"

// Event types recognized by the engine (values match Linux evdev).
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02
)

// Key event values.
const (
	KeyUp   int32 = 0
	KeyDown int32 = 1
	KeyRepeat int32 = 2
)

// IsMouseButton reports whether code falls in evdev's button-code
// ranges (BTN_LEFT..BTN_TASK or BTN_0..BTN_9), the ranges that always
// route to the virtual pointer rather than the virtual keyboard.
func IsMouseButton(code keymap.Keycode) bool {
	const (
		btnLeft = 0x110
		btnTask = 0x117
		btn0    = 0x100
		btn9    = 0x109
	)
	return (code >= btnLeft && code <= btnTask) || (code >= btn0 && code <= btn9)
}

// Event is a host input event: a type/code/value triple. Time is
// omitted — the core never reads it, and vinput writes every synthetic
// event with a zero timestamp.
type Event struct {
	Type  uint16
	Code  keymap.Keycode
	Value int32
}
