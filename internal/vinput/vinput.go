// Package vinput provides the two synthetic output devices — a virtual
// keyboard and a virtual pointer — that every emitted event is written
// through (§4.1). It is the only part of the system that mutates the
// process-wide keystate array (§9, "Global mutable keystate").
package vinput

import (
	"fmt"

	"github.com/keyd-go/keyd/internal/keycode"
	"github.com/keyd-go/keyd/internal/keymap"
	"github.com/keyd-go/keyd/internal/wire"
)

// VirtualKeyboardName and VirtualPointerName are the well-known names
// advertised by the synthetic devices. The discovery collaborator
// excludes devices bearing these names from both its snapshot and its
// hotplug stream (§6).
const (
	VirtualKeyboardName = "keyd-go virtual keyboard"
	VirtualPointerName  = "keyd-go virtual pointer"
)

// Writer is the interface the engine drives. It is satisfied by *Output
// on Linux and can be satisfied by a fake in tests.
type Writer interface {
	Pressed(code keymap.Keycode) bool
	Press(code keymap.Keycode)
	Release(code keymap.Keycode)
	Passthrough(ev wire.Event)
	ReplayRepeats()
}

// keycodeCapabilities returns every keycode the virtual keyboard should
// advertise: every named entry in the keycode table except mouse
// buttons (§6, Virtual device contract).
func keycodeCapabilities() []keymap.Keycode {
	var codes []keymap.Keycode
	for _, e := range keycode.All() {
		if keycode.IsMouseButton(e.Code) {
			continue
		}
		codes = append(codes, e.Code)
	}
	return codes
}

// pointerButtonCapabilities returns BTN_LEFT..BTN_TASK and BTN_0..BTN_9,
// the button codes the virtual pointer advertises.
func pointerButtonCapabilities() []keymap.Keycode {
	var codes []keymap.Keycode
	const (
		btnLeft = 0x110
		btnTask = 0x117
		btn0    = 0x100
		btn9    = 0x109
	)
	for c := keymap.Keycode(btnLeft); c <= btnTask; c++ {
		codes = append(codes, c)
	}
	for c := keymap.Keycode(btn0); c <= btn9; c++ {
		codes = append(codes, c)
	}
	return codes
}

// errUnsupported is returned by platform stubs.
var errUnsupported = fmt.Errorf("vinput: virtual devices are only supported on linux")
