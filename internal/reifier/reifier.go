// Package reifier translates a target modifier mask into the minimal
// set of synthetic press/release events needed to bring a virtual
// keyboard's modifier state into agreement with it.
package reifier

import "github.com/keyd-go/keyd/internal/keymap"

// KeyWriter is the subset of the virtual output's surface the reifier
// needs: read the last-sent state of a keycode and press/release it.
type KeyWriter interface {
	Pressed(code keymap.Keycode) bool
	Press(code keymap.Keycode)
	Release(code keymap.Keycode)
}

// Reify brings w's modifier pressed-state into agreement with mods. For
// each of the five modifiers, if the target bit disagrees with the
// writer's last-known state for its canonical keycode, a press or
// release is emitted. Order across the five modifiers within one call
// is not observable to consumers, provided every event here precedes
// the next non-modifier emission — callers must not interleave.
func Reify(w KeyWriter, mods keymap.ModMask) {
	for _, m := range keymap.AllModifiers {
		code := keymap.CanonicalKeycode[m]
		want := mods&m != 0
		if want != w.Pressed(code) {
			if want {
				w.Press(code)
			} else {
				w.Release(code)
			}
		}
	}
}
