package reifier

import (
	"testing"

	"github.com/keyd-go/keyd/internal/keymap"
)

type fakeWriter struct {
	state  map[keymap.Keycode]bool
	events []string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{state: make(map[keymap.Keycode]bool)}
}

func (f *fakeWriter) Pressed(code keymap.Keycode) bool { return f.state[code] }
func (f *fakeWriter) Press(code keymap.Keycode) {
	f.state[code] = true
	f.events = append(f.events, "+")
}
func (f *fakeWriter) Release(code keymap.Keycode) {
	f.state[code] = false
	f.events = append(f.events, "-")
}

func TestReifyEmitsOnlyDisagreements(t *testing.T) {
	w := newFakeWriter()
	Reify(w, keymap.ModCtrl|keymap.ModShift)

	if !w.Pressed(keymap.CanonicalKeycode[keymap.ModCtrl]) {
		t.Error("expected CTRL pressed")
	}
	if !w.Pressed(keymap.CanonicalKeycode[keymap.ModShift]) {
		t.Error("expected SHIFT pressed")
	}
	if w.Pressed(keymap.CanonicalKeycode[keymap.ModAlt]) {
		t.Error("expected ALT untouched")
	}
	if len(w.events) != 2 {
		t.Errorf("expected exactly 2 emissions, got %d", len(w.events))
	}

	// Reifying the same mask again must be a no-op.
	Reify(w, keymap.ModCtrl|keymap.ModShift)
	if len(w.events) != 2 {
		t.Errorf("expected no new emissions on idempotent reify, got %d total", len(w.events))
	}
}

func TestReifyReleasesStaleModifiers(t *testing.T) {
	w := newFakeWriter()
	Reify(w, keymap.ModCtrl)
	Reify(w, keymap.ModShift)

	if w.Pressed(keymap.CanonicalKeycode[keymap.ModCtrl]) {
		t.Error("expected CTRL released when no longer in target mask")
	}
	if !w.Pressed(keymap.CanonicalKeycode[keymap.ModShift]) {
		t.Error("expected SHIFT pressed")
	}
}
