package session

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/keyd-go/keyd/internal/engine"
	"github.com/keyd-go/keyd/internal/keymap"
	"github.com/keyd-go/keyd/internal/vinput"
	"github.com/keyd-go/keyd/internal/wire"
)

type fakeDevice struct {
	path    string
	events  []wire.Event
	idx     int
	grabbed bool
	closed  bool
}

func (d *fakeDevice) Path() string { return d.path }
func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) ReadEvent() (wire.Event, error) {
	if d.closed || d.idx >= len(d.events) {
		return wire.Event{}, errors.New("file already closed")
	}
	ev := d.events[d.idx]
	d.idx++
	return ev, nil
}

func (d *fakeDevice) Grab() error   { d.grabbed = true; return nil }
func (d *fakeDevice) Ungrab() error { d.grabbed = false; return nil }
func (d *fakeDevice) Close() error  { d.closed = true; return nil }

type discardWriter struct{}

func (discardWriter) Pressed(keymap.Keycode) bool    { return false }
func (discardWriter) Press(keymap.Keycode)           {}
func (discardWriter) Release(keymap.Keycode)         {}
func (discardWriter) Passthrough(wire.Event)         {}
func (discardWriter) ReplayRepeats()                 {}

var _ vinput.Writer = discardWriter{}

func TestSessionRunGrabsAndUngrabs(t *testing.T) {
	dev := &fakeDevice{path: "/dev/input/event0", events: []wire.Event{
		{Type: wire.EvKey, Code: 30, Value: wire.KeyDown},
		{Type: wire.EvKey, Code: 30, Value: wire.KeyUp},
	}}
	kbd := &keymap.Keyboard{Layers: &keymap.LayerSet{Layers: []*keymap.Layer{{}}}}
	kbd.Layout, kbd.Modlayout = kbd.Layers.Layers[0], kbd.Layers.Layers[0]
	proc := engine.New(kbd, discardWriter{})
	s := New(dev, proc, log.New(io.Discard, "", 0))

	if err := s.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.grabbed {
		t.Fatal("expected device to be ungrabbed after Run returns")
	}
	if !dev.closed {
		t.Fatal("expected device to be closed after Run returns")
	}
}

func TestSessionStopUnblocksRun(t *testing.T) {
	dev := &fakeDevice{path: "/dev/input/event1"}
	kbd := &keymap.Keyboard{Layers: &keymap.LayerSet{Layers: []*keymap.Layer{{}}}}
	kbd.Layout, kbd.Modlayout = kbd.Layers.Layers[0], kbd.Layers.Layers[0]
	proc := engine.New(kbd, discardWriter{})
	s := New(dev, proc, log.New(io.Discard, "", 0))

	s.Stop()
	if err := s.Run(); err != nil {
		t.Fatalf("expected Stop to make Run return cleanly, got %v", err)
	}
}
