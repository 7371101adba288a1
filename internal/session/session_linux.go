//go:build linux

package session

import (
	"fmt"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"github.com/keyd-go/keyd/internal/keymap"
	"github.com/keyd-go/keyd/internal/wire"
)

// eviocgrab is EVIOCGRAB, _IOW('E', 0x90, int) — grab (arg=1) or release
// (arg=0) exclusive delivery of a device's events to this process.
const eviocgrab = 0x40044590

// evdevDevice adapts *evdev.InputDevice to the Device interface.
type evdevDevice struct {
	path string
	dev  *evdev.InputDevice
}

// Open opens path for exclusive management.
func Open(path string) (Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &evdevDevice{path: path, dev: dev}, nil
}

func (d *evdevDevice) Path() string { return d.path }

func (d *evdevDevice) Name() string {
	name, err := d.dev.Name()
	if err != nil {
		return ""
	}
	return name
}

func (d *evdevDevice) ReadEvent() (wire.Event, error) {
	ev, err := d.dev.ReadOne()
	if err != nil {
		return wire.Event{}, err
	}
	return wire.Event{Type: uint16(ev.Type), Code: keymap.Keycode(ev.Code), Value: ev.Value}, nil
}

func (d *evdevDevice) Grab() error   { return unix.IoctlSetInt(int(d.dev.File().Fd()), eviocgrab, 1) }
func (d *evdevDevice) Ungrab() error { return unix.IoctlSetInt(int(d.dev.File().Fd()), eviocgrab, 0) }
func (d *evdevDevice) Close() error  { return d.dev.Close() }

// NeutralityWait implements §4.7: before any candidate keyboard is
// grabbed, block until no key is physically held on any of them. It
// reads every candidate's fd non-exclusively with a 300ms unix.Select
// poll, tracking a global per-keycode held state, and returns as soon
// as a poll (an event or the 300ms timeout) leaves nothing held.
//
// The 300ms window is a heuristic tied to typical auto-repeat delay: a
// key already held when the daemon starts was never seen as a press
// here, but its auto-repeat (value=2) will surface within the window,
// which this function also treats as "held" so the wait does not
// falsely conclude neutrality on the very first poll.
func NeutralityWait(devices []Device) error {
	readers := make(map[int]Device, len(devices))
	for _, d := range devices {
		ed, ok := d.(*evdevDevice)
		if !ok {
			continue
		}
		readers[int(ed.dev.File().Fd())] = d
	}
	if len(readers) == 0 {
		return nil
	}

	var held [keymap.NumKeycodes]bool

	for {
		var fdset unix.FdSet
		maxFd := 0
		for fd := range readers {
			fdSet(&fdset, fd)
			if fd > maxFd {
				maxFd = fd
			}
		}

		tv := unix.NsecToTimeval((300 * time.Millisecond).Nanoseconds())
		n, err := unix.Select(maxFd+1, &fdset, nil, nil, &tv)
		if err != nil {
			return fmt.Errorf("neutrality wait select: %w", err)
		}

		if n > 0 {
			for fd, d := range readers {
				if !fdIsSet(&fdset, fd) {
					continue
				}
				ev, err := d.ReadEvent()
				if err != nil {
					continue
				}
				if ev.Type != wire.EvKey {
					continue
				}
				switch ev.Value {
				case wire.KeyDown, wire.KeyRepeat:
					held[ev.Code] = true
				case wire.KeyUp:
					held[ev.Code] = false
				}
			}
		}

		anyHeld := false
		for _, h := range held {
			if h {
				anyHeld = true
				break
			}
		}
		if !anyHeld {
			return nil
		}
	}
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
