//go:build linux

package discover

import (
	"fmt"
	"path/filepath"

	evdev "github.com/holoplot/go-evdev"
)

type evdevDevice struct {
	dev *evdev.InputDevice
}

func (d *evdevDevice) Name() string {
	name, err := d.dev.Name()
	if err != nil {
		return ""
	}
	return name
}

func (d *evdevDevice) HasRelAxes() bool {
	for _, t := range d.dev.CapableTypes() {
		if t == evdev.EV_REL {
			return true
		}
	}
	return false
}

func (d *evdevDevice) HasLetterKeys() bool {
	have := make(map[int]bool)
	for _, code := range d.dev.CapableEvents(evdev.EV_KEY) {
		have[int(code)] = true
	}
	// KEY_Q..KEY_P, KEY_A..KEY_L, KEY_Z..KEY_M: all 26 letter keys.
	for _, r := range [][2]int{{16, 25}, {30, 38}, {44, 50}} {
		for c := r[0]; c <= r[1]; c++ {
			if !have[c] {
				return false
			}
		}
	}
	return true
}

func (d *evdevDevice) Close() error { return d.dev.Close() }

// DefaultOpener opens a device node for capability probing, grounded
// in the teacher's FindKeyboard/isKeyboard (hotkey_linux.go).
func DefaultOpener(path string) (Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &evdevDevice{dev: dev}, nil
}

// DefaultLister globs /dev/input/event* for candidate device paths.
func DefaultLister() ([]string, error) {
	return filepath.Glob("/dev/input/event*")
}
