// Package discover enumerates evdev keyboard devices and reports
// add/remove hotplug notifications, grounded in the teacher's
// hotkey_linux.go device-scanning/isKeyboard logic (§6, Input contract
// from the device-discovery collaborator).
package discover

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Event reports that a device appeared or disappeared.
type Event struct {
	Path    string
	Removed bool
}

// Device is a minimal capability probe over an opened evdev node; real
// device access is supplied by an Opener function so this
// package can be exercised with a fake in tests.
type Device interface {
	Name() string
	HasRelAxes() bool
	HasLetterKeys() bool
	Close() error
}

// Opener opens a device node for capability probing.
type Opener func(path string) (Device, error)

// Lister returns the current candidate device paths (e.g. a
// filepath.Glob over /dev/input/event*, or an injected fake in tests).
type Lister func() ([]string, error)

// excludedNames are the daemon's own virtual devices: discovery must
// never treat them as physical keyboards to manage (§6).
var excludedNames = map[string]bool{}

// ExcludeName registers a virtual device name that Snapshot and Watch
// must never report.
func ExcludeName(name string) { excludedNames[name] = true }

// Snapshot lists every currently present device path classified as a
// keyboard: EV_KEY-capable, no EV_REL capability (rejects mice and
// trackpads), supports the full KEY_A..KEY_Z letter range, and whose
// advertised name is not one of the excluded virtual device names.
func Snapshot(list Lister, open Opener) ([]string, error) {
	paths, err := list()
	if err != nil {
		return nil, fmt.Errorf("list candidate devices: %w", err)
	}
	sortNumerically(paths)

	var keyboards []string
	for _, path := range paths {
		dev, err := open(path)
		if err != nil {
			continue
		}
		if isKeyboard(dev) && !excludedNames[dev.Name()] {
			keyboards = append(keyboards, path)
		}
		dev.Close()
	}
	return keyboards, nil
}

func isKeyboard(dev Device) bool {
	return !dev.HasRelAxes() && dev.HasLetterKeys()
}

func sortNumerically(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		ni, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(paths[i]), "event"))
		nj, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(paths[j]), "event"))
		return ni < nj
	})
}

// Watch polls for device arrival/removal at the given interval and
// sends an Event for each change until ctx is cancelled, mirroring the
// hotplug half of the device-discovery contract (§6). It never closes
// the returned channel while ctx is live; callers drain it in a select
// alongside ctx.Done().
func Watch(ctx context.Context, list Lister, open Opener, interval time.Duration) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		known := make(map[string]bool)
		if snap, err := Snapshot(list, open); err == nil {
			for _, p := range snap {
				known[p] = true
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, err := Snapshot(list, open)
				if err != nil {
					continue
				}
				seen := make(map[string]bool, len(current))
				for _, p := range current {
					seen[p] = true
					if !known[p] {
						known[p] = true
						select {
						case out <- Event{Path: p}:
						case <-ctx.Done():
							return
						}
					}
				}
				for p := range known {
					if !seen[p] {
						delete(known, p)
						select {
						case out <- Event{Path: p, Removed: true}:
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
	}()
	return out
}
