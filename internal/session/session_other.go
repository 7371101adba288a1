//go:build !linux

package session

import "fmt"

var errUnsupported = fmt.Errorf("session: device grabbing is only supported on linux")

// Open always fails on non-Linux platforms; there is no evdev here.
func Open(path string) (Device, error) { return nil, errUnsupported }

// NeutralityWait is a no-op stand-in on non-Linux platforms.
func NeutralityWait(devices []Device) error { return nil }
