//go:build !linux

package discover

import "fmt"

var errUnsupported = fmt.Errorf("discover: device enumeration is only supported on linux")

// DefaultOpener always fails on non-Linux platforms; there is no evdev here.
func DefaultOpener(path string) (Device, error) { return nil, errUnsupported }

// DefaultLister always fails on non-Linux platforms.
func DefaultLister() ([]string, error) { return nil, errUnsupported }
