//go:build !linux

package vinput

import (
	"github.com/keyd-go/keyd/internal/keymap"
	"github.com/keyd-go/keyd/internal/wire"
)

// Output is the non-Linux stub. keyd-go's virtual devices require
// /dev/uinput, which only exists on Linux; other platforms build but
// cannot run the daemon.
type Output struct{}

// New always fails on non-Linux platforms.
func New() (*Output, error) { return nil, errUnsupported }

func (o *Output) Close() error                   { return errUnsupported }
func (o *Output) Pressed(keymap.Keycode) bool    { return false }
func (o *Output) Press(keymap.Keycode)           {}
func (o *Output) Release(keymap.Keycode)         {}
func (o *Output) Passthrough(wire.Event)         {}
func (o *Output) ReplayRepeats()                 {}
