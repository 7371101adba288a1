// Package session is the device session manager (§4.6): for each
// managed physical keyboard, it performs the neutrality wait (§4.7),
// takes an exclusive grab, and drains events into an engine.Processor.
// Teardown releases the grab before closing the descriptor.
package session

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/keyd-go/keyd/internal/engine"
	"github.com/keyd-go/keyd/internal/wire"
)

// Device is the subset of an opened evdev node a Session needs. The
// real implementation (session_linux.go) wraps *evdev.InputDevice; a
// fake satisfies this for tests that exercise the read loop without a
// kernel input device.
type Device interface {
	Path() string
	Name() string
	ReadEvent() (wire.Event, error)
	Grab() error
	Ungrab() error
	Close() error
}

// Session owns one physical keyboard: its device handle and the
// processor that turns its events into virtual-device emissions.
type Session struct {
	dev       Device
	processor *engine.Processor
	log       *log.Logger

	mu     sync.Mutex
	closed bool
}

// New wraps dev and proc into a Session. Run has not started yet.
func New(dev Device, proc *engine.Processor, logger *log.Logger) *Session {
	return &Session{dev: dev, processor: proc, log: logger}
}

// Path returns the managed device's path, used as the session's key in
// the owning manager's collection (§9, "ordered collection keyed by
// device path" rather than the source's intrusive linked list).
func (s *Session) Path() string { return s.dev.Path() }

// Run grabs the device exclusively and drains its events into the
// processor until the device read loop errors (removal, or Stop
// forcing the descriptor closed). It always closes the device on
// return, ungrabbing it first once the grab has succeeded, matching the teacher's linuxListener.Start read-loop/close
// race handling (hotkey_linux.go).
func (s *Session) Run() error {
	if err := s.dev.Grab(); err != nil {
		s.dev.Close()
		return fmt.Errorf("grab %s: %w", s.dev.Path(), err)
	}
	defer s.teardown()

	for {
		ev, err := s.dev.ReadEvent()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || os.IsNotExist(err) || strings.Contains(err.Error(), "file already closed") ||
				strings.Contains(err.Error(), "bad file descriptor") {
				return nil
			}
			return fmt.Errorf("read %s: %w", s.dev.Path(), err)
		}
		s.processor.ProcessEvent(ev)
	}
}

// Stop forces the device closed, unblocking any in-flight read and
// ending Run. It is safe to call concurrently with Run.
func (s *Session) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.dev.Close()
}

func (s *Session) teardown() {
	if err := s.dev.Ungrab(); err != nil && s.log != nil {
		s.log.Printf("ungrab %s: %v", s.dev.Path(), err)
	}
	if err := s.dev.Close(); err != nil && s.log != nil {
		s.log.Printf("close %s: %v", s.dev.Path(), err)
	}
}
