//go:build linux

package vinput

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/keyd-go/keyd/internal/keymap"
	"github.com/keyd-go/keyd/internal/wire"
)

// uinput ioctl requests, mirroring <linux/uinput.h>. golang.org/x/sys/unix
// does not export these under stable names across versions, so they are
// pinned here the way other uinput clients in the ecosystem do.
const (
	uiSetEvbit   = 0x40045564
	uiSetKeybit  = 0x40045565
	uiSetRelbit  = 0x40045566
	uiDevSetup   = 0x405c5503
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	busUSB       = 0x03
)

// uinputSetup matches struct uinput_setup.
type uinputSetup struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
	Name    [80]byte
	FFMax   uint32
}

func ioctlInt(fd int, req uint, val uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), val)
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlPtr(fd int, req uint, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}

// rawEvent mirrors struct input_event on a 64-bit host: two 8-byte
// timeval fields followed by type/code/value.
type rawEvent struct {
	sec, usec int64
	typ, code uint16
	value     int32
}

func (e rawEvent) marshal() []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.sec))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.usec))
	binary.LittleEndian.PutUint16(buf[16:18], e.typ)
	binary.LittleEndian.PutUint16(buf[18:20], e.code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(e.value))
	return buf
}

// uinputDevice is a single /dev/uinput-backed synthetic device.
type uinputDevice struct {
	f *os.File
}

func createUinputDevice(name string, keys []keymap.Keycode, rels []keymap.Keycode, buttons []keymap.Keycode) (*uinputDevice, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w (is the uinput module loaded and is this user in the input group?)", err)
	}

	fd := int(f.Fd())

	if len(keys) > 0 || len(buttons) > 0 {
		if err := ioctlInt(fd, uiSetEvbit, uintptr(wire.EvKey)); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_EVBIT(EV_KEY): %w", err)
		}
		for _, c := range keys {
			if err := ioctlInt(fd, uiSetKeybit, uintptr(c)); err != nil {
				f.Close()
				return nil, fmt.Errorf("UI_SET_KEYBIT(%d): %w", c, err)
			}
		}
		for _, c := range buttons {
			if err := ioctlInt(fd, uiSetKeybit, uintptr(c)); err != nil {
				f.Close()
				return nil, fmt.Errorf("UI_SET_KEYBIT(%d): %w", c, err)
			}
		}
	}

	if len(rels) > 0 {
		if err := ioctlInt(fd, uiSetEvbit, uintptr(wire.EvRel)); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_EVBIT(EV_REL): %w", err)
		}
		for _, c := range rels {
			if err := ioctlInt(fd, uiSetRelbit, uintptr(c)); err != nil {
				f.Close()
				return nil, fmt.Errorf("UI_SET_RELBIT(%d): %w", c, err)
			}
		}
	}

	if err := ioctlInt(fd, uiSetEvbit, uintptr(wire.EvSyn)); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_SET_EVBIT(EV_SYN): %w", err)
	}

	var setup uinputSetup
	setup.BusType = busUSB
	setup.Vendor = 0x1234
	setup.Product = 0x5679
	setup.Version = 1
	copy(setup.Name[:], name)

	if err := ioctlPtr(fd, uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_SETUP: %w", err)
	}
	if err := ioctlInt(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	// Give udev a moment to create the device node before the first write.
	time.Sleep(20 * time.Millisecond)

	return &uinputDevice{f: f}, nil
}

func (d *uinputDevice) write(typ, code uint16, value int32) error {
	_, err := d.f.Write(rawEvent{typ: typ, code: code, value: value}.marshal())
	return err
}

func (d *uinputDevice) syn() error {
	return d.write(wire.EvSyn, 0, 0)
}

func (d *uinputDevice) close() error {
	ioctlInt(int(d.f.Fd()), uiDevDestroy, 0)
	return d.f.Close()
}

// Output is the Linux implementation of Writer, backed by two uinput
// devices. It owns the process-wide keystate array; nothing else may
// mutate it (§9).
type Output struct {
	mu       sync.Mutex
	keyboard *uinputDevice
	pointer  *uinputDevice
	keystate [keymap.NumKeycodes]bool
}

// New creates the virtual keyboard and virtual pointer.
func New() (*Output, error) {
	kbd, err := createUinputDevice(VirtualKeyboardName, keycodeCapabilities(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}

	ptr, err := createUinputDevice(VirtualPointerName, nil,
		[]keymap.Keycode{0x00, 0x01, 0x02, 0x06, 0x08}, // REL_X, REL_Y, REL_Z, REL_HWHEEL, REL_WHEEL
		pointerButtonCapabilities())
	if err != nil {
		kbd.close()
		return nil, fmt.Errorf("create virtual pointer: %w", err)
	}

	return &Output{keyboard: kbd, pointer: ptr}, nil
}

// Close destroys both virtual devices.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err1 := o.keyboard.close()
	err2 := o.pointer.close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Pressed reports the last value written for code.
func (o *Output) Pressed(code keymap.Keycode) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.keystate[code]
}

// Press writes a key-down event followed by a synchronization marker.
// KEY_NOOP is silently discarded (§3 invariant).
func (o *Output) Press(code keymap.Keycode) { o.send(code, true) }

// Release writes a key-up event followed by a synchronization marker.
func (o *Output) Release(code keymap.Keycode) { o.send(code, false) }

func (o *Output) send(code keymap.Keycode, pressed bool) {
	if code == keymap.KeyNoop {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	value := wire.KeyUp
	if pressed {
		value = wire.KeyDown
	}
	o.keystate[code] = pressed
	o.keyboard.write(wire.EvKey, uint16(code), value)
	o.keyboard.syn()
}

// Passthrough forwards a relative-axis or mouse-button event verbatim
// to the virtual pointer.
func (o *Output) Passthrough(ev wire.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pointer.write(ev.Type, uint16(ev.Code), ev.Value)
	o.pointer.syn()
}

// ReplayRepeats rebroadcasts a value=2 (auto-repeat) event for every
// keycode currently marked pressed in keystate (§4.1).
func (o *Output) ReplayRepeats() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for code, pressed := range o.keystate {
		if pressed {
			o.keyboard.write(wire.EvKey, uint16(code), wire.KeyRepeat)
			o.keyboard.syn()
		}
	}
}
