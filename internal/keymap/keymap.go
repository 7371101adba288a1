// Package keymap defines the in-memory representation of a remapping
// keymap: keycodes, modifier masks, key sequences, macros, descriptors,
// layers and the keyboard object that ties a layer set to a physical
// device.
package keymap

// Keycode identifies a physical or virtual key as defined by the host
// input subsystem (evdev keycode space).
type Keycode uint16

// KeyNoop is the reserved sentinel meaning "emit nothing". It aliases
// the host's KEY_RESERVED (0), which no physical key ever reports.
const KeyNoop Keycode = 0

// NumKeycodes bounds the dense, keycode-indexed arrays used throughout
// this package (Linux KEY_CNT).
const NumKeycodes = 768

// ModMask is a bit set over the fixed modifier vocabulary.
type ModMask uint16

const (
	ModCtrl ModMask = 1 << iota
	ModShift
	ModSuper
	ModAlt
	ModAltGr
)

// modTimeout is a reserved bit in the high 16 bits of a macro step that
// distinguishes a timeout step from a key sequence step. It is chosen
// outside ModMask's used bits so it never collides with a real modifier.
const modTimeout ModMask = 1 << 15

// CanonicalKeycode is the left-hand keycode synthesized to assert a
// given modifier bit.
var CanonicalKeycode = map[ModMask]Keycode{
	ModCtrl:  29,  // KEY_LEFTCTRL
	ModShift: 42,  // KEY_LEFTSHIFT
	ModSuper: 125, // KEY_LEFTMETA
	ModAlt:   56,  // KEY_LEFTALT
	ModAltGr: 100, // KEY_RIGHTALT
}

// AllModifiers is CanonicalKeycode's domain in a fixed, deterministic order.
var AllModifiers = []ModMask{ModCtrl, ModShift, ModSuper, ModAlt, ModAltGr}

// KeySequence packs a modifier mask and a keycode: "press this key with
// these modifiers held." High 16 bits are the mask, low 16 the keycode.
type KeySequence uint32

// NewKeySequence builds a KeySequence from a mask and keycode.
func NewKeySequence(mods ModMask, code Keycode) KeySequence {
	return KeySequence(uint32(mods)<<16 | uint32(code))
}

// Mods returns the modifier mask encoded in the sequence.
func (s KeySequence) Mods() ModMask { return ModMask(s >> 16) }

// Keycode returns the keycode encoded in the sequence.
func (s KeySequence) Keycode() Keycode { return Keycode(s & 0xFFFF) }

// MacroStep is either a key sequence or a timeout, distinguished by
// modTimeout in its high bits.
type MacroStep uint32

// NewMacroKeySeq wraps a key sequence as a macro step.
func NewMacroKeySeq(seq KeySequence) MacroStep { return MacroStep(seq) }

// NewMacroTimeout encodes a millisecond delay step.
func NewMacroTimeout(ms uint16) MacroStep {
	return MacroStep(uint32(modTimeout)<<16 | uint32(ms))
}

// IsTimeout reports whether the step is a delay rather than a key sequence.
func (s MacroStep) IsTimeout() bool {
	return ModMask(s>>16)&modTimeout != 0
}

// TimeoutMS returns the delay in milliseconds. Only meaningful if IsTimeout.
func (s MacroStep) TimeoutMS() uint16 { return uint16(s & 0xFFFF) }

// KeySeq returns the step reinterpreted as a key sequence. Only
// meaningful if !IsTimeout.
func (s MacroStep) KeySeq() KeySequence { return KeySequence(s) }

// Action identifies the behavior a Descriptor triggers.
type Action int

const (
	// ActionUndefined is a no-op, consumed silently.
	ActionUndefined Action = iota
	// ActionKeySeq emits a keycode with modifiers for the duration of the physical key.
	ActionKeySeq
	// ActionMacro runs a sequence of steps once on press.
	ActionMacro
	// ActionLayer forces a layer active while physically held.
	ActionLayer
	// ActionLayerToggle flips a layer's active flag on release.
	ActionLayerToggle
	// ActionOneShot arms a layer on tap, used once by the next key sequence.
	ActionOneShot
	// ActionOverload holds as ActionLayer, taps as ActionKeySeq, no time gate.
	ActionOverload
	// ActionTapHold is ActionOverload but the tap is gated by a tapping term.
	ActionTapHold
	// ActionLayout replaces the keyboard's layout/modlayout base layers.
	ActionLayout
)

// Descriptor is the rule governing what happens when a keycode is
// pressed on a given layer. Field usage depends on Action:
//
//	ActionUndefined:    (no fields used)
//	ActionKeySeq:       KeySeq
//	ActionMacro:        Macro
//	ActionLayer:        Layer
//	ActionLayerToggle:  Layer
//	ActionOneShot:      Layer
//	ActionOverload:     KeySeq (tap), Layer2 (hold)
//	ActionTapHold:      KeySeq (tap), Layer2 (hold)
//	ActionLayout:       Layer (layout), Layer2 (modlayout)
type Descriptor struct {
	Action Action
	KeySeq KeySequence
	Layer  int
	Layer2 int
	Macro  []MacroStep
}

// Layer is a named, keycode-indexed set of descriptors with an
// associated modifier mask. Descriptors are fixed after construction;
// Active and Timestamp are the only fields that change at runtime.
type Layer struct {
	Name        string
	Mods        ModMask
	Descriptors [NumKeycodes]Descriptor

	Active    bool
	Timestamp int64
}

// LayerSet is the immutable-after-load collection of layers belonging
// to one keyboard configuration. Each call to config.KeyboardConfig.Build
// returns a new LayerSet, and cmd/keyd builds one per managed device, so
// physical Keyboards matched to the same configuration do not share
// their layers' Active/Timestamp state.
type LayerSet struct {
	Layers []*Layer
}

// Keyboard ties a grabbed physical device to a layer set and the two
// distinguished base layers consulted when no overlay defines a key.
type Keyboard struct {
	DevicePath string
	Name       string

	Layers *LayerSet

	// Layout is consulted for SHIFT-only/ALT_GR-only contexts or when no
	// layer is active; Modlayout is consulted when any other layer
	// combination is active. Both are replaceable at runtime by
	// ActionLayout.
	Layout    *Layer
	Modlayout *Layer
}
