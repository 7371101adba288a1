// Package engine is the action dispatcher / event processor (§4.4,
// §4.5): the state machine that consumes raw input events, caches the
// chosen descriptor across an up/down pair, mutates layer activations,
// and drives the modifier reifier and virtual output.
//
// A Processor is strictly single-threaded and cooperative (§5): it is a
// pure function of its input event and its own fields. Every piece of
// bookkeeping the reference implementation keeps as a static local
// (lastd, oneshot_layers, pressed_timestamps, last_keyseq_timestamp) is
// a field here instead, so one Processor per physical keyboard never
// shares state with another (§9).
package engine

import (
	"time"

	"github.com/keyd-go/keyd/internal/keymap"
	"github.com/keyd-go/keyd/internal/reifier"
	"github.com/keyd-go/keyd/internal/resolver"
	"github.com/keyd-go/keyd/internal/vinput"
	"github.com/keyd-go/keyd/internal/wire"
)

// DefaultTappingTerm is the maximum hold duration for which a TAP_HOLD
// release still counts as a tap (§4.5, §"Glossary").
const DefaultTappingTerm = 200 * time.Millisecond

// Clock abstracts time so tap/hold and one-shot timing can be tested
// deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Processor is the per-keyboard event-processing state machine.
type Processor struct {
	Keyboard    *keymap.Keyboard
	Output      vinput.Writer
	TappingTerm time.Duration
	Clock       Clock

	lastd          *keymap.Descriptor
	dcache         [keymap.NumKeycodes]*keymap.Descriptor
	mcache         [keymap.NumKeycodes]keymap.ModMask
	pressedAt      [keymap.NumKeycodes]time.Time
	lastKeyseqTime time.Time
	oneshotArmed   map[int]bool
}

// New builds a Processor for one keyboard. out is the shared virtual
// output (process-wide), kbd is this keyboard's own layer-stack state.
func New(kbd *keymap.Keyboard, out vinput.Writer) *Processor {
	return &Processor{
		Keyboard:     kbd,
		Output:       out,
		TappingTerm:  DefaultTappingTerm,
		Clock:        realClock{},
		oneshotArmed: make(map[int]bool),
	}
}

func (p *Processor) now() time.Time { return p.Clock.Now() }

// ProcessEvent is the common frame of §4.4: route relative-axis and
// mouse-button events to passthrough (other non-key events are
// dropped), replay auto-repeat, and otherwise
// dispatch the press/release through the resolver and per-action logic.
func (p *Processor) ProcessEvent(ev wire.Event) {
	if ev.Type != wire.EvKey || wire.IsMouseButton(ev.Code) {
		if ev.Type == wire.EvRel || ev.Type == wire.EvKey {
			p.Output.Passthrough(ev)
		}
		return
	}

	if ev.Value == wire.KeyRepeat {
		p.Output.ReplayRepeats()
		return
	}

	pressed := ev.Value == wire.KeyDown
	code := ev.Code

	var d *keymap.Descriptor
	var mods keymap.ModMask

	if !pressed {
		d = p.dcache[code]
		mods = p.mcache[code]
		p.dcache[code] = nil
		p.mcache[code] = 0
	} else {
		p.pressedAt[code] = p.now()
		var ok bool
		d, mods, ok = resolver.Resolve(p.Keyboard, code)
		if !ok {
			d = nil
		}
		p.dcache[code] = d
		p.mcache[code] = mods
	}

	if d == nil {
		p.cleanup(pressed, nil)
		return
	}

	switch d.Action {
	case keymap.ActionOverload:
		if p.dispatchOverload(d, pressed, mods, false) {
			return
		}
	case keymap.ActionTapHold:
		if p.dispatchOverload(d, pressed, mods, true) {
			return
		}
	case keymap.ActionLayout:
		p.Keyboard.Layout = p.Keyboard.Layers.Layers[d.Layer]
		p.Keyboard.Modlayout = p.Keyboard.Layers.Layers[d.Layer2]
	case keymap.ActionOneShot:
		p.dispatchOneShot(d, pressed, code)
	case keymap.ActionLayerToggle:
		if !pressed {
			p.dispatchLayerToggle(d)
			p.cleanup(pressed, d)
			return
		}
	case keymap.ActionLayer:
		p.dispatchLayer(d, pressed)
	case keymap.ActionKeySeq:
		p.dispatchKeySeq(d, pressed, mods)
		p.cleanup(pressed, d)
		return
	case keymap.ActionMacro:
		if pressed {
			p.dispatchMacro(d)
			p.cleanup(pressed, d)
			return
		}
	case keymap.ActionUndefined:
		p.cleanup(pressed, d)
		return
	}

	p.lastd = d
}

// reifyLayerMods re-establishes the virtual keyboard's modifier state
// to the union of every currently active layer's mask.
func (p *Processor) reifyLayerMods() {
	var mods keymap.ModMask
	for _, l := range p.Keyboard.Layers.Layers {
		if l.Active {
			mods |= l.Mods
		}
	}
	reifier.Reify(p.Output, mods)
}

// cleanup is the keyseq_cleanup label of §4.4/§4.5: it disarms every
// currently armed one-shot layer and, on press, stamps last_keyseq_time.
func (p *Processor) cleanup(pressed bool, d *keymap.Descriptor) {
	p.lastd = d

	if pressed {
		p.lastKeyseqTime = p.now()
	}

	for idx, armed := range p.oneshotArmed {
		if armed {
			p.Keyboard.Layers.Layers[idx].Active = false
			p.oneshotArmed[idx] = false
		}
	}
}

func (p *Processor) dispatchLayer(d *keymap.Descriptor, pressed bool) {
	layer := p.Keyboard.Layers.Layers[d.Layer]
	if pressed {
		layer.Active = true
		layer.Timestamp = p.now().UnixNano()
	} else {
		// Toggle rather than clear: a LAYER_TOGGLE interposed between
		// this key's press and release must not be undone (§9 open
		// question, resolved per spec in favor of the XOR behavior).
		layer.Active = !layer.Active
	}
	p.reifyLayerMods()
}

func (p *Processor) dispatchLayerToggle(d *keymap.Descriptor) {
	layer := p.Keyboard.Layers.Layers[d.Layer]
	if p.oneshotArmed[d.Layer] {
		p.oneshotArmed[d.Layer] = false
		layer.Active = false
	} else {
		layer.Active = !layer.Active
	}
	p.reifyLayerMods()
}

func (p *Processor) dispatchOneShot(d *keymap.Descriptor, pressed bool, code keymap.Keycode) {
	layer := p.Keyboard.Layers.Layers[d.Layer]
	if pressed {
		layer.Active = true
		layer.Timestamp = p.now().UnixNano()
	} else if p.pressedAt[code].Before(p.lastKeyseqTime) {
		// A key sequence was emitted while this was held: the layer
		// was used as a modifier, so its hold-derived activation ends.
		layer.Active = !layer.Active
	} else {
		// Tapped: arm it. The layer stays active until the next
		// key-sequence emission disarms it via cleanup.
		p.oneshotArmed[d.Layer] = true
	}
	p.reifyLayerMods()
}

func (p *Processor) dispatchKeySeq(d *keymap.Descriptor, pressed bool, mods keymap.ModMask) {
	mods |= d.KeySeq.Mods()
	code := d.KeySeq.Keycode()

	if pressed {
		reifier.Reify(p.Output, mods)

		// Account for a version of this key with a different modifier
		// set already being depressed (e.g. moving from [ to {).
		if p.Output.Pressed(code) {
			p.Output.Release(code)
		}
		p.Output.Press(code)
	} else {
		p.reifyLayerMods()
		p.Output.Release(code)
	}
}

func (p *Processor) dispatchMacro(d *keymap.Descriptor) {
	for _, step := range d.Macro {
		if step.IsTimeout() {
			time.Sleep(time.Duration(step.TimeoutMS()) * time.Millisecond)
			continue
		}
		seq := step.KeySeq()
		reifier.Reify(p.Output, seq.Mods())
		p.Output.Press(seq.Keycode())
		p.Output.Release(seq.Keycode())
	}
	p.reifyLayerMods()
}

// dispatchOverload implements both OVERLOAD and TAP_HOLD (tapHold
// gates the tap emission on TappingTerm). Returns true if it took the
// cleanup path itself (tap emitted), in which case the caller must not
// fall through to the generic lastd assignment a second time.
func (p *Processor) dispatchOverload(d *keymap.Descriptor, pressed bool, mods keymap.ModMask, tapHold bool) bool {
	layer := p.Keyboard.Layers.Layers[d.Layer2]

	if pressed {
		layer.Active = !layer.Active
		layer.Timestamp = p.now().UnixNano()
		p.reifyLayerMods()
		return false
	}

	layer.Active = !layer.Active

	tapped := p.lastd == d
	if tapped && tapHold {
		tapped = p.now().Sub(time.Unix(0, layer.Timestamp)) <= p.tappingTerm()
	}

	if tapped {
		seq := d.KeySeq
		emitMods := mods | seq.Mods()
		reifier.Reify(p.Output, emitMods)
		p.Output.Press(seq.Keycode())
		p.Output.Release(seq.Keycode())
		p.lastKeyseqTime = p.now()
		p.cleanup(false, d)
		return true
	}

	p.reifyLayerMods()
	return false
}

func (p *Processor) tappingTerm() time.Duration {
	if p.TappingTerm > 0 {
		return p.TappingTerm
	}
	return DefaultTappingTerm
}
