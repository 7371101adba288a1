// Package resolver implements the descriptor lookup algorithm: given a
// keyboard's active layer stack and an incoming keycode, it picks the
// descriptor that governs the event and the residual modifier mask to
// apply alongside it.
package resolver

import "github.com/keyd-go/keyd/internal/keymap"

// Resolve implements §4.3 of the core algorithm.
//
//  1. Among all active layers, find the one with the greatest Timestamp
//     whose descriptor at this keycode has a non-Undefined action. Ties
//     go to the layer encountered first — iteration is in ascending
//     layer-index order and the owning layer is only replaced by a
//     strictly greater timestamp.
//  2. The residual mask is the union of Mods of every active layer
//     except the owning layer.
//  3. If no layer owns this keycode: residual == Shift or residual ==
//     AltGr consults Layout; any other non-empty residual (or any
//     active layer at all) consults Modlayout; otherwise Layout.
func Resolve(kbd *keymap.Keyboard, code keymap.Keycode) (desc *keymap.Descriptor, mods keymap.ModMask, ok bool) {
	var owner *keymap.Layer
	nactive := 0

	for _, l := range kbd.Layers.Layers {
		if !l.Active {
			continue
		}
		nactive++

		d := &l.Descriptors[code]
		if d.Action != keymap.ActionUndefined {
			if owner == nil || l.Timestamp > owner.Timestamp {
				owner = l
				desc = d
			}
		}
	}

	for _, l := range kbd.Layers.Layers {
		if l.Active && l != owner {
			mods |= l.Mods
		}
	}

	if desc != nil {
		return desc, mods, true
	}

	// No active layer owns this keycode. A residual of exactly shift or
	// alt-gr falls through to layout (preserving the default layout's own
	// shifted semantics). Otherwise, if any layer is active (with or
	// without modifiers of its own), the lookup goes to modlayout so
	// layers compose with the keyboard's default mapping. With no layer
	// active at all, layout is used.
	var base *keymap.Layer
	switch {
	case mods == keymap.ModShift || mods == keymap.ModAltGr:
		base = kbd.Layout
	case nactive > 0:
		base = kbd.Modlayout
	default:
		base = kbd.Layout
	}

	if base == nil {
		return nil, mods, false
	}
	return &base.Descriptors[code], mods, true
}
