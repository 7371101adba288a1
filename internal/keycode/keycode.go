// Package keycode is the static mapping between symbolic key names and
// kernel keycodes, with optional alternate and shifted glyph names. It
// is consumed by the config loader (to turn key names into Keycodes)
// and by monitor mode (to turn Keycodes back into names for display).
package keycode

import (
	"fmt"
	"strings"

	"github.com/keyd-go/keyd/internal/keymap"
)

// Entry describes one keycode's symbolic names.
type Entry struct {
	Code        keymap.Keycode
	Name        string
	AltName     string // e.g. "control" for "leftcontrol"
	ShiftedName string // e.g. "exclam" for "1"
}

// table is ordered by Code, matching the order -l must print in.
var table = []Entry{
	{1, "esc", "", ""},
	{2, "1", "", "exclam"},
	{3, "2", "", "at"},
	{4, "3", "", "hash"},
	{5, "4", "", "dollar"},
	{6, "5", "", "percent"},
	{7, "6", "", "circumflex"},
	{8, "7", "", "ampersand"},
	{9, "8", "", "asterisk"},
	{10, "9", "", "leftparen"},
	{11, "0", "", "rightparen"},
	{12, "minus", "", "underscore"},
	{13, "equal", "", "plus"},
	{14, "backspace", "", ""},
	{15, "tab", "", ""},
	{16, "q", "", ""},
	{17, "w", "", ""},
	{18, "e", "", ""},
	{19, "r", "", ""},
	{20, "t", "", ""},
	{21, "y", "", ""},
	{22, "u", "", ""},
	{23, "i", "", ""},
	{24, "o", "", ""},
	{25, "p", "", ""},
	{26, "leftbrace", "", "leftcurly"},
	{27, "rightbrace", "", "rightcurly"},
	{28, "enter", "", ""},
	{29, "leftcontrol", "control", ""},
	{30, "a", "", ""},
	{31, "s", "", ""},
	{32, "d", "", ""},
	{33, "f", "", ""},
	{34, "g", "", ""},
	{35, "h", "", ""},
	{36, "j", "", ""},
	{37, "k", "", ""},
	{38, "l", "", ""},
	{39, "semicolon", "", "colon"},
	{40, "apostrophe", "", "quote"},
	{41, "grave", "", "tilde"},
	{42, "leftshift", "shift", ""},
	{43, "backslash", "", "pipe"},
	{44, "z", "", ""},
	{45, "x", "", ""},
	{46, "c", "", ""},
	{47, "v", "", ""},
	{48, "b", "", ""},
	{49, "n", "", ""},
	{50, "m", "", ""},
	{51, "comma", "", "less"},
	{52, "dot", "", "greater"},
	{53, "slash", "", "question"},
	{54, "rightshift", "", ""},
	{55, "kpasterisk", "", ""},
	{56, "leftalt", "alt", ""},
	{57, "space", "", ""},
	{58, "capslock", "", ""},
	{59, "f1", "", ""},
	{60, "f2", "", ""},
	{61, "f3", "", ""},
	{62, "f4", "", ""},
	{63, "f5", "", ""},
	{64, "f6", "", ""},
	{65, "f7", "", ""},
	{66, "f8", "", ""},
	{67, "f9", "", ""},
	{68, "f10", "", ""},
	{69, "numlock", "", ""},
	{70, "scrolllock", "", ""},
	{87, "f11", "", ""},
	{88, "f12", "", ""},
	{96, "kpenter", "", ""},
	{97, "rightcontrol", "", ""},
	{98, "kpslash", "", ""},
	{100, "rightalt", "altgr", ""},
	{102, "home", "", ""},
	{103, "up", "", ""},
	{104, "pageup", "", ""},
	{105, "left", "", ""},
	{106, "right", "", ""},
	{107, "end", "", ""},
	{108, "down", "", ""},
	{109, "pagedown", "", ""},
	{110, "insert", "", ""},
	{111, "delete", "", ""},
	{119, "pause", "", ""},
	{125, "leftmeta", "super", ""},
	{126, "rightmeta", "", ""},
	{127, "compose", "menu", ""},
	{183, "f13", "", ""},
	{184, "f14", "", ""},
	{185, "f15", "", ""},
	{186, "f16", "", ""},
	{187, "f17", "", ""},
	{188, "f18", "", ""},
	{189, "f19", "", ""},
	{190, "f20", "", ""},
	{191, "f21", "", ""},
	{192, "f22", "", ""},
	{193, "f23", "", ""},
	{194, "f24", "", ""},
	// Mouse buttons — never part of the virtual keyboard's capability
	// set, advertised on the virtual pointer instead (§6).
	{0x110, "btn_left", "", ""},
	{0x111, "btn_right", "", ""},
	{0x112, "btn_middle", "", ""},
	{0x113, "btn_side", "", ""},
	{0x114, "btn_extra", "", ""},
	{0x115, "btn_forward", "", ""},
	{0x116, "btn_back", "", ""},
	{0x117, "btn_task", "", ""},
}

var (
	byName = make(map[string]keymap.Keycode, len(table)*2)
	byCode = make(map[keymap.Keycode]*Entry, len(table))
)

func init() {
	for i := range table {
		e := &table[i]
		byCode[e.Code] = e
		byName[e.Name] = e.Code
		if e.AltName != "" {
			byName[e.AltName] = e.Code
		}
		if e.ShiftedName != "" {
			byName[e.ShiftedName] = e.Code
		}
	}
}

// ByName resolves a key name (case-insensitive, with or without the
// conventional "key_" prefix used in configs) to its keycode.
func ByName(name string) (keymap.Keycode, error) {
	norm := strings.ToLower(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "key_"))
	code, ok := byName[norm]
	if !ok {
		return 0, fmt.Errorf("unknown key name: %s", name)
	}
	return code, nil
}

// NameOf returns the primary symbolic name of code, or "" if unknown.
func NameOf(code keymap.Keycode) string {
	if e, ok := byCode[code]; ok {
		return e.Name
	}
	return ""
}

// All returns every table entry in keycode order, for -l and for
// building the virtual keyboard's advertised capability set.
func All() []Entry {
	return table
}

// IsMouseButton reports whether code is a mouse button entry rather
// than a keyboard key.
func IsMouseButton(code keymap.Keycode) bool {
	for _, e := range table {
		if e.Code == code {
			return strings.HasPrefix(e.Name, "btn_")
		}
	}
	return false
}
