// Package config is the keymap-contract config loader (§6): an ordered
// list of per-keyboard configurations, each bearing a device name, a
// set of layers, and the initial layout/modlayout indices. Structure
// follows the teacher's config.go byte-for-byte (Default/Load/Save,
// atomic temp-file-then-rename writes, tolerant-of-missing-file Load);
// the TOML backend is the teacher's `github.com/BurntSushi/toml`, with
// `gopkg.in/yaml.v3` wired in as a second accepted serialization per
// SPEC_FULL.md's DOMAIN STACK.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/keyd-go/keyd/internal/keycode"
	"github.com/keyd-go/keyd/internal/keymap"
)

// DefaultDeviceName is the reserved configuration name matched against
// any device whose own product name has no explicit configuration
// (§7.iv, §6 Keymap contract).
const DefaultDeviceName = "default"

// LayerConfig is one named layer: an optional modifier mask contributed
// while active, and a keyname-to-binding map sparse over the full
// keycode space (any key absent here resolves to ActionUndefined).
type LayerConfig struct {
	Name     string            `toml:"name" yaml:"name"`
	Mods     []string          `toml:"mods" yaml:"mods"`
	Bindings map[string]string `toml:"bindings" yaml:"bindings"`
}

// KeyboardConfig is one physical keyboard's full configuration: which
// device it applies to, its layer stack, and which named layers seed
// layout/modlayout.
type KeyboardConfig struct {
	Name      string        `toml:"name" yaml:"name"`
	Layers    []LayerConfig `toml:"layers" yaml:"layers"`
	Layout    string        `toml:"layout" yaml:"layout"`
	Modlayout string        `toml:"modlayout" yaml:"modlayout"`
}

// Config is the top-level configuration: every known keyboard
// configuration, including at most one named DefaultDeviceName.
type Config struct {
	Keyboards []KeyboardConfig `toml:"keyboard" yaml:"keyboard"`
}

// Default returns an empty configuration set. Unlike the teacher's
// always-populated Default, an empty keymap contract is a legitimate
// starting point: a daemon with no configs manages no keyboards.
func Default() *Config {
	return &Config{}
}

// DefaultDir returns the default configuration directory,
// ~/.config/keyd-go/keyboards, mirroring the teacher's
// ~/.config/palaver layout convention.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "keyd-go", "keyboards")
}

// Load reads every *.toml and *.yaml/*.yml file in dir, in sorted
// filename order, and merges their keyboard configurations. A missing
// directory is tolerated and yields an empty Config, matching the
// teacher's tolerant-of-missing-file Load.
func Load(dir string) (*Config, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".toml", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	cfg := Default()
	for _, name := range names {
		path := filepath.Join(dir, name)
		var file Config
		switch filepath.Ext(name) {
		case ".toml":
			if _, err := toml.DecodeFile(path, &file); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case ".yaml", ".yml":
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
		cfg.Keyboards = append(cfg.Keyboards, file.Keyboards...)
	}
	return cfg, nil
}

// Save writes cfg as TOML to path, through a temp file renamed into
// place, matching the teacher's Save exactly.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keyd-go-config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// ForDevice resolves a physical device name against the loaded
// configurations, falling back to DefaultDeviceName with warn set true
// when no exact match exists (§7.iv).
func (c *Config) ForDevice(name string) (kc *KeyboardConfig, warn bool, ok bool) {
	for i := range c.Keyboards {
		if c.Keyboards[i].Name == name {
			return &c.Keyboards[i], false, true
		}
	}
	for i := range c.Keyboards {
		if c.Keyboards[i].Name == DefaultDeviceName {
			return &c.Keyboards[i], true, true
		}
	}
	return nil, false, false
}

// Build compiles a KeyboardConfig into a keymap.LayerSet and resolves
// its Layout/Modlayout references, ready to be attached to a
// keymap.Keyboard once a device path is known.
func (kc *KeyboardConfig) Build() (*keymap.LayerSet, *keymap.Layer, *keymap.Layer, error) {
	indexOf := make(map[string]int, len(kc.Layers))
	ls := &keymap.LayerSet{Layers: make([]*keymap.Layer, len(kc.Layers))}

	for i, lc := range kc.Layers {
		layer := &keymap.Layer{Name: lc.Name}
		for _, m := range lc.Mods {
			mask, err := parseMod(m)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("layer %q: %w", lc.Name, err)
			}
			layer.Mods |= mask
		}
		ls.Layers[i] = layer
		indexOf[lc.Name] = i
	}

	// A binding can reference a layer by name (layer/toggle/oneshot/
	// overload/taphold/layout), so resolution happens in a second pass
	// once every layer's index is known.
	for i, lc := range kc.Layers {
		layer := ls.Layers[i]
		for keyname, expr := range lc.Bindings {
			code, err := keycode.ByName(keyname)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("layer %q: %w", lc.Name, err)
			}
			desc, err := parseBinding(expr, indexOf)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("layer %q, key %q: %w", lc.Name, keyname, err)
			}
			layer.Descriptors[code] = desc
		}
	}

	layoutIdx, ok := indexOf[kc.Layout]
	if !ok {
		return nil, nil, nil, fmt.Errorf("layout %q not found among layers", kc.Layout)
	}
	modlayoutIdx, ok := indexOf[kc.Modlayout]
	if !ok {
		return nil, nil, nil, fmt.Errorf("modlayout %q not found among layers", kc.Modlayout)
	}

	return ls, ls.Layers[layoutIdx], ls.Layers[modlayoutIdx], nil
}

func parseMod(name string) (keymap.ModMask, error) {
	switch strings.ToLower(name) {
	case "ctrl", "c":
		return keymap.ModCtrl, nil
	case "shift", "s":
		return keymap.ModShift, nil
	case "super", "meta", "m":
		return keymap.ModSuper, nil
	case "alt", "a":
		return keymap.ModAlt, nil
	case "altgr", "g":
		return keymap.ModAltGr, nil
	default:
		return 0, fmt.Errorf("unknown modifier %q", name)
	}
}

// parseBinding parses one binding expression. Grammar:
//
//	<keyname>                      -> KEYSEQ, no mods
//	<mod>-<mod>-...-<keyname>      -> KEYSEQ with those mods
//	layer(<layername>)             -> LAYER
//	toggle(<layername>)            -> LAYER_TOGGLE
//	oneshot(<layername>)           -> ONESHOT
//	overload(<layername>,<key>)    -> OVERLOAD
//	taphold(<layername>,<key>)     -> TAP_HOLD
//	layout(<layername>,<modname>)  -> LAYOUT
//	macro(<step>,<step>,...)       -> MACRO; a step is a keyname,
//	                                   mod-keyname, or "<n>ms" timeout
func parseBinding(expr string, indexOf map[string]int) (keymap.Descriptor, error) {
	expr = strings.TrimSpace(expr)

	if i := strings.Index(expr, "("); i >= 0 && strings.HasSuffix(expr, ")") {
		fn := strings.TrimSpace(expr[:i])
		args := splitArgs(expr[i+1 : len(expr)-1])

		switch fn {
		case "layer":
			idx, err := layerIndex(args, 0, indexOf)
			return keymap.Descriptor{Action: keymap.ActionLayer, Layer: idx}, err
		case "toggle":
			idx, err := layerIndex(args, 0, indexOf)
			return keymap.Descriptor{Action: keymap.ActionLayerToggle, Layer: idx}, err
		case "oneshot":
			idx, err := layerIndex(args, 0, indexOf)
			return keymap.Descriptor{Action: keymap.ActionOneShot, Layer: idx}, err
		case "overload", "taphold":
			if len(args) != 2 {
				return keymap.Descriptor{}, fmt.Errorf("%s expects 2 arguments, got %d", fn, len(args))
			}
			idx, err := layerIndex(args, 0, indexOf)
			if err != nil {
				return keymap.Descriptor{}, err
			}
			seq, err := parseKeySeq(args[1])
			if err != nil {
				return keymap.Descriptor{}, err
			}
			action := keymap.ActionOverload
			if fn == "taphold" {
				action = keymap.ActionTapHold
			}
			return keymap.Descriptor{Action: action, Layer2: idx, KeySeq: seq}, nil
		case "layout":
			if len(args) != 2 {
				return keymap.Descriptor{}, fmt.Errorf("layout expects 2 arguments, got %d", len(args))
			}
			li, err := layerIndex(args, 0, indexOf)
			if err != nil {
				return keymap.Descriptor{}, err
			}
			mi, err := layerIndex(args, 1, indexOf)
			if err != nil {
				return keymap.Descriptor{}, err
			}
			return keymap.Descriptor{Action: keymap.ActionLayout, Layer: li, Layer2: mi}, nil
		case "macro":
			steps := make([]keymap.MacroStep, 0, len(args))
			for _, a := range args {
				step, err := parseMacroStep(a)
				if err != nil {
					return keymap.Descriptor{}, err
				}
				steps = append(steps, step)
			}
			return keymap.Descriptor{Action: keymap.ActionMacro, Macro: steps}, nil
		default:
			return keymap.Descriptor{}, fmt.Errorf("unknown binding function %q", fn)
		}
	}

	seq, err := parseKeySeq(expr)
	if err != nil {
		return keymap.Descriptor{}, err
	}
	return keymap.Descriptor{Action: keymap.ActionKeySeq, KeySeq: seq}, nil
}

func splitArgs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func layerIndex(args []string, pos int, indexOf map[string]int) (int, error) {
	if pos >= len(args) {
		return 0, fmt.Errorf("missing layer argument")
	}
	name := args[pos]
	idx, ok := indexOf[name]
	if !ok {
		return 0, fmt.Errorf("unknown layer %q", name)
	}
	return idx, nil
}

func parseKeySeq(s string) (keymap.KeySequence, error) {
	parts := strings.Split(s, "-")
	var mods keymap.ModMask
	for _, p := range parts[:len(parts)-1] {
		m, err := parseMod(p)
		if err != nil {
			return 0, err
		}
		mods |= m
	}
	code, err := keycode.ByName(parts[len(parts)-1])
	if err != nil {
		return 0, err
	}
	return keymap.NewKeySequence(mods, code), nil
}

func parseMacroStep(s string) (keymap.MacroStep, error) {
	if strings.HasSuffix(s, "ms") {
		ms, err := strconv.Atoi(strings.TrimSuffix(s, "ms"))
		if err != nil {
			return 0, fmt.Errorf("invalid macro timeout %q: %w", s, err)
		}
		return keymap.NewMacroTimeout(uint16(ms)), nil
	}
	seq, err := parseKeySeq(s)
	if err != nil {
		return 0, err
	}
	return keymap.NewMacroKeySeq(seq), nil
}
