package input

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wippyai/wasm-frame-host/wire"
)

// Keymap binds key names to input flags. Several keys may share a flag.
type Keymap map[string]wire.Flag

// DefaultKeymap binds WASD to movement, IJKL to shooting, Escape to quit
// and Space to the action flag. Key names cover both terminal key strings
// and browser KeyboardEvent codes; arrow keys also move.
func DefaultKeymap() Keymap {
	return Keymap{
		"w": wire.Up, "a": wire.Left, "s": wire.Down, "d": wire.Right,
		"i": wire.ShootUp, "j": wire.ShootLeft, "k": wire.ShootDown, "l": wire.ShootRight,
		"up": wire.Up, "left": wire.Left, "down": wire.Down, "right": wire.Right,
		"esc": wire.Quit, " ": wire.Action, "space": wire.Action,

		"KeyW": wire.Up, "KeyA": wire.Left, "KeyS": wire.Down, "KeyD": wire.Right,
		"KeyI": wire.ShootUp, "KeyJ": wire.ShootLeft, "KeyK": wire.ShootDown, "KeyL": wire.ShootRight,
		"ArrowUp": wire.Up, "ArrowLeft": wire.Left, "ArrowDown": wire.Down, "ArrowRight": wire.Right,
		"Escape": wire.Quit, "Space": wire.Action,
	}
}

// ParseKeymap builds a keymap from key name to wire field name, such as
// {"w": "up_key"}.
func ParseKeymap(bindings map[string]string) (Keymap, error) {
	km := make(Keymap, len(bindings))
	for key, name := range bindings {
		if key == "" {
			return nil, fmt.Errorf("empty key bound to %q", name)
		}
		f, ok := wire.FlagByName(name)
		if !ok {
			return nil, fmt.Errorf("key %q: unknown input flag %q", key, name)
		}
		km[key] = f
	}
	return km, nil
}

// Lookup returns the flag bound to key.
func (km Keymap) Lookup(key string) (wire.Flag, bool) {
	f, ok := km[key]
	return f, ok
}

// Merge returns a copy of km with other's bindings added on top.
func (km Keymap) Merge(other Keymap) Keymap {
	out := make(Keymap, len(km)+len(other))
	for k, f := range km {
		out[k] = f
	}
	for k, f := range other {
		out[k] = f
	}
	return out
}

// Keys returns the keys bound to f, sorted.
func (km Keymap) Keys(f wire.Flag) []string {
	var keys []string
	for k, bound := range km {
		if bound == f {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Describe renders the bindings for f for help text, e.g. "w/up".
func (km Keymap) Describe(f wire.Flag) string {
	var short []string
	for _, k := range km.Keys(f) {
		if k == " " {
			k = "space"
		}
		if strings.HasPrefix(k, "Key") || strings.HasPrefix(k, "Arrow") || k == "Escape" || k == "Space" {
			continue
		}
		if !contains(short, k) {
			short = append(short, k)
		}
	}
	return strings.Join(short, "/")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
