package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/wippyai/wasm-frame-host/input"
	"github.com/wippyai/wasm-frame-host/wire"
)

// keyHelp describes the bindings in the footer. Game keys are routed
// through the input.Keymap; only Exit is handled by the model itself.
type keyHelp struct {
	Move   key.Binding
	Shoot  key.Binding
	Action key.Binding
	Quit   key.Binding
	Exit   key.Binding
}

func newKeyHelp(km input.Keymap) keyHelp {
	bind := func(desc string, flags ...wire.Flag) key.Binding {
		var keys []string
		var label string
		for i, f := range flags {
			keys = append(keys, km.Keys(f)...)
			if d := km.Describe(f); d != "" {
				if i > 0 && label != "" {
					label += " "
				}
				label += d
			}
		}
		return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
	}
	return keyHelp{
		Move:   bind("move", wire.Up, wire.Left, wire.Down, wire.Right),
		Shoot:  bind("shoot", wire.ShootUp, wire.ShootLeft, wire.ShootDown, wire.ShootRight),
		Action: bind("action", wire.Action),
		Quit:   bind("quit", wire.Quit),
		Exit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "exit"),
		),
	}
}

func (k keyHelp) ShortHelp() []key.Binding {
	return []key.Binding{k.Move, k.Shoot, k.Quit, k.Exit}
}

func (k keyHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Move, k.Shoot, k.Action},
		{k.Quit, k.Exit},
	}
}
