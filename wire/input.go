package wire

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/wippyai/wasm-frame-host/errors"
)

// Flag is a single input bit.
type Flag uint16

const (
	Up Flag = 1 << iota
	Down
	Left
	Right
	ShootUp
	ShootDown
	ShootLeft
	ShootRight
	Quit
	Action
)

// FlagCount is the number of independent input flags.
const FlagCount = 10

// AllFlags has every defined flag set.
const AllFlags InputState = 1<<FlagCount - 1

var flagNames = [FlagCount]string{
	"up_key",
	"down_key",
	"left_key",
	"right_key",
	"shoot_up",
	"shoot_down",
	"shoot_left",
	"shoot_right",
	"quit_key",
	"space",
}

// Name returns the wire field name of a single flag.
func (f Flag) Name() string {
	for i := 0; i < FlagCount; i++ {
		if f == 1<<i {
			return flagNames[i]
		}
	}
	return ""
}

// FlagByName looks up a flag by its wire field name.
func FlagByName(name string) (Flag, bool) {
	for i, n := range flagNames {
		if n == name {
			return Flag(1 << i), true
		}
	}
	return 0, false
}

// InputState is an immutable snapshot of the ten input flags.
type InputState uint16

// Has reports whether f is set.
func (s InputState) Has(f Flag) bool {
	return uint16(s)&uint16(f) != 0
}

// With returns a copy of s with f set or cleared.
func (s InputState) With(f Flag, on bool) InputState {
	if on {
		return s | InputState(f)
	}
	return s &^ InputState(f)
}

// Valid reports whether only defined flags are set.
func (s InputState) Valid() bool {
	return s&^AllFlags == 0
}

func (s InputState) String() string {
	var set []string
	for i, n := range flagNames {
		if s.Has(Flag(1 << i)) {
			set = append(set, n)
		}
	}
	return "{" + strings.Join(set, ",") + "}"
}

// inputMessage fixes field order on the wire.
type inputMessage struct {
	Up         bool `json:"up_key"`
	Down       bool `json:"down_key"`
	Left       bool `json:"left_key"`
	Right      bool `json:"right_key"`
	ShootUp    bool `json:"shoot_up"`
	ShootDown  bool `json:"shoot_down"`
	ShootLeft  bool `json:"shoot_left"`
	ShootRight bool `json:"shoot_right"`
	Quit       bool `json:"quit_key"`
	Action     bool `json:"space"`
}

// EncodeInput serializes s as the engine's input JSON object.
func EncodeInput(s InputState) ([]byte, error) {
	if !s.Valid() {
		return nil, errors.InvalidData(errors.PhaseEncode, []string{"input"}, "undefined flag bits set")
	}
	return json.Marshal(inputMessage{
		Up:         s.Has(Up),
		Down:       s.Has(Down),
		Left:       s.Has(Left),
		Right:      s.Has(Right),
		ShootUp:    s.Has(ShootUp),
		ShootDown:  s.Has(ShootDown),
		ShootLeft:  s.Has(ShootLeft),
		ShootRight: s.Has(ShootRight),
		Quit:       s.Has(Quit),
		Action:     s.Has(Action),
	})
}

// DecodeInput parses an input JSON object. All ten fields are required and
// no other fields are accepted.
func DecodeInput(data []byte) (InputState, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return 0, errors.Decode(errors.PhaseDecode, []string{"input"}, "input is not a JSON object", err)
	}
	if fields == nil {
		return 0, errors.Decode(errors.PhaseDecode, []string{"input"}, "input is null", nil)
	}

	for name := range fields {
		if _, ok := FlagByName(name); !ok {
			return 0, errors.FieldUnknown(errors.PhaseDecode, []string{"input"}, name)
		}
	}

	var s InputState
	for i, name := range flagNames {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			return 0, errors.FieldMissing(errors.PhaseDecode, []string{"input"}, name)
		}
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, errors.Decode(errors.PhaseDecode, []string{"input", name}, "expected boolean", err)
		}
		s = s.With(Flag(1<<i), v)
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
