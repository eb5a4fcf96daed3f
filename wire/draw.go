package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/wippyai/wasm-frame-host/errors"
)

// Convention is the colour channel range used by draw commands.
type Convention uint8

const (
	// ChannelsByte: integer-valued channels in [0, 255].
	ChannelsByte Convention = iota + 1
	// ChannelsUnit: channels in [0, 1].
	ChannelsUnit
)

// Max returns the largest channel value of the convention.
func (c Convention) Max() float64 {
	if c == ChannelsUnit {
		return 1
	}
	return 255
}

func (c Convention) String() string {
	switch c {
	case ChannelsByte:
		return "byte"
	case ChannelsUnit:
		return "unit"
	default:
		return fmt.Sprintf("convention(%d)", uint8(c))
	}
}

// DrawCommand is one filled rectangle in engine space. The vertical axis
// points up: Top >= Bottom.
type DrawCommand struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Red    float64 `json:"red"`
	Green  float64 `json:"green"`
	Blue   float64 `json:"blue"`
}

var commandFields = [...]string{"left", "top", "right", "bottom", "red", "green", "blue"}

func (c *DrawCommand) field(name string) *float64 {
	switch name {
	case "left":
		return &c.Left
	case "top":
		return &c.Top
	case "right":
		return &c.Right
	case "bottom":
		return &c.Bottom
	case "red":
		return &c.Red
	case "green":
		return &c.Green
	case "blue":
		return &c.Blue
	}
	return nil
}

// Validate checks finiteness, ordering and channel range. Byte channels
// must also be whole numbers.
func (c DrawCommand) Validate(conv Convention) error {
	for _, name := range commandFields {
		v := *c.field(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.InvalidData(errors.PhaseDecode, []string{name}, "not a finite number")
		}
	}
	if c.Right < c.Left {
		return errors.InvalidData(errors.PhaseDecode, []string{"right"}, fmt.Sprintf("right %g < left %g", c.Right, c.Left))
	}
	if c.Top < c.Bottom {
		return errors.InvalidData(errors.PhaseDecode, []string{"top"}, fmt.Sprintf("top %g < bottom %g", c.Top, c.Bottom))
	}
	limit := conv.Max()
	for _, name := range commandFields[4:] {
		v := *c.field(name)
		if v < 0 || v > limit {
			return errors.InvalidData(errors.PhaseDecode, []string{name}, fmt.Sprintf("channel %g outside [0, %g]", v, limit))
		}
		if conv == ChannelsByte && v != math.Trunc(v) {
			return errors.InvalidData(errors.PhaseDecode, []string{name}, fmt.Sprintf("byte channel %g is not an integer", v))
		}
	}
	return nil
}

// Frame is one ordered batch of draw commands. Earlier commands are drawn
// first. A frame carries exactly one channel convention.
type Frame struct {
	Commands   []DrawCommand
	Convention Convention
}

// Validate validates every command, reporting the index of the first bad one.
func (f Frame) Validate() error {
	if f.Convention != ChannelsByte && f.Convention != ChannelsUnit {
		return errors.InvalidData(errors.PhaseDecode, []string{"frame"}, "unknown channel convention")
	}
	for i, c := range f.Commands {
		if err := c.Validate(f.Convention); err != nil {
			return prefixPath(err, "frame", strconv.Itoa(i))
		}
	}
	return nil
}

// frameEnvelope is the versioned form of a pull frame.
type frameEnvelope struct {
	Commands json.RawMessage `json:"commands"`
	Version  int             `json:"v"`
}

// EncodeFrame serializes the commands of f as a JSON array.
func EncodeFrame(f Frame) ([]byte, error) {
	cmds := f.Commands
	if cmds == nil {
		cmds = []DrawCommand{}
	}
	return json.Marshal(cmds)
}

// DecodeFrame parses pull-model output. It accepts the bare command array
// or the envelope {"v":1,"commands":[...]}. Every command must carry
// exactly the seven numeric fields and pass Validate; nothing partial is
// returned on failure.
func DecodeFrame(data []byte, conv Convention) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Frame{}, errors.Decode(errors.PhaseDecode, []string{"frame"}, "empty output", nil)
	}

	if trimmed[0] == '{' {
		var env frameEnvelope
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&env); err != nil {
			return Frame{}, errors.Decode(errors.PhaseDecode, []string{"frame"}, "malformed frame envelope", err)
		}
		if env.Version != Version {
			return Frame{}, errors.New(errors.PhaseDecode, errors.KindDecode).
				Path("frame", "v").
				Value(env.Version).
				Detail("unsupported frame version %d", env.Version).
				Build()
		}
		trimmed = env.Commands
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return Frame{}, errors.Decode(errors.PhaseDecode, []string{"frame"}, "output is not a JSON array", err)
	}
	if raws == nil {
		return Frame{}, errors.Decode(errors.PhaseDecode, []string{"frame"}, "output is null", nil)
	}

	frame := Frame{Convention: conv, Commands: make([]DrawCommand, len(raws))}
	for i, raw := range raws {
		cmd, err := decodeCommand(raw)
		if err != nil {
			return Frame{}, prefixPath(err, "frame", strconv.Itoa(i))
		}
		frame.Commands[i] = cmd
	}
	if err := frame.Validate(); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

func decodeCommand(raw json.RawMessage) (DrawCommand, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return DrawCommand{}, errors.Decode(errors.PhaseDecode, nil, "draw command is not a JSON object", err)
	}
	for name := range fields {
		if (&DrawCommand{}).field(name) == nil {
			return DrawCommand{}, errors.FieldUnknown(errors.PhaseDecode, nil, name)
		}
	}

	var cmd DrawCommand
	for _, name := range commandFields {
		v, ok := fields[name]
		if !ok || isNull(v) {
			return DrawCommand{}, errors.FieldMissing(errors.PhaseDecode, nil, name)
		}
		if err := json.Unmarshal(v, cmd.field(name)); err != nil {
			return DrawCommand{}, errors.Decode(errors.PhaseDecode, []string{name}, "expected number", err)
		}
	}
	return cmd, nil
}

// prefixPath returns err with path elements prepended when it is an *errors.Error.
func prefixPath(err error, prefix ...string) error {
	e, ok := err.(*errors.Error)
	if !ok {
		return err
	}
	out := *e
	out.Path = append(append([]string{}, prefix...), e.Path...)
	return &out
}
