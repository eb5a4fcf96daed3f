package wire

import (
	"fmt"
	"strings"
)

// Version is the wire protocol version produced by this host.
const Version = 1

// Mode selects how render output crosses the boundary.
type Mode uint8

const (
	// ModePull: update returns a serialized batch of draw commands.
	ModePull Mode = iota + 1
	// ModePush: update draws through bridge primitives during the call.
	ModePush
)

func (m Mode) String() string {
	switch m {
	case ModePull:
		return "pull"
	case ModePush:
		return "push"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Convention returns the colour channel convention used by the mode.
func (m Mode) Convention() Convention {
	if m == ModePush {
		return ChannelsUnit
	}
	return ChannelsByte
}

// ParseMode parses "pull" or "push".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pull":
		return ModePull, nil
	case "push":
		return ModePush, nil
	}
	return 0, fmt.Errorf("unknown output mode %q (want pull or push)", s)
}
