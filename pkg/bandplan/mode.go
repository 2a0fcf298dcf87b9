package bandplan

import "fmt"

// Mode is the coarse operating mode the engine keeps settings for.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeCW
	ModePhone
	ModeDigital
)

// Modes lists the three configurable modes in storage order.
var Modes = []Mode{ModeCW, ModePhone, ModeDigital}

func (m Mode) String() string {
	switch m {
	case ModeCW:
		return "CW"
	case ModePhone:
		return "Phone"
	case ModeDigital:
		return "Digital"
	default:
		return "?"
	}
}

// MarshalText lets modes appear by name in JSON and YAML.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode parses the names produced by String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "CW":
		return ModeCW, nil
	case "Phone":
		return ModePhone, nil
	case "Digital":
		return ModeDigital, nil
	}
	return ModeUnknown, fmt.Errorf("unknown mode %q", s)
}

// Classify maps a logger mode string to a coarse mode. Matching is exact and
// case sensitive. Everything that is neither CW nor a voice mode is Digital.
func Classify(raw string) Mode {
	switch raw {
	case "CW":
		return ModeCW
	case "USB", "LSB", "AM", "SSB", "FM":
		return ModePhone
	default:
		return ModeDigital
	}
}

// ClassifyPrefix classifies using only the first two characters of the mode
// string, as DXLog reports it.
func ClassifyPrefix(raw string) Mode {
	if len(raw) < 2 {
		return ModeDigital
	}
	switch raw[:2] {
	case "CW":
		return ModeCW
	case "US", "LS", "AM", "SS", "FM":
		return ModePhone
	default:
		return ModeDigital
	}
}
