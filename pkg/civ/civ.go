// Package civ builds Icom CI-V command frames for the scope and power
// settings the engine drives. Every function returns a freshly allocated
// frame, so frames can be built from any goroutine.
package civ

import (
	"fmt"
	"strings"
)

const (
	Preamble       = 0xfe
	Terminator     = 0xfd
	ControllerAddr = 0xe0

	cmdScope     = 0x27
	subFixedMode = 0x14
	subEdgeSet   = 0x16
	subRefLevel  = 0x19
	subEdges     = 0x1e

	cmdLevel    = 0x14
	subRFPower  = 0x0a
	maxRefLevel = 99
)

// Frame lengths of the commands built here.
const (
	FixedModeLen = 9
	EdgeSetLen   = 9
	EdgesLen     = 19
	RefLevelLen  = 11
	PwrLevelLen  = 9
)

func frame(radio byte, body ...byte) []byte {
	f := make([]byte, 0, len(body)+5)
	f = append(f, Preamble, Preamble, radio, ControllerAddr)
	f = append(f, body...)
	return append(f, Terminator)
}

// SetFixedMode selects the fixed (non scrolling) scope mode.
func SetFixedMode(radio byte) []byte {
	return frame(radio, cmdScope, subFixedMode, 0x00, 0x01)
}

// SetEdgeSet selects which edge memory slot (1..3 on most models) later edge
// writes apply to.
func SetEdgeSet(radio, slot byte) []byte {
	return frame(radio, cmdScope, subEdgeSet, 0x00, slot)
}

// SetEdges writes the lower and upper scope edge, both in kHz, into the given
// edge segment and slot.
func SetEdges(radio byte, segment int, slot byte, lowerKHz, upperKHz int) []byte {
	lower := EncodeFrequency(uint64(lowerKHz) * 1000)
	upper := EncodeFrequency(uint64(upperKHz) * 1000)

	body := make([]byte, 0, 14)
	body = append(body, cmdScope, subEdges, EncodeBCD(segment), slot)
	body = append(body, lower[:]...)
	body = append(body, upper[:]...)
	return frame(radio, body...)
}

// SetRefLevel sets the scope reference level in whole dB. The magnitude is
// clamped to what a single BCD byte can carry.
func SetRefLevel(radio byte, db int) []byte {
	var sign byte
	abs := db
	if db < 0 {
		sign = 1
		abs = -db
	}
	if abs > maxRefLevel {
		abs = maxRefLevel
	}
	return frame(radio, cmdScope, subRefLevel, 0x00, EncodeBCD(abs), 0x00, sign)
}

// PowerValue maps a percentage to the radio's 0..255 RF power scale. The
// mapping rounds up, so any non-zero percentage yields a non-zero value.
func PowerValue(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return (255*percent + 99) / 100
}

// SetPwrLevel sets the RF power ceiling from a percentage.
func SetPwrLevel(radio byte, percent int) []byte {
	v := PowerValue(percent)
	return frame(radio, cmdLevel, subRFPower, byte((v/100)%10), byte((v/10)%10)<<4|byte(v%10))
}

// EncodeBCD packs a value 0..99 into one BCD byte, high nibble tens.
func EncodeBCD(v int) byte {
	if v < 0 {
		v = -v
	}
	v %= 100
	return byte(v/10)<<4 | byte(v%10)
}

// DecodeBCD is the inverse of EncodeBCD.
func DecodeBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

func getDigit(v uint64, n int) byte {
	for n > 0 {
		v /= 10
		n--
	}
	return byte(v % 10)
}

// EncodeFrequency packs a frequency in Hz into the five byte CI-V layout:
// (10Hz,1Hz) (1kHz,100Hz) (100kHz,10kHz) (10MHz,1MHz) (1GHz,100MHz), least
// significant pair first.
func EncodeFrequency(hz uint64) [5]byte {
	var b [5]byte
	for i := range b {
		b[i] = getDigit(hz, i*2+1)<<4 | getDigit(hz, i*2)
	}
	return b
}

// DecodeFrequency is the inverse of EncodeFrequency.
func DecodeFrequency(b []byte) uint64 {
	var f uint64
	mul := uint64(1)
	for _, v := range b {
		f += uint64(v&0x0f) * mul
		mul *= 10
		f += uint64(v>>4) * mul
		mul *= 10
	}
	return f
}

// Describe renders a frame for debug logging.
func Describe(f []byte) string {
	if len(f) < 6 || f[0] != Preamble || f[1] != Preamble || f[len(f)-1] != Terminator {
		return fmt.Sprintf("invalid frame % x", f)
	}

	var name string
	switch {
	case len(f) == FixedModeLen && f[4] == cmdScope && f[5] == subFixedMode:
		name = "fixed mode"
	case len(f) == EdgeSetLen && f[4] == cmdScope && f[5] == subEdgeSet:
		name = fmt.Sprintf("edge set %d", f[7])
	case len(f) == EdgesLen && f[4] == cmdScope && f[5] == subEdges:
		name = fmt.Sprintf("edges segment %d slot %d %d-%d kHz", DecodeBCD(f[6]), f[7],
			DecodeFrequency(f[8:13])/1000, DecodeFrequency(f[13:18])/1000)
	case len(f) == RefLevelLen && f[4] == cmdScope && f[5] == subRefLevel:
		db := DecodeBCD(f[7])
		if f[9] == 1 {
			db = -db
		}
		name = fmt.Sprintf("ref level %+d dB", db)
	case len(f) == PwrLevelLen && f[4] == cmdLevel && f[5] == subRFPower:
		name = fmt.Sprintf("power %d/255", int(f[6])*100+DecodeBCD(f[7]))
	default:
		name = "command"
	}

	hex := make([]string, len(f))
	for i, b := range f {
		hex[i] = fmt.Sprintf("%02x", b)
	}
	return fmt.Sprintf("%s to 0x%02x [%s]", name, f[2], strings.Join(hex, " "))
}
