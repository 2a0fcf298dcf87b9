package listener

import (
	"strconv"
	"unicode/utf16"

	"github.com/dougsko/automagic/pkg/bandplan"
	"golang.org/x/text/encoding/unicode"
)

// Character offsets within a DXLog.net station info record.
const (
	dxlogSenderOffset = 0
	dxlogTypeOffset   = 32
	dxlogBandOffset   = 56
	dxlogModeOffset   = 66
	dxlogFreqOffset   = 101

	dxlogStationInfo = "STI"
)

// StationInfo holds the fields read from a DXLog.net record.
type StationInfo struct {
	Sender string
	Type   string
	Band   string
	Mode   string // two character prefix
	Freq   string // decimal digits, the last two below 1 kHz
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeStationInfo decodes a UTF-16LE DXLog.net datagram. Records too short
// to hold every field yield the zero value.
func DecodeStationInfo(data []byte) StationInfo {
	text, err := utf16le.NewDecoder().Bytes(data)
	if err != nil {
		return StationInfo{}
	}
	// Offsets count UTF-16 code units, not bytes or runes.
	msg := utf16.Encode([]rune(string(text)))

	if len(msg) < dxlogFreqOffset+1 {
		return StationInfo{}
	}

	return StationInfo{
		Sender: field(msg, dxlogSenderOffset, -1),
		Type:   field(msg, dxlogTypeOffset, 3),
		Band:   field(msg, dxlogBandOffset, -1),
		Mode:   field(msg, dxlogModeOffset, 2),
		Freq:   field(msg, dxlogFreqOffset, -1),
	}
}

// field returns n units at off, or the NUL terminated run at off when n < 0.
func field(msg []uint16, off, n int) string {
	end := off
	if n < 0 {
		for end < len(msg) && msg[end] != 0 {
			end++
		}
	} else {
		end = off + n
		if end > len(msg) {
			end = len(msg)
		}
	}
	return string(utf16.Decode(msg[off:end]))
}

// KHz parses the frequency field, dropping the two sub-kHz digits.
func (s StationInfo) KHz() (int, bool) {
	if len(s.Freq) < 3 {
		return 0, false
	}
	khz, err := strconv.Atoi(s.Freq[:len(s.Freq)-2])
	if err != nil || khz <= 0 {
		return 0, false
	}
	return khz, true
}

// DXLogDecoder accepts station info records from one station.
type DXLogDecoder struct {
	Station string
}

func (d DXLogDecoder) Decode(data []byte) (Report, bool) {
	si := DecodeStationInfo(data)
	if si.Type != dxlogStationInfo || si.Sender != d.Station {
		return Report{}, false
	}

	khz, ok := si.KHz()
	if !ok {
		return Report{}, false
	}

	return Report{KHz: khz, Mode: bandplan.ClassifyPrefix(si.Mode)}, true
}
