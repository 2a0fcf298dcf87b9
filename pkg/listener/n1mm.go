package listener

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"

	"github.com/dougsko/automagic/pkg/bandplan"
)

// RadioInfo is the N1MM Logger+ radio info broadcast.
type RadioInfo struct {
	XMLName       xml.Name `xml:"RadioInfo"`
	StationName   string   `xml:"StationName"`
	RadioNr       int      `xml:"RadioNr"`
	Freq          float64  `xml:"Freq"`
	TXFreq        float64  `xml:"TXFreq"`
	Mode          string   `xml:"Mode"`
	OpCall        string   `xml:"OpCall"`
	IsRunning     string   `xml:"IsRunning"`
	FocusRadioNr  int      `xml:"FocusRadioNr"`
	ActiveRadioNr int      `xml:"ActiveRadioNr"`
	IsStereo      string   `xml:"IsStereo"`
	Antenna       string   `xml:"Antenna"`
}

// DecodeRadioInfo parses a datagram. Anything that is not a well formed
// RadioInfo document yields the zero value.
func DecodeRadioInfo(data []byte) RadioInfo {
	d := xml.NewDecoder(bytes.NewReader(data))
	// Loggers declare various encodings; the fields we read are ASCII.
	d.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	for {
		tok, err := d.Token()
		if err != nil {
			return RadioInfo{}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "RadioInfo" {
			return RadioInfo{}
		}

		var ri RadioInfo
		if err := d.DecodeElement(&ri, &start); err != nil {
			return RadioInfo{}
		}
		return ri
	}
}

// N1MMDecoder accepts RadioInfo reports for one radio number.
type N1MMDecoder struct {
	RadioNr    int
	FreqUnitHz int // size of one Freq unit in hertz
}

func (n N1MMDecoder) Decode(data []byte) (Report, bool) {
	ri := DecodeRadioInfo(data)
	if ri.RadioNr == 0 || ri.RadioNr != n.RadioNr {
		return Report{}, false
	}

	unit := n.FreqUnitHz
	if unit < 1 {
		unit = 1
	}

	return Report{
		KHz:  int(math.Round(ri.Freq * float64(unit) / 1000)),
		Mode: bandplan.Classify(ri.Mode),
	}, true
}
