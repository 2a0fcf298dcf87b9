package bandplan

// Band describes one amateur band as seen by the waterfall engine.
type Band struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Segment  int    `json:"segment"`   // Icom scope edge segment
	LowerKHz int    `json:"lower_khz"` // band plan edges, used for first-run defaults
	UpperKHz int    `json:"upper_khz"`
}

// Known reports whether the band resolved to a configured amateur band.
func (b Band) Known() bool {
	return b.Index >= 0
}

// TableSize covers 0..469 MHz.
const TableSize = 470

// Unknown is returned for every frequency outside a populated band.
var Unknown = Band{Index: -1, Name: "?m"}

type bandRange struct {
	band    Band
	fromMHz int
	toMHz   int
}

// Segments follow the Icom scope edge ranges: 1 below 1.6 MHz, 2 for 1.6-2,
// 3 for 2-6, 4 for 6-8, 5 for 8-11, 6 for 11-15, 7 for 15-20, 8 for 20-22,
// 9 for 22-26, 10 for 26-30, 11 for 30-45, 12 for 45-60, 13 for 60-74.8.
// 16 and 17 are the 137-200 and 400-470 MHz ranges of the VHF/UHF models.
var bandRanges = []bandRange{
	{Band{0, "160m", 2, 1800, 2000}, 1, 1},
	{Band{1, "80m", 3, 3500, 3800}, 3, 3},
	{Band{2, "60m", 3, 5350, 5450}, 5, 5},
	{Band{3, "40m", 4, 7000, 7200}, 6, 7},
	{Band{4, "30m", 5, 10100, 10150}, 9, 10},
	{Band{5, "20m", 6, 14000, 14350}, 13, 14},
	{Band{6, "17m", 7, 18068, 18168}, 17, 18},
	{Band{7, "15m", 8, 21000, 21450}, 20, 21},
	{Band{8, "12m", 9, 24890, 24990}, 24, 25},
	{Band{9, "10m", 10, 28000, 28500}, 27, 29},
	{Band{10, "6m", 12, 50000, 50500}, 49, 54},
	{Band{11, "4m", 13, 70000, 70500}, 69, 70},
	{Band{12, "2m", 16, 144000, 144500}, 144, 147},
	{Band{13, "70cm", 17, 432000, 432500}, 420, 449},
}

// NumBands is the number of known bands; band indices run 0..NumBands-1.
const NumBands = 14

var table [TableSize]Band

func init() {
	if len(bandRanges) != NumBands {
		panic("bandplan: band table out of sync with NumBands")
	}
	for i := range table {
		table[i] = Unknown
	}
	for _, r := range bandRanges {
		for mhz := r.fromMHz; mhz <= r.toMHz; mhz++ {
			table[mhz] = r.band
		}
	}
}

// Resolve maps an integer megahertz value to its band. Anything outside a
// populated range, including negative or too large input, yields Unknown.
func Resolve(mhz int) Band {
	if mhz < 0 || mhz >= TableSize {
		return Unknown
	}
	return table[mhz]
}

// ResolveKHz resolves a frequency given in kHz, truncating to whole MHz.
func ResolveKHz(kHz int) Band {
	if kHz < 0 {
		return Unknown
	}
	return Resolve(kHz / 1000)
}

// Bands returns the known bands in index order.
func Bands() []Band {
	bands := make([]Band, len(bandRanges))
	for i, r := range bandRanges {
		bands[i] = r.band
	}
	return bands
}

// ByIndex returns the band with the given index, or Unknown.
func ByIndex(index int) Band {
	if index < 0 || index >= NumBands {
		return Unknown
	}
	return bandRanges[index].band
}
