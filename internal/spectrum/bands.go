package spectrum

// Band identifies one of the six named frequency bands.
type Band int

const (
	BandSub Band = iota
	BandBass
	BandLowMid
	BandMid
	BandHighMid
	BandTreble

	bandCount
)

// String returns the band identifier used in readouts and the web API.
func (b Band) String() string {
	switch b {
	case BandSub:
		return "sub"
	case BandBass:
		return "bass"
	case BandLowMid:
		return "lowMid"
	case BandMid:
		return "mid"
	case BandHighMid:
		return "highMid"
	case BandTreble:
		return "treble"
	default:
		return "unknown"
	}
}

type bandRange struct {
	lowHz  float64
	highHz float64 // 0 means extend to nyquist
}

var bandTable = [bandCount]bandRange{
	BandSub:     {20, 60},
	BandBass:    {60, 250},
	BandLowMid:  {250, 500},
	BandMid:     {500, 2000},
	BandHighMid: {2000, 4000},
	BandTreble:  {4000, 0},
}

// binRange maps a frequency range onto inclusive FFT bin indices for the
// given nyquist frequency and bin count.
func binRange(r bandRange, nyquist float64, binCount int) (lo, hi int) {
	high := r.highHz
	if high <= 0 || high > nyquist {
		high = nyquist
	}
	lo = int(r.lowHz / nyquist * float64(binCount))
	hi = int(high / nyquist * float64(binCount))
	if hi >= binCount {
		hi = binCount - 1
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
