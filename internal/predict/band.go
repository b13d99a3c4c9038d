package predict

// Band is the ordinal risk band derived from a malignancy probability.
type Band int

const (
	BandLow Band = iota
	BandModerate
	BandHigh
)

// Fixed band thresholds over the probability scale.
const (
	lowUpper      = 0.20
	moderateUpper = 0.50
)

// Classify maps a probability to its risk band: below 0.20 is Low, below
// 0.50 is Moderate, 0.50 and above is High. Total over [0,1].
func Classify(probability float64) Band {
	switch {
	case probability < lowUpper:
		return BandLow
	case probability < moderateUpper:
		return BandModerate
	default:
		return BandHigh
	}
}

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandModerate:
		return "moderate"
	case BandHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Message returns the clinical guidance attached to the band.
func (b Band) Message() string {
	switch b {
	case BandLow:
		return "Low Risk: Close monitoring recommended"
	case BandModerate:
		return "Moderate Risk: Further investigation suggested"
	case BandHigh:
		return "High Risk: Immediate clinical consultation advised"
	default:
		return ""
	}
}
