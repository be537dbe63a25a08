package progress

const (
	// Ceiling is the highest value shown while a request is outstanding.
	Ceiling = 97.0

	// Complete is shown once the request succeeded.
	Complete = 100.0

	fastTierEnd = 70.0
	slowTierEnd = 90.0

	fastStep = 10.0
	slowStep = 3.0
	tailStep = 1.0
)

// Phase is the label shown next to the bar.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseProcessing
	PhaseFinalizing
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "Starting..."
	case PhaseProcessing:
		return "Processing files..."
	case PhaseFinalizing:
		return "Finalizing merged file"
	default:
		return "unknown"
	}
}

// Advance applies one tick of the tiered policy. r is a uniform sample in [0, 1).
// Steps shrink as the value climbs so the bar decelerates towards Ceiling.
func Advance(value, r float64) float64 {
	switch {
	case value < fastTierEnd:
		return value + r*fastStep
	case value < slowTierEnd:
		return value + r*slowStep
	case value < Ceiling:
		return value + r*tailStep
	default:
		return value
	}
}

// Displayed clamps an internal value to what the bar may show while running.
func Displayed(value float64) float64 {
	return min(value, Ceiling)
}

// PhaseFor is the label for an internal value.
func PhaseFor(value float64) Phase {
	if value < slowTierEnd {
		return PhaseProcessing
	}
	return PhaseFinalizing
}
