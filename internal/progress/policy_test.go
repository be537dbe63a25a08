package progress

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvance_Tiers(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		r     float64
		want  float64
	}{
		{"fast tier", 10, 0.5, 15},
		{"fast tier edge", 69.9, 1, 79.9},
		{"slow tier", 70, 0.5, 71.5},
		{"tail tier", 90, 0.5, 90.5},
		{"tail tier can pass ceiling", 96.8, 0.9, 97.7},
		{"at ceiling", 97, 0.99, 97},
		{"past ceiling", 97.5, 0.99, 97.5},
		{"zero sample", 42, 0, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Advance(tt.value, tt.r), 1e-9)
		})
	}
}

func TestDisplayed_Clamps(t *testing.T) {
	assert.Equal(t, 0.0, Displayed(0))
	assert.Equal(t, 96.5, Displayed(96.5))
	assert.Equal(t, Ceiling, Displayed(97.7))
}

func TestPhaseFor(t *testing.T) {
	assert.Equal(t, PhaseProcessing, PhaseFor(0))
	assert.Equal(t, PhaseProcessing, PhaseFor(89.99))
	assert.Equal(t, PhaseFinalizing, PhaseFor(90))
	assert.Equal(t, PhaseFinalizing, PhaseFor(97.4))

	assert.Equal(t, "Starting...", PhaseStarting.String())
	assert.Equal(t, "Processing files...", PhaseProcessing.String())
	assert.Equal(t, "Finalizing merged file", PhaseFinalizing.String())
}

func TestAdvance_MonotonicAndBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	value, shown := 0.0, 0.0
	for range 10_000 {
		next := Advance(value, rng.Float64())
		assert.GreaterOrEqual(t, next, value)
		value = next

		d := Displayed(value)
		assert.GreaterOrEqual(t, d, shown)
		assert.LessOrEqual(t, d, Ceiling)
		shown = d
	}

	// the tail tier stops adding once the ceiling is reached
	assert.Less(t, value, Ceiling+tailStep)
}
