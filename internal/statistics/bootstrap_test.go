package statistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapCIDegenerateInputs(t *testing.T) {
	empty := BootstrapCI(nil, 0.95)
	assert.Zero(t, empty.Mean)
	assert.Zero(t, empty.NumBootstraps)

	single := BootstrapCI([]float64{0.75}, 0.95)
	assert.Equal(t, 0.75, single.Mean)
	assert.Equal(t, 0.75, single.Lower)
	assert.Equal(t, 0.75, single.Upper)
}

func TestBootstrapCIBracketsTheMean(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	ci := BootstrapCIWithSeed(scores, 0.95, 42)

	assert.InDelta(t, 0.55, ci.Mean, 0.01)
	assert.Less(t, ci.Lower, ci.Mean)
	assert.Greater(t, ci.Upper, ci.Mean)
	assert.Equal(t, DefaultBootstrapIterations, ci.NumBootstraps)
}

func TestBootstrapCIDeterministicForSeed(t *testing.T) {
	scores := []float64{0.2, 0.4, 0.6, 0.8}
	first := BootstrapCIWithSeed(scores, 0.95, 99)
	second := BootstrapCIWithSeed(scores, 0.95, 99)
	assert.Equal(t, first, second)
}

func TestBootstrapCIWidensWithConfidence(t *testing.T) {
	scores := []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.2, 0.4, 0.6, 0.8, 1.0}
	ci90 := BootstrapCIWithSeed(scores, 0.90, 42)
	ci99 := BootstrapCIWithSeed(scores, 0.99, 42)
	assert.Greater(t, ci99.Upper-ci99.Lower, ci90.Upper-ci90.Lower)
}

func TestBootstrapDiffCIDetectsAClearLift(t *testing.T) {
	control := []float64{0.1, 0.2, 0.15, 0.1, 0.2, 0.25, 0.1, 0.15}
	treatment := []float64{0.8, 0.9, 0.85, 0.8, 0.95, 0.9, 0.85, 0.8}

	ci := BootstrapDiffCI(control, treatment, 0.95, 7)
	assert.Greater(t, ci.Mean, 0.5)
	assert.True(t, IsSignificant(ci), "a lift this large must be significant: %+v", ci)
}

func TestBootstrapDiffCIOverlappingArms(t *testing.T) {
	control := []float64{0.4, 0.5, 0.6, 0.5, 0.45, 0.55}
	treatment := []float64{0.45, 0.5, 0.55, 0.5, 0.6, 0.4}

	ci := BootstrapDiffCI(control, treatment, 0.95, 7)
	assert.False(t, IsSignificant(ci), "near-identical arms must not be significant: %+v", ci)
}

func TestIsSignificant(t *testing.T) {
	assert.True(t, IsSignificant(ConfidenceInterval{Lower: 0.1, Upper: 0.5}))
	assert.True(t, IsSignificant(ConfidenceInterval{Lower: -0.5, Upper: -0.1}))
	assert.False(t, IsSignificant(ConfidenceInterval{Lower: -0.1, Upper: 0.3}))
	assert.False(t, IsSignificant(ConfidenceInterval{Lower: 0.0, Upper: 0.5}))
}

func TestNormalizedGain(t *testing.T) {
	tests := []struct {
		name      string
		pre, post float64
		want      float64
	}{
		{"basic gain", 0.4, 0.7, 0.5},
		{"no change", 0.5, 0.5, 0.0},
		{"reaches ceiling", 0.5, 1.0, 1.0},
		{"pre at ceiling", 1.0, 1.0, 0.0},
		{"hard gain near ceiling", 0.9, 0.95, 0.5},
		{"regression", 0.5, 0.3, -0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, NormalizedGain(tt.pre, tt.post), 1e-9)
		})
	}
}
