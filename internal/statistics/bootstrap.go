// Package statistics provides the resampling machinery behind experiment
// significance calls: bootstrap confidence intervals over per-run scores
// and control/treatment comparisons.
package statistics

import (
	"math"
	"math/rand/v2"
	"sort"
)

// ConfidenceInterval is a percentile bootstrap interval around a mean.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 10000

// BootstrapCI computes a percentile-method bootstrap confidence interval
// over the given scores. confidenceLevel is in (0, 1), e.g. 0.95. With
// fewer than 2 data points the interval collapses to the mean.
func BootstrapCI(scores []float64, confidenceLevel float64) ConfidenceInterval {
	return BootstrapCIWithSeed(scores, confidenceLevel, -1)
}

// BootstrapCIWithSeed is BootstrapCI with a fixed seed for reproducible
// reports. A negative seed uses a non-deterministic source.
func BootstrapCIWithSeed(scores []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	n := len(scores)
	if n < 2 {
		m := mean(scores)
		return ConfidenceInterval{
			Lower:           m,
			Upper:           m,
			Mean:            m,
			ConfidenceLevel: confidenceLevel,
			NumBootstraps:   0,
		}
	}

	rng := newRNG(seed)
	iters := DefaultBootstrapIterations

	bootMeans := make([]float64, iters)
	sample := make([]float64, n)
	for i := 0; i < iters; i++ {
		for j := 0; j < n; j++ {
			sample[j] = scores[rng.IntN(n)]
		}
		bootMeans[i] = mean(sample)
	}
	sort.Float64s(bootMeans)

	alpha := 1.0 - confidenceLevel
	loIdx := int(math.Floor(alpha / 2.0 * float64(iters)))
	hiIdx := int(math.Floor((1.0 - alpha/2.0) * float64(iters)))
	if hiIdx >= iters {
		hiIdx = iters - 1
	}

	return ConfidenceInterval{
		Lower:           bootMeans[loIdx],
		Upper:           bootMeans[hiIdx],
		Mean:            mean(scores),
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   iters,
	}
}

// BootstrapDiffCI bootstraps the difference of means (treatment minus
// control) for two independent samples. The interval answers "how much
// does the treatment arm move the metric".
func BootstrapDiffCI(control, treatment []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	observed := mean(treatment) - mean(control)
	if len(control) < 2 || len(treatment) < 2 {
		return ConfidenceInterval{
			Lower:           observed,
			Upper:           observed,
			Mean:            observed,
			ConfidenceLevel: confidenceLevel,
			NumBootstraps:   0,
		}
	}

	rng := newRNG(seed)
	iters := DefaultBootstrapIterations

	diffs := make([]float64, iters)
	cs := make([]float64, len(control))
	ts := make([]float64, len(treatment))
	for i := 0; i < iters; i++ {
		for j := range cs {
			cs[j] = control[rng.IntN(len(control))]
		}
		for j := range ts {
			ts[j] = treatment[rng.IntN(len(treatment))]
		}
		diffs[i] = mean(ts) - mean(cs)
	}
	sort.Float64s(diffs)

	alpha := 1.0 - confidenceLevel
	loIdx := int(math.Floor(alpha / 2.0 * float64(iters)))
	hiIdx := int(math.Floor((1.0 - alpha/2.0) * float64(iters)))
	if hiIdx >= iters {
		hiIdx = iters - 1
	}

	return ConfidenceInterval{
		Lower:           diffs[loIdx],
		Upper:           diffs[hiIdx],
		Mean:            observed,
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   iters,
	}
}

// IsSignificant reports whether the interval excludes zero.
func IsSignificant(ci ConfidenceInterval) bool {
	return ci.Lower > 0 || ci.Upper < 0
}

// NormalizedGain computes Hake's normalized gain:
//
//	g = (post - pre) / (1 - pre)
//
// which controls for ceiling effects when comparing pass rates: lifting
// 0.9 to 0.95 is harder than lifting 0.1 to 0.15. Returns 0 when pre is
// already at ceiling or nothing changed, 1 when post reaches the maximum.
func NormalizedGain(pre, post float64) float64 {
	if pre >= 1.0 {
		return 0.0
	}
	if post >= 1.0 {
		return 1.0
	}
	if math.Abs(post-pre) < 1e-12 {
		return 0.0
	}
	return (post - pre) / (1.0 - pre)
}

func newRNG(seed int64) *rand.Rand {
	if seed >= 0 {
		return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
