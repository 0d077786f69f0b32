package membership

import (
	"fmt"
	"math"
)

// Estimator approximates a filter's false-positive probability from the
// number of insertions since it was created and its shape.
type Estimator func(inserts uint64, bits, rounds uint) float64

const (
	EstimatorSingle   = "single"
	EstimatorLegacy   = "legacy"
	EstimatorTextbook = "textbook"
)

// EstimateSingleRound is 1 - e^(-n/m), the single-round approximation.
// It ignores K, so it tracks fill ratio of a K=1 filter.
func EstimateSingleRound(inserts uint64, bits, _ uint) float64 {
	return 1 - math.Exp(-float64(inserts)/float64(bits))
}

// EstimateLegacy divides inserts by bits in integer arithmetic before the
// exponent, so it stays at 0 until inserts reach the filter size.
func EstimateLegacy(inserts uint64, bits, _ uint) float64 {
	return 1 - math.Exp(-float64(inserts/uint64(bits)))
}

// EstimateTextbook is (1 - e^(-kn/m))^k.
func EstimateTextbook(inserts uint64, bits, rounds uint) float64 {
	k := float64(rounds)
	return math.Pow(1-math.Exp(-k*float64(inserts)/float64(bits)), k)
}

// LookupEstimator returns the estimator registered under name.
func LookupEstimator(name string) (Estimator, error) {
	switch name {
	case EstimatorSingle, "":
		return EstimateSingleRound, nil
	case EstimatorLegacy:
		return EstimateLegacy, nil
	case EstimatorTextbook:
		return EstimateTextbook, nil
	default:
		return nil, fmt.Errorf("unknown estimator %q", name)
	}
}
