package bloom

import (
	"math"

	"github.com/haukened/rr-ids/internal/ids/repos/membership/hashfn"
)

// Size computes filter parameters from an expected item count n and a target
// false-positive rate p using the standard formulas:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// Results are clamped to at least 1. n = 0 is treated as 1 and p outside (0,1)
// defaults to 1%.
func Size(n uint64, p float64) (m uint, k uint) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = 0.01
	}
	ln2 := math.Ln2
	mf := math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2))
	if mf < 1 {
		mf = 1
	}
	kf := math.Max(1, math.Round((mf/float64(n))*ln2))
	return uint(mf), uint(kf)
}

// SizedParams returns Params for n items at rate p with the given family.
// Rounds are capped to what a bounded family supports.
func SizedParams(n uint64, p float64, family string) Params {
	m, k := Size(n, p)
	if fam, err := hashfn.Lookup(family); err == nil && fam.MaxRounds() > 0 && k > uint(fam.MaxRounds()) {
		k = uint(fam.MaxRounds())
	}
	return Params{Bits: m, Rounds: k, Family: family}
}
