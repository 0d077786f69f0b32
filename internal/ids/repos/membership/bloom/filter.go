// Package bloom provides fixed-capacity bloom filters for the membership tables.
// Filters support Add and Test only; the only way to forget items is to
// replace the filter with a fresh one from the same Factory.
package bloom

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/haukened/rr-ids/internal/ids/repos/membership/hashfn"
)

// Filter is a probabilistic set. Test never returns false for data that was added.
// Filters are not safe for concurrent mutation; callers serialise Add.
type Filter interface {
	Add(data []byte)
	Test(data []byte) bool
	// Cap returns the number of bits (M).
	Cap() uint
	// K returns the number of hash rounds.
	K() uint
	// FillRatio returns the fraction of bits currently set.
	FillRatio() float64
}

// bitFilter sets bit hash(data, i) mod M for each round i of a hashfn.Family.
type bitFilter struct {
	bits   *bitset.BitSet
	m      uint
	k      uint
	family hashfn.Family
}

func newBitFilter(m, k uint, family hashfn.Family) *bitFilter {
	return &bitFilter{bits: bitset.New(m), m: m, k: k, family: family}
}

func (f *bitFilter) Add(data []byte) {
	for i := uint(0); i < f.k; i++ {
		f.bits.Set(f.position(data, i))
	}
}

func (f *bitFilter) Test(data []byte) bool {
	for i := uint(0); i < f.k; i++ {
		if !f.bits.Test(f.position(data, i)) {
			return false
		}
	}
	return true
}

func (f *bitFilter) position(data []byte, round uint) uint {
	return uint(f.family.Hash(data, int(round))) % f.m
}

func (f *bitFilter) Cap() uint { return f.m }
func (f *bitFilter) K() uint   { return f.k }

func (f *bitFilter) FillRatio() float64 {
	return float64(f.bits.Count()) / float64(f.m)
}

var _ Filter = (*bitFilter)(nil)
