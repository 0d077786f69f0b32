package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// FamilyMurmur selects filters backed by bits-and-blooms/bloom, which derives
// its K positions from 128-bit murmur3 double hashing.
const FamilyMurmur = "murmur"

// murmurFilter adapts bits-and-blooms BloomFilter to Filter.
type murmurFilter struct {
	bf *bitsbloom.BloomFilter
}

func newMurmurFilter(m, k uint) *murmurFilter {
	return &murmurFilter{bf: bitsbloom.New(m, k)}
}

func (f *murmurFilter) Add(data []byte) {
	f.bf.Add(data)
}

func (f *murmurFilter) Test(data []byte) bool {
	return f.bf.Test(data)
}

func (f *murmurFilter) Cap() uint { return f.bf.Cap() }
func (f *murmurFilter) K() uint   { return f.bf.K() }

func (f *murmurFilter) FillRatio() float64 {
	return float64(f.bf.BitSet().Count()) / float64(f.bf.Cap())
}

var _ Filter = (*murmurFilter)(nil)
