package hashfn

import (
	oneofone "github.com/OneOfOne/xxhash"
	"github.com/cespare/xxhash/v2"
)

// XXHash64 derives every round from one 64-bit xxhash using double hashing:
// round i yields h1 + i*h2, where h1 and h2 are the low and high halves.
type XXHash64 struct{}

func (XXHash64) Name() string   { return NameXXHash64 }
func (XXHash64) MaxRounds() int { return 0 }

func (x XXHash64) Hash(data []byte, round int) uint32 {
	checkRound(x, round)
	sum := xxhash.Sum64(data)
	h1 := uint32(sum)
	h2 := uint32(sum >> 32)
	// An even h2 would revisit positions in power-of-two filters.
	h2 |= 1
	return h1 + uint32(round)*h2
}

// XXHash32 runs 32-bit xxhash once per round, seeded with the round index.
type XXHash32 struct{}

func (XXHash32) Name() string   { return NameXXHash32 }
func (XXHash32) MaxRounds() int { return 0 }

func (x XXHash32) Hash(data []byte, round int) uint32 {
	checkRound(x, round)
	return oneofone.Checksum32S(data, uint32(round))
}
