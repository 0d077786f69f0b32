// Package hashfn provides families of string hash functions used to derive
// independent bit positions for bloom filters. A family maps (data, round)
// to a 32-bit value; each round in [0, K) behaves as a separate hash.
package hashfn

import (
	"fmt"
	"sort"
)

// Family is a deterministic, stateless hash family.
type Family interface {
	Name() string
	// MaxRounds is the number of distinct rounds the family supports, or 0 if unbounded.
	MaxRounds() int
	// Hash returns the hash of data for the given round.
	// It panics if round is negative or not below MaxRounds.
	Hash(data []byte, round int) uint32
}

const (
	NameClassic  = "classic"
	NameXXHash64 = "xxhash64"
	NameXXHash32 = "xxhash32"
)

var families = map[string]Family{
	NameClassic:  Classic{},
	NameXXHash64: XXHash64{},
	NameXXHash32: XXHash32{},
}

// Lookup returns the family registered under name.
func Lookup(name string) (Family, error) {
	f, ok := families[name]
	if !ok {
		return nil, fmt.Errorf("unknown hash family %q", name)
	}
	return f, nil
}

// Names lists registered family names in sorted order.
func Names() []string {
	out := make([]string, 0, len(families))
	for n := range families {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether f can serve k rounds.
func Supports(f Family, k int) bool {
	if k < 1 {
		return false
	}
	return f.MaxRounds() == 0 || k <= f.MaxRounds()
}

func checkRound(f Family, round int) {
	if round < 0 || (f.MaxRounds() > 0 && round >= f.MaxRounds()) {
		panic(fmt.Sprintf("hashfn: %s round %d out of range", f.Name(), round))
	}
}
