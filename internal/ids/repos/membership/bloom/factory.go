package bloom

import (
	"errors"
	"fmt"

	"github.com/haukened/rr-ids/internal/ids/repos/membership/hashfn"
)

const (
	// DefaultBits is the default per-filter size (256 Ki bits).
	DefaultBits uint = 256 * 1024
	// DefaultRounds is the number of hash rounds per filter.
	DefaultRounds uint = 10
)

// Params fixes the shape of every filter a Factory produces.
type Params struct {
	Bits   uint
	Rounds uint
	// Family is a hashfn family name or FamilyMurmur.
	Family string
}

// DefaultParams returns 256 Ki bits, 10 rounds of the classic hash family.
func DefaultParams() Params {
	return Params{Bits: DefaultBits, Rounds: DefaultRounds, Family: hashfn.NameClassic}
}

// Validate checks that the parameters describe a buildable filter.
func (p Params) Validate() error {
	if p.Bits == 0 {
		return errors.New("bloom: bits must be at least 1")
	}
	if p.Rounds == 0 {
		return errors.New("bloom: rounds must be at least 1")
	}
	if p.Family == FamilyMurmur {
		return nil
	}
	fam, err := hashfn.Lookup(p.Family)
	if err != nil {
		return fmt.Errorf("bloom: %w", err)
	}
	if !hashfn.Supports(fam, int(p.Rounds)) {
		return fmt.Errorf("bloom: family %s supports at most %d rounds, got %d", fam.Name(), fam.MaxRounds(), p.Rounds)
	}
	return nil
}

// Factory builds empty filters with fixed parameters.
type Factory interface {
	New() Filter
	Params() Params
}

type factory struct {
	params Params
	family hashfn.Family
}

// NewFactory validates p and returns a Factory for it.
func NewFactory(p Params) (Factory, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f := factory{params: p}
	if p.Family != FamilyMurmur {
		f.family, _ = hashfn.Lookup(p.Family)
	}
	return f, nil
}

// New returns an empty filter.
func (f factory) New() Filter {
	if f.family == nil {
		return newMurmurFilter(f.params.Bits, f.params.Rounds)
	}
	return newBitFilter(f.params.Bits, f.params.Rounds, f.family)
}

func (f factory) Params() Params { return f.params }
