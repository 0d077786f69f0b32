package bloom

import (
	"testing"

	"github.com/haukened/rr-ids/internal/ids/repos/membership/hashfn"
)

func TestSize_CommonCases(t *testing.T) {
	// n=1, p=1% → m≈10, k≈7
	m, k := Size(1, 0.01)
	if m < 10 || k != 7 {
		t.Fatalf("n=1,p=0.01: got m=%d k=%d; want m>=10 k=7", m, k)
	}

	// n=1e6, p=1% → m≈9.585e6 bits, k≈7
	m, k = Size(1_000_000, 0.01)
	if m < 9_500_000 || m > 9_700_000 {
		t.Fatalf("n=1e6,p=0.01: unexpected m=%d (expected around 9.6e6)", m)
	}
	if k != 7 {
		t.Fatalf("n=1e6,p=0.01: k=%d; want 7", k)
	}

	// p=0.5 → k rounds to 1
	_, k = Size(10_000, 0.5)
	if k != 1 {
		t.Fatalf("p=0.5: k=%d; want 1", k)
	}
}

func TestSize_ClampingAndDefaults(t *testing.T) {
	m, k := Size(0, 0)
	if m == 0 || k == 0 {
		t.Fatalf("n=0,p=0: expected m>=1 and k>=1; got m=%d k=%d", m, k)
	}
	m2, k2 := Size(100, 1.0)
	if m2 == 0 || k2 == 0 {
		t.Fatalf("p>=1 default: expected m>=1 and k>=1; got m=%d k=%d", m2, k2)
	}
}

func TestSizedParams_CapsClassicRounds(t *testing.T) {
	// p=1e-6 wants ~20 rounds; the classic family only has 10.
	p := SizedParams(1000, 1e-6, hashfn.NameClassic)
	if p.Rounds != 10 {
		t.Fatalf("classic rounds=%d; want 10", p.Rounds)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("sized classic params invalid: %v", err)
	}

	p = SizedParams(1000, 1e-6, hashfn.NameXXHash64)
	if p.Rounds <= 10 {
		t.Fatalf("xxhash64 rounds=%d; want uncapped (>10)", p.Rounds)
	}
}
