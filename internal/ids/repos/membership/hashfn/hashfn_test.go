package hashfn

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJenkins_KnownValues(t *testing.T) {
	// Reference values for Bob Jenkins' one-at-a-time hash.
	assert.Equal(t, uint32(0), Jenkins(nil))
	assert.Equal(t, uint32(0xca2e9442), Jenkins([]byte("a")))
	assert.Equal(t, uint32(0x519e91f5), Jenkins([]byte("The quick brown fox jumps over the lazy dog")))
}

func TestClassic_SimpleKnownValues(t *testing.T) {
	assert.Equal(t, uint32(5381), DJB(nil))
	assert.Equal(t, uint32(5381*33+'a'), DJB([]byte("a")))
	assert.Equal(t, uint32('a'), BKDR([]byte("a")))
	assert.Equal(t, uint32('a'*131+'b'), BKDR([]byte("ab")))
	assert.Equal(t, uint32('a'), SDBM([]byte("a")))
	assert.Equal(t, uint32('a'), ELF([]byte("a")))
	assert.Equal(t, uint32('a'), PJW([]byte("a")))
	assert.Equal(t, uint32('a'), FNV([]byte("a")))
	assert.Equal(t, uint32(1<<5)^'a', DEK([]byte("a")))
}

func TestClassic_RoundsSelectDistinctFunctions(t *testing.T) {
	c := Classic{}
	require.Equal(t, 10, c.MaxRounds())
	data := []byte("/index.php?id=42")
	seen := make(map[uint32]int)
	for i := 0; i < c.MaxRounds(); i++ {
		seen[c.Hash(data, i)] = i
	}
	// PJW and ELF are the same algorithm on 32-bit words; every other round differs.
	assert.Equal(t, PJW(data), ELF(data))
	assert.Len(t, seen, c.MaxRounds()-1)
	assert.Equal(t, Jenkins(data), c.Hash(data, 0))
	assert.Equal(t, FNV(data), c.Hash(data, 9))
}

func TestFamilies_DeterministicAndPure(t *testing.T) {
	for _, name := range Names() {
		f, err := Lookup(name)
		require.NoError(t, err)
		data := []byte("93.1.1.1/login")
		for round := 0; round < 5; round++ {
			a := f.Hash(data, round)
			b := f.Hash(append([]byte(nil), data...), round)
			assert.Equal(t, a, b, "%s round %d not deterministic", name, round)
		}
	}
}

func TestFamilies_RoundsAreIndependent(t *testing.T) {
	for _, name := range []string{NameXXHash64, NameXXHash32} {
		f, err := Lookup(name)
		require.NoError(t, err)
		data := []byte("example.com")
		seen := make(map[uint32]struct{})
		for round := 0; round < 32; round++ {
			seen[f.Hash(data, round)] = struct{}{}
		}
		assert.Len(t, seen, 32, "%s rounds collided", name)
	}
}

func TestFamilies_OutOfRangeRoundPanics(t *testing.T) {
	assert.Panics(t, func() { Classic{}.Hash([]byte("x"), 10) })
	assert.Panics(t, func() { Classic{}.Hash([]byte("x"), -1) })
	assert.Panics(t, func() { XXHash64{}.Hash([]byte("x"), -1) })
	assert.NotPanics(t, func() { XXHash32{}.Hash([]byte("x"), 1000) })
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{NameClassic, NameXXHash32, NameXXHash64}, Names())
	_, err := Lookup("md5")
	assert.Error(t, err)
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports(Classic{}, 1))
	assert.True(t, Supports(Classic{}, 10))
	assert.False(t, Supports(Classic{}, 11))
	assert.False(t, Supports(Classic{}, 0))
	assert.True(t, Supports(XXHash64{}, 64))
}

func BenchmarkFamilies(b *testing.B) {
	data := []byte("GET /wp-login.php HTTP/1.1")
	for _, name := range Names() {
		f, _ := Lookup(name)
		b.Run(fmt.Sprintf("%s/k=10", name), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				for r := 0; r < 10; r++ {
					_ = f.Hash(data, r)
				}
			}
		})
	}
}
