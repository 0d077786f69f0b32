package hashfn

// Func hashes a byte string to 32 bits.
type Func func(data []byte) uint32

// classicFuncs is indexed by round. Jenkins one-at-a-time comes first so a
// single-round filter uses it.
var classicFuncs = [...]Func{
	Jenkins,
	RS,
	JS,
	PJW,
	ELF,
	BKDR,
	SDBM,
	DJB,
	DEK,
	FNV,
}

// Classic selects one of ten well-known string hashes per round.
type Classic struct{}

func (Classic) Name() string   { return NameClassic }
func (Classic) MaxRounds() int { return len(classicFuncs) }

func (c Classic) Hash(data []byte, round int) uint32 {
	checkRound(c, round)
	return classicFuncs[round](data)
}

// Jenkins is Bob Jenkins' one-at-a-time hash.
func Jenkins(data []byte) uint32 {
	var h uint32
	for _, b := range data {
		h += uint32(b)
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}

// RS is Robert Sedgewick's hash.
func RS(data []byte) uint32 {
	const b uint32 = 378551
	a := uint32(63689)
	var h uint32
	for _, c := range data {
		h = h*a + uint32(c)
		a *= b
	}
	return h
}

// JS is Justin Sobel's bitwise hash.
func JS(data []byte) uint32 {
	h := uint32(1315423911)
	for _, c := range data {
		h ^= (h << 5) + uint32(c) + (h >> 2)
	}
	return h
}

// PJW is Peter J. Weinberger's hash.
func PJW(data []byte) uint32 {
	const (
		threeQuarter        = 24
		oneEighth           = 4
		highBits     uint32 = 0xF0000000 // top oneEighth of the word
	)
	var h uint32
	for _, c := range data {
		h = (h << oneEighth) + uint32(c)
		if test := h & highBits; test != 0 {
			h = (h ^ (test >> threeQuarter)) & ^highBits
		}
	}
	return h
}

// ELF is the Unix ELF object file hash, a PJW variant.
func ELF(data []byte) uint32 {
	var h uint32
	for _, c := range data {
		h = (h << 4) + uint32(c)
		if x := h & 0xF0000000; x != 0 {
			h ^= x >> 24
			h &= ^x
		}
	}
	return h
}

// BKDR is the Kernighan and Ritchie multiplicative hash with seed 131.
func BKDR(data []byte) uint32 {
	const seed uint32 = 131
	var h uint32
	for _, c := range data {
		h = h*seed + uint32(c)
	}
	return h
}

// SDBM is the hash used by the sdbm database library.
func SDBM(data []byte) uint32 {
	var h uint32
	for _, c := range data {
		h = uint32(c) + (h << 6) + (h << 16) - h
	}
	return h
}

// DJB is Daniel J. Bernstein's times-33 hash.
func DJB(data []byte) uint32 {
	h := uint32(5381)
	for _, c := range data {
		h = (h << 5) + h + uint32(c)
	}
	return h
}

// DEK is Donald E. Knuth's rotating hash.
func DEK(data []byte) uint32 {
	h := uint32(len(data))
	for _, c := range data {
		h = ((h << 5) ^ (h >> 27)) ^ uint32(c)
	}
	return h
}

// FNV is a 32-bit Fowler-Noll-Vo style multiply-xor hash.
func FNV(data []byte) uint32 {
	const prime uint32 = 0x811C9DC5
	var h uint32
	for _, c := range data {
		h *= prime
		h ^= uint32(c)
	}
	return h
}
