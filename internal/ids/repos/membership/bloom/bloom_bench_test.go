package bloom

import (
	"fmt"
	"testing"
)

func benchMakeURIs(n int, prefix string) [][]byte {
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = []byte(fmt.Sprintf("/%s/%04d/index.php", prefix, i))
	}
	return out
}

// Benchmark positive and negative lookups on default-shaped filters holding 1,000 URIs.
func BenchmarkFilter_Positive(b *testing.B) {
	for _, fam := range allFamilies() {
		b.Run(fam, func(b *testing.B) {
			bf := mustFactory(b, Params{Bits: DefaultBits, Rounds: 4, Family: fam}).New()
			keys := benchMakeURIs(1000, "present")
			for _, k := range keys {
				bf.Add(k)
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = bf.Test(keys[i%len(keys)])
			}
		})
	}
}

func BenchmarkFilter_Negative(b *testing.B) {
	for _, fam := range allFamilies() {
		b.Run(fam, func(b *testing.B) {
			bf := mustFactory(b, Params{Bits: DefaultBits, Rounds: 4, Family: fam}).New()
			for _, k := range benchMakeURIs(1000, "present") {
				bf.Add(k)
			}
			absent := benchMakeURIs(1000, "absent")
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = bf.Test(absent[i%len(absent)])
			}
		})
	}
}
