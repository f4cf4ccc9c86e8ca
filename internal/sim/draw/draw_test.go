package draw

import (
	"math/rand"
	"testing"

	"lukechampine.com/frand"
)

func TestSample_DistinctInRange(t *testing.T) {
	src := rand.New(rand.NewSource(7))
	for n := 1; n <= 60; n++ {
		for k := 0; k <= n; k += 3 {
			s := Sample(src, k, n)
			if s.Len() != k {
				t.Fatalf("n=%d k=%d: len=%d", n, k, s.Len())
			}
			seen := map[int]bool{}
			for _, i := range s.Indices() {
				if i < 0 || i >= n {
					t.Fatalf("n=%d k=%d: index %d out of range", n, k, i)
				}
				if seen[i] {
					t.Fatalf("n=%d k=%d: duplicate index %d", n, k, i)
				}
				seen[i] = true
				if !s.Contains(i) {
					t.Fatalf("Contains(%d)=false for a member", i)
				}
			}
		}
	}
}

func TestSample_FullRangeIsPermutation(t *testing.T) {
	src := frand.NewCustom(make([]byte, 32), 64, 8)
	s := Sample(src, 25, 25)
	got := s.Sorted()
	for i := 0; i < 25; i++ {
		if got[i] != i {
			t.Fatalf("sorted[%d]=%d want %d", i, got[i], i)
		}
	}
}

func TestSample_PanicsWhenKExceedsN(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for k > n")
		}
	}()
	Sample(rand.New(rand.NewSource(1)), 26, 25)
}

func TestBetween_Inclusive(t *testing.T) {
	src := rand.New(rand.NewSource(3))
	seenLo, seenHi := false, false
	for i := 0; i < 5000; i++ {
		v := Between(src, 5, 50)
		if v < 5 || v > 50 {
			t.Fatalf("Between=%d outside [5,50]", v)
		}
		seenLo = seenLo || v == 5
		seenHi = seenHi || v == 50
	}
	if !seenLo || !seenHi {
		t.Fatalf("bounds not reached: lo=%v hi=%v", seenLo, seenHi)
	}
	if got := Between(src, 9, 9); got != 9 {
		t.Fatalf("Between(9,9)=%d", got)
	}
}

func TestNewSet_Dedupes(t *testing.T) {
	s := NewSet(3, 1, 3, 12)
	if s.Len() != 3 {
		t.Fatalf("len=%d want 3", s.Len())
	}
	if s.Contains(2) || !s.Contains(12) {
		t.Fatalf("membership mismatch: %v", s.Sorted())
	}
}
