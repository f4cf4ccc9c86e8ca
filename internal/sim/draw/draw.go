package draw

import (
	"fmt"
	"sort"

	"lukechampine.com/frand"
)

// Source is the randomness a draw consumes. *frand.RNG and *rand.Rand both satisfy it.
type Source interface {
	Intn(n int) int
}

// NewSource returns an independently seeded source.
func NewSource() Source { return frand.New() }

// Set is a set of distinct indices in [0, n).
type Set struct {
	order   []int
	members map[int]struct{}
}

// NewSet builds a set from indices; duplicates are kept once.
func NewSet(indices ...int) Set {
	s := Set{members: make(map[int]struct{}, len(indices))}
	for _, i := range indices {
		s.add(i)
	}
	return s
}

func (s *Set) add(i int) bool {
	if _, ok := s.members[i]; ok {
		return false
	}
	s.members[i] = struct{}{}
	s.order = append(s.order, i)
	return true
}

func (s Set) Len() int { return len(s.order) }

func (s Set) Contains(i int) bool {
	_, ok := s.members[i]
	return ok
}

// Indices returns the members. Callers must not rely on the order.
func (s Set) Indices() []int {
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}

func (s Set) Sorted() []int {
	out := s.Indices()
	sort.Ints(out)
	return out
}

// Sample draws k distinct indices uniformly from [0, n) by rejection.
// k > n can never complete, so it panics; callers validate sizes up front.
func Sample(src Source, k, n int) Set {
	if k < 0 || n < 0 || k > n {
		panic(fmt.Sprintf("draw: cannot sample %d distinct indices from %d", k, n))
	}
	s := Set{
		order:   make([]int, 0, k),
		members: make(map[int]struct{}, k),
	}
	for len(s.order) < k {
		s.add(src.Intn(n))
	}
	return s
}

// Between returns a uniform integer in [lo, hi].
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}
