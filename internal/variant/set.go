package variant

import (
	"math/bits"
	"strings"
)

// Set is an immutable subset of a Space's combinations. The zero Set is
// empty and combines with any other set.
type Set struct {
	space *Space
	words []uint64
}

// Space returns the space the set indexes, nil for the zero Set.
func (a Set) Space() *Space {
	return a.space
}

func (a Set) IsEmpty() bool {
	for _, w := range a.words {
		if w != 0 {
			return false
		}
	}
	return true
}

func (a Set) Count() int {
	n := 0
	for _, w := range a.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Contains reports whether combination i is in the set.
func (a Set) Contains(i int) bool {
	if i < 0 || i/64 >= len(a.words) {
		return false
	}
	return a.words[i/64]&(1<<uint(i%64)) != 0
}

// Indices lists the members in ascending order.
func (a Set) Indices() []int {
	var out []int
	for wi, w := range a.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, wi*64+b)
			w &^= 1 << uint(b)
		}
	}
	return out
}

func (a Set) Combinations() []Combination {
	if a.space == nil {
		return nil
	}
	indices := a.Indices()
	out := make([]Combination, 0, len(indices))
	for _, i := range indices {
		out = append(out, a.space.Combination(i))
	}
	return out
}

func (a Set) Union(b Set) Set {
	return combine(a, b, func(x, y uint64) uint64 { return x | y })
}

func (a Set) Intersect(b Set) Set {
	return combine(a, b, func(x, y uint64) uint64 { return x & y })
}

func (a Set) Minus(b Set) Set {
	return combine(a, b, func(x, y uint64) uint64 { return x &^ y })
}

// Complement is the set of combinations of the space not in a.
func (a Set) Complement() Set {
	if a.space == nil {
		return a
	}
	return a.space.Full().Minus(a)
}

func (a Set) Intersects(b Set) bool {
	n := min(len(a.words), len(b.words))
	for i := 0; i < n; i++ {
		if a.words[i]&b.words[i] != 0 {
			return true
		}
	}
	return false
}

func (a Set) SubsetOf(b Set) bool {
	return a.Minus(b).IsEmpty()
}

func (a Set) Equal(b Set) bool {
	return a.SubsetOf(b) && b.SubsetOf(a)
}

func (a Set) String() string {
	combos := a.Combinations()
	parts := make([]string, 0, len(combos))
	for _, combo := range combos {
		parts = append(parts, "{"+combo.String()+"}")
	}
	return strings.Join(parts, " ")
}

func combine(a, b Set, op func(x, y uint64) uint64) Set {
	space := a.space
	if space == nil {
		space = b.space
	}
	if space == nil {
		return Set{}
	}
	if a.space != nil && b.space != nil && a.space != b.space {
		panic("variant: combining sets from different spaces")
	}
	out := Set{space: space, words: make([]uint64, wordCount(space.size))}
	for i := range out.words {
		var x, y uint64
		if i < len(a.words) {
			x = a.words[i]
		}
		if i < len(b.words) {
			y = b.words[i]
		}
		out.words[i] = op(x, y)
	}
	return out
}
