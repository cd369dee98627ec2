package variant

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// MaxCombinations caps the size of an enumerated space.
const MaxCombinations = 1 << 20

// Space is a precomputed enumeration of every combination of a template.
// Combination i assigns axis a the value domains[a][(i/strides[a])%len(domains[a])].
type Space struct {
	axes    []string
	domains [][]string
	index   []map[string]int
	strides []int
	size    int
}

// NewSpace enumerates the Cartesian product of the template's axes.
// Axes without values are ignored. An empty template yields a space
// holding exactly one (empty) combination.
func NewSpace(t Template) (*Space, error) {
	s := &Space{size: 1}
	for _, axis := range t.Axes() {
		values := uniqueSorted(t[axis])
		if len(values) == 0 {
			continue
		}
		idx := make(map[string]int, len(values))
		for i, value := range values {
			idx[value] = i
		}
		s.axes = append(s.axes, axis)
		s.domains = append(s.domains, values)
		s.index = append(s.index, idx)
		s.size *= len(values)
		if s.size > MaxCombinations {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("variant space exceeds %d combinations", MaxCombinations))
		}
	}
	s.strides = make([]int, len(s.axes))
	stride := 1
	for a := len(s.axes) - 1; a >= 0; a-- {
		s.strides[a] = stride
		stride *= len(s.domains[a])
	}
	return s, nil
}

// Size is the number of combinations in the space.
func (s *Space) Size() int {
	return s.size
}

// Axes returns the enumerated axes in sorted order.
func (s *Space) Axes() []string {
	return append([]string(nil), s.axes...)
}

// Template returns the axis domains of the space.
func (s *Space) Template() Template {
	t := make(Template, len(s.axes))
	for a, axis := range s.axes {
		t[axis] = append([]string(nil), s.domains[a]...)
	}
	return t
}

func (s *Space) Empty() Set {
	return Set{space: s, words: make([]uint64, wordCount(s.size))}
}

func (s *Space) Full() Set {
	set := s.Empty()
	for i := 0; i < s.size; i++ {
		set.words[i/64] |= 1 << uint(i%64)
	}
	return set
}

// Of returns the set holding exactly the given combination indices.
// Indices outside the space are ignored.
func (s *Space) Of(indices ...int) Set {
	set := s.Empty()
	for _, i := range indices {
		if i >= 0 && i < s.size {
			set.words[i/64] |= 1 << uint(i%64)
		}
	}
	return set
}

// Select returns the combinations compatible with a tag: for every axis
// the tag mentions, the combination's value must be one of the tag's
// values. Axes the tag omits match every value. A tag naming an axis the
// space does not enumerate selects nothing.
func (s *Space) Select(tag Template) Set {
	set := s.Empty()
	allowed := make([][]bool, len(s.axes))
	for axis, values := range tag {
		a := s.axisIndex(axis)
		if a < 0 {
			if len(values) == 0 {
				continue
			}
			return set
		}
		allowed[a] = make([]bool, len(s.domains[a]))
		for _, value := range values {
			if v, ok := s.index[a][value]; ok {
				allowed[a][v] = true
			}
		}
	}
	for i := 0; i < s.size; i++ {
		ok := true
		for a := range s.axes {
			if allowed[a] == nil {
				continue
			}
			if !allowed[a][s.valueAt(i, a)] {
				ok = false
				break
			}
		}
		if ok {
			set.words[i/64] |= 1 << uint(i%64)
		}
	}
	return set
}

// Combination decodes combination i.
func (s *Space) Combination(i int) Combination {
	combo := make(Combination, len(s.axes))
	for a, axis := range s.axes {
		combo[a] = AxisValue{Axis: axis, Value: s.domains[a][s.valueAt(i, a)]}
	}
	return combo
}

// Tags simplifies x relative to the product space within into the list
// of tags whose union is exactly x. An axis whose every value in within
// is covered is left out of the tag. When x equals within the result is
// a single empty tag; when x is empty the result is nil.
func (s *Space) Tags(x Set, within Set) []Template {
	x = x.Intersect(within)
	if x.IsEmpty() {
		return nil
	}
	if x.Equal(within) {
		return []Template{{}}
	}
	dom := make([][]int, len(s.axes))
	for a := range s.axes {
		seen := make([]bool, len(s.domains[a]))
		for _, i := range within.Indices() {
			seen[s.valueAt(i, a)] = true
		}
		for v, ok := range seen {
			if ok {
				dom[a] = append(dom[a], v)
			}
		}
	}
	var tuples [][]int
	for _, i := range x.Indices() {
		tuple := make([]int, len(s.axes))
		for a := range s.axes {
			tuple[a] = s.valueAt(i, a)
		}
		tuples = append(tuples, tuple)
	}
	return s.split(tuples, 0, dom)
}

type tupleGroup struct {
	values []int
	tuples [][]int
}

func (s *Space) split(tuples [][]int, axis int, dom [][]int) []Template {
	if axis == len(s.axes) {
		return []Template{{}}
	}
	byValue := map[int][][]int{}
	var values []int
	for _, tuple := range tuples {
		v := tuple[axis]
		if _, ok := byValue[v]; !ok {
			values = append(values, v)
		}
		byValue[v] = append(byValue[v], tuple)
	}
	sort.Ints(values)

	var groups []*tupleGroup
	byKey := map[string]*tupleGroup{}
	for _, v := range values {
		key := restKey(byValue[v], axis+1)
		group, ok := byKey[key]
		if !ok {
			group = &tupleGroup{tuples: byValue[v]}
			byKey[key] = group
			groups = append(groups, group)
		}
		group.values = append(group.values, v)
	}

	var out []Template
	for _, group := range groups {
		for _, sub := range s.split(group.tuples, axis+1, dom) {
			if len(group.values) != len(dom[axis]) {
				names := make([]string, 0, len(group.values))
				for _, v := range group.values {
					names = append(names, s.domains[axis][v])
				}
				sub[s.axes[axis]] = names
			}
			out = append(out, sub)
		}
	}
	return out
}

func restKey(tuples [][]int, from int) string {
	keys := make([]string, 0, len(tuples))
	for _, tuple := range tuples {
		parts := make([]string, 0, len(tuple)-from)
		for _, v := range tuple[from:] {
			parts = append(parts, strconv.Itoa(v))
		}
		keys = append(keys, strings.Join(parts, ","))
	}
	sort.Strings(keys)
	return strings.Join(keys, ";")
}

func (s *Space) valueAt(i int, a int) int {
	return (i / s.strides[a]) % len(s.domains[a])
}

func (s *Space) axisIndex(axis string) int {
	for a, name := range s.axes {
		if name == axis {
			return a
		}
	}
	return -1
}

func wordCount(size int) int {
	return (size + 63) / 64
}

// Combination is one value per enumerated axis.
type Combination []AxisValue

func (c Combination) String() string {
	parts := make([]string, 0, len(c))
	for _, pair := range c {
		parts = append(parts, pair.String())
	}
	return strings.Join(parts, " ")
}
