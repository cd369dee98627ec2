package variant

// Coverage partitions a dependency's combination space into the
// combinations satisfied so far and those still unsatisfied.
type Coverage struct {
	space Set
	sat   Set
}

func NewCoverage(space Set) *Coverage {
	return &Coverage{space: space, sat: space.Intersect(Set{})}
}

// MarkSatisfied moves every combination of s that lies in the space
// into the satisfied partition.
func (c *Coverage) MarkSatisfied(s Set) {
	c.sat = c.sat.Union(s.Intersect(c.space))
}

func (c *Coverage) Space() Set {
	return c.space
}

func (c *Coverage) Sat() Set {
	return c.sat
}

func (c *Coverage) NotSat() Set {
	return c.space.Minus(c.sat)
}

func (c *Coverage) IsSatisfied() bool {
	return c.NotSat().IsEmpty()
}
