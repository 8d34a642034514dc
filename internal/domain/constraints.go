package domain

// PathConstraints narrows the pathfinder's token selection.
// Nil slices mean unconstrained.
type PathConstraints struct {
	FromTokens         []Address
	ToTokens           []Address
	ExcludedFromTokens []Address
	ExcludedToTokens   []Address
}

// IsZero reports whether no constraint is set.
func (c PathConstraints) IsZero() bool {
	return c.FromTokens == nil && c.ToTokens == nil &&
		c.ExcludedFromTokens == nil && c.ExcludedToTokens == nil
}
