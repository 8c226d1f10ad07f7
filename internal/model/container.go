package model

import (
	"sort"
)

// Container is the typed fact store of one module. It holds at most one fact
// per single-valued kind and any number of facts per multi-valued kind.
// Absence of a fact is a normal state.
type Container struct {
	single map[Kind]Fact
	multi  map[Kind][]Fact
}

// NewContainer returns a container populated with facts, in order.
func NewContainer(facts ...Fact) *Container {
	c := &Container{
		single: make(map[Kind]Fact),
		multi:  make(map[Kind][]Fact),
	}
	for _, f := range facts {
		c.Add(f)
	}
	return c
}

// Add stores f. For single-valued kinds it replaces any previous fact of the
// same kind; for multi-valued kinds it appends.
func (c *Container) Add(f Fact) {
	if f == nil {
		return
	}
	k := f.FactKind()
	if IsMultiValued(k) {
		c.multi[k] = append(c.multi[k], f)
		return
	}
	c.single[k] = f
}

// Remove drops every fact of kind k.
func (c *Container) Remove(k Kind) {
	delete(c.single, k)
	delete(c.multi, k)
}

// Has reports whether at least one fact of kind k is present.
func (c *Container) Has(k Kind) bool {
	if _, ok := c.single[k]; ok {
		return true
	}
	return len(c.multi[k]) > 0
}

// Kinds returns the kinds present, sorted.
func (c *Container) Kinds() []Kind {
	kinds := make([]Kind, 0, len(c.single)+len(c.multi))
	for k := range c.single {
		kinds = append(kinds, k)
	}
	for k, facts := range c.multi {
		if len(facts) > 0 {
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// All returns every fact, grouped by kind in Kinds order.
func (c *Container) All() []Fact {
	var out []Fact
	for _, k := range c.Kinds() {
		if f, ok := c.single[k]; ok {
			out = append(out, f)
			continue
		}
		out = append(out, c.multi[k]...)
	}
	return out
}

// Len returns the number of stored facts.
func (c *Container) Len() int {
	n := len(c.single)
	for _, facts := range c.multi {
		n += len(facts)
	}
	return n
}

// Clone returns a shallow copy; facts are values, so the copy can be mutated
// independently.
func (c *Container) Clone() *Container {
	return NewContainer(c.All()...)
}

// Find returns the fact of type T. For multi-valued kinds the first stored
// fact is returned.
func Find[T Fact](c *Container) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	k := zero.FactKind()
	if f, ok := c.single[k]; ok {
		t, ok := f.(T)
		return t, ok
	}
	if facts := c.multi[k]; len(facts) > 0 {
		t, ok := facts[0].(T)
		return t, ok
	}
	return zero, false
}

// FindAll returns every fact of type T in insertion order.
func FindAll[T Fact](c *Container) []T {
	var zero T
	if c == nil {
		return nil
	}
	k := zero.FactKind()
	if f, ok := c.single[k]; ok {
		if t, ok := f.(T); ok {
			return []T{t}
		}
		return nil
	}
	out := make([]T, 0, len(c.multi[k]))
	for _, f := range c.multi[k] {
		if t, ok := f.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
