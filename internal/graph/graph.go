// Package graph is the arena of classified modules and their dependency
// edges. Modules are created first and wired afterwards, so an edge may point
// at any module of the graph regardless of processing order.
package graph

import (
	"fmt"

	"modelsync/internal/model"
)

// Module is one classified module.
type Module struct {
	Index    int
	Key      model.ModuleKey
	Name     string
	RootDir  string
	BuildDir string
	Flavor   Flavor
}

// Graph manages modules and their edges.
type Graph struct {
	Modules    []*Module
	Edges      []Edge
	Unresolved []UnresolvedEdge

	index map[model.ModuleKey]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		index: make(map[model.ModuleKey]int),
	}
}

// CreateModule allocates a module stub and registers its key. Keys are unique.
func (g *Graph) CreateModule(key model.ModuleKey, name, rootDir string) (*Module, error) {
	if _, exists := g.index[key]; exists {
		return nil, fmt.Errorf("module %s already exists", key)
	}
	m := &Module{
		Index:   len(g.Modules),
		Key:     key,
		Name:    name,
		RootDir: rootDir,
	}
	g.Modules = append(g.Modules, m)
	g.index[key] = m.Index
	return m, nil
}

// Lookup finds a module by key.
func (g *Graph) Lookup(key model.ModuleKey) (*Module, bool) {
	i, ok := g.index[key]
	if !ok {
		return nil, false
	}
	return g.Modules[i], true
}

// Wire replaces the outgoing edges of from with deps. Targets missing from
// the graph are recorded as unresolved. It returns the number of edges wired.
func (g *Graph) Wire(from *Module, deps []model.ModuleDependency) int {
	g.clearOutgoing(from.Index)

	wired := 0
	for _, dep := range deps {
		to, ok := g.index[dep.Target]
		switch {
		case !ok:
			g.Unresolved = append(g.Unresolved, UnresolvedEdge{From: from.Key, Target: dep.Target, Reason: ReasonNoModule})
		case to == from.Index:
			g.Unresolved = append(g.Unresolved, UnresolvedEdge{From: from.Key, Target: dep.Target, Reason: ReasonSelf})
		default:
			g.Edges = append(g.Edges, Edge{From: from.Index, To: to, Variant: dep.Variant, Abi: dep.Abi})
			wired++
		}
	}
	return wired
}

func (g *Graph) clearOutgoing(idx int) {
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.From != idx {
			edges = append(edges, e)
		}
	}
	g.Edges = edges

	key := g.Modules[idx].Key
	unresolved := g.Unresolved[:0]
	for _, u := range g.Unresolved {
		if u.From != key {
			unresolved = append(unresolved, u)
		}
	}
	g.Unresolved = unresolved
}

// EdgesFrom returns the outgoing edges of the module at idx.
func (g *Graph) EdgesFrom(idx int) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == idx {
			out = append(out, e)
		}
	}
	return out
}

// GetDependencies returns all modules that the given module depends on.
func (g *Graph) GetDependencies(key model.ModuleKey) []*Module {
	i, ok := g.index[key]
	if !ok {
		return nil
	}
	var deps []*Module
	for _, e := range g.Edges {
		if e.From == i {
			deps = append(deps, g.Modules[e.To])
		}
	}
	return deps
}

// GetDependents returns all modules that depend on the given module.
func (g *Graph) GetDependents(key model.ModuleKey) []*Module {
	i, ok := g.index[key]
	if !ok {
		return nil
	}
	var deps []*Module
	for _, e := range g.Edges {
		if e.To == i {
			deps = append(deps, g.Modules[e.From])
		}
	}
	return deps
}
