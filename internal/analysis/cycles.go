package analysis

import (
	"sort"

	"modelsync/internal/graph"
	"modelsync/internal/model"
)

// VariantCycles returns the groups of modules that depend on each other
// through variant-bearing edges. Such cycles are a configuration error of the
// build; plain code cycles are allowed and not reported.
func VariantCycles(g *graph.Graph) [][]model.ModuleKey {
	adj := make(map[int][]int)
	for _, e := range g.Edges {
		if e.Variant != "" {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}

	t := &tarjan{adj: adj, index: make(map[int]int), low: make(map[int]int), onStack: make(map[int]bool)}
	for i := range g.Modules {
		if _, visited := t.index[i]; !visited {
			t.visit(i)
		}
	}

	var cycles [][]model.ModuleKey
	for _, comp := range t.components {
		if len(comp) < 2 {
			continue
		}
		keys := make([]model.ModuleKey, 0, len(comp))
		for _, i := range comp {
			keys = append(keys, g.Modules[i].Key)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
		cycles = append(cycles, keys)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0].Less(cycles[j][0]) })
	return cycles
}

type tarjan struct {
	adj        map[int][]int
	next       int
	index      map[int]int
	low        map[int]int
	stack      []int
	onStack    map[int]bool
	components [][]int
}

func (t *tarjan) visit(v int) {
	t.index[v] = t.next
	t.low[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.adj[v] {
		if _, visited := t.index[w]; !visited {
			t.visit(w)
			t.low[v] = min(t.low[v], t.low[w])
		} else if t.onStack[w] {
			t.low[v] = min(t.low[v], t.index[w])
		}
	}

	if t.low[v] != t.index[v] {
		return
	}
	var comp []int
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		comp = append(comp, w)
		if w == v {
			break
		}
	}
	t.components = append(t.components, comp)
}
