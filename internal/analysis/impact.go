package analysis

import (
	"modelsync/internal/graph"
	"modelsync/internal/model"
)

// ImpactReport summarizes the modules affected by a change to some modules.
type ImpactReport struct {
	DirectlyAffected   []*graph.Module
	IndirectlyAffected []*graph.Module
}

// Analyzer performs impact analysis on the module graph.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// AnalyzeImpact returns the changed modules and every module that depends on
// them, directly or transitively.
func (a *Analyzer) AnalyzeImpact(changed []model.ModuleKey) *ImpactReport {
	report := &ImpactReport{
		DirectlyAffected:   []*graph.Module{},
		IndirectlyAffected: []*graph.Module{},
	}

	seen := make(map[int]bool)
	for _, key := range changed {
		m, ok := a.g.Lookup(key)
		if !ok || seen[m.Index] {
			continue
		}
		seen[m.Index] = true
		report.DirectlyAffected = append(report.DirectlyAffected, m)
	}

	queue := append([]*graph.Module(nil), report.DirectlyAffected...)
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		for _, dep := range a.g.GetDependents(m.Key) {
			if seen[dep.Index] {
				continue
			}
			seen[dep.Index] = true
			report.IndirectlyAffected = append(report.IndirectlyAffected, dep)
			queue = append(queue, dep)
		}
	}

	return report
}
