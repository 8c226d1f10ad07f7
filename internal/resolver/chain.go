// Package resolver turns the raw dependency facts of one module into a
// normalized list of module dependency edges.
package resolver

import (
	"context"

	"modelsync/internal/model"
)

// ResolveStats counts the raw entries an encoding looked at.
type ResolveStats struct {
	Attempted int
	Resolved  int
	Skipped   int
}

// RawDependencies holds the two alternative encodings a module may carry.
// Flat is non-nil when the build tool used its older dependency model.
type RawDependencies struct {
	Flat      []model.FlatDependency
	Addresses []string
}

// Encoding decodes one dependency encoding.
type Encoding interface {
	Name() string
	Applies(raw RawDependencies) bool
	Decode(ctx context.Context, raw RawDependencies) ([]model.ModuleDependency, ResolveStats)
}

// StageResult reports which encoding produced the edges of one module.
type StageResult struct {
	Encoding string
	Stats    ResolveStats
	Edges    int
}

// Resolver picks the first applicable encoding from its chain.
type Resolver struct {
	encodings []Encoding
}

func NewResolver(encodings ...Encoding) *Resolver {
	return &Resolver{encodings: encodings}
}

// NewDefaultResolver prefers the flat list and falls back to address strings.
func NewDefaultResolver() *Resolver {
	return NewResolver(FlatListEncoding{}, AddressEncoding{})
}

// Resolve returns the deduplicated edges of raw.
func (r *Resolver) Resolve(ctx context.Context, raw RawDependencies) ([]model.ModuleDependency, StageResult) {
	for _, enc := range r.encodings {
		if !enc.Applies(raw) {
			continue
		}
		deps, stats := enc.Decode(ctx, raw)
		deps = Dedupe(deps)
		return deps, StageResult{Encoding: enc.Name(), Stats: stats, Edges: len(deps)}
	}
	return nil, StageResult{}
}

// Dedupe drops repeated edges, keeping the first occurrence.
func Dedupe(deps []model.ModuleDependency) []model.ModuleDependency {
	if len(deps) < 2 {
		return deps
	}
	seen := make(map[model.ModuleDependency]struct{}, len(deps))
	out := deps[:0]
	for _, d := range deps {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
