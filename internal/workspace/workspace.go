// Package workspace is the long-lived module set that sync passes commit
// into. Module records survive across passes; each pass replaces a module's
// flavor and dependencies wholesale.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"modelsync/internal/graph"
	"modelsync/internal/model"
)

// Dependency is a committed edge.
type Dependency struct {
	Target  model.ModuleKey `yaml:"target" json:"target"`
	Variant string          `yaml:"variant,omitempty" json:"variant,omitempty"`
	Abi     string          `yaml:"abi,omitempty" json:"abi,omitempty"`
}

// Module is the committed state of one module.
type Module struct {
	Key          model.ModuleKey  `yaml:"key" json:"key"`
	Name         string           `yaml:"name" json:"name"`
	RootDir      string           `yaml:"root_dir" json:"root_dir"`
	BuildDir     string           `yaml:"build_dir,omitempty" json:"build_dir,omitempty"`
	Flavor       graph.FlavorKind `yaml:"flavor" json:"flavor"`
	Variant      string           `yaml:"variant,omitempty" json:"variant,omitempty"`
	Abi          string           `yaml:"abi,omitempty" json:"abi,omitempty"`
	Native       bool             `yaml:"native,omitempty" json:"native,omitempty"`
	Origin       string           `yaml:"origin,omitempty" json:"origin,omitempty"`
	Artifacts    []string         `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Dependencies []Dependency     `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Workspace is the set of modules known to the project.
type Workspace struct {
	Project    string    `yaml:"project" json:"project"`
	LastPassID string    `yaml:"last_pass_id,omitempty" json:"last_pass_id,omitempty"`
	SyncedAt   time.Time `yaml:"synced_at,omitempty" json:"synced_at,omitempty"`
	Modules    []Module  `yaml:"modules" json:"modules"`
}

// ApplyStats summarizes a commit.
type ApplyStats struct {
	Added    int
	Updated  int
	Disposed int
	Kept     int
}

// Keys returns the keys of every module in workspace order.
func (w *Workspace) Keys() []model.ModuleKey {
	keys := make([]model.ModuleKey, 0, len(w.Modules))
	for _, m := range w.Modules {
		keys = append(keys, m.Key)
	}
	return keys
}

// Lookup finds a module by key.
func (w *Workspace) Lookup(key model.ModuleKey) (Module, bool) {
	for _, m := range w.Modules {
		if m.Key == key {
			return m, true
		}
	}
	return Module{}, false
}

// Apply commits g into the workspace. Modules of g replace their previous
// records. Modules absent from g are disposed when disposeObsolete is set and
// kept untouched otherwise.
func (w *Workspace) Apply(g *graph.Graph, disposeObsolete bool) ApplyStats {
	var stats ApplyStats
	previous := make(map[model.ModuleKey]bool, len(w.Modules))
	for _, m := range w.Modules {
		previous[m.Key] = true
	}

	modules := make([]Module, 0, len(g.Modules))
	inGraph := make(map[model.ModuleKey]bool, len(g.Modules))
	for _, gm := range g.Modules {
		inGraph[gm.Key] = true
		if previous[gm.Key] {
			stats.Updated++
		} else {
			stats.Added++
		}
		modules = append(modules, record(g, gm))
	}

	for _, m := range w.Modules {
		if inGraph[m.Key] {
			continue
		}
		if disposeObsolete {
			stats.Disposed++
			continue
		}
		stats.Kept++
		modules = append(modules, m)
	}

	w.Modules = modules
	return stats
}

func record(g *graph.Graph, gm *graph.Module) Module {
	m := Module{
		Key:      gm.Key,
		Name:     gm.Name,
		RootDir:  gm.RootDir,
		BuildDir: gm.BuildDir,
		Flavor:   graph.KindOf(gm.Flavor),
	}
	switch f := gm.Flavor.(type) {
	case graph.Application:
		m.Variant = f.Variant
		if f.Native != nil {
			m.Native = true
			m.Abi = f.Native.Abi
		}
	case graph.Native:
		m.Variant = f.Variant
		m.Abi = f.Abi
		m.Native = true
	case graph.PlainCode:
		m.Origin = string(f.Origin)
	case graph.Prebuilt:
		m.Artifacts = f.Artifacts
	}
	for _, e := range g.EdgesFrom(gm.Index) {
		m.Dependencies = append(m.Dependencies, Dependency{
			Target:  g.Modules[e.To].Key,
			Variant: e.Variant,
			Abi:     e.Abi,
		})
	}
	return m
}

// Load reads a workspace file. A missing file yields an empty workspace.
func Load(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Workspace{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	var w Workspace
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workspace %s: %w", path, err)
	}
	return &w, nil
}

// Save writes w to path, creating parent directories.
func Save(path string, w *Workspace) error {
	data, err := yaml.Marshal(w)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
