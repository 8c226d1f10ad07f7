// Package variant records which build variant and ABI each module uses and
// decides defaults for modules without a recorded selection.
package variant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"modelsync/internal/model"
)

// Selection is the variant and optional ABI chosen for one module.
type Selection struct {
	Variant string `yaml:"variant"`
	Abi     string `yaml:"abi,omitempty"`
}

// Registry maps module keys to their selections. Missing entries mean "use
// the policy default". It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	selections map[model.ModuleKey]Selection
}

func NewRegistry() *Registry {
	return &Registry{selections: make(map[model.ModuleKey]Selection)}
}

// Record stores the full selection for key. An empty variant removes it.
func (r *Registry) Record(key model.ModuleKey, sel Selection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sel.Variant == "" {
		delete(r.selections, key)
		return
	}
	r.selections[key] = sel
}

// RecordSelection stores the variant for key, keeping any recorded ABI.
func (r *Registry) RecordSelection(key model.ModuleKey, variantName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if variantName == "" {
		delete(r.selections, key)
		return
	}
	sel := r.selections[key]
	sel.Variant = variantName
	r.selections[key] = sel
}

// LookupSelection returns the recorded variant name of key.
func (r *Registry) LookupSelection(key model.ModuleKey) (string, bool) {
	sel, ok := r.Lookup(key)
	return sel.Variant, ok
}

// Lookup returns the recorded selection of key.
func (r *Registry) Lookup(key model.ModuleKey) (Selection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sel, ok := r.selections[key]
	return sel, ok
}

func (r *Registry) Remove(key model.ModuleKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selections, key)
}

// Keys returns the keys with a recorded selection, sorted.
func (r *Registry) Keys() []model.ModuleKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]model.ModuleKey, 0, len(r.selections))
	for k := range r.selections {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Snapshot returns a copy of every selection.
func (r *Registry) Snapshot() map[model.ModuleKey]Selection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[model.ModuleKey]Selection, len(r.selections))
	for k, v := range r.selections {
		out[k] = v
	}
	return out
}

type registryFile struct {
	Selections []registryEntry `yaml:"selections"`
}

type registryEntry struct {
	Module  string `yaml:"module"`
	Variant string `yaml:"variant"`
	Abi     string `yaml:"abi,omitempty"`
}

// LoadRegistry reads a registry file. A missing file yields an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read variant registry: %w", err)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse variant registry %s: %w", path, err)
	}
	for _, e := range f.Selections {
		key, ok := model.ParseModuleKey(e.Module)
		if !ok {
			continue
		}
		r.Record(key, Selection{Variant: e.Variant, Abi: e.Abi})
	}
	return r, nil
}

// SaveRegistry writes r to path, creating parent directories.
func SaveRegistry(path string, r *Registry) error {
	snapshot := r.Snapshot()
	f := registryFile{Selections: make([]registryEntry, 0, len(snapshot))}
	for _, key := range r.Keys() {
		sel := snapshot[key]
		f.Selections = append(f.Selections, registryEntry{Module: key.String(), Variant: sel.Variant, Abi: sel.Abi})
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
