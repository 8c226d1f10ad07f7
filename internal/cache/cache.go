// Package cache is the durable projection of the project model aggregate.
// Every fact added to a module during setup is mirrored into that module's
// cache handle, and the whole cache is persisted once the pass commits.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"modelsync/internal/model"
	"modelsync/internal/storage"
)

// ModuleCache is the write handle for one module's cached facts.
type ModuleCache struct {
	key   model.ModuleKey
	facts *model.Container
}

func (m *ModuleCache) Key() model.ModuleKey { return m.key }

// AddModel stores f in the module's cached facts.
func (m *ModuleCache) AddModel(f model.Fact) {
	m.facts.Add(f)
}

// RemoveModel drops every cached fact of kind k.
func (m *ModuleCache) RemoveModel(k model.Kind) {
	m.facts.Remove(k)
}

// Facts exposes the cached container.
func (m *ModuleCache) Facts() *model.Container { return m.facts }

// FindModel returns the cached fact of type T, if any.
func FindModel[T model.Fact](m *ModuleCache) (T, bool) {
	return model.Find[T](m.facts)
}

// RequireModel returns the cached fact of type T or a ModelNotFoundError.
func RequireModel[T model.Fact](m *ModuleCache) (T, error) {
	v, ok := model.Find[T](m.facts)
	if !ok {
		return v, &ModelNotFoundError{Kind: v.FactKind(), Module: m.key}
	}
	return v, nil
}

// ProjectCache holds the cached facts of every module of one pass.
type ProjectCache struct {
	mu      sync.Mutex
	store   storage.CacheStore
	keys    []model.ModuleKey
	modules map[model.ModuleKey]*ModuleCache
	project *model.Container
	savedAt time.Time
}

func newProjectCache(store storage.CacheStore) *ProjectCache {
	return &ProjectCache{
		store:   store,
		modules: make(map[model.ModuleKey]*ModuleCache),
		project: model.NewContainer(),
	}
}

// AddModule returns a fresh write handle for key, replacing any previous one.
func (p *ProjectCache) AddModule(key model.ModuleKey) *ModuleCache {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.modules[key]; !exists {
		p.keys = append(p.keys, key)
	}
	m := &ModuleCache{key: key, facts: model.NewContainer()}
	p.modules[key] = m
	return m
}

// FindCacheForModule returns the handle for key.
func (p *ProjectCache) FindCacheForModule(key model.ModuleKey) (*ModuleCache, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.modules[key]
	return m, ok
}

// Keys returns the cached module keys in insertion order.
func (p *ProjectCache) Keys() []model.ModuleKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ModuleKey, len(p.keys))
	copy(out, p.keys)
	return out
}

// SetProjectModels replaces the cached project-wide facts.
func (p *ProjectCache) SetProjectModels(c *model.Container) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.project = c.Clone()
}

func (p *ProjectCache) ProjectModels() *model.Container {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.project
}

// SavedAt is the time the cache was last written, zero for a new cache.
func (p *ProjectCache) SavedAt() time.Time { return p.savedAt }

// SaveToDisk persists the whole cache, replacing what was stored before.
func (p *ProjectCache) SaveToDisk(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &storage.Snapshot{
		FormatVersion: model.FormatVersion,
		SavedAt:       time.Now(),
	}
	var err error
	if snap.Project, err = model.EncodeContainer(p.project); err != nil {
		return fmt.Errorf("encode project facts: %w", err)
	}
	for _, key := range p.keys {
		data, err := model.EncodeContainer(p.modules[key].facts)
		if err != nil {
			return fmt.Errorf("encode module %s: %w", key, err)
		}
		snap.Modules = append(snap.Modules, storage.ModuleRecord{Key: key, Facts: data})
	}

	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save model cache: %w", err)
	}
	p.savedAt = snap.SavedAt
	return nil
}
