package cache

import (
	"context"

	"modelsync/internal/ctxlog"
	"modelsync/internal/model"
	"modelsync/internal/storage"
)

// Factory creates and loads project caches backed by one store.
type Factory struct {
	Store storage.CacheStore
}

func NewFactory(store storage.CacheStore) *Factory {
	return &Factory{Store: store}
}

// CreateNew starts an empty write cache for a pass.
func (f *Factory) CreateNew() *ProjectCache {
	return newProjectCache(f.Store)
}

// LoadFromDisk rehydrates the stored cache. It returns nil when nothing is
// stored, the data cannot be read or decoded, or it was written with another
// format version.
func (f *Factory) LoadFromDisk(ctx context.Context) *ProjectCache {
	logger := ctxlog.FromContext(ctx)

	snap, err := f.Store.LoadSnapshot(ctx)
	if err != nil {
		logger.Warn("model cache unreadable", "error", err)
		return nil
	}
	if snap == nil {
		logger.Debug("no model cache on disk")
		return nil
	}
	if snap.FormatVersion != model.FormatVersion {
		logger.Info("model cache format changed", "stored", snap.FormatVersion, "current", model.FormatVersion)
		return nil
	}

	p := newProjectCache(f.Store)
	p.savedAt = snap.SavedAt
	if len(snap.Project) > 0 {
		project, err := model.DecodeContainer(snap.Project)
		if err != nil {
			logger.Warn("model cache corrupt", "record", "project", "error", err)
			return nil
		}
		p.project = project
	}
	for _, rec := range snap.Modules {
		facts, err := model.DecodeContainer(rec.Facts)
		if err != nil {
			logger.Warn("model cache corrupt", "module", rec.Key.String(), "error", err)
			return nil
		}
		p.keys = append(p.keys, rec.Key)
		p.modules[rec.Key] = &ModuleCache{key: rec.Key, facts: facts}
	}
	return p
}
