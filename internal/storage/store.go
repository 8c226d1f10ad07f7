package storage

import (
	"context"
	"time"

	"modelsync/internal/model"
)

// ModuleRecord is the serialized fact set of one module.
type ModuleRecord struct {
	Key   model.ModuleKey
	Facts []byte
}

// Snapshot is everything persisted for one committed sync pass.
type Snapshot struct {
	FormatVersion int
	SavedAt       time.Time
	Project       []byte
	Modules       []ModuleRecord
}

// CacheStore persists model cache snapshots.
type CacheStore interface {
	// SaveSnapshot replaces the stored snapshot.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// LoadSnapshot returns the stored snapshot, or nil if nothing was saved.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	ModuleKeys(ctx context.Context) ([]model.ModuleKey, error)

	Close() error
}
